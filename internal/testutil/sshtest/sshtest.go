// Package sshtest provides an in-process SSH server for tests. Exec requests are
// run with the local "sh -c", the same way a remote login shell would do it.
package sshtest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// GenerateKey generates an Ed25519 key pair and returns the PEM-encoded private key
// and its SSH public key.
func GenerateKey(t testing.TB) ([]byte, ssh.PublicKey) {
	t.Helper()

	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pemBlock, err := ssh.MarshalPrivateKey(privKey, "test-key")
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(privKey)
	require.NoError(t, err)

	return pem.EncodeToMemory(pemBlock), signer.PublicKey()
}

// ServerConfig is the test server configuration.
type ServerConfig struct {
	// AuthorizedKey is the only client key accepted, nil accepts any key.
	AuthorizedKey ssh.PublicKey
	// StallSessions leaves session channel opens unanswered after the handshake.
	StallSessions bool
}

// Server is an in-process SSH server.
type Server struct {
	Host    string
	Port    int
	HostKey ssh.PublicKey

	listener net.Listener
	config   *ssh.ServerConfig
	wg       sync.WaitGroup

	mu       sync.Mutex
	commands []string
	killed   int
	stalled  int
	stall    bool
}

// NewServer starts a new test SSH server, it's closed on test cleanup.
func NewServer(t testing.TB, cfg ServerConfig) *Server {
	t.Helper()

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if cfg.AuthorizedKey == nil || bytes.Equal(cfg.AuthorizedKey.Marshal(), key.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unauthorized key")
		},
	}

	hostKeyPEM, _ := GenerateKey(t)
	signer, err := ssh.ParsePrivateKey(hostKeyPEM)
	require.NoError(t, err)
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	s := &Server{
		Host:     host,
		Port:     port,
		HostKey:  signer.PublicKey(),
		listener: listener,
		config:   config,
		stall:    cfg.StallSessions,
	}

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)

	return s
}

// Commands returns the exec payloads received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Killed returns how many running commands were killed by a client signal.
func (s *Server) Killed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

// Stalled returns how many session opens were left unanswered.
func (s *Server) Stalled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stalled
}

// Close stops accepting connections.
func (s *Server) Close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(netConn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		if s.stall {
			s.mu.Lock()
			s.stalled++
			s.mu.Unlock()
			continue
		}
		go s.handleSession(newChannel)
	}
}

func (s *Server) handleSession(newChannel ssh.NewChannel) {
	channel, requests, err := newChannel.Accept()
	if err != nil {
		return
	}
	defer channel.Close()

	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			continue
		}
		if req.WantReply {
			_ = req.Reply(true, nil)
		}

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		s.mu.Unlock()

		s.run(channel, requests, payload.Command)
		return
	}
}

func (s *Server) run(channel ssh.Channel, requests <-chan *ssh.Request, command string) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Stdout = channel
	cmd.Stderr = channel.Stderr()

	if err := cmd.Start(); err != nil {
		sendExitStatus(channel, 127)
		return
	}

	// Signals (or the client going away) kill the command.
	go func() {
		for req := range requests {
			if req.Type == "signal" {
				s.mu.Lock()
				s.killed++
				s.mu.Unlock()
				_ = cmd.Process.Kill()
			}
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
		_ = cmd.Process.Kill()
	}()

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}

	sendExitStatus(channel, exitCode)
}

func sendExitStatus(channel ssh.Channel, code int) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(code))
	_, _ = channel.SendRequest("exit-status", false, payload)
}
