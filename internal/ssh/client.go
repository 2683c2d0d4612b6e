package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/volkan-m/ssh-mcp-server/internal/log"
)

const (
	// DefaultConnectTimeout is the default SSH connection timeout.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultSSHPort is the default SSH port.
	DefaultSSHPort = 22
)

// ClientConfig holds the configuration for creating an SSH connection.
type ClientConfig struct {
	// Host is the IP address or hostname of the target.
	Host string
	// Port is the SSH port (default: 22).
	Port int
	// User is the SSH user.
	User string
	// PrivateKey is the PEM-encoded private key bytes.
	PrivateKey []byte
	// HostKeyCallback verifies the server host key.
	HostKeyCallback ssh.HostKeyCallback
	// ConnectTimeout bounds the TCP connection and the SSH handshake (default: 10s).
	ConnectTimeout time.Duration
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if len(c.PrivateKey) == 0 {
		return fmt.Errorf("private key is required")
	}
	if c.HostKeyCallback == nil {
		return fmt.Errorf("host key callback is required")
	}
	if c.Port == 0 {
		c.Port = DefaultSSHPort
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	return nil
}

// Client wraps an SSH connection with high-level operations.
type Client struct {
	conn   *ssh.Client
	logger log.Logger
}

// NewClient dials the SSH server and returns a connected client.
//
// Only public key authentication is offered, so a wrong or missing key fails
// the handshake instead of waiting for interactive input.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid ssh client config: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}

	sshCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: cfg.HostKeyCallback,
		Timeout:         cfg.ConnectTimeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var d net.Dialer
	netConn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", addr, err)
	}

	// The handshake has no timeout of its own.
	deadline, _ := dialCtx.Deadline()
	_ = netConn.SetDeadline(deadline)

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshCfg)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake failed with %s: %w", addr, err)
	}
	_ = netConn.SetDeadline(time.Time{})

	cfg.Logger.Debugf("Connected to %s@%s", cfg.User, addr)

	return &Client{
		conn:   ssh.NewClient(sshConn, chans, reqs),
		logger: cfg.Logger,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ExecOpts are options for command execution (non-TTY only).
type ExecOpts struct {
	Stdout io.Writer
	Stderr io.Writer
}

// ErrSession is returned when the session for a command could not be started.
var ErrSession = errors.New("ssh session failed")

// Exec runs a command on the remote host and returns the exit code.
//
// The command is sent untouched as the payload of a single exec request, the
// remote user's shell is the only one that interprets it. When ctx ends the
// remote process is killed and the session closed before returning.
//
// Opening the session has no deadline of its own, if ctx ends before the
// server answers, the connection is closed and the client can't be reused.
func (c *Client) Exec(ctx context.Context, command string, opts ExecOpts) (int, error) {
	closeConn := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	session, err := c.conn.NewSession()
	if !closeConn() {
		if session != nil {
			_ = session.Close()
		}
		return -1, ctx.Err()
	}
	if err != nil {
		return -1, fmt.Errorf("could not create ssh session: %w: %w", ErrSession, err)
	}
	defer session.Close()

	if opts.Stdout != nil {
		session.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		session.Stderr = opts.Stderr
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return -1, ctx.Err()
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return -1, ctx.Err()
			}
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitStatus(), nil
			}
			return -1, fmt.Errorf("command execution failed: %w", err)
		}
		return 0, nil
	}
}
