package ssh_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
	remotessh "github.com/volkan-m/ssh-mcp-server/internal/remote/ssh"
	"github.com/volkan-m/ssh-mcp-server/internal/testutil/sshtest"
)

func writeKey(t *testing.T, key []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ai_runner")
	require.NoError(t, os.WriteFile(path, key, 0600))
	return path
}

func newTarget(server *sshtest.Server, keyPath string, knownHosts string) model.RemoteTarget {
	return model.RemoteTarget{
		Host:           server.Host,
		Port:           server.Port,
		User:           "ai-runner",
		PrivateKeyPath: keyPath,
		KnownHostsPath: knownHosts,
		CommandTimeout: model.DefaultCommandTimeout,
		ConnectTimeout: 5 * time.Second,
	}
}

func TestExecutorExec(t *testing.T) {
	privKey, pubKey := sshtest.GenerateKey(t)
	otherKey, _ := sshtest.GenerateKey(t)

	tests := map[string]struct {
		target      func(server *sshtest.Server) model.RemoteTarget
		command     string
		expExitCode int
		expStdout   string
		expErr      error
	}{
		"A command should run on the remote target.": {
			target: func(server *sshtest.Server) model.RemoteTarget {
				return newTarget(server, writeKey(t, privKey), filepath.Join(t.TempDir(), "known_hosts"))
			},
			command:     "echo ok && exit 3",
			expExitCode: 3,
			expStdout:   "ok\n",
		},

		"Ignoring host keys should not need a known hosts file.": {
			target: func(server *sshtest.Server) model.RemoteTarget {
				tg := newTarget(server, writeKey(t, privKey), "")
				tg.InsecureIgnoreHostKey = true
				return tg
			},
			command:   "echo ok",
			expStdout: "ok\n",
		},

		"A rejected key should be a connection error.": {
			target: func(server *sshtest.Server) model.RemoteTarget {
				return newTarget(server, writeKey(t, otherKey), filepath.Join(t.TempDir(), "known_hosts"))
			},
			command: "echo ok",
			expErr:  model.ErrConnection,
		},

		"A missing key should be a connection error.": {
			target: func(server *sshtest.Server) model.RemoteTarget {
				return newTarget(server, filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "known_hosts"))
			},
			command: "echo ok",
			expErr:  model.ErrConnection,
		},

		"Verifying host keys without known hosts file should be a connection error.": {
			target: func(server *sshtest.Server) model.RemoteTarget {
				return newTarget(server, writeKey(t, privKey), "")
			},
			command: "echo ok",
			expErr:  model.ErrConnection,
		},

		"An incomplete target should be a configuration error.": {
			target: func(server *sshtest.Server) model.RemoteTarget {
				tg := newTarget(server, writeKey(t, privKey), "")
				tg.Host = ""
				return tg
			},
			command: "echo ok",
			expErr:  model.ErrConfigInvalid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			server := sshtest.NewServer(t, sshtest.ServerConfig{AuthorizedKey: pubKey})
			exec, err := remotessh.NewExecutor(remotessh.ExecutorConfig{Target: test.target(server)})
			require.NoError(err)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var stdout bytes.Buffer
			exitCode, err := exec.Exec(ctx, test.command, model.ExecOpts{Stdout: &stdout})

			if test.expErr != nil {
				assert.True(errors.Is(err, test.expErr), "unexpected error: %v", err)
				assert.Empty(server.Commands())
				return
			}

			require.NoError(err)
			assert.Equal(test.expExitCode, exitCode)
			assert.Equal(test.expStdout, stdout.String())
			assert.Equal([]string{test.command}, server.Commands())
		})
	}
}

func TestExecutorExecUsesIndependentConnections(t *testing.T) {
	privKey, _ := sshtest.GenerateKey(t)
	server := sshtest.NewServer(t, sshtest.ServerConfig{})
	tg := newTarget(server, writeKey(t, privKey), filepath.Join(t.TempDir(), "known_hosts"))

	exec, err := remotessh.NewExecutor(remotessh.ExecutorConfig{Target: tg})
	require.NoError(t, err)

	errs := make(chan error, 5)
	for range 5 {
		go func() {
			_, err := exec.Exec(context.Background(), "echo ok", model.ExecOpts{})
			errs <- err
		}()
	}
	for range 5 {
		assert.NoError(t, <-errs)
	}
	assert.Len(t, server.Commands(), 5)
}

func TestExecutorExecTimeoutKillsRemoteCommand(t *testing.T) {
	assert := assert.New(t)

	privKey, _ := sshtest.GenerateKey(t)
	server := sshtest.NewServer(t, sshtest.ServerConfig{})
	tg := newTarget(server, writeKey(t, privKey), filepath.Join(t.TempDir(), "known_hosts"))

	exec, err := remotessh.NewExecutor(remotessh.ExecutorConfig{Target: tg})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var stdout bytes.Buffer
	start := time.Now()
	_, err = exec.Exec(ctx, "echo started && sleep 10", model.ExecOpts{Stdout: &stdout})

	assert.ErrorIs(err, context.DeadlineExceeded)
	assert.Less(time.Since(start), 5*time.Second)
	assert.Eventually(func() bool { return server.Killed() > 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestExecutorExecSessionOpenStallHonorsDeadline(t *testing.T) {
	assert := assert.New(t)

	privKey, _ := sshtest.GenerateKey(t)
	server := sshtest.NewServer(t, sshtest.ServerConfig{StallSessions: true})
	tg := newTarget(server, writeKey(t, privKey), filepath.Join(t.TempDir(), "known_hosts"))

	exec, err := remotessh.NewExecutor(remotessh.ExecutorConfig{Target: tg})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := exec.Exec(ctx, "uptime", model.ExecOpts{})
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(err, context.DeadlineExceeded)
		assert.NotErrorIs(err, model.ErrConnection)
	case <-time.After(5 * time.Second):
		t.Fatal("exec did not return after its deadline")
	}
}
