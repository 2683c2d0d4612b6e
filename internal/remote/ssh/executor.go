package ssh

import (
	"context"
	"fmt"

	cryptossh "golang.org/x/crypto/ssh"

	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/model"
	"github.com/volkan-m/ssh-mcp-server/internal/remote"
	"github.com/volkan-m/ssh-mcp-server/internal/ssh"
)

// ExecutorConfig is the configuration of the SSH executor.
type ExecutorConfig struct {
	Target model.RemoteTarget
	// HostKeyCallback overrides the host key policy derived from the target (optional).
	HostKeyCallback cryptossh.HostKeyCallback
	Logger          log.Logger
}

func (c *ExecutorConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "remote.SSHExecutor"})
	return nil
}

// Executor runs commands over SSH. Every call opens its own connection and
// closes it before returning, nothing is shared between calls.
//
// The target is only validated when a command is executed, so an executor can
// be created for a configuration that is still incomplete.
type Executor struct {
	target  model.RemoteTarget
	keys    *ssh.KeyManager
	hostKey cryptossh.HostKeyCallback
	logger  log.Logger
}

var _ remote.Executor = &Executor{}

// NewExecutor returns a new SSH executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Executor{
		target:  cfg.Target,
		keys:    ssh.NewKeyManager(cfg.Target.PrivateKeyPath),
		hostKey: cfg.HostKeyCallback,
		logger:  cfg.Logger,
	}, nil
}

// Exec connects to the target, runs the command and disconnects.
func (e *Executor) Exec(ctx context.Context, command string, opts model.ExecOpts) (int, error) {
	if err := e.target.Validate(); err != nil {
		return -1, err
	}

	hostKey, err := e.hostKeyCallback()
	if err != nil {
		return -1, fmt.Errorf("%w: %w", model.ErrConnection, err)
	}

	key, err := e.keys.LoadPrivateKey()
	if err != nil {
		return -1, fmt.Errorf("%w: %w", model.ErrConnection, err)
	}

	client, err := ssh.NewClient(ctx, ssh.ClientConfig{
		Host:            e.target.Host,
		Port:            e.target.Port,
		User:            e.target.User,
		PrivateKey:      key,
		HostKeyCallback: hostKey,
		ConnectTimeout:  e.target.ConnectTimeout,
		Logger:          e.logger,
	})
	if err != nil {
		return -1, fmt.Errorf("%w: %w", model.ErrConnection, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			e.logger.Debugf("Could not close SSH connection: %s", err)
		}
	}()

	return client.Exec(ctx, command, ssh.ExecOpts{
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	})
}

func (e *Executor) hostKeyCallback() (cryptossh.HostKeyCallback, error) {
	switch {
	case e.hostKey != nil:
		return e.hostKey, nil
	case e.target.InsecureIgnoreHostKey:
		return ssh.InsecureHostKeyCallback(), nil
	case e.target.KnownHostsPath == "":
		return nil, fmt.Errorf("known hosts path is required when host key verification is enabled")
	default:
		return ssh.AcceptNewHostKeyCallback(e.target.KnownHostsPath, e.logger)
	}
}
