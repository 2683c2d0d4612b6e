package model

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultSSHUser is the remote user used when none is configured.
	DefaultSSHUser = "ai-runner"
	// DefaultSSHPort is the default SSH port.
	DefaultSSHPort = 22
	// DefaultCommandTimeout is the deadline for a remote command.
	DefaultCommandTimeout = 30 * time.Second
	// DefaultConnectTimeout is the deadline for establishing the SSH connection.
	DefaultConnectTimeout = 10 * time.Second
	// TestConnectionTimeout is the deadline for the diagnostic connection test.
	TestConnectionTimeout = 15 * time.Second
	// SecureKeyPerm is the only accepted permission set for the private key file.
	SecureKeyPerm = 0o600
)

// RemoteTarget describes the single remote endpoint of a running instance.
type RemoteTarget struct {
	Host           string
	User           string
	Port           int
	PrivateKeyPath string
	// KnownHostsPath is the known_hosts file used to verify (and learn) host keys.
	KnownHostsPath string
	// InsecureIgnoreHostKey disables host key verification.
	InsecureIgnoreHostKey bool
	CommandTimeout        time.Duration
	ConnectTimeout        time.Duration
}

// Address returns the host:port network address of the target.
func (t RemoteTarget) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String returns the user@host:port representation of the target.
func (t RemoteTarget) String() string {
	return fmt.Sprintf("%s@%s", t.User, t.Address())
}

// Validate checks the structural fields of the target. File based checks
// (key existence and permissions) are done by the gateway on every call.
func (t RemoteTarget) Validate() error {
	if t.Host == "" {
		return fmt.Errorf("SSH host is not defined: %w", ErrConfigInvalid)
	}
	if t.User == "" {
		return fmt.Errorf("SSH user is not defined: %w", ErrConfigInvalid)
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("SSH port %d is out of range: %w", t.Port, ErrConfigInvalid)
	}
	if t.PrivateKeyPath == "" {
		return fmt.Errorf("SSH key path is not defined: %w", ErrConfigInvalid)
	}
	if t.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive: %w", ErrConfigInvalid)
	}
	if t.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive: %w", ErrConfigInvalid)
	}
	return nil
}
