package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default sshmcp data directory name (relative to home).
	DefaultDataDir = ".sshmcp"
	// SSHDir is the user SSH directory name (relative to home).
	SSHDir = ".ssh"

	// SSHPrivateKeyFile is the filename of the default private key of the remote user.
	SSHPrivateKeyFile = "ai_runner"
	// KnownHostsFile is the filename of the known hosts file.
	KnownHostsFile = "known_hosts"

	// AuditDBFile is the filename of the audit trail database.
	AuditDBFile = "audit.db"

	// DefaultMetricsListenAddress is the default address of the metrics endpoint.
	DefaultMetricsListenAddress = ":8081"
	// MetricsPath is the HTTP path of the metrics endpoint.
	MetricsPath = "/metrics"
)

// SSHPrivateKeyPath returns the default private key path.
func SSHPrivateKeyPath(home string) string {
	return filepath.Join(home, SSHDir, SSHPrivateKeyFile)
}

// KnownHostsPath returns the default known hosts path.
func KnownHostsPath(home string) string {
	return filepath.Join(home, SSHDir, KnownHostsFile)
}

// AuditDBPath returns the default audit database path.
func AuditDBPath(home string) string {
	return filepath.Join(home, DefaultDataDir, AuditDBFile)
}
