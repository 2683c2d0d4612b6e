package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/volkan-m/ssh-mcp-server/internal/allowlist"
	"github.com/volkan-m/ssh-mcp-server/internal/app/gateway"
	"github.com/volkan-m/ssh-mcp-server/internal/conventions"
	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/metrics"
	"github.com/volkan-m/ssh-mcp-server/internal/model"
	"github.com/volkan-m/ssh-mcp-server/internal/printer"
	remotessh "github.com/volkan-m/ssh-mcp-server/internal/remote/ssh"
	"github.com/volkan-m/ssh-mcp-server/internal/storage"
	"github.com/volkan-m/ssh-mcp-server/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	// FormatText is the human readable output format.
	FormatText = "text"
	// FormatJSON is the JSON output format.
	FormatJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// ExitError makes the application exit with a specific code without
// reporting an error (e.g the exit status of a remote command).
type ExitError struct {
	Code int
}

func (e ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	Format     string

	// Remote target flags.
	SSHHost               string
	SSHUser               string
	SSHKeyPath            string
	SSHPort               int
	CommandTimeoutSeconds int
	ConnectTimeoutSeconds int
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	AllowlistFile         string

	// Audit flags.
	Audit       bool
	AuditDBPath string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}
	home := homedir.HomeDir()

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("format", "Output format of the CLI commands.").Default(FormatText).EnumVar(&c.Format, FormatText, FormatJSON)

	app.Flag("ssh-host", "Remote host to run the commands on.").Envar("SSH_HOST").StringVar(&c.SSHHost)
	app.Flag("ssh-user", "Remote SSH user.").Envar("SSH_USER").Default(model.DefaultSSHUser).StringVar(&c.SSHUser)
	app.Flag("ssh-key", "Private key used to authenticate, it must have 0600 permissions.").Envar("SSH_KEY").Default(conventions.SSHPrivateKeyPath(home)).StringVar(&c.SSHKeyPath)
	app.Flag("ssh-port", "Remote SSH port.").Envar("SSH_PORT").Default(fmt.Sprint(model.DefaultSSHPort)).IntVar(&c.SSHPort)
	app.Flag("command-timeout", "Remote command timeout in seconds.").Envar("COMMAND_TIMEOUT").Default(fmt.Sprint(int(model.DefaultCommandTimeout.Seconds()))).IntVar(&c.CommandTimeoutSeconds)
	app.Flag("connect-timeout", "SSH connection timeout in seconds.").Envar("SSH_CONNECT_TIMEOUT").Default(fmt.Sprint(int(model.DefaultConnectTimeout.Seconds()))).IntVar(&c.ConnectTimeoutSeconds)
	app.Flag("known-hosts", "Known hosts file, unknown hosts are added on first connection.").Envar("SSH_KNOWN_HOSTS").Default(conventions.KnownHostsPath(home)).StringVar(&c.KnownHostsPath)
	app.Flag("insecure-ignore-host-key", "Disable host key verification.").BoolVar(&c.InsecureIgnoreHostKey)
	app.Flag("allowlist-file", "YAML file with the allowed command patterns, replaces the default allowlist.").StringVar(&c.AllowlistFile)

	app.Flag("audit", "Record every execution in the audit database.").BoolVar(&c.Audit)
	app.Flag("audit-db-path", "Path to the SQLite audit database file.").Default(conventions.AuditDBPath(home)).StringVar(&c.AuditDBPath)

	return c
}

// Target returns the remote target from the flags.
func (r RootCommand) Target() model.RemoteTarget {
	return model.RemoteTarget{
		Host:                  r.SSHHost,
		User:                  r.SSHUser,
		Port:                  r.SSHPort,
		PrivateKeyPath:        r.SSHKeyPath,
		KnownHostsPath:        r.KnownHostsPath,
		InsecureIgnoreHostKey: r.InsecureIgnoreHostKey,
		CommandTimeout:        time.Duration(r.CommandTimeoutSeconds) * time.Second,
		ConnectTimeout:        time.Duration(r.ConnectTimeoutSeconds) * time.Second,
	}
}

// Printer returns the printer of the selected output format.
func (r RootCommand) Printer() printer.Printer {
	if r.Format == FormatJSON {
		return printer.NewJSONPrinter(r.Stdout)
	}
	return printer.NewTextPrinter(r.Stdout)
}

// Matcher returns the allowlist matcher, the allowlist file replaces the
// default patterns when set.
func (r RootCommand) Matcher(ctx context.Context) (allowlist.Matcher, error) {
	if r.AllowlistFile == "" {
		m, err := allowlist.NewDefaultMatcher()
		if err != nil {
			return nil, fmt.Errorf("could not create default allowlist: %w", err)
		}
		return m, nil
	}

	path, err := filepath.Abs(r.AllowlistFile)
	if err != nil {
		return nil, fmt.Errorf("could not resolve allowlist file path: %w", err)
	}

	patterns, err := allowlist.NewFileLoader(os.DirFS("/")).Load(ctx, path[1:])
	if err != nil {
		return nil, fmt.Errorf("could not load allowlist file: %w", err)
	}
	r.Logger.Infof("Loaded %d allow patterns from %s", len(patterns), path)

	m, err := allowlist.NewRegexMatcher(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid allowlist file: %w", err)
	}
	return m, nil
}

// AuditRepository returns the audit repository, a noop one when auditing is
// disabled. The returned func releases the repository.
func (r RootCommand) AuditRepository(ctx context.Context) (storage.AuditRepository, func(), error) {
	if !r.Audit {
		return storage.NoopAuditRepository, func() {}, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.AuditDBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create audit repository: %w", err)
	}

	return repo, func() {
		if err := repo.Close(); err != nil {
			r.Logger.Warningf("Could not close audit repository: %s", err)
		}
	}, nil
}

// Gateway returns the gateway service wired to the remote target. The returned
// func releases the gateway resources.
func (r RootCommand) Gateway(ctx context.Context, recorder metrics.Recorder) (*gateway.Service, func(), error) {
	matcher, err := r.Matcher(ctx)
	if err != nil {
		return nil, nil, err
	}

	target := r.Target()
	executor, err := remotessh.NewExecutor(remotessh.ExecutorConfig{
		Target: target,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create executor: %w", err)
	}

	auditRepo, closeAudit, err := r.AuditRepository(ctx)
	if err != nil {
		return nil, nil, err
	}

	svc, err := gateway.NewService(gateway.ServiceConfig{
		Target:          target,
		Matcher:         matcher,
		Executor:        executor,
		AuditRepository: auditRepo,
		MetricsRecorder: recorder,
		Logger:          r.Logger,
	})
	if err != nil {
		closeAudit()
		return nil, nil, fmt.Errorf("could not create gateway: %w", err)
	}

	return svc, closeAudit, nil
}
