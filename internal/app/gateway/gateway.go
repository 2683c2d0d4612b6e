// Package gateway is the guarded execution gateway.
//
// Every command goes through the same per call state machine:
//
//	ConfigValidating -> PatternChecking -> Connecting -> Running -> {TimedOut|Completed}
//
// with ConfigInvalid, Denied and ConnectFailed as early terminal states. Only
// commands that fully match an allow pattern reach the remote executor.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/volkan-m/ssh-mcp-server/internal/allowlist"
	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/metrics"
	"github.com/volkan-m/ssh-mcp-server/internal/model"
	"github.com/volkan-m/ssh-mcp-server/internal/remote"
	"github.com/volkan-m/ssh-mcp-server/internal/ssh"
	"github.com/volkan-m/ssh-mcp-server/internal/storage"
)

// TestConnectionCommand is the fixed diagnostic command run by TestConnection.
const TestConnectionCommand = "echo 'SSH Connection OK' && uname -a"

// CredentialInspector returns the metadata of the credential file.
type CredentialInspector interface {
	Inspect() model.CredentialInfo
}

// ServiceConfig is the configuration for the gateway service.
type ServiceConfig struct {
	Target   model.RemoteTarget
	Matcher  allowlist.Matcher
	Executor remote.Executor
	// Credentials inspects the private key file (default: key manager of Target.PrivateKeyPath).
	Credentials     CredentialInspector
	AuditRepository storage.AuditRepository
	MetricsRecorder metrics.Recorder
	Logger          log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Matcher == nil {
		return fmt.Errorf("matcher is required")
	}
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Credentials == nil {
		c.Credentials = ssh.NewKeyManager(c.Target.PrivateKeyPath)
	}
	if c.AuditRepository == nil {
		c.AuditRepository = storage.NoopAuditRepository
	}
	if c.MetricsRecorder == nil {
		c.MetricsRecorder = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Gateway"})
	return nil
}

// Service executes allowlisted commands on the configured remote target.
// It is safe for concurrent use, every call gets its own transport.
type Service struct {
	target      model.RemoteTarget
	matcher     allowlist.Matcher
	executor    remote.Executor
	credentials CredentialInspector
	audit       storage.AuditRepository
	metrics     metrics.Recorder
	logger      log.Logger
}

// NewService creates a new gateway service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		target:      cfg.Target,
		matcher:     cfg.Matcher,
		executor:    cfg.Executor,
		credentials: cfg.Credentials,
		audit:       cfg.AuditRepository,
		metrics:     cfg.MetricsRecorder,
		logger:      cfg.Logger,
	}, nil
}

// Execute checks the command against the allowlist and, if allowed, runs it
// on the remote target. Every failure is returned as an outcome of the result.
func (s *Service) Execute(ctx context.Context, command string) (res model.ExecutionResult) {
	start := time.Now()
	cmd := strings.TrimSpace(command)
	res = model.ExecutionResult{
		Command:  cmd,
		Target:   s.target.String(),
		ExitCode: -1,
	}

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = model.OutcomeFailed
			res.ExitCode = -1
			res.Reason = fmt.Sprintf("unexpected error: %v", r)
		}
		res.Duration = time.Since(start)
		s.track(ctx, model.OperationExecute, res)
	}()

	if reason := s.configError(); reason != "" {
		res.Outcome = model.OutcomeConfigInvalid
		res.Reason = reason
		return res
	}

	match := s.matcher.Match(cmd)
	if !match.Allowed {
		res.Outcome = model.OutcomeDenied
		res.Reason = "command is not in the allowlist"
		return res
	}
	res.MatchedPattern = match.Pattern

	s.run(ctx, cmd, s.target.CommandTimeout, &res)
	return res
}

// TestConnection runs the fixed diagnostic command on the remote target. It
// does not go through the allowlist and uses a shorter deadline.
func (s *Service) TestConnection(ctx context.Context) (res model.ExecutionResult) {
	start := time.Now()
	res = model.ExecutionResult{
		Command:  TestConnectionCommand,
		Target:   s.target.String(),
		ExitCode: -1,
	}

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = model.OutcomeFailed
			res.ExitCode = -1
			res.Reason = fmt.Sprintf("unexpected error: %v", r)
		}
		res.Duration = time.Since(start)
		s.track(ctx, model.OperationTestConnection, res)
	}()

	if reason := s.configError(); reason != "" {
		res.Outcome = model.OutcomeConfigInvalid
		res.Reason = reason
		return res
	}

	s.run(ctx, TestConnectionCommand, model.TestConnectionTimeout, &res)
	return res
}

// ListAllowed returns the ordered allow patterns.
func (s *Service) ListAllowed() model.AllowlistSnapshot {
	patterns := s.matcher.Patterns()
	return model.AllowlistSnapshot{
		Patterns: patterns,
		Count:    len(patterns),
	}
}

// DescribeConfig returns the running configuration and the metadata of the
// credential file. Key contents are never read.
func (s *Service) DescribeConfig() model.ConfigSnapshot {
	return model.ConfigSnapshot{
		Host:                  s.target.Host,
		User:                  s.target.User,
		Port:                  s.target.Port,
		PrivateKeyPath:        s.target.PrivateKeyPath,
		KnownHostsPath:        s.target.KnownHostsPath,
		InsecureIgnoreHostKey: s.target.InsecureIgnoreHostKey,
		CommandTimeout:        s.target.CommandTimeout,
		ConnectTimeout:        s.target.ConnectTimeout,
		Credential:            s.credentials.Inspect(),
		PatternCount:          len(s.matcher.Patterns()),
		ConfigError:           s.configError(),
	}
}

// run transports the command and classifies the result.
func (s *Service) run(ctx context.Context, cmd string, timeout time.Duration, res *model.ExecutionResult) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The transport may still be writing when the deadline hits.
	var stdout, stderr syncBuffer
	exitCode, err := s.executor.Exec(ctx, cmd, model.ExecOpts{Stdout: &stdout, Stderr: &stderr})
	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()

	switch {
	case err == nil:
		res.Outcome = model.OutcomeCompleted
		res.ExitCode = exitCode
	case errors.Is(err, model.ErrConfigInvalid):
		res.Outcome = model.OutcomeConfigInvalid
		res.Reason = err.Error()
	case errors.Is(err, model.ErrConnection):
		res.Outcome = model.OutcomeConnectFailed
		res.Reason = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		res.Outcome = model.OutcomeTimedOut
		res.Reason = fmt.Sprintf("command did not complete within %s", timeout)
	default:
		res.Outcome = model.OutcomeFailed
		res.Reason = err.Error()
	}
}

// track logs, audits and measures a finished call. Audit failures never
// change the result.
func (s *Service) track(ctx context.Context, op model.Operation, res model.ExecutionResult) {
	logger := s.logger.WithValues(log.Kv{
		"op":      op,
		"outcome": res.Outcome,
		"target":  res.Target,
	})

	switch res.Outcome {
	case model.OutcomeCompleted:
		logger.Infof("Command %q completed with exit code %d in %s", res.Command, res.ExitCode, res.Duration)
	case model.OutcomeDenied:
		logger.Warningf("Command %q denied", res.Command)
	default:
		logger.Errorf("Command %q failed: %s", res.Command, res.Reason)
	}

	s.metrics.ObserveExecution(op, res.Outcome, res.Duration)

	err := s.audit.RecordExecution(context.WithoutCancel(ctx), model.AuditRecord{
		At:             time.Now().UTC(),
		Operation:      op,
		Target:         res.Target,
		Command:        res.Command,
		Outcome:        res.Outcome,
		ExitCode:       res.ExitCode,
		MatchedPattern: res.MatchedPattern,
		Reason:         res.Reason,
		Duration:       res.Duration,
	})
	if err != nil {
		logger.Warningf("Could not record execution in audit trail: %s", err)
	}
}
