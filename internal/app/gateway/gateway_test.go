package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/volkan-m/ssh-mcp-server/internal/allowlist"
	"github.com/volkan-m/ssh-mcp-server/internal/app/gateway"
	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/model"
	"github.com/volkan-m/ssh-mcp-server/internal/remote/remotemock"
	remotessh "github.com/volkan-m/ssh-mcp-server/internal/remote/ssh"
	"github.com/volkan-m/ssh-mcp-server/internal/storage/memory"
	"github.com/volkan-m/ssh-mcp-server/internal/storage/storagemock"
)

// writeKeyFile creates a fake key file with the given permission bits.
func writeKeyFile(t *testing.T, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ai_runner")
	require.NoError(t, os.WriteFile(path, []byte("fake key"), 0600))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

var systemctlPattern = allowlist.DefaultPatterns()[0].Expr

func newTarget(keyPath string) model.RemoteTarget {
	return model.RemoteTarget{
		Host:           "10.0.0.5",
		User:           model.DefaultSSHUser,
		Port:           model.DefaultSSHPort,
		PrivateKeyPath: keyPath,
		KnownHostsPath: "/tmp/known_hosts",
		CommandTimeout: model.DefaultCommandTimeout,
		ConnectTimeout: model.DefaultConnectTimeout,
	}
}

func newMatcher(t *testing.T) allowlist.Matcher {
	t.Helper()
	m, err := allowlist.NewDefaultMatcher()
	require.NoError(t, err)
	return m
}

func writeOutput(stdout, stderr string) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		opts := args.Get(2).(model.ExecOpts)
		_, _ = opts.Stdout.Write([]byte(stdout))
		_, _ = opts.Stderr.Write([]byte(stderr))
	}
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    gateway.ServiceConfig
		expErr bool
	}{
		"Valid configuration should create service successfully.": {
			cfg: gateway.ServiceConfig{
				Matcher:  newMatcher(t),
				Executor: &remotemock.MockExecutor{},
				Logger:   log.Noop,
			},
		},

		"Missing matcher should fail.": {
			cfg: gateway.ServiceConfig{
				Executor: &remotemock.MockExecutor{},
			},
			expErr: true,
		},

		"Missing executor should fail.": {
			cfg: gateway.ServiceConfig{
				Matcher: newMatcher(t),
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := gateway.NewService(test.cfg)
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceExecute(t *testing.T) {
	tests := map[string]struct {
		target     func(t *testing.T) model.RemoteTarget
		command    string
		mock       func(m *remotemock.MockExecutor)
		expResult  model.ExecutionResult
		expReason  string
		checkNoRun bool
	}{
		"An allowed command should be transported verbatim and complete.": {
			target:  func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			command: "systemctl status nginx",
			mock: func(m *remotemock.MockExecutor) {
				m.On("Exec", mock.Anything, "systemctl status nginx", mock.Anything).Once().
					Run(writeOutput("active (running)\n", "")).
					Return(0, nil)
			},
			expResult: model.ExecutionResult{
				Command:        "systemctl status nginx",
				Target:         "ai-runner@10.0.0.5:22",
				Outcome:        model.OutcomeCompleted,
				ExitCode:       0,
				Stdout:         []byte("active (running)\n"),
				MatchedPattern: systemctlPattern,
			},
		},

		"Surrounding whitespace should be trimmed before transport.": {
			target:  func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			command: "  \tuptime \n",
			mock: func(m *remotemock.MockExecutor) {
				m.On("Exec", mock.Anything, "uptime", mock.Anything).Once().Return(0, nil)
			},
			expResult: model.ExecutionResult{
				Command:        "uptime",
				Target:         "ai-runner@10.0.0.5:22",
				Outcome:        model.OutcomeCompleted,
				MatchedPattern: `^uptime$`,
			},
		},

		"A non zero exit status should still be a completed outcome.": {
			target:  func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			command: "systemctl status nginx",
			mock: func(m *remotemock.MockExecutor) {
				m.On("Exec", mock.Anything, "systemctl status nginx", mock.Anything).Once().
					Run(writeOutput("", "Unit nginx.service could not be found.\n")).
					Return(4, nil)
			},
			expResult: model.ExecutionResult{
				Command:        "systemctl status nginx",
				Target:         "ai-runner@10.0.0.5:22",
				Outcome:        model.OutcomeCompleted,
				ExitCode:       4,
				Stderr:         []byte("Unit nginx.service could not be found.\n"),
				MatchedPattern: systemctlPattern,
			},
		},

		"A command outside the allowlist should be denied without transport.": {
			target:     func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			command:    "rm -rf /",
			checkNoRun: true,
			expResult: model.ExecutionResult{
				Command:  "rm -rf /",
				Target:   "ai-runner@10.0.0.5:22",
				Outcome:  model.OutcomeDenied,
				ExitCode: -1,
			},
			expReason: "command is not in the allowlist",
		},

		"An allowed prefix followed by another command should be denied without transport.": {
			target:     func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			command:    "systemctl status nginx; rm -rf /",
			checkNoRun: true,
			expResult: model.ExecutionResult{
				Command:  "systemctl status nginx; rm -rf /",
				Target:   "ai-runner@10.0.0.5:22",
				Outcome:  model.OutcomeDenied,
				ExitCode: -1,
			},
			expReason: "command is not in the allowlist",
		},

		"A group readable key should be a configuration error without transport.": {
			target:     func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0640)) },
			command:    "systemctl status nginx",
			checkNoRun: true,
			expResult: model.ExecutionResult{
				Command:  "systemctl status nginx",
				Target:   "ai-runner@10.0.0.5:22",
				Outcome:  model.OutcomeConfigInvalid,
				ExitCode: -1,
			},
			expReason: "SSH key file permissions are not secure (0640)",
		},

		"An owner read only key should be a configuration error.": {
			target:     func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0400)) },
			command:    "uptime",
			checkNoRun: true,
			expResult: model.ExecutionResult{
				Command:  "uptime",
				Target:   "ai-runner@10.0.0.5:22",
				Outcome:  model.OutcomeConfigInvalid,
				ExitCode: -1,
			},
			expReason: "SSH key file permissions are not secure (0400)",
		},

		"A missing key should be a configuration error without transport.": {
			target: func(t *testing.T) model.RemoteTarget {
				return newTarget(filepath.Join(t.TempDir(), "missing"))
			},
			command:    "uptime",
			checkNoRun: true,
			expResult: model.ExecutionResult{
				Command:  "uptime",
				Target:   "ai-runner@10.0.0.5:22",
				Outcome:  model.OutcomeConfigInvalid,
				ExitCode: -1,
			},
			expReason: "SSH key file not found",
		},

		"A missing host should be a configuration error before the allowlist.": {
			target: func(t *testing.T) model.RemoteTarget {
				tg := newTarget(writeKeyFile(t, 0600))
				tg.Host = ""
				return tg
			},
			command:    "rm -rf /",
			checkNoRun: true,
			expResult: model.ExecutionResult{
				Command:  "rm -rf /",
				Target:   "ai-runner@:22",
				Outcome:  model.OutcomeConfigInvalid,
				ExitCode: -1,
			},
			expReason: "SSH host is not defined",
		},

		"A connection error should be a connect failed outcome.": {
			target:  func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			command: "uptime",
			mock: func(m *remotemock.MockExecutor) {
				m.On("Exec", mock.Anything, "uptime", mock.Anything).Once().
					Return(-1, fmt.Errorf("%w: dial tcp 10.0.0.5:22: connect: no route to host", model.ErrConnection))
			},
			expResult: model.ExecutionResult{
				Command:        "uptime",
				Target:         "ai-runner@10.0.0.5:22",
				Outcome:        model.OutcomeConnectFailed,
				ExitCode:       -1,
				MatchedPattern: `^uptime$`,
			},
			expReason: "no route to host",
		},

		"A configuration error from the transport should be a configuration outcome.": {
			target:  func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			command: "uptime",
			mock: func(m *remotemock.MockExecutor) {
				m.On("Exec", mock.Anything, "uptime", mock.Anything).Once().
					Return(-1, fmt.Errorf("SSH user is not defined: %w", model.ErrConfigInvalid))
			},
			expResult: model.ExecutionResult{
				Command:        "uptime",
				Target:         "ai-runner@10.0.0.5:22",
				Outcome:        model.OutcomeConfigInvalid,
				ExitCode:       -1,
				MatchedPattern: `^uptime$`,
			},
			expReason: "SSH user is not defined",
		},

		"An unexpected transport error should be a failed outcome.": {
			target:  func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			command: "uptime",
			mock: func(m *remotemock.MockExecutor) {
				m.On("Exec", mock.Anything, "uptime", mock.Anything).Once().Return(-1, errors.New("session broke"))
			},
			expResult: model.ExecutionResult{
				Command:        "uptime",
				Target:         "ai-runner@10.0.0.5:22",
				Outcome:        model.OutcomeFailed,
				ExitCode:       -1,
				MatchedPattern: `^uptime$`,
			},
			expReason: "session broke",
		},

		"A panicking transport should be a failed outcome.": {
			target:  func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			command: "uptime",
			mock: func(m *remotemock.MockExecutor) {
				m.On("Exec", mock.Anything, "uptime", mock.Anything).Once().Run(func(mock.Arguments) { panic("boom") })
			},
			expResult: model.ExecutionResult{
				Command:        "uptime",
				Target:         "ai-runner@10.0.0.5:22",
				Outcome:        model.OutcomeFailed,
				ExitCode:       -1,
				MatchedPattern: `^uptime$`,
			},
			expReason: "boom",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mExec := remotemock.NewMockExecutor(t)
			if test.mock != nil {
				test.mock(mExec)
			}

			svc, err := gateway.NewService(gateway.ServiceConfig{
				Target:   test.target(t),
				Matcher:  newMatcher(t),
				Executor: mExec,
			})
			require.NoError(err)

			res := svc.Execute(context.Background(), test.command)

			assert.Contains(res.Reason, test.expReason)
			assert.Positive(res.Duration)
			res.Reason = ""
			res.Duration = 0
			assert.Equal(test.expResult, res)

			if test.checkNoRun {
				mExec.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestServiceExecuteTimeout(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tg := newTarget(writeKeyFile(t, 0600))
	tg.CommandTimeout = 100 * time.Millisecond

	mExec := remotemock.NewMockExecutor(t)
	mExec.On("Exec", mock.Anything, "uptime", mock.Anything).Once().
		Return(func(ctx context.Context, command string, opts model.ExecOpts) (int, error) {
			_, _ = opts.Stdout.Write([]byte("partial"))
			<-ctx.Done()
			return -1, ctx.Err()
		})

	svc, err := gateway.NewService(gateway.ServiceConfig{Target: tg, Matcher: newMatcher(t), Executor: mExec})
	require.NoError(err)

	start := time.Now()
	res := svc.Execute(context.Background(), "uptime")

	assert.Equal(model.OutcomeTimedOut, res.Outcome)
	assert.Equal(-1, res.ExitCode)
	assert.Equal([]byte("partial"), res.Stdout)
	assert.Contains(res.Reason, "100ms")
	assert.Less(time.Since(start), 2*time.Second)
}

func TestServiceTestConnection(t *testing.T) {
	tests := map[string]struct {
		target     func(t *testing.T) model.RemoteTarget
		mock       func(m *remotemock.MockExecutor)
		expOutcome model.Outcome
		expStdout  string
	}{
		"The fixed diagnostic command should bypass the allowlist.": {
			target: func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			mock: func(m *remotemock.MockExecutor) {
				m.On("Exec", mock.Anything, "echo 'SSH Connection OK' && uname -a", mock.Anything).Once().
					Run(func(args mock.Arguments) {
						ctx := args.Get(0).(context.Context)
						deadline, ok := ctx.Deadline()
						if !ok || time.Until(deadline) > model.TestConnectionTimeout {
							panic("missing test connection deadline")
						}
						_, _ = args.Get(2).(model.ExecOpts).Stdout.Write([]byte("SSH Connection OK\nLinux host\n"))
					}).
					Return(0, nil)
			},
			expOutcome: model.OutcomeCompleted,
			expStdout:  "SSH Connection OK\nLinux host\n",
		},

		"An invalid configuration should not transport.": {
			target:     func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0644)) },
			expOutcome: model.OutcomeConfigInvalid,
		},

		"An unreachable host should be a connect failed outcome.": {
			target: func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			mock: func(m *remotemock.MockExecutor) {
				m.On("Exec", mock.Anything, mock.Anything, mock.Anything).Once().
					Return(-1, fmt.Errorf("%w: i/o timeout", model.ErrConnection))
			},
			expOutcome: model.OutcomeConnectFailed,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			mExec := remotemock.NewMockExecutor(t)
			if test.mock != nil {
				test.mock(mExec)
			}

			svc, err := gateway.NewService(gateway.ServiceConfig{
				Target:   test.target(t),
				Matcher:  newMatcher(t),
				Executor: mExec,
			})
			require.NoError(t, err)

			res := svc.TestConnection(context.Background())

			assert.Equal(test.expOutcome, res.Outcome)
			assert.Equal(gateway.TestConnectionCommand, res.Command)
			assert.Equal(test.expStdout, string(res.Stdout))
		})
	}
}

func TestServiceTestConnectionUnreachableHost(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tg := newTarget(writeKeyFile(t, 0600))
	tg.Host = "192.0.2.1" // RFC 5737 TEST-NET, guaranteed unreachable.
	tg.ConnectTimeout = time.Second
	tg.InsecureIgnoreHostKey = true

	exec, err := remotessh.NewExecutor(remotessh.ExecutorConfig{Target: tg})
	require.NoError(err)
	svc, err := gateway.NewService(gateway.ServiceConfig{Target: tg, Matcher: newMatcher(t), Executor: exec})
	require.NoError(err)

	start := time.Now()
	res := svc.TestConnection(context.Background())

	assert.Equal(model.OutcomeConnectFailed, res.Outcome)
	assert.NotEmpty(res.Reason)
	assert.Less(time.Since(start), model.TestConnectionTimeout)
}

func TestServiceListAllowedAndDescribeConfigAreIdempotent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	keyPath := writeKeyFile(t, 0600)
	svc, err := gateway.NewService(gateway.ServiceConfig{
		Target:   newTarget(keyPath),
		Matcher:  newMatcher(t),
		Executor: remotemock.NewMockExecutor(t),
	})
	require.NoError(err)

	allowed := svc.ListAllowed()
	assert.Equal(len(allowlist.DefaultPatterns()), allowed.Count)
	assert.Equal(allowlist.DefaultPatterns(), allowed.Patterns)
	assert.Equal(allowed, svc.ListAllowed())

	// Mutating a returned snapshot should not affect the service.
	allowed.Patterns[0].Expr = "^.*$"
	assert.Equal(allowlist.DefaultPatterns(), svc.ListAllowed().Patterns)

	cfg := svc.DescribeConfig()
	assert.Equal(model.ConfigSnapshot{
		Host:           "10.0.0.5",
		User:           "ai-runner",
		Port:           22,
		PrivateKeyPath: keyPath,
		KnownHostsPath: "/tmp/known_hosts",
		CommandTimeout: 30 * time.Second,
		ConnectTimeout: 10 * time.Second,
		Credential: model.CredentialInfo{
			Path:    keyPath,
			Exists:  true,
			Regular: true,
			Mode:    0600,
			Secure:  true,
		},
		PatternCount: len(allowlist.DefaultPatterns()),
	}, cfg)
	assert.Equal(cfg, svc.DescribeConfig())
}

func TestServiceDescribeConfigReportsInsecureKey(t *testing.T) {
	svc, err := gateway.NewService(gateway.ServiceConfig{
		Target:   newTarget(writeKeyFile(t, 0640)),
		Matcher:  newMatcher(t),
		Executor: remotemock.NewMockExecutor(t),
	})
	require.NoError(t, err)

	cfg := svc.DescribeConfig()
	assert.False(t, cfg.Credential.Secure)
	assert.Equal(t, os.FileMode(0640), cfg.Credential.Mode)
	assert.Contains(t, cfg.ConfigError, "chmod 600")
}

func TestServiceCheck(t *testing.T) {
	tests := map[string]struct {
		target    func(t *testing.T) model.RemoteTarget
		expStatus map[string]model.CheckStatus
	}{
		"A valid configuration should pass every check.": {
			target: func(t *testing.T) model.RemoteTarget { return newTarget(writeKeyFile(t, 0600)) },
			expStatus: map[string]model.CheckStatus{
				"ssh_host":        model.CheckStatusOK,
				"key_file":        model.CheckStatusOK,
				"key_permissions": model.CheckStatusOK,
				"host_key":        model.CheckStatusOK,
				"allowlist":       model.CheckStatusOK,
			},
		},

		"Ignoring host keys should be a warning.": {
			target: func(t *testing.T) model.RemoteTarget {
				tg := newTarget(writeKeyFile(t, 0600))
				tg.InsecureIgnoreHostKey = true
				return tg
			},
			expStatus: map[string]model.CheckStatus{
				"ssh_host":        model.CheckStatusOK,
				"key_file":        model.CheckStatusOK,
				"key_permissions": model.CheckStatusOK,
				"host_key":        model.CheckStatusWarning,
				"allowlist":       model.CheckStatusOK,
			},
		},

		"Invalid target values should be errors.": {
			target: func(t *testing.T) model.RemoteTarget {
				tg := newTarget(filepath.Join(t.TempDir(), "missing"))
				tg.Port = 70000
				return tg
			},
			expStatus: map[string]model.CheckStatus{
				"ssh_host":   model.CheckStatusOK,
				"ssh_target": model.CheckStatusError,
				"key_file":   model.CheckStatusError,
				"host_key":   model.CheckStatusOK,
				"allowlist":  model.CheckStatusOK,
			},
		},

		"A directory as key should be an error.": {
			target: func(t *testing.T) model.RemoteTarget { return newTarget(t.TempDir()) },
			expStatus: map[string]model.CheckStatus{
				"ssh_host":  model.CheckStatusOK,
				"key_file":  model.CheckStatusError,
				"host_key":  model.CheckStatusOK,
				"allowlist": model.CheckStatusOK,
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := gateway.NewService(gateway.ServiceConfig{
				Target:   test.target(t),
				Matcher:  newMatcher(t),
				Executor: remotemock.NewMockExecutor(t),
			})
			require.NoError(t, err)

			got := map[string]model.CheckStatus{}
			for _, c := range svc.Check() {
				got[c.ID] = c.Status
			}
			assert.Equal(t, test.expStatus, got)
		})
	}
}

func TestServiceRecordsAuditTrail(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(err)

	mExec := remotemock.NewMockExecutor(t)
	mExec.On("Exec", mock.Anything, "uptime", mock.Anything).Once().Return(0, nil)

	svc, err := gateway.NewService(gateway.ServiceConfig{
		Target:          newTarget(writeKeyFile(t, 0600)),
		Matcher:         newMatcher(t),
		Executor:        mExec,
		AuditRepository: repo,
	})
	require.NoError(err)

	svc.Execute(context.Background(), "uptime")
	svc.Execute(context.Background(), "rm -rf /")

	records, err := repo.ListExecutions(context.Background(), 0)
	require.NoError(err)
	require.Len(records, 2)

	outcomes := map[model.Outcome]model.AuditRecord{}
	for _, r := range records {
		outcomes[r.Outcome] = r
	}
	assert.Equal("uptime", outcomes[model.OutcomeCompleted].Command)
	assert.Equal(`^uptime$`, outcomes[model.OutcomeCompleted].MatchedPattern)
	assert.Equal("rm -rf /", outcomes[model.OutcomeDenied].Command)
	assert.Equal(model.OperationExecute, outcomes[model.OutcomeDenied].Operation)
}

func TestServiceAuditErrorsDoNotChangeOutcome(t *testing.T) {
	mRepo := storagemock.NewMockAuditRepository(t)
	mRepo.On("RecordExecution", mock.Anything, mock.Anything).Once().Return(errors.New("disk full"))

	svc, err := gateway.NewService(gateway.ServiceConfig{
		Target:          newTarget(writeKeyFile(t, 0600)),
		Matcher:         newMatcher(t),
		Executor:        remotemock.NewMockExecutor(t),
		AuditRepository: mRepo,
	})
	require.NoError(t, err)

	res := svc.Execute(context.Background(), "rm -rf /")
	assert.Equal(t, model.OutcomeDenied, res.Outcome)
}

type recordedMetric struct {
	op      model.Operation
	outcome model.Outcome
}

type fakeRecorder struct{ observed []recordedMetric }

func (f *fakeRecorder) ObserveExecution(op model.Operation, outcome model.Outcome, _ time.Duration) {
	f.observed = append(f.observed, recordedMetric{op: op, outcome: outcome})
}

func TestServiceObservesMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	svc, err := gateway.NewService(gateway.ServiceConfig{
		Target:          newTarget(writeKeyFile(t, 0640)),
		Matcher:         newMatcher(t),
		Executor:        remotemock.NewMockExecutor(t),
		MetricsRecorder: rec,
	})
	require.NoError(t, err)

	svc.Execute(context.Background(), "uptime")
	svc.TestConnection(context.Background())

	assert.Equal(t, []recordedMetric{
		{op: model.OperationExecute, outcome: model.OutcomeConfigInvalid},
		{op: model.OperationTestConnection, outcome: model.OutcomeConfigInvalid},
	}, rec.observed)
}
