package model

import (
	"io"
	"time"
)

// Outcome is the tagged result kind of an execution.
type Outcome string

const (
	// OutcomeConfigInvalid means the remote target configuration was rejected before any transport.
	OutcomeConfigInvalid Outcome = "config_invalid"
	// OutcomeDenied means the command did not match any allow pattern.
	OutcomeDenied Outcome = "denied"
	// OutcomeConnectFailed means the secure channel could not be established.
	OutcomeConnectFailed Outcome = "connect_failed"
	// OutcomeTimedOut means the remote command exceeded its deadline.
	OutcomeTimedOut Outcome = "timed_out"
	// OutcomeCompleted means the remote command finished, regardless of its exit status.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed is any other unexpected failure.
	OutcomeFailed Outcome = "failed"
)

// ExecOpts contains the streams used by a remote command execution.
type ExecOpts struct {
	// Stdout is the output stream for the command (optional, defaults to discard).
	Stdout io.Writer
	// Stderr is the error stream for the command (optional, defaults to discard).
	Stderr io.Writer
}

// ExecutionResult is the structured result of an execute or test connection call.
// It is built once per call and not modified afterwards.
type ExecutionResult struct {
	// Command is the trimmed command that was checked (and maybe executed).
	Command string
	// Target is the user@host:port the command was (or would have been) sent to.
	Target string
	// Outcome is the kind of result.
	Outcome Outcome
	// ExitCode is the remote exit status, only meaningful when Outcome is completed.
	ExitCode int
	// Stdout is the captured remote standard output.
	Stdout []byte
	// Stderr is the captured remote standard error.
	Stderr []byte
	// Reason is a human readable diagnostic for non completed outcomes.
	Reason string
	// MatchedPattern is the allow pattern that permitted the command (if any).
	MatchedPattern string
	// Duration is the wall time spent on the call.
	Duration time.Duration
}

// Completed returns true when the remote command ran to completion.
func (r ExecutionResult) Completed() bool { return r.Outcome == OutcomeCompleted }

// OK returns true when the remote command ran to completion with a zero exit status.
func (r ExecutionResult) OK() bool { return r.Completed() && r.ExitCode == 0 }
