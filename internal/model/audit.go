package model

import "time"

// Operation identifies which gateway operation produced an audit record.
type Operation string

const (
	// OperationExecute is an allowlisted command execution.
	OperationExecute Operation = "execute"
	// OperationTestConnection is the fixed diagnostic command.
	OperationTestConnection Operation = "test_connection"
)

// AuditRecord is a persisted trace of a single gateway call.
type AuditRecord struct {
	ID             string
	At             time.Time
	Operation      Operation
	Target         string
	Command        string
	Outcome        Outcome
	ExitCode       int
	MatchedPattern string
	Reason         string
	Duration       time.Duration
}
