package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"time"
	"unicode/utf8"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// JSONPrinter prints gateway information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

var _ Printer = &JSONPrinter{}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// resultOutput represents an execution result.
type resultOutput struct {
	Command        string  `json:"command"`
	Target         string  `json:"target"`
	Outcome        string  `json:"outcome"`
	ExitCode       *int    `json:"exit_code"`
	Stdout         string  `json:"stdout"`
	Stderr         string  `json:"stderr"`
	// The raw streams are only set when they aren't valid UTF-8, the text
	// fields above replace invalid bytes with U+FFFD.
	StdoutBase64   []byte  `json:"stdout_base64,omitempty"`
	StderrBase64   []byte  `json:"stderr_base64,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	MatchedPattern string  `json:"matched_pattern,omitempty"`
	DurationSec    float64 `json:"duration_seconds"`
}

// patternOutput represents an allow pattern.
type patternOutput struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description,omitempty"`
}

// allowlistOutput represents the allowlist.
type allowlistOutput struct {
	Patterns []patternOutput `json:"patterns"`
	Count    int             `json:"count"`
}

// credentialOutput represents the key file metadata.
type credentialOutput struct {
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
	Regular     bool   `json:"regular"`
	Permissions string `json:"permissions,omitempty"`
	Secure      bool   `json:"secure"`
}

// configOutput represents the running configuration.
type configOutput struct {
	Host                  string           `json:"host"`
	User                  string           `json:"user"`
	Port                  int              `json:"port"`
	PrivateKeyPath        string           `json:"private_key_path"`
	KnownHostsPath        string           `json:"known_hosts_path"`
	InsecureIgnoreHostKey bool             `json:"insecure_ignore_host_key"`
	CommandTimeoutSec     int              `json:"command_timeout_seconds"`
	ConnectTimeoutSec     int              `json:"connect_timeout_seconds"`
	Credential            credentialOutput `json:"credential"`
	PatternCount          int              `json:"pattern_count"`
	ConfigError           string           `json:"config_error,omitempty"`
}

// checkOutput represents a preflight check result.
type checkOutput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// auditOutput represents an audit record.
type auditOutput struct {
	ID             string    `json:"id"`
	At             time.Time `json:"at"`
	Operation      string    `json:"operation"`
	Target         string    `json:"target"`
	Command        string    `json:"command"`
	Outcome        string    `json:"outcome"`
	ExitCode       *int      `json:"exit_code"`
	MatchedPattern string    `json:"matched_pattern,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	DurationSec    float64   `json:"duration_seconds"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintResult prints an execution result in JSON format. The exit code is
// null unless the command completed.
func (j *JSONPrinter) PrintResult(res model.ExecutionResult) error {
	return j.encode(mapResult(res))
}

// PrintConnectionTest prints a connection test result in JSON format.
func (j *JSONPrinter) PrintConnectionTest(res model.ExecutionResult) error {
	return j.encode(mapResult(res))
}

// PrintAllowlist prints the allowlist in JSON format.
func (j *JSONPrinter) PrintAllowlist(snapshot model.AllowlistSnapshot) error {
	output := allowlistOutput{
		Patterns: make([]patternOutput, 0, len(snapshot.Patterns)),
		Count:    snapshot.Count,
	}
	for _, p := range snapshot.Patterns {
		output.Patterns = append(output.Patterns, patternOutput{Pattern: p.Expr, Description: p.Description})
	}

	return j.encode(output)
}

// PrintConfig prints the running configuration in JSON format.
func (j *JSONPrinter) PrintConfig(s model.ConfigSnapshot) error {
	output := configOutput{
		Host:                  s.Host,
		User:                  s.User,
		Port:                  s.Port,
		PrivateKeyPath:        s.PrivateKeyPath,
		KnownHostsPath:        s.KnownHostsPath,
		InsecureIgnoreHostKey: s.InsecureIgnoreHostKey,
		CommandTimeoutSec:     int(s.CommandTimeout.Seconds()),
		ConnectTimeoutSec:     int(s.ConnectTimeout.Seconds()),
		Credential: credentialOutput{
			Path:    s.Credential.Path,
			Exists:  s.Credential.Exists,
			Regular: s.Credential.Regular,
			Secure:  s.Credential.Secure,
		},
		PatternCount: s.PatternCount,
		ConfigError:  s.ConfigError,
	}
	if s.Credential.Exists {
		output.Credential.Permissions = formatPerm(s.Credential.Mode)
	}

	return j.encode(output)
}

// PrintChecks prints preflight check results in JSON format.
func (j *JSONPrinter) PrintChecks(results []model.CheckResult) error {
	output := make([]checkOutput, 0, len(results))
	for _, r := range results {
		output = append(output, checkOutput{ID: r.ID, Status: string(r.Status), Message: r.Message})
	}

	return j.encode(output)
}

// PrintAudit prints audit records in JSON format.
func (j *JSONPrinter) PrintAudit(records []model.AuditRecord) error {
	output := make([]auditOutput, 0, len(records))
	for _, r := range records {
		item := auditOutput{
			ID:             r.ID,
			At:             r.At.UTC(),
			Operation:      string(r.Operation),
			Target:         r.Target,
			Command:        r.Command,
			Outcome:        string(r.Outcome),
			MatchedPattern: r.MatchedPattern,
			Reason:         r.Reason,
			DurationSec:    r.Duration.Seconds(),
		}
		if r.Outcome == model.OutcomeCompleted {
			code := r.ExitCode
			item.ExitCode = &code
		}
		output = append(output, item)
	}

	return j.encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mapResult(res model.ExecutionResult) resultOutput {
	output := resultOutput{
		Command:        res.Command,
		Target:         res.Target,
		Outcome:        string(res.Outcome),
		Stdout:         string(res.Stdout),
		Stderr:         string(res.Stderr),
		Reason:         res.Reason,
		MatchedPattern: res.MatchedPattern,
		DurationSec:    res.Duration.Seconds(),
	}
	if !utf8.Valid(res.Stdout) {
		output.StdoutBase64 = res.Stdout
	}
	if !utf8.Valid(res.Stderr) {
		output.StderrBase64 = res.Stderr
	}
	if res.Completed() {
		code := res.ExitCode
		output.ExitCode = &code
	}
	return output
}

// formatPerm returns the octal permission bits of a file mode (e.g. "0600").
func formatPerm(mode fs.FileMode) string {
	return fmt.Sprintf("%04o", mode.Perm())
}
