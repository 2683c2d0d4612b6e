package printer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

var separator = strings.Repeat("=", 60)

// TextPrinter prints gateway information as human readable text.
type TextPrinter struct {
	writer io.Writer
}

var _ Printer = &TextPrinter{}

// NewTextPrinter creates a new text printer.
func NewTextPrinter(w io.Writer) *TextPrinter {
	return &TextPrinter{writer: w}
}

// PrintResult prints an execution result. Remote output is written verbatim.
func (t *TextPrinter) PrintResult(res model.ExecutionResult) error {
	w := &errWriter{w: t.writer}

	switch res.Outcome {
	case model.OutcomeCompleted:
		w.printf("Command: %s\n", res.Command)
		w.printf("Host: %s\n", res.Target)
		w.printf("Exit Code: %d\n\n", res.ExitCode)
		t.printOutput(w, res)
	case model.OutcomeDenied:
		w.printf("DENIED: Command is not in the allowlist!\n\n")
		w.printf("Command: %s\n\n", res.Command)
		w.printf("Use the 'ssh_list_allowed' tool to see permitted commands.\n")
	case model.OutcomeConfigInvalid:
		w.printf("CONFIG ERROR: %s\n", res.Reason)
	case model.OutcomeTimedOut:
		w.printf("TIMEOUT: %s\n\n", res.Reason)
		w.printf("Command: %s\n", res.Command)
		if len(res.Stdout) > 0 || len(res.Stderr) > 0 {
			w.printf("\n")
			t.printOutput(w, res)
		}
	case model.OutcomeConnectFailed:
		w.printf("CONNECTION FAILED: %s\n\n", res.Reason)
		w.printf("Command: %s\n", res.Command)
	default:
		w.printf("ERROR: %s\n\n", res.Reason)
		w.printf("Command: %s\n", res.Command)
	}

	return w.err
}

func (t *TextPrinter) printOutput(w *errWriter, res model.ExecutionResult) {
	if len(res.Stdout) > 0 {
		w.printf("=== STDOUT ===\n")
		w.write(res.Stdout)
	}
	if len(res.Stderr) > 0 {
		w.printf("\n=== STDERR ===\n")
		w.write(res.Stderr)
	}
}

// PrintConnectionTest prints the result of a connection test.
func (t *TextPrinter) PrintConnectionTest(res model.ExecutionResult) error {
	if !res.Completed() {
		return t.PrintResult(res)
	}

	w := &errWriter{w: t.writer}
	if res.ExitCode != 0 {
		w.printf("CONNECTION FAILED!\n\n")
		w.printf("Exit Code: %d\n\n", res.ExitCode)
		w.write(res.Stderr)
		return w.err
	}

	w.printf("SSH CONNECTION SUCCESSFUL!\n\n")
	w.printf("Target: %s\n", res.Target)
	w.printf("Duration: %s\n\n", res.Duration.Round(time.Millisecond))
	w.printf("Server Info:\n")
	w.write(res.Stdout)

	return w.err
}

// PrintAllowlist prints the ordered allow patterns.
func (t *TextPrinter) PrintAllowlist(snapshot model.AllowlistSnapshot) error {
	w := &errWriter{w: t.writer}

	w.printf("Permitted Command Patterns:\n%s\n\n", separator)
	for i, p := range snapshot.Patterns {
		w.printf("%2d. %s\n", i+1, p.Expr)
		if p.Description != "" {
			w.printf("    %s\n", p.Description)
		}
	}
	w.printf("\n%s\n", separator)
	w.printf("Total %d patterns defined.\n", snapshot.Count)
	w.printf("\nNote: These are regex patterns. Your command must match one of these patterns.\n")

	return w.err
}

// PrintConfig prints the running configuration.
func (t *TextPrinter) PrintConfig(s model.ConfigSnapshot) error {
	w := &errWriter{w: t.writer}

	host := s.Host
	if host == "" {
		host = "NOT DEFINED"
	}

	w.printf("SSH MCP Server Configuration:\n%s\n\n", separator)
	w.printf("SSH_HOST: %s\n", host)
	w.printf("SSH_USER: %s\n", s.User)
	w.printf("SSH_KEY: %s\n", s.PrivateKeyPath)
	w.printf("SSH_PORT: %d\n", s.Port)
	w.printf("COMMAND_TIMEOUT: %d seconds\n", int(s.CommandTimeout.Seconds()))
	w.printf("CONNECT_TIMEOUT: %d seconds\n", int(s.ConnectTimeout.Seconds()))
	if s.InsecureIgnoreHostKey {
		w.printf("KNOWN_HOSTS: host key verification disabled\n\n")
	} else {
		w.printf("KNOWN_HOSTS: %s\n\n", s.KnownHostsPath)
	}

	switch {
	case !s.Credential.Exists:
		w.printf("SSH Key file not found!\n")
	case !s.Credential.Regular:
		w.printf("SSH Key path is not a regular file!\n")
	default:
		w.printf("SSH Key file exists (permissions: %03o)\n", s.Credential.Mode)
		if !s.Credential.Secure {
			w.printf("Key file permissions are not secure! Run 'chmod 600 %s'.\n", s.Credential.Path)
		}
	}

	if s.ConfigError != "" {
		w.printf("\nCONFIG ERROR: %s\n", s.ConfigError)
	}

	w.printf("\n%s\n", separator)
	w.printf("%d command patterns defined in allowlist.\n", s.PatternCount)

	return w.err
}

// PrintChecks prints preflight check results with a summary line.
func (t *TextPrinter) PrintChecks(results []model.CheckResult) error {
	w := &errWriter{w: t.writer}

	for _, r := range results {
		w.printf("  %s %-20s %s\n", statusIcon(r.Status), r.ID, r.Message)
	}

	_, warns, errs := model.CountByStatus(results)

	w.printf("\n")
	if errs == 0 && warns == 0 {
		w.printf("All checks passed!\n")
		return w.err
	}

	summary := []string{}
	if errs > 0 {
		summary = append(summary, fmt.Sprintf("%d error(s)", errs))
	}
	if warns > 0 {
		summary = append(summary, fmt.Sprintf("%d warning(s)", warns))
	}
	w.printf("%s\n", strings.Join(summary, ", "))

	return w.err
}

// PrintAudit prints audit records in a table format.
func (t *TextPrinter) PrintAudit(records []model.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tOPERATION\tOUTCOME\tEXIT\tDURATION\tWHEN\tCOMMAND")

	// Print rows.
	for _, r := range records {
		exit := "-"
		if r.Outcome == model.OutcomeCompleted {
			exit = strconv.Itoa(r.ExitCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Operation,
			r.Outcome,
			exit,
			r.Duration,
			TimeAgo(r.At),
			r.Command,
		)
	}

	return nil
}

// PrintMessage prints a simple message.
func (t *TextPrinter) PrintMessage(msg string) error {
	_, err := fmt.Fprintln(t.writer, msg)
	return err
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}

// errWriter keeps the first write error so printing code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) write(p []byte) {
	if e.err != nil || len(p) == 0 {
		return
	}
	_, e.err = e.w.Write(p)
}
