package printer

import "github.com/volkan-m/ssh-mcp-server/internal/model"

// Printer knows how to print gateway information in different formats.
type Printer interface {
	PrintResult(res model.ExecutionResult) error
	PrintConnectionTest(res model.ExecutionResult) error
	PrintAllowlist(snapshot model.AllowlistSnapshot) error
	PrintConfig(snapshot model.ConfigSnapshot) error
	PrintChecks(results []model.CheckResult) error
	PrintAudit(records []model.AuditRecord) error
	PrintMessage(msg string) error
}
