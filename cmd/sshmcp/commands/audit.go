package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/volkan-m/ssh-mcp-server/internal/storage/sqlite"
)

type AuditCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	limit int
}

// NewAuditCommand returns the audit command.
func NewAuditCommand(rootCmd *RootCommand, app *kingpin.Application) *AuditCommand {
	c := &AuditCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("audit", "List the most recent audited executions.")
	c.Cmd.Flag("limit", "Maximum number of executions to list (0 lists all).").Default("20").IntVar(&c.limit)

	return c
}

func (c AuditCommand) Name() string { return c.Cmd.FullCommand() }

func (c AuditCommand) Run(ctx context.Context) error {
	// Listing doesn't need --audit, the database is always read.
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.AuditDBPath,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not open audit repository: %w", err)
	}
	defer repo.Close()

	records, err := repo.ListExecutions(ctx, c.limit)
	if err != nil {
		return fmt.Errorf("could not list executions: %w", err)
	}

	return c.rootCmd.Printer().PrintAudit(records)
}
