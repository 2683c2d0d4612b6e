package commands

import (
	"context"

	"github.com/alecthomas/kingpin/v2"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

type AllowedCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewAllowedCommand returns the allowed command.
func NewAllowedCommand(rootCmd *RootCommand, app *kingpin.Application) *AllowedCommand {
	c := &AllowedCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("allowed", "List the allowed command patterns.")
	return c
}

func (c AllowedCommand) Name() string { return c.Cmd.FullCommand() }

func (c AllowedCommand) Run(ctx context.Context) error {
	matcher, err := c.rootCmd.Matcher(ctx)
	if err != nil {
		return err
	}

	patterns := matcher.Patterns()
	return c.rootCmd.Printer().PrintAllowlist(model.AllowlistSnapshot{
		Patterns: patterns,
		Count:    len(patterns),
	})
}
