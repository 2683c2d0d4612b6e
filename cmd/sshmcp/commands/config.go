package commands

import (
	"context"

	"github.com/alecthomas/kingpin/v2"

	"github.com/volkan-m/ssh-mcp-server/internal/metrics"
)

type ConfigCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewConfigCommand returns the config command.
func NewConfigCommand(rootCmd *RootCommand, app *kingpin.Application) *ConfigCommand {
	c := &ConfigCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("config", "Show the current SSH configuration.")
	return c
}

func (c ConfigCommand) Name() string { return c.Cmd.FullCommand() }

func (c ConfigCommand) Run(ctx context.Context) error {
	svc, closeGateway, err := c.rootCmd.Gateway(ctx, metrics.Noop)
	if err != nil {
		return err
	}
	defer closeGateway()

	return c.rootCmd.Printer().PrintConfig(svc.DescribeConfig())
}
