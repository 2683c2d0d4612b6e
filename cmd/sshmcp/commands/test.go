package commands

import (
	"context"

	"github.com/alecthomas/kingpin/v2"

	"github.com/volkan-m/ssh-mcp-server/internal/metrics"
)

type TestCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewTestCommand returns the test command.
func NewTestCommand(rootCmd *RootCommand, app *kingpin.Application) *TestCommand {
	c := &TestCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("test", "Test the SSH connection to the remote host.")
	return c
}

func (c TestCommand) Name() string { return c.Cmd.FullCommand() }

func (c TestCommand) Run(ctx context.Context) error {
	svc, closeGateway, err := c.rootCmd.Gateway(ctx, metrics.Noop)
	if err != nil {
		return err
	}
	defer closeGateway()

	res := svc.TestConnection(ctx)
	if err := c.rootCmd.Printer().PrintConnectionTest(res); err != nil {
		return err
	}

	if !res.OK() {
		return ExitError{Code: 1}
	}

	return nil
}
