package commands

import (
	"context"

	"github.com/alecthomas/kingpin/v2"

	"github.com/volkan-m/ssh-mcp-server/internal/metrics"
)

type ExecCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	command string
}

// NewExecCommand returns the exec command.
func NewExecCommand(rootCmd *RootCommand, app *kingpin.Application) *ExecCommand {
	c := &ExecCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("exec", "Execute an allowed command on the remote host.")
	c.Cmd.Arg("command", "Command to execute, quoted as a single argument (e.g 'journalctl -u nginx -n 50').").Required().StringVar(&c.command)

	return c
}

func (c ExecCommand) Name() string { return c.Cmd.FullCommand() }

func (c ExecCommand) Run(ctx context.Context) error {
	svc, closeGateway, err := c.rootCmd.Gateway(ctx, metrics.Noop)
	if err != nil {
		return err
	}
	defer closeGateway()

	res := svc.Execute(ctx, c.command)
	if err := c.rootCmd.Printer().PrintResult(res); err != nil {
		return err
	}

	// Propagate the remote exit code, any other outcome is a plain failure.
	switch {
	case !res.Completed():
		return ExitError{Code: 1}
	case res.ExitCode != 0:
		return ExitError{Code: res.ExitCode}
	}

	return nil
}
