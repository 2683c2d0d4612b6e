package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/volkan-m/ssh-mcp-server/internal/metrics"
	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("doctor", "Run preflight checks of the SSH configuration.")
	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	svc, closeGateway, err := c.rootCmd.Gateway(ctx, metrics.Noop)
	if err != nil {
		return err
	}
	defer closeGateway()

	results := svc.Check()
	if err := c.rootCmd.Printer().PrintChecks(results); err != nil {
		return err
	}

	if model.HasErrors(results) {
		return fmt.Errorf("preflight checks failed")
	}

	return nil
}
