package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
	"github.com/volkan-m/ssh-mcp-server/internal/ssh"
)

type KeygenCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	comment string
}

// NewKeygenCommand returns the keygen command.
func NewKeygenCommand(rootCmd *RootCommand, app *kingpin.Application) *KeygenCommand {
	c := &KeygenCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("keygen", "Generate the ed25519 key pair used to authenticate on the remote host.")
	c.Cmd.Flag("comment", "Comment of the public key.").Default("sshmcp").StringVar(&c.comment)

	return c
}

func (c KeygenCommand) Name() string { return c.Cmd.FullCommand() }

func (c KeygenCommand) Run(ctx context.Context) error {
	km := ssh.NewKeyManager(c.rootCmd.SSHKeyPath)
	pub, err := km.GenerateKeys(c.comment)
	if err != nil {
		return fmt.Errorf("could not generate keys: %w", err)
	}
	c.rootCmd.Logger.Infof("SSH key pair generated at %s", km.PrivateKeyPath())

	user := c.rootCmd.SSHUser
	if user == "" {
		user = model.DefaultSSHUser
	}

	msg := fmt.Sprintf("Private key: %s\nPublic key:  %s\n\nAdd the public key to /home/%s/.ssh/authorized_keys on the remote host:\n\n%s",
		km.PrivateKeyPath(), km.PublicKeyPath(), user, pub)
	return c.rootCmd.Printer().PrintMessage(msg)
}
