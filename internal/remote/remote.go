package remote

import (
	"context"

	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

// Executor runs a single opaque command string on the remote target.
//
// Implementations must not interpret the command, it is delivered as is.
// Errors that happen before the remote command could start must wrap
// model.ErrConnection.
type Executor interface {
	Exec(ctx context.Context, command string, opts model.ExecOpts) (exitCode int, err error)
}

//go:generate mockery --case underscore --output remotemock --outpkg remotemock --name Executor
