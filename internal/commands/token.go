package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/datalift/datalift/internal/trace"
	"go.opentelemetry.io/otel/attribute"
)

type TokenCmd struct {
	Path     string        `flag:"path" help:"Blob path for a read-only blob token. Omit for a read/write container token."`
	ValidFor time.Duration `flag:"valid-for" help:"Token validity window, defaults to 168h (7 days)." default:"168h"`
	URI      bool          `flag:"uri" help:"Print the full blob URI instead of the bare token. Requires --path."`
}

func (cmd *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	_, span := trace.Start(ctx, "TokenCmdRun")
	defer span.End()

	span.SetAttributes(
		attribute.String("container", globals.Common.Container),
		attribute.String("path", cmd.Path),
	)

	if globals.Common.Container == "" {
		return trace.NewError(span, "no storage container configured")
	}

	if cmd.Path == "" {
		if cmd.URI {
			return trace.NewError(span, "--uri requires --path")
		}

		token, err := globals.Store.ContainerToken(globals.Common.Container, cmd.ValidFor)
		if err != nil {
			return trace.NewError(span, "failed to issue container token: %w", err)
		}

		fmt.Println(token) // write to stdout
		return nil
	}

	token, err := globals.Store.BlobToken(globals.Common.Container, cmd.Path, cmd.ValidFor)
	if err != nil {
		return trace.NewError(span, "failed to issue blob token: %w", err)
	}

	if cmd.URI {
		fmt.Println(globals.Store.BlobURI(globals.Common.Container, cmd.Path, token))
		return nil
	}

	fmt.Println(token) // write to stdout

	return nil
}
