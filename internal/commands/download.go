package commands

import (
	"context"
	"fmt"

	"github.com/datalift/datalift/internal/trace"
	"go.opentelemetry.io/otel/attribute"
)

type DownloadCmd struct {
	Path string `flag:"path" help:"Blob path to fetch." required:"true"`
	Dir  string `flag:"dir" help:"Local directory for the downloaded file." default:"."`
}

func (cmd *DownloadCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "DownloadCmdRun")
	defer span.End()

	span.SetAttributes(
		attribute.String("container", globals.Common.Container),
		attribute.String("path", cmd.Path),
	)

	if globals.Common.Container == "" {
		return trace.NewError(span, "no storage container configured")
	}

	globals.Printer.Info("📥", "Downloading %s/%s to %s", globals.Common.Container, cmd.Path, cmd.Dir)

	found, err := globals.Store.Download(ctx, globals.Common.Container, cmd.Path, cmd.Dir)
	if err != nil {
		return trace.NewError(span, "download failed: %w", err)
	}

	if found {
		globals.Printer.Success("✅", "Downloaded %s", cmd.Path)
	} else {
		globals.Printer.Warn("⚠️", "Blob %s not found in %s", cmd.Path, globals.Common.Container)
	}

	fmt.Println(found) // write to stdout

	return nil
}
