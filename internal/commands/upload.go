package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/datalift/datalift/internal/trace"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
)

type UploadCmd struct {
	Path string `flag:"path" help:"Blob path to write, i.e. path/to/file.ext." required:"true"`
	File string `flag:"file" help:"Local file to upload." required:"true" type:"existingfile"`
}

func (cmd *UploadCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "UploadCmdRun")
	defer span.End()

	span.SetAttributes(
		attribute.String("container", globals.Common.Container),
		attribute.String("path", cmd.Path),
	)

	if globals.Common.Container == "" {
		return trace.NewError(span, "no storage container configured")
	}

	globals.Printer.Info("📤", "Uploading %s to %s/%s", cmd.File, globals.Common.Container, cmd.Path)

	uri, ok := globals.Store.Upload(ctx, globals.Common.Container, cmd.Path, cmd.File, globals.Common.RetryCount)
	if !ok {
		return trace.NewError(span, "upload failed after %d attempt(s)", globals.Common.RetryCount)
	}

	if info, err := os.Stat(cmd.File); err == nil {
		globals.Printer.Success("✅", "Uploaded %s (%s)", cmd.Path, humanize.Bytes(uint64(info.Size())))
	} else {
		globals.Printer.Success("✅", "Uploaded %s", cmd.Path)
	}

	fmt.Println(uri) // write to stdout

	return nil
}
