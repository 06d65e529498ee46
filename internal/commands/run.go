package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/datalift/datalift/internal/export"
	"github.com/datalift/datalift/internal/trace"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// completeMarker is the blob uploaded at the container root once every
// export has been moved, signalling downstream consumers that the run is
// finished. Its content is the list of blob paths the run wrote to.
const completeMarker = ".complete"

type RunCmd struct {
	SQLServer     string `flag:"sql-server" help:"SQL server host to export from." env:"DATALIFT_SQL_SERVER" required:"true"`
	SQLUser       string `flag:"sql-user" help:"SQL user." env:"DATALIFT_SQL_USER" required:"true"`
	SQLPassword   string `flag:"sql-password" help:"SQL password." env:"DATALIFT_SQL_PASSWORD" required:"true"`
	SQLDriver     string `flag:"sql-driver" help:"SQL driver to use." enum:"postgres,mysql" default:"postgres" env:"DATALIFT_SQL_DRIVER"`
	Format        string `flag:"format" help:"Export file format." enum:"csv,csv.gz,both" default:"csv" env:"DATALIFT_FORMAT"`
	TempDirectory string `flag:"temp-directory" help:"Scratch directory for export files." default:".datalift/tmp" env:"DATALIFT_TEMP_DIRECTORY"`
	KeepTemp      bool   `flag:"keep-temp" help:"Keep the scratch directory after the run."`

	// exportFn stands in for Conn.ExportScript in tests.
	exportFn func(ctx context.Context, database, scriptFile string, format export.Format, outBase string) ([]string, error)
}

// RunSummary is the record of one daily run, printed as JSON on stdout so
// the calling scheduler can archive it. The URIs are opaque, token-bearing
// strings.
type RunSummary struct {
	RunID     string              `json:"run_id"`
	Date      string              `json:"date"`
	BlobPaths []string            `json:"blob_paths"`
	Scripts   map[string][]string `json:"scripts"`
	Complete  []string            `json:"complete,omitempty"`
}

func (cmd *RunCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "RunCmdRun")
	defer span.End()

	log.Info().Str("version", globals.Version).Msg("Running RunCmd")

	span.SetAttributes(
		attribute.String("format", cmd.Format),
		attribute.String("container", globals.Common.Container),
		attribute.Int("scripts", len(globals.Scripts)),
	)

	format, err := export.ParseFormat(cmd.Format)
	if err != nil {
		return trace.NewError(span, "format rejected: %w", err)
	}

	if format == export.FormatRaw {
		return trace.NewError(span, "raw format produces no files to upload, choose another")
	}

	if len(globals.Scripts) == 0 {
		return trace.NewError(span, "no export scripts configured")
	}

	if globals.Common.Container == "" {
		return trace.NewError(span, "no storage container configured")
	}

	if err := os.MkdirAll(cmd.TempDirectory, 0o755); err != nil {
		return trace.NewError(span, "failed to create temp directory: %w", err)
	}

	conn, err := export.NewConn(cmd.SQLServer, cmd.SQLUser, cmd.SQLPassword, cmd.SQLDriver)
	if err != nil {
		return trace.NewError(span, "sql connection rejected: %w", err)
	}
	defer conn.Close()

	exportScript := cmd.exportFn
	if exportScript == nil {
		exportScript = conn.ExportScript
	}

	now := time.Now().UTC()

	summary := RunSummary{
		RunID:   uuid.NewString(),
		Date:    now.Format(time.RFC3339),
		Scripts: map[string][]string{},
	}

	for _, script := range globals.Scripts {
		name := scriptBaseName(script.Script)
		outBase := filepath.Join(cmd.TempDirectory, name)

		globals.Printer.Info("🧮", "Executing script: %s", script.Script)

		files, err := exportScript(ctx, script.Database, script.Script, format, outBase)
		if err != nil {
			log.Warn().Err(err).Str("script", script.Script).Msg("script execution failed, skipping")
			globals.Printer.Warn("⚠️", "Script failed: %s", script.Script)
			continue
		}

		blobPath := expandBlobPath(script.BlobPath, now)
		if blobPath != "" && !slices.Contains(summary.BlobPaths, blobPath) {
			summary.BlobPaths = append(summary.BlobPaths, blobPath)
		}

		var uris []string
		for _, local := range files {
			blobName := blobPath + filepath.Base(local)

			uri, ok := globals.Store.Upload(ctx, globals.Common.Container, blobName, local, globals.Common.RetryCount)
			if !ok {
				globals.Printer.Error("❌", "Upload failed for %s", local)
				continue
			}

			globals.Printer.Success("✅", "Uploaded %s", blobName)
			uris = append(uris, uri)
		}

		summary.Scripts[name] = uris
	}

	if len(summary.BlobPaths) > 0 {
		markerFile := filepath.Join(cmd.TempDirectory, completeMarker)
		if err := os.WriteFile(markerFile, []byte(strings.Join(summary.BlobPaths, ",")), 0o644); err != nil {
			return trace.NewError(span, "failed to write completion marker: %w", err)
		}

		// Recorded before the upload so a failed marker still shows up in
		// the summary.
		summary.Complete = append(summary.Complete, completeMarker)

		if _, ok := globals.Store.Upload(ctx, globals.Common.Container, completeMarker, markerFile, globals.Common.RetryCount); !ok {
			globals.Printer.Warn("⚠️", "Completion marker upload failed")
		}
	}

	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return trace.NewError(span, "failed to marshal run summary: %w", err)
	}

	fmt.Println(string(payload)) // write to stdout

	if !cmd.KeepTemp {
		if err := os.RemoveAll(cmd.TempDirectory); err != nil {
			log.Warn().Err(err).Str("dir", cmd.TempDirectory).Msg("failed to clean up temp directory")
		}
	}

	globals.Printer.Success("🎉", "Run %s complete: %d script(s), %d blob path(s)",
		summary.RunID, len(summary.Scripts), len(summary.BlobPaths))

	return nil
}
