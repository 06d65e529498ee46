package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/datalift/datalift/internal/commands"
	"github.com/datalift/datalift/internal/console"
	"github.com/datalift/datalift/internal/export"
	"github.com/datalift/datalift/internal/logfile"
	"github.com/datalift/datalift/internal/store"
	"github.com/datalift/datalift/internal/trace"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	version           = "dev"
	defaultConfigPath = "datalift.yml"

	cli struct {
		Version          kong.VersionFlag
		Debug            bool            `help:"Enable debug mode." default:"false" env:"DATALIFT_DEBUG"`
		ConnectionString string          `flag:"connection-string" help:"Storage account connection string." env:"DATALIFT_STORAGE_CONNECTION" required:"true"`
		LogFile          string          `flag:"log-file" help:"Append structured logs to this size-bounded file as well as stderr." env:"DATALIFT_LOG_FILE"`
		LogFileMaxSize   int64           `flag:"log-file-max-size" help:"Log file rollover threshold in bytes." default:"2097152" env:"DATALIFT_LOG_FILE_MAX_SIZE"`
		TraceExporter    string          `flag:"trace-exporter" help:"The trace exporter to use. Defaults to 'noop'." default:"noop" enum:"noop,grpc" env:"DATALIFT_TRACE_EXPORTER"`
		Config           kong.ConfigFlag `flag:"config" help:"The path to the export configuration file. Defaults to datalift.yml" default:"${default_config_path}" env:"DATALIFT_CONFIG"`

		commands.CommonFlags

		Scripts []export.Script // embedded config

		Run        commands.RunCmd        `cmd:"" help:"run every configured export and upload the results."`
		Upload     commands.UploadCmd     `cmd:"" help:"upload a local file as a blob."`
		Download   commands.DownloadCmd   `cmd:"" help:"download a blob to a local directory."`
		Containers commands.ContainersCmd `cmd:"" help:"list containers in the storage account."`
		Blobs      commands.BlobsCmd      `cmd:"" help:"list blobs in a container."`
		Token      commands.TokenCmd      `cmd:"" help:"issue a SAS token for a blob or container."`
	}
)

func main() {
	ctx := context.Background()

	// Overloads `cli` with configuration file values.
	cmd := kong.Parse(&cli,
		kong.Vars{"version": version, "default_config_path": defaultConfigPath},
		kong.NamedMapper("yamlfile", kongyaml.YAMLFileMapper),
		kong.Configuration(kongyaml.Loader),
		kong.BindTo(ctx, (*context.Context)(nil)))

	err := Run(ctx, cmd)
	cmd.FatalIfErrorf(err)
}

func Run(ctx context.Context, cmd *kong.Context) error {
	start := time.Now()

	tp, err := trace.NewProvider(ctx, cli.TraceExporter, "github.com/datalift/datalift", version)
	if err != nil {
		return fmt.Errorf("failed to create trace provider: %w", err)
	}
	defer func() {
		_ = tp.Shutdown(ctx)
	}()

	if err := setupLogging(); err != nil {
		return err
	}

	blobStore, err := store.New(cli.ConnectionString)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}

	printer := console.NewPrinter(os.Stderr)

	err = cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Version: version,
		Store:   blobStore,
		Printer: printer,
		Scripts: cli.Scripts,
		Common:  cli.CommonFlags,
	})
	if err != nil {
		return fmt.Errorf("command %s failed: %w", cmd.Command(), err)
	}

	printer.Info("✅", "%s completed successfully in %s", cmd.Command(), time.Since(start).String())

	return nil
}

func setupLogging() error {
	level := zerolog.ErrorLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	if cli.LogFile == "" {
		log.Logger = log.Output(consoleWriter).Level(level)
		return nil
	}

	fileWriter, err := logfile.New(cli.LogFile, cli.LogFileMaxSize)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	log.Logger = log.Output(zerolog.MultiLevelWriter(consoleWriter, fileWriter)).Level(level)

	return nil
}
