package commands

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/datalift/datalift/internal/console"
	"github.com/datalift/datalift/internal/export"
	"github.com/datalift/datalift/internal/store"
)

type CommonFlags struct {
	Container  string `flag:"container" help:"The storage container receiving exports." env:"DATALIFT_CONTAINER"`
	RetryCount int    `flag:"retry-count" help:"Upload attempts per blob." default:"3" env:"DATALIFT_RETRY_COUNT"`
}

type Globals struct {
	Debug   bool
	Version string
	Store   *store.Store
	Printer *console.Printer
	Scripts []export.Script
	Common  CommonFlags
}

// expandBlobPath expands any Go time layout elements in a blob path
// template with the given moment and guarantees a trailing slash so file
// names can be appended directly.
func expandBlobPath(template string, now time.Time) string {
	if template == "" {
		return ""
	}

	path := now.UTC().Format(template)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	return path
}

// scriptBaseName returns the script file name without directories or
// extension, used as the output file stem and summary key.
func scriptBaseName(script string) string {
	base := filepath.Base(script)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
