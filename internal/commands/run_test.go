package commands

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/datalift/datalift/internal/console"
	"github.com/datalift/datalift/internal/export"
	"github.com/datalift/datalift/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlobService is an in-memory store.Service so the run pipeline can be
// driven without a storage account.
type fakeBlobService struct {
	containers map[string]map[string][]byte
	failPaths  map[string]bool
	uploads    int
}

func newFakeBlobService() *fakeBlobService {
	return &fakeBlobService{
		containers: map[string]map[string][]byte{},
		failPaths:  map[string]bool{},
	}
}

func (f *fakeBlobService) ListContainers(_ context.Context) ([]store.ContainerInfo, error) {
	var infos []store.ContainerInfo
	for name := range f.containers {
		infos = append(infos, store.ContainerInfo{Name: name})
	}
	return infos, nil
}

func (f *fakeBlobService) CreateContainer(_ context.Context, name string) error {
	if _, ok := f.containers[name]; !ok {
		f.containers[name] = map[string][]byte{}
	}
	return nil
}

func (f *fakeBlobService) ListBlobs(_ context.Context, container string) ([]string, error) {
	var names []string
	for name := range f.containers[container] {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeBlobService) Upload(_ context.Context, container, blobPath string, body io.Reader) error {
	f.uploads++
	if f.failPaths[blobPath] {
		return fmt.Errorf("injected upload failure for %s", blobPath)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.containers[container][blobPath] = data
	return nil
}

func (f *fakeBlobService) Download(_ context.Context, container, blobPath string, dst io.Writer) (int64, error) {
	data, ok := f.containers[container][blobPath]
	if !ok {
		return 0, fmt.Errorf("blob %s not found", blobPath)
	}
	n, err := dst.Write(data)
	return int64(n), err
}

func (f *fakeBlobService) DeleteBlob(_ context.Context, container, blobPath string) error {
	delete(f.containers[container], blobPath)
	return nil
}

func testGlobals(svc store.Service, scripts []export.Script) *Globals {
	conn := "AccountName=devstore;AccountKey=" +
		base64.StdEncoding.EncodeToString([]byte("datalift-test-key"))

	return &Globals{
		Version: "test",
		Store:   store.NewWithService(conn, svc),
		Printer: console.NewPrinter(io.Discard),
		Scripts: scripts,
		Common:  CommonFlags{Container: "data", RetryCount: 1},
	}
}

// captureStdout collects the JSON summary the run prints.
func captureStdout(t *testing.T, fn func()) []byte {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	require.NoError(t, w.Close())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func testRunCmd(t *testing.T, exportFn func(ctx context.Context, database, scriptFile string, format export.Format, outBase string) ([]string, error)) *RunCmd {
	t.Helper()

	return &RunCmd{
		SQLServer:     "localhost",
		SQLUser:       "exporter",
		SQLPassword:   "secret",
		SQLDriver:     "postgres",
		Format:        "csv",
		TempDirectory: t.TempDir(),
		KeepTemp:      true,
		exportFn:      exportFn,
	}
}

func TestRunValidation(t *testing.T) {
	scripts := []export.Script{{Database: "sales", Script: "queries/orders.sql", BlobPath: "exports"}}

	tests := []struct {
		name    string
		format  string
		scripts []export.Script
		common  CommonFlags
		wantErr string
	}{
		{
			name:    "raw format rejected",
			format:  "raw",
			scripts: scripts,
			common:  CommonFlags{Container: "data", RetryCount: 1},
			wantErr: "raw format",
		},
		{
			name:    "unknown format rejected",
			format:  "xml",
			scripts: scripts,
			common:  CommonFlags{Container: "data", RetryCount: 1},
			wantErr: "format rejected",
		},
		{
			name:    "no scripts",
			format:  "csv",
			scripts: nil,
			common:  CommonFlags{Container: "data", RetryCount: 1},
			wantErr: "no export scripts",
		},
		{
			name:    "no container",
			format:  "csv",
			scripts: scripts,
			common:  CommonFlags{RetryCount: 1},
			wantErr: "no storage container",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := testRunCmd(t, nil)
			cmd.Format = tt.format

			globals := testGlobals(newFakeBlobService(), tt.scripts)
			globals.Common = tt.common

			err := cmd.Run(context.Background(), globals)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunSkipsFailedScripts(t *testing.T) {
	scripts := []export.Script{
		{Database: "sales", Script: "queries/orders.sql", BlobPath: "exports"},
		{Database: "sales", Script: "queries/broken.sql", BlobPath: "exports"},
	}

	exportFn := func(_ context.Context, _, scriptFile string, _ export.Format, outBase string) ([]string, error) {
		if strings.Contains(scriptFile, "broken") {
			return nil, fmt.Errorf("injected export failure")
		}
		out := outBase + ".csv"
		if err := os.WriteFile(out, []byte("id,name\n1,widget\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{out}, nil
	}

	svc := newFakeBlobService()
	cmd := testRunCmd(t, exportFn)
	globals := testGlobals(svc, scripts)

	var runErr error
	out := captureStdout(t, func() {
		runErr = cmd.Run(context.Background(), globals)
	})
	require.NoError(t, runErr)

	var summary RunSummary
	require.NoError(t, json.Unmarshal(out, &summary))

	// The failed script is skipped, never aborting the run or the summary.
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, []string{"exports/"}, summary.BlobPaths)
	require.Contains(t, summary.Scripts, "orders")
	assert.NotContains(t, summary.Scripts, "broken")
	assert.Equal(t, []string{completeMarker}, summary.Complete)

	require.Len(t, summary.Scripts["orders"], 1)
	parsed, ok := store.ParseBlobURI(summary.Scripts["orders"][0])
	require.True(t, ok)
	assert.Equal(t, "data", parsed.Container)
	assert.Equal(t, "exports/orders.csv", parsed.BlobPath)
	assert.NotEmpty(t, parsed.SASToken)

	assert.Contains(t, svc.containers["data"], "exports/orders.csv")
	assert.Contains(t, svc.containers["data"], completeMarker)
	assert.Equal(t, 2, svc.uploads, "one export blob plus the marker")
}

func TestRunRecordsFailedMarker(t *testing.T) {
	scripts := []export.Script{
		{Database: "sales", Script: "queries/orders.sql", BlobPath: "exports"},
	}

	exportFn := func(_ context.Context, _, _ string, _ export.Format, outBase string) ([]string, error) {
		out := outBase + ".csv"
		if err := os.WriteFile(out, []byte("id\n1\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{out}, nil
	}

	svc := newFakeBlobService()
	svc.failPaths[completeMarker] = true

	cmd := testRunCmd(t, exportFn)
	globals := testGlobals(svc, scripts)

	var runErr error
	out := captureStdout(t, func() {
		runErr = cmd.Run(context.Background(), globals)
	})
	require.NoError(t, runErr)

	var summary RunSummary
	require.NoError(t, json.Unmarshal(out, &summary))

	// The marker stays in the summary even when its upload fails.
	assert.Equal(t, []string{completeMarker}, summary.Complete)
	assert.NotContains(t, svc.containers["data"], completeMarker)
	assert.Contains(t, svc.containers["data"], "exports/orders.csv")
}
