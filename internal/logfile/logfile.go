// Package logfile provides a size-bounded log sink. When the file reaches
// its limit it is rolled over to a single ".old" sibling, so the pair never
// grows past twice the configured size.
package logfile

import (
	"fmt"
	"os"
	"sync"
)

// DefaultMaxSize is the rollover threshold used when the caller passes a
// non-positive limit.
const DefaultMaxSize = 2 * 1024 * 1024

// Writer is an append-only io.Writer over a single log file with size-based
// rollover. It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	file    *os.File
	size    int64
}

// New opens (or creates) the log file at path with the given rollover
// threshold in bytes.
func New(path string, maxSize int64) (*Writer, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	w := &Writer{path: path, maxSize: maxSize}
	if err := w.open(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Writer) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", w.path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file %s: %w", w.path, err)
	}

	w.file = file
	w.size = info.Size()

	return nil
}

// Write appends p to the log file, rolling over first when the write would
// push the file past the size limit.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rollover(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)

	return n, err
}

// rollover renames the current file to path+".old", replacing any previous
// rollover, and starts a fresh file.
func (w *Writer) rollover() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file %s: %w", w.path, err)
	}

	if err := os.Rename(w.path, w.path+".old"); err != nil {
		return fmt.Errorf("failed to roll over log file %s: %w", w.path, err)
	}

	return w.open()
}

// Close releases the underlying file handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}
