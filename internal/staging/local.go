package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStager keeps staged blobs in a directory on disk. It backs the
// all-in-one server where api and pipeline share a filesystem.
type LocalStager struct {
	dir     string
	maxSize int64
}

// NewLocalStager prepares the staging directory. An empty dir defaults to a
// folder under the system temp directory.
func NewLocalStager(dir string, maxSize int64) (*LocalStager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "bodymetrics")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &LocalStager{dir: dir, maxSize: maxSize}, nil
}

func (l *LocalStager) Stage(_ context.Context, key string, r io.Reader) (*Staged, error) {
	path := l.path(key)
	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	written, sniffed, err := copyCapped(dst, r, l.maxSize)
	closeErr := dst.Close()
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	if closeErr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close staged file: %w", closeErr)
	}
	return &Staged{Size: written, SniffedType: sniffed}, nil
}

func (l *LocalStager) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	return f, nil
}

func (l *LocalStager) Remove(_ context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

func (l *LocalStager) path(key string) string {
	// Keys are generated uuids, never client input.
	return filepath.Join(l.dir, filepath.Base(key))
}
