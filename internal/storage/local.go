package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local serves attachments from a directory on the local filesystem.
type Local struct {
	root string
}

// NewLocal creates a local disk rooted at the given directory.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Exists reports whether a file is present at path.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(l.resolve(path))
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return !info.IsDir(), nil
}

// Open returns a stream over the file content.
func (l *Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(l.resolve(path))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return f, nil
}

// LocalPath resolves path against the disk root.
func (l *Local) LocalPath(path string) (string, bool) {
	return l.resolve(path), true
}

func (l *Local) resolve(path string) string {
	return filepath.Join(l.root, filepath.Clean("/"+path))
}
