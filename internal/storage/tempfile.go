package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WithLocalFile hands fn a local filesystem path for the stored file. When
// the backend exposes one directly it is used as-is; otherwise the content is
// streamed into a private temporary file that is removed on every exit path,
// so a failing fn can never leak scratch files.
func WithLocalFile(ctx context.Context, st Storage, path string, fn func(localPath string) error) error {
	if localPath, ok := st.LocalPath(path); ok {
		return fn(localPath)
	}

	rc, err := st.Open(ctx, path)
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "postsieve-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to stage %s locally: %w", path, err)
	}

	// Close before fn so the consumer can reopen the file itself.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush temporary file: %w", err)
	}

	return fn(tmp.Name())
}
