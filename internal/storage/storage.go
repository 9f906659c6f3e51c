// Package storage abstracts the attachment disk the pipeline reads from.
// The pipeline never writes attachments; it only resolves and streams them
// for scoring.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned when a path has no stored file behind it.
var ErrNotExist = errors.New("storage: file does not exist")

// Storage is the collaborator boundary to the attachment disk.
type Storage interface {
	// Exists reports whether a file is present at path.
	Exists(ctx context.Context, path string) (bool, error)
	// Open returns a stream over the file content.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// LocalPath resolves path to a file on the local filesystem. The second
	// return is false for backends that cannot expose one, e.g. remote
	// object storage.
	LocalPath(path string) (string, bool)
}
