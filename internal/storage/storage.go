// Package storage provides the optional source-video archive. When enabled,
// accepted uploads are copied to an object store so the original bytes
// survive working-directory reclamation.
package storage

import (
	"context"
	"io"
)

// ObjectStorage abstracts the archive backend.
type ObjectStorage interface {
	// Upload stores an object under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download retrieves an object. The caller must close the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the externally reachable URL of an object, when the
	// backend has one; local archives return a file path.
	GetURL(key string) string

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)
}
