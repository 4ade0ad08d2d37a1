package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStorage archives videos on the local filesystem under a root dir.
// Keys map to paths relative to the root; nested keys create directories.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a filesystem archive rooted at dir.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("local archive dir not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}
	return &LocalStorage{root: dir}, nil
}

func (l *LocalStorage) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// Upload copies the object bytes into the archive tree.
func (l *LocalStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	dst := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create archive subdir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}

// Download opens an archived object for reading.
func (l *LocalStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	return f, nil
}

// GetURL returns the archived object's filesystem path.
func (l *LocalStorage) GetURL(key string) string {
	return l.path(key)
}

// Delete removes an archived object.
func (l *LocalStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete archive file: %w", err)
	}
	return nil
}

// Exists reports whether an archived object is present.
func (l *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(l.path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat archive file: %w", err)
}
