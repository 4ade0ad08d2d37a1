package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"reelscope/internal/logger"
)

// Workspace owns the per-job temporary directories holding uploaded videos.
// It implements job.Reclaimer: the job manager and pipeline router signal
// when a directory is no longer needed, and the workspace removes it after
// the configured retention delay.
type Workspace struct {
	root      string
	retention time.Duration
	log       *logger.Logger
}

// NewWorkspace creates the upload workspace rooted at dir.
func NewWorkspace(dir string, retention time.Duration, log *logger.Logger) (*Workspace, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "reelscope")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	return &Workspace{root: dir, retention: retention, log: log}, nil
}

// Create makes a fresh working directory for one job.
func (w *Workspace) Create(jobID string) (string, error) {
	dir := filepath.Join(w.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working dir: %w", err)
	}
	return dir, nil
}

// SaveUpload streams a multipart upload into the working directory and
// returns the stored path.
func (w *Workspace) SaveUpload(dir string, file *multipart.FileHeader, name string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	return dst, nil
}

// Reclaim schedules removal of a working directory. With a retention delay
// configured the removal happens in the background so recently finished
// jobs keep their files around briefly for debugging.
func (w *Workspace) Reclaim(dir string) error {
	if dir == "" || !w.owns(dir) {
		return fmt.Errorf("refusing to reclaim directory outside workspace: %s", dir)
	}

	if w.retention <= 0 {
		return w.remove(dir)
	}

	go func() {
		time.Sleep(w.retention)
		if err := w.remove(dir); err != nil {
			w.log.WithError(err).Warnf("Failed to reclaim working dir %s", dir)
		}
	}()
	return nil
}

func (w *Workspace) remove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove working dir: %w", err)
	}
	return nil
}

// owns guards against reclaiming paths outside the workspace root.
func (w *Workspace) owns(dir string) bool {
	rel, err := filepath.Rel(w.root, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && rel != "." && !startsWithDotDot(rel)
}

func startsWithDotDot(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}
