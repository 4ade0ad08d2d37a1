package storage

import (
	"fmt"

	"reelscope/internal/config"
)

// New builds the archive backend selected by configuration. Returns nil
// (and no error) when archiving is disabled.
func New(cfg *config.ArchiveConfig) (ObjectStorage, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Type {
	case "s3":
		return NewS3Storage(cfg)
	case "local", "":
		return NewLocalStorage(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
