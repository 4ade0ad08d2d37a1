package store

import (
	"reelscope/internal/config"
	"reelscope/internal/logger"
)

// Open selects the storage backend once at process start. If the durable
// store is unreachable it logs a degradation notice and returns the
// in-memory fallback; startup never fails solely because the database is
// down.
func Open(cfg *config.DatabaseConfig, log *logger.Logger) Store {
	durable, err := OpenDurable(cfg)
	if err != nil {
		log.WithError(err).WithField("driver", cfg.Driver).
			Warn("Durable store unavailable, degrading to in-memory mode; job state will not survive a restart")
		return NewMemoryStore()
	}
	log.WithField("driver", cfg.Driver).Info("Durable store connected")
	return durable
}
