package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"reelscope/internal/config"
)

// document is the durable row shape: one JSON document per (collection, key).
type document struct {
	Collection string    `gorm:"type:text;primaryKey"`
	DocKey     string    `gorm:"column:doc_key;type:text;primaryKey"`
	Data       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName returns the database table name for document.
func (document) TableName() string {
	return "documents"
}

// GormStore is the durable backend, a document store over a relational
// database via GORM. Driver selection (postgres or sqlite) follows config.
type GormStore struct {
	db *gorm.DB
}

// OpenDurable connects to the configured database, runs migration, and
// returns the durable store. Callers fall back to the in-memory store if
// this fails; it is never fatal on its own.
// Parameters:
//   - cfg: database configuration including driver and connection settings.
// Returns:
//   - *GormStore: initialized durable store.
//   - error: non-nil if connection or migration fails.
func OpenDurable(cfg *config.DatabaseConfig) (*GormStore, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var db *gorm.DB
	var err error

	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gormConfig)
	case "sqlite":
		if cfg.Path != "" {
			if mkErr := os.MkdirAll(filepath.Dir(cfg.Path), 0755); mkErr != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormConfig)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// WAL improves concurrent reader behavior
		db.Exec("PRAGMA journal_mode=WAL")
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&document{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return &GormStore{db: db}, nil
}

// Put creates or replaces the document at (collection, key).
func (s *GormStore) Put(ctx context.Context, collection, key string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	row := &document{
		Collection: collection,
		DocKey:     key,
		Data:       string(data),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(row).Error
}

// Get unmarshals the document at (collection, key) into out.
func (s *GormStore) Get(ctx context.Context, collection, key string, out interface{}) error {
	var row document
	err := s.db.WithContext(ctx).
		First(&row, "collection = ? AND doc_key = ?", collection, key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal([]byte(row.Data), out)
}

// Find returns raw documents matching the filter on top-level fields.
// Filtering happens in process: collections here are small per-job sets and
// the document payloads stay opaque to SQL.
func (s *GormStore) Find(ctx context.Context, collection string, filter map[string]interface{}) ([]json.RawMessage, error) {
	var rows []document
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	var out []json.RawMessage
	for _, row := range rows {
		raw := json.RawMessage(row.Data)
		if len(filter) > 0 {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(raw, &fields); err != nil {
				continue
			}
			if !matches(fields, filter) {
				continue
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

// FindPrefix pushes the key predicate into SQL so the scan is bounded by the
// matching rows, not the whole collection.
func (s *GormStore) FindPrefix(ctx context.Context, collection, prefix string) ([]json.RawMessage, error) {
	var rows []document
	if err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_key LIKE ? ESCAPE '\\'", collection, likePrefix(prefix)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, json.RawMessage(row.Data))
	}
	return out, nil
}

// likePrefix escapes LIKE metacharacters so arbitrary keys match literally.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// Update merges partial into the stored document inside one transaction.
func (s *GormStore) Update(ctx context.Context, collection, key string, partial map[string]interface{}, upsert bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row document
		err := tx.First(&row, "collection = ? AND doc_key = ?", collection, key).Error
		doc := make(map[string]interface{})
		switch {
		case err == nil:
			if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if !upsert {
				return ErrNotFound
			}
		default:
			return err
		}

		for k, v := range partial {
			doc[k] = v
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&document{
			Collection: collection,
			DocKey:     key,
			Data:       string(data),
		}).Error
	})
}

// Mode reports ModeDurable.
func (s *GormStore) Mode() Mode { return ModeDurable }

// Ping checks database reachability.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
