// Package sqlite is the SQLite db.Store implementation, built on
// glebarez/sqlite (pure Go, no cgo) for local development and tests.
// SQLite has no native JSON type or validation; manifest.JSON's
// Value/Scan methods carry that validation instead, so the guarantee the
// spec asks for (JSON is validated at insert, same as Postgres) holds
// uniformly across dialects.
package sqlite

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/strata/pkg/manifest"
)

// Store is the SQLite-backed db.Store, typically pointed at a file path or
// ":memory:" for tests.
type Store struct {
	gdb *gorm.DB
}

// Open opens (creating if absent) a SQLite database at path.
func Open(path string) (*Store, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	return &Store{gdb: gdb}, nil
}

// CreateAll idempotently brings the schema into being via AutoMigrate,
// since golang-migrate's SQL migrations in this repo target Postgres
// syntax (JSONB, gin indexes) that SQLite does not support.
func (s *Store) CreateAll(_ context.Context) error {
	if err := s.gdb.AutoMigrate(&manifest.Manifest{}, &manifest.Content{}); err != nil {
		return fmt.Errorf("sqlite: auto migrate: %w", err)
	}
	return nil
}

func (s *Store) InsertBatch(ctx context.Context, manifests []*manifest.Manifest) error {
	if len(manifests) == 0 {
		return nil
	}
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range manifests {
			if err := tx.Create(m).Error; err != nil {
				return fmt.Errorf("sqlite: insert manifest %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) GetManifest(ctx context.Context, id uuid.UUID) (*manifest.Manifest, error) {
	var m manifest.Manifest
	err := s.gdb.WithContext(ctx).Preload("Contents").First(&m, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("sqlite: get manifest %s: %w", id, err)
	}
	return &m, nil
}

func (s *Store) ListManifests(ctx context.Context, classID *uuid.UUID, tagFilter map[string]string) ([]*manifest.Manifest, error) {
	q := s.gdb.WithContext(ctx).Preload("Contents").Model(&manifest.Manifest{})
	if classID != nil {
		q = q.Where("class_id = ?", *classID)
	}
	for k, v := range tagFilter {
		q = q.Where("json_extract(tags, ?) = ?", "$."+k, v)
	}

	var out []*manifest.Manifest
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("sqlite: list manifests: %w", err)
	}
	return out, nil
}

func (s *Store) DB() *gorm.DB { return s.gdb }

func (s *Store) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
