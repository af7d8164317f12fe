// Package db defines the minimal database adapter surface: batch-insert a
// saver's manifests transactionally, and read them back for the loader.
// Concrete dialects live in subpackages (postgres, sqlite).
package db

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marmos91/strata/pkg/manifest"
)

// Store is the database adapter surface the Saver and Loader depend on.
type Store interface {
	// CreateAll brings the schema into being idempotently.
	CreateAll(ctx context.Context) error

	// InsertBatch inserts every manifest (and its contents) in one
	// transaction. Either all manifests in the batch become visible, or
	// none do.
	InsertBatch(ctx context.Context, manifests []*manifest.Manifest) error

	// GetManifest loads one manifest with its contents attached.
	GetManifest(ctx context.Context, id uuid.UUID) (*manifest.Manifest, error)

	// ListManifests returns manifests matching an optional class filter and
	// an optional exact-match tag filter (manifests.tags @> filter, or the
	// SQLite-compatible equivalent).
	ListManifests(ctx context.Context, classID *uuid.UUID, tagFilter map[string]string) ([]*manifest.Manifest, error)

	// DB exposes the underlying gorm handle for drivers (like dbstore) that
	// store small payloads as a blob column alongside the manifest tables.
	DB() *gorm.DB

	Close() error
}
