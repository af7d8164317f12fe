package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/google/uuid"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/strata/pkg/db/postgres/migrations"
	"github.com/marmos91/strata/pkg/manifest"
)

// Store is the Postgres-backed db.Store.
type Store struct {
	gdb *gorm.DB
	dsn string
}

// Open connects to Postgres and wraps the connection in a gorm.DB. It does
// not run migrations; call CreateAll for that.
func Open(cfg Config) (*Store, error) {
	cfg.ApplyDefaults()

	gdb, err := gorm.Open(gormpg.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(int(cfg.MaxConns))
	sqlDB.SetMaxIdleConns(int(cfg.MinConns))
	sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)

	return &Store{gdb: gdb, dsn: cfg.DSN()}, nil
}

// CreateAll runs every pending migration, relying on golang-migrate's
// Postgres advisory lock to make concurrent callers (e.g. multiple
// replicas starting at once) safe.
func (s *Store) CreateAll(ctx context.Context) error {
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return fmt.Errorf("postgres: open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    "strata",
	})
	if err != nil {
		return fmt.Errorf("postgres: migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("postgres: migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("postgres: migrate up: %w", err)
	}

	slog.Default().Info("postgres schema up to date")
	return nil
}

func (s *Store) InsertBatch(ctx context.Context, manifests []*manifest.Manifest) error {
	if len(manifests) == 0 {
		return nil
	}
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range manifests {
			if err := tx.Create(m).Error; err != nil {
				return fmt.Errorf("postgres: insert manifest %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) GetManifest(ctx context.Context, id uuid.UUID) (*manifest.Manifest, error) {
	var m manifest.Manifest
	err := s.gdb.WithContext(ctx).Preload("Contents").First(&m, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("postgres: get manifest %s: %w", id, err)
	}
	return &m, nil
}

func (s *Store) ListManifests(ctx context.Context, classID *uuid.UUID, tagFilter map[string]string) ([]*manifest.Manifest, error) {
	q := s.gdb.WithContext(ctx).Preload("Contents").Model(&manifest.Manifest{})
	if classID != nil {
		q = q.Where("class_id = ?", *classID)
	}
	for k, v := range tagFilter {
		q = q.Where("tags ->> ? = ?", k, v)
	}

	var out []*manifest.Manifest
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("postgres: list manifests: %w", err)
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
