package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/strata/internal/log"
	"github.com/marmos91/strata/pkg/config"
	"github.com/marmos91/strata/pkg/db"
	"github.com/marmos91/strata/pkg/db/postgres"
	"github.com/marmos91/strata/pkg/db/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the manifest/content schema into being",
	Long: `migrate applies the manifest and content table schema to the
configured database (SQLite via AutoMigrate, Postgres via golang-migrate).
It is idempotent: running it against an up-to-date schema is a no-op.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if err := log.Init(log.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer store.Close()

	log.Info("running migrations", "driver", cfg.Database.Driver)
	if err := store.CreateAll(context.Background()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	fmt.Printf("migrations completed (driver: %s)\n", cfg.Database.Driver)
	return nil
}

func openStore(cfg *config.Config) (db.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pc := postgres.Config{
			Host:     cfg.Database.Postgres.Host,
			Port:     cfg.Database.Postgres.Port,
			User:     cfg.Database.Postgres.User,
			Password: cfg.Database.Postgres.Password,
			Database: cfg.Database.Postgres.Database,
			SSLMode:  cfg.Database.Postgres.SSLMode,
		}
		return postgres.Open(pc)
	case "sqlite":
		return sqlite.Open(cfg.Database.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
