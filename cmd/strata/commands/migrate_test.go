package commands

import (
	"testing"

	"github.com/marmos91/strata/pkg/config"
)

func TestOpenStoreSQLiteDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = ":memory:"

	store, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	defer store.Close()
}

func TestOpenStoreUnsupportedDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "mongodb"

	if _, err := openStore(cfg); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
