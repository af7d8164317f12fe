package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/strata/internal/bytesize"
)

func TestLoadAppliesDefaultsOverPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: "DEBUG"

default_storage: "s3@v1"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q, want DEBUG", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want default text", cfg.Logging.Format)
	}
	if cfg.DefaultStorage != "s3@v1" {
		t.Errorf("DefaultStorage = %q, want s3@v1", cfg.DefaultStorage)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s default", cfg.ShutdownTimeout)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want default sqlite", cfg.Database.Driver)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultStorage == "" {
		t.Error("expected a non-empty default DefaultStorage")
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.Level = "NOPE"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
}

func TestValidateRejectsBadDatabaseDriver(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Driver = "mysql"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unsupported database driver")
	}
}

func TestLoadParsesHumanReadableMaxContentSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
default_storage: "fs@v1"
max_content_size: "512Mi"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxContentSize != 512*bytesize.MiB {
		t.Errorf("MaxContentSize = %s, want %s", cfg.MaxContentSize, 512*bytesize.MiB)
	}
}

func TestLoadZeroMaxContentSizeIsUnlimited(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxContentSize != 0 {
		t.Errorf("MaxContentSize = %s, want 0 (unlimited)", cfg.MaxContentSize)
	}
}

func TestValidateRejectsMissingDefaultStorage(t *testing.T) {
	cfg := defaultConfig()
	cfg.DefaultStorage = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for empty default_storage")
	}
}
