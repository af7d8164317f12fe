// Package config loads process configuration from file, environment, and
// defaults, the same precedence order and viper/mapstructure machinery used
// throughout this codebase's ambient stack.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/strata/internal/bytesize"
)

// Config is the top-level process configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (STRATA_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls structured log output.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Database configures the manifest/content metadata store.
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// DefaultStorage names the storage driver contents are written to when
	// an unpacker does not specify one explicitly. Must name a driver the
	// process's registry actually registers.
	DefaultStorage string `mapstructure:"default_storage" validate:"required" yaml:"default_storage"`

	// ShutdownTimeout bounds how long a graceful shutdown waits for
	// in-flight saver/loader contexts to close.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// MaxContentSize caps a single content's serialized size (value) or
	// final stream digest size (stream). Accepts human-readable sizes like
	// "512Mi" or "100MB". Zero means unlimited.
	MaxContentSize bytesize.ByteSize `mapstructure:"max_content_size" yaml:"max_content_size,omitempty"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format selects the log encoder.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// DatabaseConfig configures the manifest/content metadata store.
type DatabaseConfig struct {
	// Driver selects the backing database: "postgres" or "sqlite".
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite" yaml:"driver"`

	// Postgres is read when Driver is "postgres".
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`

	// SQLitePath is the database file path when Driver is "sqlite". Use
	// ":memory:" for an ephemeral in-process store.
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// PostgresConfig holds Postgres connection parameters.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	Database string `mapstructure:"database" yaml:"database"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
}

// Load loads configuration from configPath (empty uses the default
// location), applies environment overrides, fills in defaults, and
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)
	// AutomaticEnv only consults keys viper already knows, so every key is
	// bound here; STRATA_* then applies whether or not a file sets the key.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output", "database.driver", "database.sqlite_path",
		"database.postgres.host", "database.postgres.port", "database.postgres.user", "database.postgres.password",
		"database.postgres.database", "database.postgres.ssl_mode", "default_storage", "shutdown_timeout", "max_content_size",
	} {
		_ = v.BindEnv(key)
	}

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeDecodeHook(),
	))); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: "strata.db",
		},
		DefaultStorage:  "fs@v1",
		ShutdownTimeout: 30 * time.Second,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg's struct tags and returns the first failing rule.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

// setupViper configures environment variable and config file resolution.
// Environment variables use the STRATA_ prefix with underscores in place of
// dots, e.g. STRATA_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists. A missing file
// is not an error: callers fall back to defaults.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

// byteSizeDecodeHook converts strings ("512Mi", "100MB") and numbers to
// bytesize.ByteSize so config files can use human-readable sizes.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func defaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "strata")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".strata"
	}
	return filepath.Join(home, ".config", "strata")
}
