package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "RICHHISTORY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables always take
// precedence over file-based configuration.
//
// An empty path starts from the defaults instead of a file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	return load(path, false)
}

// LoadOptional behaves like LoadConfigWithEnvOverrides but treats a missing
// file as empty.
func LoadOptional(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, optional bool) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := LoadConfig(path)
		switch {
		case err == nil:
			cfg = loaded
		case optional && errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format RICHHISTORY_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Storage overrides
	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	if val := os.Getenv(EnvPrefix + "STORAGE_SQLITE_WAL_MODE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Storage.SQLite.WALMode = &b
		}
	}
	envDuration("STORAGE_SQLITE_BUSY_TIMEOUT", &cfg.Storage.SQLite.BusyTimeout)
	envInt64("STORAGE_SQLITE_MAX_PAGE_COUNT", &cfg.Storage.SQLite.MaxPageCount)
	envString("STORAGE_DYNAMODB_TABLE", &cfg.Storage.DynamoDB.Table)
	envString("STORAGE_DYNAMODB_REGION", &cfg.Storage.DynamoDB.Region)
	envString("STORAGE_DYNAMODB_ENDPOINT", &cfg.Storage.DynamoDB.Endpoint)
	envString("STORAGE_DYNAMODB_ACCESS_KEY_ID", &cfg.Storage.DynamoDB.AccessKeyID)
	envString("STORAGE_DYNAMODB_SECRET_ACCESS_KEY", &cfg.Storage.DynamoDB.SecretAccessKey)
	envInt64("STORAGE_MEMORY_MAX_BYTES", &cfg.Storage.Memory.MaxBytes)

	// History overrides
	envInt("HISTORY_MAX_ENTRIES", &cfg.History.MaxEntries)
	envDuration("HISTORY_OPERATION_TIMEOUT", &cfg.History.OperationTimeout)

	// Settings overrides
	envString("SETTINGS_FILE", &cfg.Settings.File)
	envBool("SETTINGS_WATCH", &cfg.Settings.Watch)

	// Retention overrides
	envString("RETENTION_SCHEDULE", &cfg.Retention.Schedule)
	envBool("RETENTION_ARCHIVE_BEFORE_DELETE", &cfg.Retention.ArchiveBeforeDelete)
	envString("RETENTION_ARCHIVE_PATH", &cfg.Retention.ArchivePath)

	// Telemetry overrides
	envString("LOGGING_LEVEL", &cfg.Logging.Level)
	envString("LOGGING_FORMAT", &cfg.Logging.Format)
	envBool("METRICS_ENABLED", &cfg.Metrics.Enabled)
	envString("METRICS_LISTEN_ADDRESS", &cfg.Metrics.ListenAddress)
	envString("METRICS_PATH", &cfg.Metrics.Path)
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envInt64(key string, dst *int64) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
