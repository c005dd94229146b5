package config

import "time"

// Default values for configuration fields.
const (
	// Storage defaults
	DefaultStorageBackend       = "sqlite"
	DefaultSQLitePath           = "data/richhistory.db"
	DefaultSQLiteDriver         = "sqlite"
	DefaultSQLiteBusyTimeout    = 5 * time.Second
	DefaultDynamoDBMaxItemBytes = 400 * 1024

	// History defaults
	DefaultMaxEntries       = 10000
	DefaultOperationTimeout = 5 * time.Second

	// Retention defaults
	DefaultRetentionSchedule    = "0 3 * * *"
	DefaultRetentionArchivePath = "data/archives/"

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "text"
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsPath          = "/metrics"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.Driver == "" {
		cfg.Storage.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.DynamoDB.MaxItemBytes == 0 {
		cfg.Storage.DynamoDB.MaxItemBytes = DefaultDynamoDBMaxItemBytes
	}

	// History defaults
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = DefaultMaxEntries
	}
	if cfg.History.OperationTimeout == 0 {
		cfg.History.OperationTimeout = DefaultOperationTimeout
	}

	// Retention defaults
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Retention.ArchivePath == "" {
		cfg.Retention.ArchivePath = DefaultRetentionArchivePath
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
