package config

import "time"

// Config is the root configuration structure.
type Config struct {
	// Storage selects and configures the history backend.
	Storage StorageConfig `yaml:"storage"`

	// History contains limits applied by the history service.
	History HistoryConfig `yaml:"history"`

	// Settings configures an optional settings file.
	Settings SettingsConfig `yaml:"settings"`

	// Retention configures scheduled pruning of expired entries.
	Retention RetentionConfig `yaml:"retention"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint served by "serve".
	Metrics MetricsConfig `yaml:"metrics"`

	// DataSources lists the known data sources. When empty, every uid
	// resolves to a generated name.
	DataSources []DataSourceConfig `yaml:"datasources"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	// Backend is the storage backend.
	// Options: "memory", "sqlite", "dynamodb"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// DynamoDB contains DynamoDB backend configuration.
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`

	// Memory contains in-memory backend configuration.
	Memory MemoryConfig `yaml:"memory"`
}

// SQLiteConfig contains SQLite backend configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/richhistory.db"
	Path string `yaml:"path"`

	// Driver is the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// MaxPageCount caps the database size in pages. 0 means no cap.
	MaxPageCount int64 `yaml:"max_page_count"`
}

// WALEnabled reports whether WAL mode is enabled.
func (c SQLiteConfig) WALEnabled() bool {
	return c.WALMode == nil || *c.WALMode
}

// DynamoDBConfig contains DynamoDB backend configuration.
type DynamoDBConfig struct {
	// Table is the DynamoDB table name. Required for the dynamodb backend.
	Table string `yaml:"table"`

	// Region is the AWS region. Empty uses the SDK default chain.
	Region string `yaml:"region"`

	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string `yaml:"endpoint"`

	// AccessKeyID and SecretAccessKey select static credentials.
	// Both must be set or both left empty.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// MaxItemBytes is the largest item accepted before the store counts as full.
	// Default: 409600
	MaxItemBytes int `yaml:"max_item_bytes"`
}

// MemoryConfig contains in-memory backend configuration.
type MemoryConfig struct {
	// MaxBytes is the storage quota. 0 means unlimited.
	MaxBytes int64 `yaml:"max_bytes"`
}

// HistoryConfig contains history service limits.
type HistoryConfig struct {
	// MaxEntries is the entry limit. Negative disables the limit.
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`

	// OperationTimeout bounds every store operation.
	// Default: 5s
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// SettingsConfig configures the settings file.
type SettingsConfig struct {
	// File is a YAML settings file used instead of the backend's settings.
	// Empty keeps settings in the backend.
	File string `yaml:"file"`

	// Watch reloads the settings file on change while serving.
	// Default: false
	Watch bool `yaml:"watch"`
}

// RetentionConfig configures scheduled pruning.
type RetentionConfig struct {
	// Schedule is a cron expression. Empty disables scheduled pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// ArchiveBeforeDelete exports expired entries before pruning them.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the archive directory.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus endpoint configuration.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the HTTP endpoint.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the address the endpoint listens on.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path of the endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// DataSourceConfig declares one known data source.
type DataSourceConfig struct {
	UID  string `yaml:"uid"`
	Name string `yaml:"name"`
}
