package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "storage.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateTelemetry(cfg)...)
	errs = append(errs, validateDataSources(cfg.DataSources)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// validateStorage validates storage configuration.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
		if cfg.Memory.MaxBytes < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.memory.max_bytes",
				Message: "max bytes must be non-negative",
			})
		}
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be 'sqlite' or 'sqlite3')", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.busy_timeout",
				Message: "busy timeout must be non-negative",
			})
		}
		if cfg.SQLite.MaxPageCount < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.max_page_count",
				Message: "max page count must be non-negative",
			})
		}
	case "dynamodb":
		if cfg.DynamoDB.Table == "" {
			errs = append(errs, FieldError{
				Field:   "storage.dynamodb.table",
				Message: "table is required for the dynamodb backend",
			})
		}
		if (cfg.DynamoDB.AccessKeyID == "") != (cfg.DynamoDB.SecretAccessKey == "") {
			errs = append(errs, FieldError{
				Field:   "storage.dynamodb.access_key_id",
				Message: "access_key_id and secret_access_key must be set together",
			})
		}
		if cfg.DynamoDB.MaxItemBytes < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.dynamodb.max_item_bytes",
				Message: "max item bytes must be non-negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q (must be 'memory', 'sqlite', or 'dynamodb')", cfg.Backend),
		})
	}

	return errs
}

// validateHistory validates history service limits.
func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError

	if cfg.OperationTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "history.operation_timeout",
			Message: "operation timeout must be positive",
		})
	}

	return errs
}

// validateRetention validates retention configuration.
func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "retention.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.ArchiveBeforeDelete && cfg.ArchivePath == "" {
		errs = append(errs, FieldError{
			Field:   "retention.archive_path",
			Message: "archive path is required when archive_before_delete is enabled",
		})
	}

	return errs
}

// validateTelemetry validates logging and metrics configuration.
func validateTelemetry(cfg *Config) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be 'debug', 'info', 'warn', or 'error')", cfg.Logging.Level),
		})
	}

	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be 'json' or 'text')", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.ListenAddress == "" {
			errs = append(errs, FieldError{
				Field:   "metrics.listen_address",
				Message: "listen address is required when metrics are enabled",
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "metrics.path",
				Message: "path must start with '/'",
			})
		}
	}

	return errs
}

// validateDataSources validates the static data source list.
func validateDataSources(sources []DataSourceConfig) []FieldError {
	var errs []FieldError

	uids := make(map[string]bool, len(sources))
	names := make(map[string]bool, len(sources))
	for i, ds := range sources {
		prefix := fmt.Sprintf("datasources[%d]", i)
		if ds.UID == "" {
			errs = append(errs, FieldError{Field: prefix + ".uid", Message: "uid is required"})
		} else if uids[ds.UID] {
			errs = append(errs, FieldError{Field: prefix + ".uid", Message: fmt.Sprintf("duplicate uid %q", ds.UID)})
		}
		if ds.Name == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "name is required"})
		} else if names[ds.Name] {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate name %q", ds.Name)})
		}
		uids[ds.UID] = true
		names[ds.Name] = true
	}

	return errs
}
