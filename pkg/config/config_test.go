package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "richhistory.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// TestLoadConfig_ValidFile tests loading a complete configuration file.
func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: "dynamodb"
  dynamodb:
    table: "history"
    region: "eu-west-1"
    endpoint: "http://localhost:8000"
history:
  max_entries: 500
  operation_timeout: "2s"
settings:
  file: "settings.yaml"
  watch: true
retention:
  schedule: "0 */6 * * *"
  archive_before_delete: true
logging:
  level: "debug"
  format: "json"
datasources:
  - uid: "prom"
    name: "Prometheus"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Storage.Backend != "dynamodb" || cfg.Storage.DynamoDB.Table != "history" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.History.MaxEntries != 500 {
		t.Errorf("expected max entries 500, got %d", cfg.History.MaxEntries)
	}
	if cfg.History.OperationTimeout != 2*time.Second {
		t.Errorf("expected operation timeout 2s, got %v", cfg.History.OperationTimeout)
	}
	if !cfg.Settings.Watch || cfg.Settings.File != "settings.yaml" {
		t.Errorf("unexpected settings config %+v", cfg.Settings)
	}
	if cfg.Retention.ArchivePath != DefaultRetentionArchivePath {
		t.Errorf("expected default archive path, got %q", cfg.Retention.ArchivePath)
	}
	if cfg.Storage.DynamoDB.MaxItemBytes != DefaultDynamoDBMaxItemBytes {
		t.Errorf("expected default max item bytes, got %d", cfg.Storage.DynamoDB.MaxItemBytes)
	}
	if len(cfg.DataSources) != 1 || cfg.DataSources[0].Name != "Prometheus" {
		t.Errorf("unexpected datasources %+v", cfg.DataSources)
	}
}

// TestLoadConfig_Errors tests missing, malformed and invalid files.
func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	if _, err := LoadConfig(writeConfig(t, "storage: [")); err == nil {
		t.Error("expected parse error")
	}

	_, err := LoadConfig(writeConfig(t, "storage:\n  backend: redis\n"))
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Errors[0].Field != "storage.backend" {
		t.Errorf("expected storage.backend error, got %v", verr.Errors)
	}
}

// TestLoadOptional tests that a missing file falls back to defaults.
func TestLoadOptional(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional() failed: %v", err)
	}
	if cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("expected default backend, got %q", cfg.Storage.Backend)
	}

	if _, err := LoadConfigWithEnvOverrides(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file without optional")
	}
}

// TestEnvOverrides tests that environment variables take precedence.
func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: sqlite\nhistory:\n  max_entries: 50\n")

	t.Setenv("RICHHISTORY_STORAGE_BACKEND", "memory")
	t.Setenv("RICHHISTORY_STORAGE_MEMORY_MAX_BYTES", "2048")
	t.Setenv("RICHHISTORY_STORAGE_SQLITE_WAL_MODE", "false")
	t.Setenv("RICHHISTORY_HISTORY_MAX_ENTRIES", "-1")
	t.Setenv("RICHHISTORY_HISTORY_OPERATION_TIMEOUT", "250ms")
	t.Setenv("RICHHISTORY_LOGGING_LEVEL", "warn")
	t.Setenv("RICHHISTORY_SETTINGS_WATCH", "not-a-bool")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}

	if cfg.Storage.Backend != "memory" || cfg.Storage.Memory.MaxBytes != 2048 {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Storage.SQLite.WALEnabled() {
		t.Error("expected WAL disabled by env")
	}
	if cfg.History.MaxEntries != -1 {
		t.Errorf("expected unlimited entries, got %d", cfg.History.MaxEntries)
	}
	if cfg.History.OperationTimeout != 250*time.Millisecond {
		t.Errorf("expected 250ms timeout, got %v", cfg.History.OperationTimeout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn level, got %q", cfg.Logging.Level)
	}
	if cfg.Settings.Watch {
		t.Error("unparsable bool should be ignored")
	}
}

// TestEnvOverrides_Revalidated tests that overrides are validated.
func TestEnvOverrides_Revalidated(t *testing.T) {
	t.Setenv("RICHHISTORY_LOGGING_FORMAT", "xml")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Errorf("expected logging.format error, got %v", err)
	}
}

// TestApplyDefaults tests default values and idempotence.
func TestApplyDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Storage.SQLite.Path != DefaultSQLitePath {
		t.Errorf("expected default sqlite path, got %q", cfg.Storage.SQLite.Path)
	}
	if !cfg.Storage.SQLite.WALEnabled() {
		t.Error("expected WAL enabled by default")
	}
	if cfg.History.MaxEntries != DefaultMaxEntries {
		t.Errorf("expected %d max entries, got %d", DefaultMaxEntries, cfg.History.MaxEntries)
	}
	if cfg.Retention.Schedule != DefaultRetentionSchedule {
		t.Errorf("expected default schedule, got %q", cfg.Retention.Schedule)
	}
	if cfg.Metrics.Enabled {
		t.Error("expected metrics disabled by default")
	}

	cfg.History.MaxEntries = 7
	ApplyDefaults(cfg)
	if cfg.History.MaxEntries != 7 {
		t.Error("ApplyDefaults overwrote an explicit value")
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
