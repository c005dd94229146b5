// Package settings persists rich history settings in a YAML file and
// watches that file for external edits.
//
// A FileStore can replace the backend as the service's settings store, which
// lets operators manage settings with configuration tooling. The Watcher
// reports every valid change so long-running processes pick it up without a
// restart.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/storage"
)

// FileStore implements storage.SettingsStore on a YAML file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ storage.SettingsStore = (*FileStore)(nil)

// NewFileStore creates a settings store backed by path. The file does not need to exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

// Path returns the settings file path.
func (f *FileStore) Path() string {
	return f.path
}

// LoadSettings implements storage.SettingsStore. A missing or empty file
// returns storage.ErrNoSettings.
func (f *FileStore) LoadSettings(ctx context.Context) (richhistory.Settings, error) {
	if err := ctx.Err(); err != nil {
		return richhistory.Settings{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return richhistory.Settings{}, storage.ErrNoSettings
	}
	if err != nil {
		return richhistory.Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	if len(data) == 0 {
		return richhistory.Settings{}, storage.ErrNoSettings
	}

	settings := richhistory.DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return richhistory.Settings{}, fmt.Errorf("failed to parse settings file %s: %w", f.path, err)
	}
	if err := settings.Validate(); err != nil {
		return richhistory.Settings{}, fmt.Errorf("settings file %s: %w", f.path, err)
	}
	return settings, nil
}

// SaveSettings implements storage.SettingsStore. The file is replaced atomically.
func (f *FileStore) SaveSettings(ctx context.Context, settings richhistory.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
