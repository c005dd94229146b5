package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/query"
)

// entryOverhead approximates the fixed per-entry cost counted against MaxBytes.
const entryOverhead = 64

// MemoryConfig contains configuration for the in-memory backend.
type MemoryConfig struct {
	// MaxBytes caps the approximate payload size of all entries.
	// Zero means unbounded.
	MaxBytes int64
}

// MemoryBackend implements Backend using an in-memory map.
// Contents are lost when the process exits.
type MemoryBackend struct {
	entries  map[string]richhistory.Entry
	settings *richhistory.Settings
	used     int64
	config   MemoryConfig
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewMemoryBackend creates a new in-memory backend. A nil config means no quota.
func NewMemoryBackend(config *MemoryConfig) *MemoryBackend {
	if config == nil {
		config = &MemoryConfig{}
	}
	return &MemoryBackend{
		entries: make(map[string]richhistory.Entry),
		config:  *config,
		logger:  slog.Default().With("component", "richhistory.storage.memory"),
	}
}

// entrySize is the number of bytes an entry counts against the quota.
func entrySize(e richhistory.Entry) int64 {
	n := int64(entryOverhead + len(e.ID) + len(e.DataSourceUID) + len(e.DataSourceName) + len(e.Queries))
	if e.Comment != nil {
		n += int64(len(*e.Comment))
	}
	return n
}

// Name implements Backend.
func (s *MemoryBackend) Name() string {
	return "memory"
}

// List implements Backend.
func (s *MemoryBackend) List(ctx context.Context) ([]richhistory.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]richhistory.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	return out, nil
}

// Get implements Backend.
func (s *MemoryBackend) Get(ctx context.Context, id string) (richhistory.Entry, error) {
	if err := ctx.Err(); err != nil {
		return richhistory.Entry{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return richhistory.Entry{}, notFound(id)
	}
	return e.Clone(), nil
}

// Commit implements Backend. The quota is checked against the state after
// evictions, and nothing changes when it fails.
func (s *MemoryBackend) Commit(ctx context.Context, entry richhistory.Entry, evict []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.ID]; exists {
		return richhistory.NewStorageError(s.Name(), "commit", fmt.Errorf("entry %s already exists", entry.ID))
	}

	used := s.used + entrySize(entry)
	for _, id := range evict {
		if e, ok := s.entries[id]; ok {
			used -= entrySize(e)
		}
	}
	if s.config.MaxBytes > 0 && used > s.config.MaxBytes {
		s.logger.Warn("memory quota exceeded",
			"max_bytes", s.config.MaxBytes,
			"required_bytes", used,
		)
		return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, used, s.config.MaxBytes)
	}

	for _, id := range evict {
		delete(s.entries, id)
	}
	s.entries[entry.ID] = entry.Clone()
	s.used = used

	return nil
}

// Update implements Backend. A comment that would grow the store past
// MaxBytes fails with ErrQuotaExceeded and leaves the entry unchanged.
func (s *MemoryBackend) Update(ctx context.Context, entry richhistory.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.entries[entry.ID]
	if !ok {
		return notFound(entry.ID)
	}

	updated := old.Clone()
	updated.Starred = entry.Starred
	updated.Comment = entry.Clone().Comment

	delta := entrySize(updated) - entrySize(old)
	if s.config.MaxBytes > 0 && delta > 0 && s.used+delta > s.config.MaxBytes {
		s.logger.Warn("memory quota exceeded",
			"max_bytes", s.config.MaxBytes,
			"required_bytes", s.used+delta,
		)
		return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, s.used+delta, s.config.MaxBytes)
	}

	s.used += delta
	s.entries[entry.ID] = updated
	return nil
}

// Delete implements Backend.
func (s *MemoryBackend) Delete(ctx context.Context, ids ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			s.used -= entrySize(e)
			delete(s.entries, id)
			count++
		}
	}
	return count, nil
}

// Clear implements Backend.
func (s *MemoryBackend) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]richhistory.Entry)
	s.used = 0
	return nil
}

// Search implements Searcher.
func (s *MemoryBackend) Search(ctx context.Context, filters richhistory.SearchFilters, uids map[string]bool) (richhistory.Results, error) {
	if err := ctx.Err(); err != nil {
		return richhistory.Results{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]richhistory.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	return query.Search(entries, filters, uids), nil
}

// LoadSettings implements SettingsStore.
func (s *MemoryBackend) LoadSettings(ctx context.Context) (richhistory.Settings, error) {
	if err := ctx.Err(); err != nil {
		return richhistory.Settings{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return richhistory.Settings{}, ErrNoSettings
	}
	return s.settings.Clone(), nil
}

// SaveSettings implements SettingsStore.
func (s *MemoryBackend) SaveSettings(ctx context.Context, settings richhistory.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := settings.Clone()
	s.settings = &saved
	return nil
}

// UsedBytes returns the bytes currently counted against the quota.
func (s *MemoryBackend) UsedBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Close implements Backend.
func (s *MemoryBackend) Close() error {
	return nil
}
