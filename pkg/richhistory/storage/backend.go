package storage

import (
	"context"
	"errors"

	"mercator-hq/richhistory/pkg/richhistory"
)

var (
	// ErrQuotaExceeded is returned by Commit when the backing store has no
	// room for the new entry. Nothing is written when it is returned.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrNoSettings is returned by LoadSettings when nothing was saved yet.
	ErrNoSettings = errors.New("no settings stored")
)

// SettingsStore persists the settings document.
type SettingsStore interface {
	// LoadSettings returns the saved settings or ErrNoSettings.
	LoadSettings(ctx context.Context) (richhistory.Settings, error)

	// SaveSettings replaces the saved settings.
	SaveSettings(ctx context.Context, settings richhistory.Settings) error
}

// Backend is the persistence layer underneath the rich history service.
// It stores entries verbatim and enforces no policy of its own beyond its
// physical quota. Implementations must be safe for concurrent use.
type Backend interface {
	SettingsStore

	// Name identifies the backend type ("memory", "sqlite", "dynamodb").
	Name() string

	// List returns every stored entry in no particular order.
	List(ctx context.Context) ([]richhistory.Entry, error)

	// Get returns one entry or a *richhistory.NotFoundError.
	Get(ctx context.Context, id string) (richhistory.Entry, error)

	// Commit inserts entry and removes the entries in evict as one atomic
	// step. Returns ErrQuotaExceeded (wrapped) if the result does not fit.
	Commit(ctx context.Context, entry richhistory.Entry, evict []string) error

	// Update replaces the mutable fields of an existing entry.
	// Returns a *richhistory.NotFoundError if the entry does not exist.
	Update(ctx context.Context, entry richhistory.Entry) error

	// Delete removes the given entries and returns how many existed.
	Delete(ctx context.Context, ids ...string) (int64, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}

// Searcher is implemented by backends that can answer searches natively.
// Results must match query.Search for the same entries and filters.
type Searcher interface {
	Search(ctx context.Context, filters richhistory.SearchFilters, uids map[string]bool) (richhistory.Results, error)
}

// notFound builds the error returned for unknown IDs.
func notFound(id string) error {
	return &richhistory.NotFoundError{ID: id}
}
