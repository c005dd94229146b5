package richhistory

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one stored record of a previously executed query and its metadata.
// ID and CreatedAt are assigned by the store and never change afterwards.
type Entry struct {
	// Identity
	ID        string    `json:"id"`         // UUID v7, assigned on creation
	CreatedAt time.Time `json:"created_at"` // Assigned on creation, UTC, millisecond precision

	// Origin
	DataSourceUID  string `json:"datasource_uid"`  // Canonical data source identifier
	DataSourceName string `json:"datasource_name"` // Display name at the time of creation

	// Payload
	Queries json.RawMessage `json:"queries"` // Canonical JSON, see CanonicalPayload

	// Mutable metadata
	Starred bool    `json:"starred"`
	Comment *string `json:"comment,omitempty"` // nil means no comment
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := e
	if e.Queries != nil {
		out.Queries = append(json.RawMessage(nil), e.Queries...)
	}
	if e.Comment != nil {
		c := *e.Comment
		out.Comment = &c
	}
	return out
}

// HasComment reports whether the entry carries a comment.
func (e Entry) HasComment() bool {
	return e.Comment != nil
}

// NewEntry contains the caller-supplied fields of an entry. It deliberately
// has no ID or CreatedAt: the store assigns both.
type NewEntry struct {
	DataSource DataSourceRef   `json:"datasource"`
	Queries    json.RawMessage `json:"queries"`
	Starred    bool            `json:"starred,omitempty"`
	Comment    *string         `json:"comment,omitempty"`
}

// SortOrder selects the ordering of search results.
type SortOrder string

const (
	// SortNewest orders by creation time, newest first (default).
	SortNewest SortOrder = "newest"
	// SortOldest orders by creation time, oldest first.
	SortOldest SortOrder = "oldest"
	// SortDataSourceAsc orders by data source name A-Z, newest first within a source.
	SortDataSourceAsc SortOrder = "datasource_asc"
	// SortDataSourceDesc orders by data source name Z-A, newest first within a source.
	SortDataSourceDesc SortOrder = "datasource_desc"
)

// SearchFilters defines filter parameters for retrieving entries.
// All provided filters must hold for an entry to match.
type SearchFilters struct {
	// Free text, matched case-insensitively against the canonical payload
	Search string `json:"search,omitempty"`

	// Restrict to these data sources (an entry matches if it belongs to any of them)
	DataSources []DataSourceRef `json:"datasources,omitempty"`

	// Only starred entries
	StarredOnly bool `json:"starred_only,omitempty"`

	// Creation time range, both ends inclusive
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	// Sorting
	Sort SortOrder `json:"sort,omitempty"`

	// Pagination; Limit 0 returns every matching entry
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Results is a page of entries plus the number of matches before pagination.
type Results struct {
	RichHistory []Entry `json:"rich_history"`
	Total       int     `json:"total"`
}

// Settings is the user-facing configuration of the history store.
// It is read and replaced as a whole.
type Settings struct {
	// RetentionPeriodDays is how long non-starred entries are kept. 0 keeps them forever.
	RetentionPeriodDays int `json:"retention_period_days" yaml:"retention_period_days"`

	// StarredTabAsFirstTab opens the starred view first.
	StarredTabAsFirstTab bool `json:"starred_tab_as_first_tab" yaml:"starred_tab_as_first_tab"`

	// ActiveDatasourcesOnly limits browsing to the currently active data sources.
	ActiveDatasourcesOnly bool `json:"active_datasources_only" yaml:"active_datasources_only"`

	// LastUsedDatasourceFilters remembers the last data source filter selection.
	LastUsedDatasourceFilters []string `json:"last_used_datasource_filters,omitempty" yaml:"last_used_datasource_filters,omitempty"`
}

// DefaultRetentionPeriodDays is the retention period used when no settings were saved.
const DefaultRetentionPeriodDays = 14

// DefaultSettings returns the settings used when nothing has been stored yet.
func DefaultSettings() Settings {
	return Settings{
		RetentionPeriodDays: DefaultRetentionPeriodDays,
	}
}

// Validate checks that the settings are well-formed.
func (s Settings) Validate() error {
	if s.RetentionPeriodDays < 0 {
		return &ValidationError{Field: "retention_period_days", Message: "must be >= 0", Kind: ErrInvalidSettings}
	}
	return nil
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	out := s
	if s.LastUsedDatasourceFilters != nil {
		out.LastUsedDatasourceFilters = append([]string(nil), s.LastUsedDatasourceFilters...)
	}
	return out
}

// Storage is the capability every rich history backend variant provides.
// Implementations must be safe for concurrent use.
type Storage interface {
	// GetRichHistory returns the entries matching filters and the total match count.
	GetRichHistory(ctx context.Context, filters SearchFilters) (Results, error)

	// AddToRichHistory creates a new entry with a fresh ID and creation time.
	// Returns ErrDuplicatedEntry or ErrStorageFull on failure; a successful add
	// that evicted entries reports it through AddResult.Warning.
	AddToRichHistory(ctx context.Context, entry NewEntry) (AddResult, error)

	// DeleteAll removes every entry, starred ones included.
	DeleteAll(ctx context.Context) error

	// DeleteRichHistory removes one entry. Returns ErrNotFound for unknown IDs.
	DeleteRichHistory(ctx context.Context, id string) error

	// UpdateStarred sets the starred flag. Returns ErrNotFound for unknown IDs.
	UpdateStarred(ctx context.Context, id string, starred bool) (Entry, error)

	// UpdateComment sets or, with a nil comment, clears the comment.
	// Returns ErrNotFound for unknown IDs.
	UpdateComment(ctx context.Context, id string, comment *string) (Entry, error)

	// GetSettings returns the current settings.
	GetSettings(ctx context.Context) (Settings, error)

	// UpdateSettings replaces the settings atomically.
	UpdateSettings(ctx context.Context, settings Settings) error
}
