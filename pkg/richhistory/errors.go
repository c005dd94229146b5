package richhistory

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Storage implementations. Match them with errors.Is;
// the concrete error values carry more detail.
var (
	// ErrStorageFull is returned when the backing store cannot accept a new
	// entry even after eviction.
	ErrStorageFull = errors.New("rich history storage is full")

	// ErrDuplicatedEntry is returned when an equivalent entry already exists.
	ErrDuplicatedEntry = errors.New("rich history entry already exists")

	// ErrNotFound is returned when an operation targets an unknown entry ID.
	ErrNotFound = errors.New("rich history entry not found")

	// ErrDataSourceNotFound is returned when a data source reference cannot be resolved.
	ErrDataSourceNotFound = errors.New("data source not found")

	// ErrInvalidEntry is returned when a new entry is malformed.
	ErrInvalidEntry = errors.New("invalid rich history entry")

	// ErrInvalidFilters is returned when search filters are malformed.
	ErrInvalidFilters = errors.New("invalid search filters")

	// ErrInvalidSettings is returned when settings fail validation.
	ErrInvalidSettings = errors.New("invalid rich history settings")
)

// DuplicateError reports which stored entry a rejected add duplicates.
type DuplicateError struct {
	ExistingID string
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("rich history entry already exists [id=%s]", e.ExistingID)
}

// Is reports whether target is ErrDuplicatedEntry.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicatedEntry
}

// NotFoundError reports the entry ID that could not be found.
type NotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rich history entry not found [id=%s]", e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError describes one invalid field of an entry, filter set or settings value.
type ValidationError struct {
	Field   string
	Message string
	Kind    error // ErrInvalidEntry, ErrInvalidFilters or ErrInvalidSettings
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.Message)
}

// Unwrap returns the sentinel classifying the failure.
func (e *ValidationError) Unwrap() error {
	if e.Kind == nil {
		return ErrInvalidSettings
	}
	return e.Kind
}

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("memory", "sqlite", "dynamodb")
	Operation string // Operation that failed ("list", "commit", "update", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// WarningType classifies a non-fatal condition attached to a successful add.
type WarningType string

// WarningLimitExceeded is raised when an add evicted entries or left the
// store above its configured limit.
const WarningLimitExceeded WarningType = "limit_exceeded"

// Warning is a non-fatal condition reported alongside a successful add.
type Warning struct {
	Type    WarningType `json:"type"`
	Message string      `json:"message"`
	Evicted []string    `json:"evicted,omitempty"` // IDs removed to make room
}

// NewLimitExceededWarning builds the warning raised when the history limit is reached.
func NewLimitExceededWarning(limit int, evicted []string) *Warning {
	return &Warning{
		Type:    WarningLimitExceeded,
		Message: fmt.Sprintf("Query history reached the limit of %d. Old, not-starred items have been removed.", limit),
		Evicted: evicted,
	}
}

// AddResult is the outcome of a successful add.
type AddResult struct {
	Entry   Entry    `json:"rich_history_query"`
	Warning *Warning `json:"warning,omitempty"`
}
