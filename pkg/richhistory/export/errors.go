package export

import "fmt"

// ExportError reports a failed export.
type ExportError struct {
	Format  string
	Entries int
	Cause   error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s failed after %d entries: %v", e.Format, e.Entries, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new export error.
func NewExportError(format string, entries int, cause error) *ExportError {
	return &ExportError{Format: format, Entries: entries, Cause: cause}
}
