package query

import (
	"fmt"

	"mercator-hq/richhistory/pkg/richhistory"
)

const (
	// MaxLimit is the maximum number of entries that can be returned in a single page.
	MaxLimit = 10000
)

// ValidSortOrders contains the accepted sort orders.
var ValidSortOrders = map[richhistory.SortOrder]bool{
	richhistory.SortNewest:         true,
	richhistory.SortOldest:         true,
	richhistory.SortDataSourceAsc:  true,
	richhistory.SortDataSourceDesc: true,
}

func invalid(field, format string, args ...any) error {
	return &richhistory.ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Kind:    richhistory.ErrInvalidFilters,
	}
}

// Validate validates search filters and returns an error wrapping
// richhistory.ErrInvalidFilters if any parameter is invalid.
func Validate(f richhistory.SearchFilters) error {
	// Validate limit
	if f.Limit < 0 {
		return invalid("limit", "must be >= 0, got %d", f.Limit)
	}
	if f.Limit > MaxLimit {
		return invalid("limit", "must be <= %d, got %d", MaxLimit, f.Limit)
	}

	// Validate offset
	if f.Offset < 0 {
		return invalid("offset", "must be >= 0, got %d", f.Offset)
	}

	// Validate sort order
	if f.Sort != "" && !ValidSortOrders[f.Sort] {
		return invalid("sort", "invalid sort order: %s", f.Sort)
	}

	// Validate time range
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return invalid("from", "from must not be after to")
	}

	// Validate data source references
	for i, ref := range f.DataSources {
		if ref.IsZero() {
			return invalid(fmt.Sprintf("datasources[%d]", i), "empty data source reference")
		}
	}

	return nil
}

// ApplyDefaults fills in the default sort order.
func ApplyDefaults(f *richhistory.SearchFilters) {
	if f.Sort == "" {
		f.Sort = richhistory.SortNewest
	}
}
