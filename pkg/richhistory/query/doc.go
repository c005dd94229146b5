// Package query provides filter validation and in-memory search for rich
// history entries.
//
// # Filter Validation
//
// Validate checks search filters before execution:
//
//   - Limit >= 0 and <= MaxLimit (0 means no limit)
//   - Offset >= 0
//   - Sort order is one of newest, oldest, datasource_asc, datasource_desc
//   - From is not after To
//   - Data source references are not empty
//
// Failures wrap richhistory.ErrInvalidFilters.
//
// # Search
//
// Search applies all filters conjunctively:
//
//   - Search text: case-insensitive substring of the canonical payload
//   - Data sources: the entry's UID is in the resolved set
//   - StarredOnly: only starred entries
//   - From/To: inclusive creation time range
//
// Results are newest first unless another order is requested; Total is
// the match count before pagination.
//
// # Basic Usage
//
//	filters := richhistory.SearchFilters{Search: "rate(", Limit: 50}
//	if err := query.Validate(filters); err != nil {
//	    return err
//	}
//	results := query.Search(entries, filters, nil)
//
// Backends that can search natively (see storage.Searcher) must return the
// same results as Search for the same input.
package query
