package query

import (
	"sort"
	"strings"

	"mercator-hq/richhistory/pkg/richhistory"
)

// Search filters, sorts and paginates entries in memory.
//
// uids is the resolved data source restriction: nil means no restriction,
// a non-nil empty set matches nothing. Filters must already be validated.
// The returned entries are clones; Total counts matches before pagination.
func Search(entries []richhistory.Entry, f richhistory.SearchFilters, uids map[string]bool) richhistory.Results {
	if uids != nil && len(uids) == 0 {
		return richhistory.Results{RichHistory: []richhistory.Entry{}}
	}

	needle := strings.ToLower(f.Search)

	matched := make([]richhistory.Entry, 0, len(entries))
	for _, e := range entries {
		if Matches(e, f, uids, needle) {
			matched = append(matched, e)
		}
	}

	SortEntries(matched, f.Sort)

	total := len(matched)
	page := Paginate(matched, f.Limit, f.Offset)

	out := make([]richhistory.Entry, len(page))
	for i, e := range page {
		out[i] = e.Clone()
	}
	return richhistory.Results{RichHistory: out, Total: total}
}

// Matches reports whether an entry satisfies every filter. needle must be
// the lower-cased search text.
func Matches(e richhistory.Entry, f richhistory.SearchFilters, uids map[string]bool, needle string) bool {
	if f.StarredOnly && !e.Starred {
		return false
	}
	if uids != nil && !uids[e.DataSourceUID] {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}
	if needle != "" && !strings.Contains(strings.ToLower(string(e.Queries)), needle) {
		return false
	}
	return true
}

// SortEntries orders entries in place. An empty order sorts newest first.
// Ties on the primary key fall back to creation time, newest first, then ID.
func SortEntries(entries []richhistory.Entry, order richhistory.SortOrder) {
	newestFirst := func(a, b richhistory.Entry) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}

	var less func(a, b richhistory.Entry) bool
	switch order {
	case richhistory.SortOldest:
		less = func(a, b richhistory.Entry) bool { return newestFirst(b, a) }
	case richhistory.SortDataSourceAsc:
		less = func(a, b richhistory.Entry) bool {
			if a.DataSourceName != b.DataSourceName {
				return a.DataSourceName < b.DataSourceName
			}
			return newestFirst(a, b)
		}
	case richhistory.SortDataSourceDesc:
		less = func(a, b richhistory.Entry) bool {
			if a.DataSourceName != b.DataSourceName {
				return a.DataSourceName > b.DataSourceName
			}
			return newestFirst(a, b)
		}
	default:
		less = newestFirst
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return less(entries[i], entries[j])
	})
}

// Paginate returns the window [offset, offset+limit) of entries.
// A zero limit returns everything from offset on.
func Paginate(entries []richhistory.Entry, limit, offset int) []richhistory.Entry {
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
