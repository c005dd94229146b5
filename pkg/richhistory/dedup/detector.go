// Package dedup detects duplicate rich history entries.
//
// Two entries are duplicates when they belong to the same data source and
// their query payloads are structurally equal. The store keeps payloads in
// canonical form (see richhistory.CanonicalPayload), so key order and
// whitespace never cause a miss and a stored payload is compared byte for
// byte without being decoded again.
package dedup

import (
	"bytes"

	"mercator-hq/richhistory/pkg/richhistory"
)

// Detector finds duplicates of a candidate entry.
type Detector struct{}

// New creates a duplicate detector.
func New() *Detector {
	return &Detector{}
}

// Find returns the first entry in existing that duplicates candidate, or nil.
// The candidate and the existing entries must already be normalized:
// canonical UID and canonical payload.
func (d *Detector) Find(candidate richhistory.Entry, existing []richhistory.Entry) *richhistory.Entry {
	for i := range existing {
		e := &existing[i]
		if e.DataSourceUID == candidate.DataSourceUID && bytes.Equal(e.Queries, candidate.Queries) {
			return e
		}
	}
	return nil
}

// IsDuplicate reports whether a and b are duplicates of each other. Unlike
// Find it accepts payloads in any formatting.
func (d *Detector) IsDuplicate(a, b richhistory.Entry) bool {
	return a.DataSourceUID == b.DataSourceUID && richhistory.PayloadEqual(a.Queries, b.Queries)
}
