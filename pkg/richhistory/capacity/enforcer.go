// Package capacity decides which rich history entries to evict when the
// store grows past its configured limit.
//
// Only non-starred entries are ever evicted, oldest first, and never the
// entry that was just inserted. When every remaining entry is starred the
// store is allowed to exceed its limit; the caller is told so through
// Plan.Exceeded and surfaces a LimitExceeded warning.
package capacity

import (
	"sort"

	"mercator-hq/richhistory/pkg/richhistory"
)

// Plan is the outcome of a capacity check.
type Plan struct {
	// Victims are the IDs to evict, oldest first.
	Victims []string

	// Exceeded is true when the collection was above the limit after the
	// insert, whether or not eviction brought it back down.
	Exceeded bool

	// Remaining is the entry count after the victims are removed.
	Remaining int
}

// Enforcer selects eviction victims for a fixed entry limit.
type Enforcer struct {
	// Limit is the maximum number of entries. Zero or negative means unlimited.
	Limit int
}

// NewEnforcer creates an enforcer for the given limit.
func NewEnforcer(limit int) *Enforcer {
	return &Enforcer{Limit: limit}
}

// Unlimited reports whether the enforcer never evicts.
func (e *Enforcer) Unlimited() bool {
	return e.Limit <= 0
}

// Plan computes the minimal set of evictions for entries, which must already
// include the tentatively inserted entry identified by inserted.
func (e *Enforcer) Plan(entries []richhistory.Entry, inserted string) Plan {
	plan := Plan{Remaining: len(entries)}
	if e.Unlimited() || len(entries) <= e.Limit {
		return plan
	}
	plan.Exceeded = true

	candidates := make([]richhistory.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Starred || entry.ID == inserted {
			continue
		}
		candidates = append(candidates, entry)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	excess := len(entries) - e.Limit
	if excess > len(candidates) {
		excess = len(candidates)
	}

	plan.Victims = make([]string, 0, excess)
	for _, victim := range candidates[:excess] {
		plan.Victims = append(plan.Victims, victim.ID)
	}
	plan.Remaining = len(entries) - len(plan.Victims)
	return plan
}
