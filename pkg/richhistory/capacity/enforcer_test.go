package capacity

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"mercator-hq/richhistory/pkg/richhistory"
)

func makeEntries(n int, starred bool) []richhistory.Entry {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]richhistory.Entry, n)
	for i := range entries {
		entries[i] = richhistory.Entry{
			ID:        fmt.Sprintf("e%02d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Starred:   starred,
		}
	}
	return entries
}

func withInserted(entries []richhistory.Entry) ([]richhistory.Entry, string) {
	inserted := richhistory.Entry{
		ID:        "new",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	return append(entries, inserted), inserted.ID
}

// TestEnforcer_UnderLimit tests that no eviction happens below the limit.
func TestEnforcer_UnderLimit(t *testing.T) {
	entries, inserted := withInserted(makeEntries(3, false))
	plan := NewEnforcer(4).Plan(entries, inserted)

	if plan.Exceeded {
		t.Error("Expected Exceeded to be false")
	}
	if len(plan.Victims) != 0 {
		t.Errorf("Expected no victims, got %v", plan.Victims)
	}
	if plan.Remaining != 4 {
		t.Errorf("Expected 4 remaining, got %d", plan.Remaining)
	}
}

// TestEnforcer_EvictsOldest tests that the oldest non-starred entry goes first.
func TestEnforcer_EvictsOldest(t *testing.T) {
	entries, inserted := withInserted(makeEntries(3, false))
	plan := NewEnforcer(3).Plan(entries, inserted)

	if !plan.Exceeded {
		t.Error("Expected Exceeded to be true")
	}
	if !reflect.DeepEqual(plan.Victims, []string{"e00"}) {
		t.Errorf("Expected victims [e00], got %v", plan.Victims)
	}
	if plan.Remaining != 3 {
		t.Errorf("Expected 3 remaining, got %d", plan.Remaining)
	}
}

// TestEnforcer_SkipsStarred tests that starred entries are never victims.
func TestEnforcer_SkipsStarred(t *testing.T) {
	entries := makeEntries(4, false)
	entries[0].Starred = true
	entries[1].Starred = true
	entries, inserted := withInserted(entries)

	plan := NewEnforcer(3).Plan(entries, inserted)
	if !reflect.DeepEqual(plan.Victims, []string{"e02", "e03"}) {
		t.Errorf("Expected victims [e02 e03], got %v", plan.Victims)
	}
	if plan.Remaining != 3 {
		t.Errorf("Expected 3 remaining, got %d", plan.Remaining)
	}
}

// TestEnforcer_AllStarred tests that the limit may be exceeded when nothing is evictable.
func TestEnforcer_AllStarred(t *testing.T) {
	entries, inserted := withInserted(makeEntries(3, true))
	plan := NewEnforcer(3).Plan(entries, inserted)

	if !plan.Exceeded {
		t.Error("Expected Exceeded to be true")
	}
	if len(plan.Victims) != 0 {
		t.Errorf("Expected no victims, got %v", plan.Victims)
	}
	if plan.Remaining != 4 {
		t.Errorf("Expected 4 remaining, got %d", plan.Remaining)
	}
}

// TestEnforcer_NeverEvictsInserted tests that the new entry survives even when it is the only candidate.
func TestEnforcer_NeverEvictsInserted(t *testing.T) {
	entries, inserted := withInserted(makeEntries(2, true))
	plan := NewEnforcer(1).Plan(entries, inserted)

	for _, id := range plan.Victims {
		if id == inserted {
			t.Fatal("Inserted entry selected as victim")
		}
	}
	if plan.Remaining != 3 {
		t.Errorf("Expected 3 remaining, got %d", plan.Remaining)
	}
}

// TestEnforcer_TieBreakByID tests deterministic ordering for equal timestamps.
func TestEnforcer_TieBreakByID(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []richhistory.Entry{
		{ID: "b", CreatedAt: ts},
		{ID: "a", CreatedAt: ts},
	}
	entries, inserted := withInserted(entries)

	plan := NewEnforcer(2).Plan(entries, inserted)
	if !reflect.DeepEqual(plan.Victims, []string{"a"}) {
		t.Errorf("Expected victims [a], got %v", plan.Victims)
	}
}

// TestEnforcer_Unlimited tests that a non-positive limit disables eviction.
func TestEnforcer_Unlimited(t *testing.T) {
	entries, inserted := withInserted(makeEntries(50, false))
	for _, limit := range []int{0, -1} {
		plan := NewEnforcer(limit).Plan(entries, inserted)
		if plan.Exceeded || len(plan.Victims) != 0 {
			t.Errorf("Limit %d: expected no eviction, got %+v", limit, plan)
		}
	}
}
