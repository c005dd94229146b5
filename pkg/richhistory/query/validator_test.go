package query

import (
	"errors"
	"testing"
	"time"

	"mercator-hq/richhistory/pkg/richhistory"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		filters richhistory.SearchFilters
		wantErr bool
	}{
		{
			name: "valid filters with everything set",
			filters: richhistory.SearchFilters{
				Search:      "up",
				DataSources: []richhistory.DataSourceRef{richhistory.RefByUID("prom")},
				StarredOnly: true,
				From:        &past,
				To:          &now,
				Sort:        richhistory.SortOldest,
				Limit:       100,
				Offset:      10,
			},
			wantErr: false,
		},
		{
			name:    "empty filters",
			filters: richhistory.SearchFilters{},
			wantErr: false,
		},
		{
			name:    "same from and to",
			filters: richhistory.SearchFilters{From: &now, To: &now},
			wantErr: false,
		},
		{
			name:    "negative limit",
			filters: richhistory.SearchFilters{Limit: -1},
			wantErr: true,
		},
		{
			name:    "limit too large",
			filters: richhistory.SearchFilters{Limit: MaxLimit + 1},
			wantErr: true,
		},
		{
			name:    "negative offset",
			filters: richhistory.SearchFilters{Offset: -5},
			wantErr: true,
		},
		{
			name:    "unknown sort",
			filters: richhistory.SearchFilters{Sort: "random"},
			wantErr: true,
		},
		{
			name:    "from after to",
			filters: richhistory.SearchFilters{From: &now, To: &past},
			wantErr: true,
		},
		{
			name:    "empty data source ref",
			filters: richhistory.SearchFilters{DataSources: []richhistory.DataSourceRef{{}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.filters)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, richhistory.ErrInvalidFilters) {
				t.Errorf("Validate() error = %v, want ErrInvalidFilters", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	f := richhistory.SearchFilters{}
	ApplyDefaults(&f)
	if f.Sort != richhistory.SortNewest {
		t.Errorf("Expected sort %q, got %q", richhistory.SortNewest, f.Sort)
	}

	f = richhistory.SearchFilters{Sort: richhistory.SortOldest}
	ApplyDefaults(&f)
	if f.Sort != richhistory.SortOldest {
		t.Errorf("Expected explicit sort to be kept, got %q", f.Sort)
	}
}
