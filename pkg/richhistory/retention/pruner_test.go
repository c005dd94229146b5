package retention

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/datasource"
	"mercator-hq/richhistory/pkg/richhistory/service"
	"mercator-hq/richhistory/pkg/richhistory/storage"
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// seed creates a service holding entries aged 20, 10 and 2 days relative to
// base+20d, with the 20-day-old one starred.
func seed(t *testing.T) (*service.Service, *clock) {
	t.Helper()
	clk := &clock{}
	svc := service.New(storage.NewMemoryBackend(nil), datasource.NameConvention{}, &service.Config{
		MaxEntries: 100,
		Metrics:    service.NewMetrics(prometheus.NewRegistry()),
		Now:        clk.Now,
	})

	ctx := context.Background()
	for i, c := range []struct {
		ageDays int
		starred bool
		payload string
	}{
		{20, true, `[{"expr":"starred-old"}]`},
		{19, false, `[{"expr":"old"}]`},
		{10, false, `[{"expr":"middle"}]`},
		{2, false, `[{"expr":"recent"}]`},
	} {
		clk.Set(base.AddDate(0, 0, 20-c.ageDays).Add(time.Duration(i) * time.Second))
		if _, err := svc.AddToRichHistory(ctx, richhistory.NewEntry{
			DataSource: richhistory.RefByUID("prom"),
			Queries:    json.RawMessage(c.payload),
			Starred:    c.starred,
		}); err != nil {
			t.Fatalf("AddToRichHistory() failed: %v", err)
		}
	}
	clk.Set(base.AddDate(0, 0, 20))
	return svc, clk
}

func remaining(t *testing.T, svc *service.Service) int {
	t.Helper()
	res, err := svc.GetRichHistory(context.Background(), richhistory.SearchFilters{})
	if err != nil {
		t.Fatalf("GetRichHistory() failed: %v", err)
	}
	return res.Total
}

// TestPruner_PruneOldEntries tests pruning by the settings retention period.
func TestPruner_PruneOldEntries(t *testing.T) {
	svc, clk := seed(t)
	ctx := context.Background()

	if err := svc.UpdateSettings(ctx, richhistory.Settings{RetentionPeriodDays: 7}); err != nil {
		t.Fatalf("UpdateSettings() failed: %v", err)
	}

	pruner := NewPruner(svc, &Config{Now: clk.Now})
	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted entries, got %d", deleted)
	}
	if got := remaining(t, svc); got != 2 {
		t.Errorf("Expected 2 remaining entries, got %d", got)
	}

	res, _ := svc.GetRichHistory(ctx, richhistory.SearchFilters{StarredOnly: true})
	if res.Total != 1 {
		t.Error("Expected the old starred entry to survive")
	}
}

// TestPruner_DefaultRetention tests that unset settings use the default period.
func TestPruner_DefaultRetention(t *testing.T) {
	svc, clk := seed(t)

	deleted, err := NewPruner(svc, &Config{Now: clk.Now}).Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	// Only the 19-day-old non-starred entry is past 14 days.
	if deleted != 1 {
		t.Errorf("Expected 1 deleted entry, got %d", deleted)
	}
}

// TestPruner_RetentionDisabled tests that a zero retention period prunes nothing.
func TestPruner_RetentionDisabled(t *testing.T) {
	svc, clk := seed(t)
	ctx := context.Background()
	svc.UpdateSettings(ctx, richhistory.Settings{RetentionPeriodDays: 0})

	deleted, err := NewPruner(svc, &Config{Now: clk.Now}).Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected nothing deleted, got %d", deleted)
	}
	if got := remaining(t, svc); got != 4 {
		t.Errorf("Expected 4 remaining entries, got %d", got)
	}
}

// TestPruner_ArchiveBeforeDelete tests that expired entries are archived.
func TestPruner_ArchiveBeforeDelete(t *testing.T) {
	svc, clk := seed(t)
	ctx := context.Background()
	svc.UpdateSettings(ctx, richhistory.Settings{RetentionPeriodDays: 7})

	archiveDir := filepath.Join(t.TempDir(), "archives")
	pruner := NewPruner(svc, &Config{
		ArchiveBeforeDelete: true,
		ArchivePath:         archiveDir,
		Now:                 clk.Now,
	})

	if _, err := pruner.Prune(ctx); err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}

	files, err := os.ReadDir(archiveDir)
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected 1 archive file, got %d", len(files))
	}

	data, _ := os.ReadFile(filepath.Join(archiveDir, files[0].Name()))
	var archived []richhistory.Entry
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatalf("Failed to decode archive: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("Expected 2 archived entries, got %d", len(archived))
	}
	for _, e := range archived {
		if e.Starred {
			t.Error("Starred entry should not be archived")
		}
	}
	if !archived[0].CreatedAt.Before(archived[1].CreatedAt) {
		t.Error("Expected archive ordered oldest first")
	}
}

// TestPruner_NothingToArchive tests that no archive file is written without expired entries.
func TestPruner_NothingToArchive(t *testing.T) {
	svc, clk := seed(t)
	ctx := context.Background()
	svc.UpdateSettings(ctx, richhistory.Settings{RetentionPeriodDays: 30})

	archiveDir := filepath.Join(t.TempDir(), "archives")
	pruner := NewPruner(svc, &Config{ArchiveBeforeDelete: true, ArchivePath: archiveDir, Now: clk.Now})

	if _, err := pruner.Prune(ctx); err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if _, err := os.Stat(archiveDir); !os.IsNotExist(err) {
		t.Error("Expected no archive directory")
	}
}

// TestCutoff tests cutoff computation.
func TestCutoff(t *testing.T) {
	if _, ok := Cutoff(base, 0); ok {
		t.Error("Expected retention 0 to be disabled")
	}
	cutoff, ok := Cutoff(base, 14)
	if !ok || !cutoff.Equal(base.AddDate(0, 0, -14)) {
		t.Errorf("Cutoff() = %v, %v", cutoff, ok)
	}
}
