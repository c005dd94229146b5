package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/export"
)

// Target is the store the pruner operates on. *service.Service implements it.
type Target interface {
	GetSettings(ctx context.Context) (richhistory.Settings, error)
	ExpiredBefore(ctx context.Context, cutoff time.Time) ([]richhistory.Entry, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config contains configuration for the retention pruner.
type Config struct {
	// Schedule is a cron expression for scheduled pruning.
	// Empty disables the scheduler.
	Schedule string

	// ArchiveBeforeDelete exports expired entries before deleting them.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory archives are written to.
	ArchivePath string

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		Schedule:            "0 3 * * *",
		ArchiveBeforeDelete: false,
		ArchivePath:         "data/archives/",
	}
}

// Pruner deletes entries older than the configured retention period.
type Pruner struct {
	target    Target
	config    *Config
	now       func() time.Time
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a new retention pruner.
func NewPruner(target Target, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	pruner := &Pruner{
		target: target,
		config: config,
		now:    now,
		logger: slog.Default().With("component", "richhistory.retention"),
	}
	pruner.scheduler = NewScheduler(pruner)
	return pruner
}

// Cutoff returns the creation time before which entries expire, or false
// when retention is disabled.
func Cutoff(now time.Time, days int) (time.Time, bool) {
	if days <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -days), true
}

// Prune deletes expired entries and returns how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	settings, err := p.target.GetSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read retention period: %w", err)
	}

	cutoff, ok := Cutoff(p.now(), settings.RetentionPeriodDays)
	if !ok {
		p.logger.Debug("retention disabled, nothing pruned")
		return 0, nil
	}

	p.logger.Debug("pruning by age",
		"cutoff_time", cutoff,
		"retention_days", settings.RetentionPeriodDays,
	)

	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, cutoff); err != nil {
			return 0, fmt.Errorf("archive failed: %w", err)
		}
	}

	deleted, err := p.target.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("prune failed: %w", err)
	}

	if deleted > 0 {
		p.logger.Info("history pruning completed",
			"deleted_count", deleted,
			"retention_days", settings.RetentionPeriodDays,
		)
	}
	return deleted, nil
}

// archive exports the entries that are about to expire.
func (p *Pruner) archive(ctx context.Context, cutoff time.Time) error {
	entries, err := p.target.ExpiredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list expired entries: %w", err)
	}
	if len(entries) == 0 {
		p.logger.Debug("no entries to archive")
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	archiveFile := filepath.Join(p.config.ArchivePath,
		fmt.Sprintf("richhistory-%s.json", p.now().UTC().Format("2006-01-02-150405")))
	f, err := os.Create(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, entries, f); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync archive file: %w", err)
	}

	p.logger.Info("expired entries archived",
		"archive_file", archiveFile,
		"entry_count", len(entries),
	)
	return nil
}

// Start starts the pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled prune.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
