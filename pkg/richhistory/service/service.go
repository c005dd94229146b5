// Package service implements richhistory.Storage on top of a storage.Backend.
//
// The Service owns every entry: it assigns IDs and creation times, rejects
// duplicates, enforces the entry limit and serializes mutations so readers
// never observe a half-applied add.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/capacity"
	"mercator-hq/richhistory/pkg/richhistory/dedup"
	"mercator-hq/richhistory/pkg/richhistory/query"
	"mercator-hq/richhistory/pkg/richhistory/storage"
)

const (
	// DefaultMaxEntries is the entry limit used when none is configured.
	DefaultMaxEntries = 10000

	// DefaultOperationTimeout bounds every public operation.
	DefaultOperationTimeout = 5 * time.Second
)

// Config contains configuration for the Service.
type Config struct {
	// MaxEntries is the entry limit. Negative disables the limit.
	// Default: 10000
	MaxEntries int

	// OperationTimeout bounds each public operation.
	// Default: 5 seconds
	OperationTimeout time.Duration

	// Settings overrides where settings are persisted. Default: the backend.
	Settings storage.SettingsStore

	// Metrics receives service metrics. Nil disables metrics.
	Metrics *Metrics

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Service implements richhistory.Storage.
type Service struct {
	backend  storage.Backend
	settings storage.SettingsStore
	resolver richhistory.Resolver
	detector *dedup.Detector
	enforcer *capacity.Enforcer
	timeout  time.Duration
	metrics  *Metrics
	now      func() time.Time
	logger   *slog.Logger

	// lastCreated is the newest creation time handed out.
	lastCreated time.Time

	mu sync.RWMutex
}

var _ richhistory.Storage = (*Service)(nil)

// New creates a Service over backend, resolving data sources with resolver.
func New(backend storage.Backend, resolver richhistory.Resolver, config *Config) *Service {
	if config == nil {
		config = &Config{}
	}

	maxEntries := config.MaxEntries
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}
	timeout := config.OperationTimeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	settings := config.Settings
	if settings == nil {
		settings = backend
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	logger := slog.Default().With("component", "richhistory.service")
	logger.Info("rich history service initialized",
		"backend", backend.Name(),
		"max_entries", maxEntries,
		"operation_timeout", timeout,
	)

	return &Service{
		backend:  backend,
		settings: settings,
		resolver: resolver,
		detector: dedup.New(),
		enforcer: capacity.NewEnforcer(maxEntries),
		timeout:  timeout,
		metrics:  config.Metrics,
		now:      now,
		logger:   logger,
	}
}

// MaxEntries returns the configured entry limit; zero or less means unlimited.
func (s *Service) MaxEntries() int {
	return s.enforcer.Limit
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordOperation(operation, start)
	}
}

func (s *Service) recordAdd(result string) {
	if s.metrics != nil {
		s.metrics.RecordAdd(s.backend.Name(), result)
	}
}

// nextCreatedAt returns a millisecond timestamp not earlier than any stored
// entry or any timestamp handed out before. Must be called with mu held.
func (s *Service) nextCreatedAt(existing []richhistory.Entry) time.Time {
	ts := s.now().UTC().Truncate(time.Millisecond)
	floor := s.lastCreated
	for _, e := range existing {
		if e.CreatedAt.After(floor) {
			floor = e.CreatedAt
		}
	}
	if ts.Before(floor) {
		return floor.UTC()
	}
	return ts
}

// AddToRichHistory implements richhistory.Storage.
func (s *Service) AddToRichHistory(ctx context.Context, in richhistory.NewEntry) (richhistory.AddResult, error) {
	defer s.observe("add", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ds, err := s.resolver.Resolve(ctx, in.DataSource)
	if err != nil {
		s.recordAdd("error")
		return richhistory.AddResult{}, err
	}

	payload, err := richhistory.CanonicalPayload(in.Queries)
	if err != nil {
		s.recordAdd("error")
		return richhistory.AddResult{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		s.recordAdd("error")
		return richhistory.AddResult{}, fmt.Errorf("failed to generate entry id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.backend.List(ctx)
	if err != nil {
		s.recordAdd("error")
		return richhistory.AddResult{}, err
	}

	entry := richhistory.Entry{
		ID:             id.String(),
		CreatedAt:      s.nextCreatedAt(existing),
		DataSourceUID:  ds.UID,
		DataSourceName: ds.Name,
		Queries:        payload,
		Starred:        in.Starred,
	}
	if in.Comment != nil {
		c := *in.Comment
		entry.Comment = &c
	}

	if dup := s.detector.Find(entry, existing); dup != nil {
		s.recordAdd("duplicate")
		s.logger.Debug("duplicate entry rejected",
			"existing_id", dup.ID,
			"datasource_uid", ds.UID,
		)
		return richhistory.AddResult{}, &richhistory.DuplicateError{ExistingID: dup.ID}
	}

	plan := s.enforcer.Plan(append(existing, entry), entry.ID)

	if err := s.backend.Commit(ctx, entry, plan.Victims); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			s.recordAdd("storage_full")
			s.logger.Warn("storage full, entry not added",
				"backend", s.backend.Name(),
				"error", err,
			)
			return richhistory.AddResult{}, fmt.Errorf("%w: %w", richhistory.ErrStorageFull, err)
		}
		s.recordAdd("error")
		return richhistory.AddResult{}, err
	}
	s.lastCreated = entry.CreatedAt

	s.recordAdd("added")
	if s.metrics != nil {
		s.metrics.UpdateEntries(plan.Remaining)
	}

	result := richhistory.AddResult{Entry: entry.Clone()}
	if plan.Exceeded {
		result.Warning = richhistory.NewLimitExceededWarning(s.enforcer.Limit, plan.Victims)
		if s.metrics != nil {
			s.metrics.RecordLimitExceeded()
			s.metrics.RecordEvictions(len(plan.Victims))
		}
		s.logger.Info("history limit reached",
			"limit", s.enforcer.Limit,
			"evicted", len(plan.Victims),
			"entries", plan.Remaining,
		)
	}

	s.logger.Debug("entry added", "id", entry.ID, "datasource_uid", ds.UID)
	return result, nil
}

// resolveFilter maps filter references to a UID set. Unknown references are
// dropped; nil means the filter does not restrict data sources.
func (s *Service) resolveFilter(ctx context.Context, refs []richhistory.DataSourceRef) (map[string]bool, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	uids := make(map[string]bool, len(refs))
	for _, ref := range refs {
		ds, err := s.resolver.Resolve(ctx, ref)
		if errors.Is(err, richhistory.ErrDataSourceNotFound) {
			s.logger.Debug("ignoring unknown data source in filter", "ref", ref.String())
			continue
		}
		if err != nil {
			return nil, err
		}
		uids[ds.UID] = true
	}
	return uids, nil
}

// GetRichHistory implements richhistory.Storage.
func (s *Service) GetRichHistory(ctx context.Context, filters richhistory.SearchFilters) (richhistory.Results, error) {
	defer s.observe("search", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := query.Validate(filters); err != nil {
		return richhistory.Results{}, err
	}
	query.ApplyDefaults(&filters)

	uids, err := s.resolveFilter(ctx, filters.DataSources)
	if err != nil {
		return richhistory.Results{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if searcher, ok := s.backend.(storage.Searcher); ok {
		return searcher.Search(ctx, filters, uids)
	}

	entries, err := s.backend.List(ctx)
	if err != nil {
		return richhistory.Results{}, err
	}
	return query.Search(entries, filters, uids), nil
}

// GetEntry returns a single entry by ID.
func (s *Service) GetEntry(ctx context.Context, id string) (richhistory.Entry, error) {
	defer s.observe("get", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.backend.Get(ctx, id)
}

// DeleteAll implements richhistory.Storage.
func (s *Service) DeleteAll(ctx context.Context) error {
	defer s.observe("delete_all", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Clear(ctx); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.UpdateEntries(0)
	}
	s.logger.Info("rich history cleared")
	return nil
}

// DeleteRichHistory implements richhistory.Storage.
func (s *Service) DeleteRichHistory(ctx context.Context, id string) error {
	defer s.observe("delete", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.backend.Delete(ctx, id)
	if err != nil {
		return err
	}
	if count == 0 {
		return &richhistory.NotFoundError{ID: id}
	}
	return nil
}

// update applies mutate to the stored entry and persists the result.
func (s *Service) update(ctx context.Context, operation, id string, mutate func(*richhistory.Entry)) (richhistory.Entry, error) {
	defer s.observe(operation, time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.backend.Get(ctx, id)
	if err != nil {
		return richhistory.Entry{}, err
	}
	mutate(&entry)
	if err := s.backend.Update(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			return richhistory.Entry{}, fmt.Errorf("%w: %w", richhistory.ErrStorageFull, err)
		}
		return richhistory.Entry{}, err
	}
	return entry.Clone(), nil
}

// UpdateStarred implements richhistory.Storage.
func (s *Service) UpdateStarred(ctx context.Context, id string, starred bool) (richhistory.Entry, error) {
	return s.update(ctx, "update_starred", id, func(e *richhistory.Entry) {
		e.Starred = starred
	})
}

// UpdateComment implements richhistory.Storage.
func (s *Service) UpdateComment(ctx context.Context, id string, comment *string) (richhistory.Entry, error) {
	return s.update(ctx, "update_comment", id, func(e *richhistory.Entry) {
		if comment == nil {
			e.Comment = nil
			return
		}
		c := *comment
		e.Comment = &c
	})
}

// GetSettings implements richhistory.Storage.
func (s *Service) GetSettings(ctx context.Context) (richhistory.Settings, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, err := s.settings.LoadSettings(ctx)
	if errors.Is(err, storage.ErrNoSettings) {
		return richhistory.DefaultSettings(), nil
	}
	if err != nil {
		return richhistory.Settings{}, err
	}
	return settings, nil
}

// UpdateSettings implements richhistory.Storage.
func (s *Service) UpdateSettings(ctx context.Context, settings richhistory.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.SaveSettings(ctx, settings.Clone()); err != nil {
		return err
	}
	s.logger.Info("settings updated", "retention_period_days", settings.RetentionPeriodDays)
	return nil
}

// ExpiredBefore returns the non-starred entries created before cutoff.
func (s *Service) ExpiredBefore(ctx context.Context, cutoff time.Time) ([]richhistory.Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	return expired(entries, cutoff), nil
}

func expired(entries []richhistory.Entry, cutoff time.Time) []richhistory.Entry {
	var out []richhistory.Entry
	for _, e := range entries {
		if !e.Starred && e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	query.SortEntries(out, richhistory.SortOldest)
	return out
}

// PruneOlderThan deletes non-starred entries created before cutoff and
// returns how many were removed. Starred entries are kept regardless of age.
func (s *Service) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	defer s.observe("prune", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.backend.List(ctx)
	if err != nil {
		return 0, err
	}

	victims := expired(entries, cutoff)
	if len(victims) == 0 {
		return 0, nil
	}
	ids := make([]string, len(victims))
	for i, e := range victims {
		ids[i] = e.ID
	}

	count, err := s.backend.Delete(ctx, ids...)
	if err != nil {
		return count, err
	}
	if s.metrics != nil {
		s.metrics.RecordPruned(count)
		s.metrics.UpdateEntries(len(entries) - int(count))
	}
	s.logger.Info("pruned expired entries", "cutoff", cutoff, "deleted", count)
	return count, nil
}

// Backend returns the underlying backend name.
func (s *Service) Backend() string {
	return s.backend.Name()
}

// Close closes the backend.
func (s *Service) Close() error {
	return s.backend.Close()
}
