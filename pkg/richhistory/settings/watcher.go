package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mercator-hq/richhistory/pkg/richhistory"
)

// DefaultDebounceInterval is the quiet period before a change is reported.
const DefaultDebounceInterval = 100 * time.Millisecond

// Watcher watches a settings file and reports each valid change.
// It watches the parent directory so editors that replace the file by
// rename are still noticed.
type Watcher struct {
	store    *FileStore
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	logger   *slog.Logger

	// State
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the store's file. A non-positive interval
// uses DefaultDebounceInterval.
func NewWatcher(store *FileStore, interval time.Duration) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		store:    store,
		watcher:  watcher,
		debounce: NewDebouncer(interval),
		logger:   slog.Default().With("component", "richhistory.settings.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, invoking onChange
// with the freshly loaded settings after each burst of file events. Files
// that fail to load are logged and skipped.
func (w *Watcher) Watch(ctx context.Context, onChange func(richhistory.Settings) error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)

	dir := filepath.Dir(w.store.Path())
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info("settings watcher started", "path", w.store.Path())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("settings watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("settings watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("settings file event", "path", event.Name, "op", event.Op.String())

			w.debounce.Trigger(func() {
				settings, err := w.store.LoadSettings(ctx)
				if err != nil {
					w.logger.Error("settings reload failed", "error", err)
					return
				}
				w.logger.Info("settings reloaded",
					"retention_period_days", settings.RetentionPeriodDays,
				)
				if err := onChange(settings); err != nil {
					w.logger.Error("settings change handler failed", "error", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("settings watcher error", "error", err)
		}
	}
}

// shouldProcessEvent keeps writes, creates and renames of the settings file itself.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == w.store.Path()
}

// Stop stops the watcher and waits for Watch to return.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Debouncer collects rapid events and runs the last callback only after a quiet period.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.callback = nil
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
