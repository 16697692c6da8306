package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/tagrelay/pkg/log"
)

// DefaultDebounce coalesces editor write bursts into one reload.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a Catalog when its file changes on disk.
type Watcher struct {
	cat      *Catalog
	logger   log.Logger
	delay    time.Duration
	onReload func(objects, locations int)

	mu       sync.Mutex
	debounce *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the reload debounce delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.delay = d }
}

// WithReloadHook is called after every successful reload.
func WithReloadHook(fn func(objects, locations int)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher creates a watcher for cat.
func NewWatcher(cat *Catalog, logger log.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	w := &Watcher{cat: cat, logger: logger, delay: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the catalog directory until ctx is cancelled. The directory is
// watched rather than the file so atomic replacements are seen.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.cat.Path())
	name := filepath.Base(w.cat.Path())

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching catalog", log.String("path", w.cat.Path()))

	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}

func (w *Watcher) reload() {
	if err := w.cat.Reload(); err != nil {
		w.logger.Error("catalog reload failed, keeping previous catalog", log.Err(err))
		return
	}
	if w.onReload != nil {
		objects, locations := w.cat.Counts()
		w.onReload(objects, locations)
	}
}
