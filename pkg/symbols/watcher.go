package symbols

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is how long the watcher waits after a file event
// before reloading, so editors that write in several steps trigger one
// reload instead of a storm.
const DefaultDebounceInterval = 100 * time.Millisecond

// Watcher reloads a file-backed catalog when its file changes.
type Watcher struct {
	catalog  *Catalog
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
}

// NewWatcher creates a watcher for the catalog's backing file. A zero
// debounce uses DefaultDebounceInterval.
func NewWatcher(catalog *Catalog, debounce time.Duration) (*Watcher, error) {
	if catalog.Path() == "" {
		return nil, fmt.Errorf("catalog has no backing file to watch")
	}
	if debounce == 0 {
		debounce = DefaultDebounceInterval
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		catalog:  catalog,
		watcher:  fsw,
		debounce: debounce,
		logger:   slog.Default().With("component", "symbols.watcher"),
	}, nil
}

// Watch blocks processing file events until the context is cancelled.
// The parent directory is watched rather than the file itself so atomic
// rename-over-the-top replacements are seen.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	path := w.catalog.Path()
	if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	w.logger.Info("symbol catalog watcher started",
		"path", path,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("symbol catalog watcher stopped")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.trigger()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// trigger schedules a debounced reload, resetting any pending one.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.catalog.Reload(); err != nil {
			w.logger.Error("symbol catalog reload failed", "error", err)
			return
		}
		w.logger.Info("symbol catalog reloaded", "symbols", w.catalog.Len())
	})
}
