package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reloads a Store when the catalog files change on disk.
//
// It watches the parent directories rather than the files themselves so
// that atomic replacements (write to temp file, rename) are seen.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	files    map[string]struct{}
	debounce *Debouncer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewFileWatcher creates a watcher for the given files. Rapid bursts of
// events are collapsed into one reload after the debounce interval.
func NewFileWatcher(paths []string, debounce time.Duration, logger *slog.Logger) (*FileWatcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if logger == nil {
		logger = slog.Default()
	}

	files := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", p, err)
		}
		files[abs] = struct{}{}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  w,
		logger:   logger,
		files:    files,
		debounce: NewDebouncer(debounce),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, invoking onChange
// after each debounced burst of relevant events.
func (fw *FileWatcher) Watch(ctx context.Context, onChange func(context.Context) error) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer close(fw.doneCh)

	dirs := make(map[string]struct{})
	for f := range fw.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
	}

	fw.logger.Info("catalog file watcher started",
		slog.Int("files", len(fw.files)),
		slog.Int("directories", len(dirs)),
	)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("catalog file watcher stopped")
			return nil

		case <-fw.stopCh:
			fw.logger.Info("catalog file watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !fw.shouldProcessEvent(event) {
				continue
			}

			fw.logger.Debug("catalog file event",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()),
			)

			fw.debounce.Trigger(func() {
				if err := onChange(ctx); err != nil {
					fw.logger.Error("catalog reload after file change failed",
						slog.String("path", event.Name),
						slog.String("error", err.Error()),
					)
				}
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			fw.logger.Error("catalog file watcher error", slog.String("error", err.Error()))
		}
	}
}

// Stop ends Watch and releases the underlying watcher. It is safe to call
// when Watch never ran.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	running := fw.running
	fw.running = false
	fw.mu.Unlock()

	if running {
		close(fw.stopCh)
		<-fw.doneCh
	}

	fw.debounce.Stop()

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// shouldProcessEvent keeps content changes to the watched files.
func (fw *FileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := fw.files[abs]
	return ok
}

// Debouncer runs only the last callback of a burst, after a quiet period.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a debouncer with the given quiet period.
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
		d.callback = nil
		stopped := d.stopped
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
