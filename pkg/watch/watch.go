// Package watch re-runs a callback whenever one of a set of files changes.
// It backs the --watch mode of the merger command.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inercia/go-yaml-merger/pkg/logging"
)

// DefaultDebounce is the quiet period waited after the last event.
const DefaultDebounce = 100 * time.Millisecond

var ErrAlreadyRunning = errors.New("watcher already running")

// Watcher watches input files for changes. The parent directories are
// watched rather than the files, so editors that save by renaming a new file
// over the old one are still noticed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce *Debouncer
	files    map[string]struct{}

	mu      sync.Mutex
	running bool

	// runMu keeps onChange calls from overlapping when a merge outlasts the
	// debounce interval
	runMu sync.Mutex
}

// New creates a watcher for files. Names that cannot be watched (such as
// "-" for stdin) must be filtered out by the caller.
func New(files []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if len(files) == 0 {
		return nil, errors.New("no files to watch")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		logger:   logger,
		debounce: NewDebouncer(debounce),
		files:    map[string]struct{}{},
	}

	dirs := map[string]struct{}{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("resolving %q: %w", f, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
		logger.Debug("watching directory", "path", dir)
	}
	return w, nil
}

// Watch blocks, calling onChange after every burst of changes to the watched
// files, until ctx is cancelled. Errors from onChange are logged and
// watching continues.
func (w *Watcher) Watch(ctx context.Context, onChange func() error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.logger.Info("watching for changes", "files", len(w.files))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("file event detected", "path", event.Name, "op", event.Op.String())

			w.debounce.Trigger(func() { w.run(event.Name, onChange) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// run calls onChange, waiting for any call still in flight to finish first.
func (w *Watcher) run(path string, onChange func() error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.logger.Info("inputs changed, merging again", "path", path)
	if err := onChange(); err != nil {
		w.logger.Error("merge failed", "error", err)
	}
}

// Close stops pending callbacks and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.debounce.Stop()
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// Debouncer collects rapid events and runs the last callback only after a
// quiet period.
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

// Trigger (re)starts the quiet period; callback runs when it expires without
// further triggers.
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
