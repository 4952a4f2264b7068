// Package watch triggers index syncs when the notes directory changes on
// disk. Bursts of file events (an editor save, a batch import) coalesce into
// a single sync through a debounce window.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period required before a sync fires.
const DefaultDebounce = 2 * time.Second

// Watcher observes one notes directory and invokes the sync callback after
// markdown files stop changing for the debounce window.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(context.Context)

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stopped bool
	done    chan struct{}
}

// New creates a watcher over dir. onChange runs on the watcher goroutine;
// long work inside it delays subsequent triggers, which is intended.
func New(dir string, debounce time.Duration, onChange func(context.Context)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
	}
}

// Start begins watching. It returns after the watch is established; events
// are processed on a background goroutine until Stop or context cancel.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil {
		return fmt.Errorf("watcher already started")
	}
	if w.stopped {
		return fmt.Errorf("watcher is stopped")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	go w.run(ctx)

	slog.Info("watching notes directory",
		slog.String("dir", w.dir),
		slog.Duration("debounce", w.debounce))
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			slog.Debug("notes change detected",
				slog.String("file", filepath.Base(event.Name)),
				slog.String("op", event.Op.String()))
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("file watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			pending = false
			w.onChange(ctx)
		}
	}
}

// relevant keeps events for visible markdown files only. Editor temp files
// and the index directory never trigger a sync.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, ".md")
}

// Stop shuts the watcher down and waits for the event loop to exit. Safe to
// call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	fsw := w.fsw
	done := w.done
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	err := fsw.Close()
	<-done
	return err
}
