package spool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/hecship/pkg/log"
)

// FileSuffix marks files the watcher picks up; everything else in the
// spool directory is ignored.
const FileSuffix = ".ndjson"

// IsSpoolFile reports whether name is a spool file: it must carry the
// spool suffix and not be hidden. Producers can stage partial files
// under a dotted name and rename them into place.
func IsSpoolFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, FileSuffix) && !strings.HasPrefix(base, ".")
}

// defaultSettle is how long a file must stay quiet before it is
// considered fully written.
const defaultSettle = 500 * time.Millisecond

// Watcher emits spool file paths once their writers have settled.
// Files already present when Run starts are emitted too.
type Watcher struct {
	dir    string
	settle time.Duration
	logger log.Logger

	files chan string

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher for dir. A settle of zero or less takes
// the default.
func NewWatcher(dir string, settle time.Duration, logger log.Logger) *Watcher {
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{
		dir:     dir,
		settle:  settle,
		logger:  logger,
		files:   make(chan string, 16),
		pending: make(map[string]*time.Timer),
	}
}

// Files returns the channel of settled spool file paths. The channel is
// never closed; consumers should stop with the context they passed to
// Run.
func (w *Watcher) Files() <-chan string {
	return w.files
}

// Run watches the spool directory until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("spool: create watcher: %w", err)
	}
	defer watcher.Close()
	defer w.stopPending()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("spool: watch %s: %w", w.dir, err)
	}

	if err := w.scan(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !IsSpoolFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("spool file changed",
				log.String("file", event.Name),
				log.String("op", event.Op.String()))
			w.enqueue(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("spool watcher error", log.Err(err))
		}
	}
}

// scan queues the spool files already on disk.
func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("spool: scan %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !IsSpoolFile(entry.Name()) {
			continue
		}
		w.enqueue(ctx, filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

// enqueue (re)arms the settle timer for path. Every write pushes the
// emission back, so a file is only shipped once its writer goes quiet.
func (w *Watcher) enqueue(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.files <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.pending {
		t.Stop()
	}
}
