package workers

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultWatchDebounce is how long the watcher waits after the last file
// event before ingesting the batch.
const DefaultWatchDebounce = 2 * time.Second

// Watcher feeds files created under the ingest directories to an
// Orchestrator in debounced batches.
type Watcher struct {
	watcher  *fsnotify.Watcher
	orch     *Orchestrator
	debounce time.Duration
	log      *zap.Logger
}

// NewWatcher watches every directory below each of dirs.
func NewWatcher(orch *Orchestrator, dirs []string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}

	w := &Watcher{watcher: fsWatcher, orch: orch, debounce: debounce, log: log}
	for _, dir := range dirs {
		if err := w.addRecursive(dir); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}
	return w, nil
}

// addRecursive adds a directory and all its subdirectories to the watcher
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.log.Warn("not watching unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Run blocks until ctx is cancelled, scanning each batch of new files as it
// settles. Files already in the store are skipped unless reprocess is set.
func (w *Watcher) Run(ctx context.Context, reprocess bool, onEvent ProgressFunc) error {
	pending := make(map[string]bool)
	var order []string

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						w.log.Warn("could not watch new directory", zap.String("dir", event.Name), zap.Error(err))
					}
					// files may have landed before the watch was added
					w.collectExisting(event.Name, pending, &order)
					timer.Reset(w.debounce)
					continue
				}
			}

			if !w.orch.Accepts(event.Name) {
				continue
			}
			if !pending[event.Name] {
				pending[event.Name] = true
				order = append(order, event.Name)
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("filesystem watcher error", zap.Error(err))

		case <-timer.C:
			if len(order) == 0 {
				continue
			}
			batch := make([]string, len(order))
			for i, p := range order {
				batch[i] = cleanPath(p)
			}
			pending = make(map[string]bool)
			order = nil

			w.log.Info("ingesting new files", zap.Int("files", len(batch)))
			w.orch.AddFiles(batch)
			if _, err := w.orch.ScanFiles(ctx, batch, reprocess, onEvent); err != nil {
				w.log.Error("watch scan failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) collectExisting(dir string, pending map[string]bool, order *[]string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !w.orch.Accepts(path) {
			return nil
		}
		if !pending[path] {
			pending[path] = true
			*order = append(*order, path)
		}
		return nil
	})
}

// Close stops the watcher and cleans up resources
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
