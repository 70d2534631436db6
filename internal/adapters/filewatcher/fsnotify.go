// Package filewatcher watches a drop directory and feeds new contract
// files into ingestion.
package filewatcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.FileWatcher = (*FSNotifyWatcher)(nil)

// DefaultSettle is how long a path must be quiet before its event is emitted.
const DefaultSettle = 500 * time.Millisecond

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. Bursts of
// events for one path (create followed by several writes) are coalesced
// into a single event once the path has been quiet for the settle period.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	settle     time.Duration
	logger     *slog.Logger
}

// NewFSNotifyWatcher creates a new file watcher.
func NewFSNotifyWatcher(extensions []string, settle time.Duration) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".pdf", ".docx", ".txt"}
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: extensions,
		settle:     settle,
		logger:     slog.Default().With("component", "filewatcher"),
	}, nil
}

// debounce identifies one armed timer for a path.
type debounce struct {
	timer *time.Timer
}

// Watch starts monitoring the directory and emits events.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	var (
		mu      sync.Mutex
		pending = make(map[string]*debounce)
		ops     = make(map[string]ports.FileOperation)
		wg      sync.WaitGroup
		done    = make(chan struct{})
	)

	emit := func(path string, self *debounce) {
		defer wg.Done()
		mu.Lock()
		if pending[path] != self {
			// superseded by a newer timer for the same path
			mu.Unlock()
			return
		}
		op := ops[path]
		delete(ops, path)
		delete(pending, path)
		mu.Unlock()

		select {
		case events <- ports.FileEvent{Path: path, Operation: op}:
		case <-ctx.Done():
		case <-done:
		}
	}

	schedule := func(path string, op ports.FileOperation) {
		mu.Lock()
		defer mu.Unlock()

		// a create followed by writes is still a create
		if prev, ok := ops[path]; !ok || prev != ports.FileCreated || op == ports.FileDeleted {
			ops[path] = op
		}
		if d, ok := pending[path]; ok && d.timer.Stop() {
			d.timer.Reset(w.settle)
			return
		}
		wg.Add(1)
		d := &debounce{}
		pending[path] = d
		d.timer = time.AfterFunc(w.settle, func() { emit(path, d) })
	}

	go func() {
		defer close(events)
		defer func() {
			close(done)
			mu.Lock()
			for path, d := range pending {
				if d.timer.Stop() {
					wg.Done()
				}
				delete(pending, path)
			}
			mu.Unlock()
			wg.Wait()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}

				var op ports.FileOperation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = ports.FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = ports.FileModified
				case event.Op&fsnotify.Remove == fsnotify.Remove:
					op = ports.FileDeleted
				default:
					continue
				}
				schedule(event.Name, op)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("file watcher error", "dir", dir, "error", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// isWatchedExtension checks if the file has a watched extension.
func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
