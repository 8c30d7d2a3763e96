package config

import (
	"context"
	"path/filepath"
	"strings"

	"cheshire/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent reports that a document under the configuration root changed
// on disk. The framework does not hot-reload; operators watch these events
// to know a restart is needed.
type ChangeEvent struct {
	Path string
	Op   string
}

// Watcher observes a filesystem configuration root for changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan ChangeEvent
}

// NewWatcher starts watching the given directory root. The returned watcher
// must be closed by cancelling ctx.
func NewWatcher(ctx context.Context, root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fsw,
		events:  make(chan ChangeEvent, 16),
	}
	go w.run(ctx)
	return w, nil
}

// Events returns the change event stream. The channel closes when the
// watcher stops.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

func (w *Watcher) run(ctx context.Context) {
	defer w.watcher.Close()
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isConfigDocument(ev.Name) {
				continue
			}
			logging.Info("Config", "configuration document changed on disk: %s (%s)", ev.Name, ev.Op)
			select {
			case w.events <- ChangeEvent{Path: ev.Name, Op: ev.Op.String()}:
			default:
				// Consumers that fall behind lose events; the log line above
				// still records the change.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Config", err, "configuration watcher error")
		}
	}
}

func isConfigDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
