package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const defaultDebounce = 500 * time.Millisecond

// ConfigWatcher notifies when the config file changes on disk. Events are
// debounced so an editor that writes several times, or replaces the file,
// triggers a single notification.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewConfigWatcher watches the directory containing path. Watching the
// directory instead of the file survives the rename-and-replace writes most
// tools use.
func NewConfigWatcher(path string) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %q: %w", dir, err)
	}

	return &ConfigWatcher{
		path:     path,
		watcher:  watcher,
		debounce: defaultDebounce,
	}, nil
}

// Watch blocks delivering debounced change notifications until ctx is
// cancelled.
func (w *ConfigWatcher) Watch(ctx context.Context, onChange func()) {
	defer w.watcher.Close()

	log.Infof("Watching config file %s", w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debugf("Config file event: %s", event)
			w.scheduleNotify(onChange)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("Config watcher error: %v", err)
		}
	}
}

func (w *ConfigWatcher) scheduleNotify(onChange func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, onChange)
}
