package monitor

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// logWatcher wakes the poll loop early when the watched log file changes.
// It watches the file's directory rather than the file so that rotation
// (remove + create, or rename over) keeps producing events.
type logWatcher struct {
	fsWatcher *fsnotify.Watcher
	wake      chan<- struct{}
	done      chan struct{}

	mu   sync.RWMutex
	dir  string
	base string
}

func newLogWatcher(path string, wake chan<- struct{}) (*logWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &logWatcher{
		fsWatcher: fsWatcher,
		wake:      wake,
		done:      make(chan struct{}),
	}
	if err := w.retarget(path); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	go w.processEvents()
	return w, nil
}

// retarget switches the watch to path's directory if it changed.
func (w *logWatcher) retarget(path string) error {
	dir, base := filepath.Dir(path), filepath.Base(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.base = base
	if dir == w.dir {
		return nil
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	if w.dir != "" {
		_ = w.fsWatcher.Remove(w.dir)
	}
	log.Printf("[monitor] watching %s for changes to %s", dir, base)
	w.dir = dir
	return nil
}

func (w *logWatcher) close() {
	close(w.done)
	_ = w.fsWatcher.Close()
}

func (w *logWatcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("[monitor] watcher error: %v", err)
		}
	}
}

func (w *logWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.mu.RLock()
	match := filepath.Base(event.Name) == w.base
	w.mu.RUnlock()
	if !match {
		return
	}
	// Coalesce: one pending wakeup is enough, the next cycle reads everything.
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
