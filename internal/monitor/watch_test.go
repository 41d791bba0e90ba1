package monitor

import (
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestLogWatcherFiltersEvents(t *testing.T) {
	wake := make(chan struct{}, 1)
	w := &logWatcher{wake: wake, base: "gw.log"}

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write to log", fsnotify.Event{Name: "/var/log/gw.log", Op: fsnotify.Write}, true},
		{"create log", fsnotify.Event{Name: "/var/log/gw.log", Op: fsnotify.Create}, true},
		{"rename over log", fsnotify.Event{Name: "/var/log/gw.log", Op: fsnotify.Rename}, true},
		{"chmod log", fsnotify.Event{Name: "/var/log/gw.log", Op: fsnotify.Chmod}, false},
		{"write to sibling", fsnotify.Event{Name: "/var/log/other.log", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.handleEvent(tt.ev)
			var got bool
			select {
			case <-wake:
				got = true
			default:
			}
			if got != tt.want {
				t.Errorf("woke = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogWatcherCoalescesWakeups(t *testing.T) {
	wake := make(chan struct{}, 1)
	w := &logWatcher{wake: wake, base: "gw.log"}

	for i := 0; i < 5; i++ {
		w.handleEvent(fsnotify.Event{Name: "gw.log", Op: fsnotify.Write})
	}
	if len(wake) != 1 {
		t.Errorf("pending wakeups = %d, want 1", len(wake))
	}
}

func TestNewLogWatcherMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "gw.log")
	if _, err := newLogWatcher(path, make(chan struct{}, 1)); err == nil {
		t.Error("newLogWatcher on a missing directory returned no error")
	}
}

func TestLogWatcherRetarget(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	w, err := newLogWatcher(filepath.Join(dir1, "a.log"), make(chan struct{}, 1))
	if err != nil {
		t.Fatalf("newLogWatcher: %v", err)
	}
	defer w.close()

	if err := w.retarget(filepath.Join(dir2, "b.log")); err != nil {
		t.Fatalf("retarget: %v", err)
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.dir != dir2 || w.base != "b.log" {
		t.Errorf("watching %s/%s, want %s/b.log", w.dir, w.base, dir2)
	}
}
