package monitor

import (
	"bytes"
	"context"
	"log"
	"sync"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/config"
	"github.com/PolarJunction/AgentOffice/internal/session"
	"github.com/PolarJunction/AgentOffice/internal/ws"
)

// maxCarry bounds the unterminated tail kept between polls. A line longer
// than this is not a lane line and is dropped.
const maxCarry = 64 * 1024

// Notifier receives change notifications from the poll loop.
// ws.Broadcaster implements it.
type Notifier interface {
	NotifyChanged()
	NotifyHealth(ws.TailHealth)
}

// Monitor runs the tail, extract, reconcile and sweep cycle against the
// gateway log.
type Monitor struct {
	cfg      config.MonitorConfig
	store    *session.Store
	tailer   *Tailer
	notifier Notifier
	health   *tailHealth
	wake     chan struct{}

	// cycleMu serializes cycles; carry is only touched under it.
	cycleMu sync.Mutex
	carry   []byte

	mu      sync.Mutex // guards the fields below
	pattern string     // configured log path, may contain {date}
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	watcher *logWatcher
}

// New builds a stopped Monitor. notifier may be nil.
func New(cfg config.MonitorConfig, store *session.Store, notifier Notifier) *Monitor {
	return &Monitor{
		cfg:      cfg,
		store:    store,
		tailer:   NewTailer(config.ResolveLogPath(cfg.LogPath, time.Now())),
		notifier: notifier,
		health:   newTailHealth(),
		wake:     make(chan struct{}, 1),
		pattern:  cfg.LogPath,
	}
}

// Start skips the existing log content and begins polling in a background
// goroutine. Calling Start on a running Monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.running = true
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.cycleMu.Lock()
	m.followDatedPath(time.Now())
	if err := m.tailer.SeekEnd(); err != nil {
		log.Printf("[monitor] %v", err)
	}
	m.carry = nil
	m.cycleMu.Unlock()

	var w *logWatcher
	if m.cfg.Watch {
		var err error
		if w, err = newLogWatcher(m.tailer.Path(), m.wake); err != nil {
			log.Printf("[monitor] file watch unavailable, polling only: %v", err)
		}
	}
	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()

	log.Printf("[monitor] tailing %s from offset %d (poll %s, inactivity timeout %s)",
		m.tailer.Path(), m.tailer.Offset(), m.cfg.PollInterval, m.cfg.InactivityTimeout)

	go m.run(ctx, done, w)
}

func (m *Monitor) run(ctx context.Context, done chan struct{}, w *logWatcher) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		if m.done == done {
			m.running = false
		}
		if w != nil && m.watcher == w {
			m.watcher = nil
		}
		m.mu.Unlock()
		if w != nil {
			w.close()
		}
	}()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.PollOnce(time.Now())

	for {
		select {
		case <-ctx.Done():
			log.Println("[monitor] stopped")
			return
		case <-ticker.C:
			m.PollOnce(time.Now())
		case <-m.wake:
			m.PollOnce(time.Now())
		}
	}
}

// Stop cancels the poll loop and waits for the in-flight cycle to finish.
// It is safe to call at any time, any number of times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the poll loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// UpdateLogPath points the monitor at a different log. path may contain
// {date}. The new file is read from its beginning.
func (m *Monitor) UpdateLogPath(path string) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	m.mu.Lock()
	m.pattern = path
	m.mu.Unlock()

	resolved := config.ResolveLogPath(path, time.Now())
	m.tailer.SetPath(resolved)
	m.carry = nil
	m.retargetWatcher(resolved)
	log.Printf("[monitor] log path set to %s", resolved)
}

// LogPath returns the file currently being tailed.
func (m *Monitor) LogPath() string {
	return m.tailer.Path()
}

// PollOnce runs a single cycle and reports whether the store changed.
// Cycles never overlap.
func (m *Monitor) PollOnce(now time.Time) bool {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	m.followDatedPath(now)

	changed := false
	chunk, err := m.tailer.Poll()
	if err != nil {
		log.Printf("[monitor] %v", err)
		m.health.recordFailure(err, now)
	} else {
		m.health.recordSuccess(now)
		for _, ev := range Extract(m.completeLines(chunk)) {
			if m.store.Apply(ev, now) {
				changed = true
			}
		}
	}

	if demoted := m.store.Sweep(now, m.cfg.InactivityTimeout); len(demoted) > 0 {
		log.Printf("[monitor] no activity for %s, marked idle: %v", m.cfg.InactivityTimeout, demoted)
		changed = true
	}

	m.reportHealth()
	if changed && m.notifier != nil {
		m.notifier.NotifyChanged()
	}
	return changed
}

// followDatedPath switches to the current day's file when the configured
// path contains {date}. Caller must hold cycleMu.
func (m *Monitor) followDatedPath(now time.Time) {
	m.mu.Lock()
	pattern := m.pattern
	m.mu.Unlock()

	resolved := config.ResolveLogPath(pattern, now)
	if resolved == m.tailer.Path() {
		return
	}
	log.Printf("[monitor] log path rolled over to %s", resolved)
	m.tailer.SetPath(resolved)
	m.retargetWatcher(resolved)
}

func (m *Monitor) retargetWatcher(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher == nil {
		return
	}
	if err := m.watcher.retarget(path); err != nil {
		log.Printf("[monitor] %v", err)
	}
}

// completeLines returns the newline-terminated prefix of the carried bytes
// plus chunk, keeping any unterminated tail for the next cycle. A tail that
// is still unterminated after a cycle with no new bytes is returned as a
// final line. Caller must hold cycleMu.
func (m *Monitor) completeLines(chunk Chunk) []byte {
	if chunk.Reset {
		m.carry = nil
	}
	if len(chunk.Data) == 0 {
		flushed := m.carry
		m.carry = nil
		return flushed
	}

	data := chunk.Data
	if len(m.carry) > 0 {
		data = append(m.carry, data...)
	}
	m.carry = nil

	i := bytes.LastIndexByte(data, '\n')
	if i < len(data)-1 {
		tail := data[i+1:]
		if len(tail) > maxCarry {
			log.Printf("[monitor] dropping %d byte unterminated line", len(tail))
		} else {
			m.carry = append([]byte(nil), tail...)
		}
	}
	if i < 0 {
		return nil
	}
	return data[:i+1]
}

func (m *Monitor) reportHealth() {
	th, changed := m.health.snapshotAndEmit(m.cfg.HealthWarningThreshold)
	if !changed {
		return
	}
	th = m.withTailPosition(th)
	if th.Status == ws.StatusHealthy {
		log.Printf("[monitor] log reads recovered")
	} else {
		log.Printf("[monitor] log reads %s after %d consecutive failures: %s", th.Status, th.ConsecutiveFailures, th.LastError)
	}
	if m.notifier != nil {
		m.notifier.NotifyHealth(th)
	}
}

// Health returns the current tail health for the status endpoint.
func (m *Monitor) Health() ws.TailHealth {
	return m.withTailPosition(m.health.snapshot(m.cfg.HealthWarningThreshold))
}

func (m *Monitor) withTailPosition(th ws.TailHealth) ws.TailHealth {
	th.Path = m.tailer.Path()
	th.Offset = m.tailer.Offset()
	th.Running = m.Running()
	return th
}
