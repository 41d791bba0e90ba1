package monitor

import (
	"sync"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/ws"
)

// tailHealth tracks consecutive read failures of the gateway log.
// The poll goroutine writes it while HTTP handlers read snapshots, so all
// fields are guarded by mu.
type tailHealth struct {
	mu                sync.Mutex
	failures          int
	lastErr           string
	lastFail          time.Time
	lastSuccess       time.Time
	lastEmittedStatus ws.TailStatus
}

func newTailHealth() *tailHealth {
	return &tailHealth{lastEmittedStatus: ws.StatusHealthy}
}

func (h *tailHealth) recordSuccess(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = 0
	h.lastErr = ""
	h.lastSuccess = now
}

func (h *tailHealth) recordFailure(err error, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures++
	h.lastErr = err.Error()
	h.lastFail = now
}

// statusLocked computes health status. Caller must hold h.mu.
func (h *tailHealth) statusLocked(threshold int) ws.TailStatus {
	switch {
	case h.failures == 0:
		return ws.StatusHealthy
	case h.failures >= threshold:
		return ws.StatusFailed
	default:
		return ws.StatusDegraded
	}
}

func (h *tailHealth) status(threshold int) ws.TailStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked(threshold)
}

// snapshot returns a consistent copy of the health fields.
func (h *tailHealth) snapshot(threshold int) ws.TailHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked(threshold)
}

func (h *tailHealth) snapshotLocked(threshold int) ws.TailHealth {
	th := ws.TailHealth{
		Status:              h.statusLocked(threshold),
		ConsecutiveFailures: h.failures,
		LastError:           h.lastErr,
	}
	if !h.lastSuccess.IsZero() {
		t := h.lastSuccess
		th.LastSuccess = &t
	}
	return th
}

// snapshotAndEmit is snapshot plus whether the status changed since the
// last emission. A change updates lastEmittedStatus.
func (h *tailHealth) snapshotAndEmit(threshold int) (ws.TailHealth, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	th := h.snapshotLocked(threshold)
	changed := th.Status != h.lastEmittedStatus
	if changed {
		h.lastEmittedStatus = th.Status
	}
	return th, changed
}
