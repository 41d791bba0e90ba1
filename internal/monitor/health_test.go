package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/ws"
)

func TestTailHealthStatusThresholds(t *testing.T) {
	h := newTailHealth()
	now := time.Now()

	if h.status(3) != ws.StatusHealthy {
		t.Fatal("new health should be healthy")
	}

	h.recordFailure(fmt.Errorf("permission denied"), now)
	if got := h.status(3); got != ws.StatusDegraded {
		t.Errorf("after 1 failure status = %s, want degraded", got)
	}
	h.recordFailure(fmt.Errorf("permission denied"), now)
	h.recordFailure(fmt.Errorf("still denied"), now)
	if got := h.status(3); got != ws.StatusFailed {
		t.Errorf("after 3 failures status = %s, want failed", got)
	}

	snap := h.snapshot(3)
	if snap.ConsecutiveFailures != 3 || snap.LastError != "still denied" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.LastSuccess != nil {
		t.Error("LastSuccess set without any success")
	}
}

func TestTailHealthRecovery(t *testing.T) {
	h := newTailHealth()
	now := time.Now()
	for i := 0; i < 5; i++ {
		h.recordFailure(fmt.Errorf("fail %d", i), now)
	}

	h.recordSuccess(now)
	snap := h.snapshot(3)
	if snap.Status != ws.StatusHealthy || snap.ConsecutiveFailures != 0 || snap.LastError != "" {
		t.Errorf("after success snapshot = %+v, want clean healthy", snap)
	}
	if snap.LastSuccess == nil || !snap.LastSuccess.Equal(now) {
		t.Errorf("LastSuccess = %v, want %v", snap.LastSuccess, now)
	}
}

func TestTailHealthSnapshotAndEmit(t *testing.T) {
	h := newTailHealth()
	now := time.Now()

	if _, changed := h.snapshotAndEmit(2); changed {
		t.Error("healthy to healthy reported as a change")
	}

	h.recordFailure(fmt.Errorf("x"), now)
	if th, changed := h.snapshotAndEmit(2); !changed || th.Status != ws.StatusDegraded {
		t.Errorf("first failure: status %s changed %v", th.Status, changed)
	}
	if _, changed := h.snapshotAndEmit(2); changed {
		t.Error("same status emitted twice")
	}

	h.recordFailure(fmt.Errorf("x"), now)
	if th, changed := h.snapshotAndEmit(2); !changed || th.Status != ws.StatusFailed {
		t.Errorf("second failure: status %s changed %v", th.Status, changed)
	}

	h.recordSuccess(now)
	if th, changed := h.snapshotAndEmit(2); !changed || th.Status != ws.StatusHealthy {
		t.Errorf("recovery: status %s changed %v", th.Status, changed)
	}
}
