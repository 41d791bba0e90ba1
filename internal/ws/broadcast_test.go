package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/session"
	"github.com/gorilla/websocket"
)

var testAgents = []session.Agent{
	{ID: "nova", Name: "Nova"},
	{ID: "zero", Name: "Zero-1"},
}

func newTestStore() *session.Store {
	return session.NewStore(testAgents, time.Now())
}

// connectClient serves b over a test server and returns a dialed client
// connection. Both are closed when the test ends.
func connectClient(t *testing.T, b *Broadcaster) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		if _, err := b.AddClient(conn); err != nil {
			t.Errorf("AddClient: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readMessage reads one message and decodes the envelope, leaving the
// payload raw.
func readMessage(t *testing.T, conn *websocket.Conn) (MessageType, uint64, json.RawMessage) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type    MessageType     `json:"type"`
		Seq     uint64          `json:"seq"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg.Type, msg.Seq, msg.Payload
}

func decodeSnapshot(t *testing.T, raw json.RawMessage) SnapshotPayload {
	t.Helper()
	var p SnapshotPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return p
}

func TestAddClientSendsInitialSnapshot(t *testing.T) {
	b := NewBroadcaster(newTestStore(), time.Hour, time.Hour, 0)
	defer b.Stop()

	conn := connectClient(t, b)
	typ, _, payload := readMessage(t, conn)
	if typ != MsgSnapshot {
		t.Fatalf("first message type = %s, want snapshot", typ)
	}

	snap := decodeSnapshot(t, payload)
	if len(snap.Agents) != len(testAgents) || len(snap.Stats) != len(testAgents) {
		t.Fatalf("snapshot has %d agents / %d stats, want %d each", len(snap.Agents), len(snap.Stats), len(testAgents))
	}
	if snap.Agents[0].ID != "nova" || snap.Agents[0].State != session.Idle {
		t.Errorf("agents[0] = %+v, want idle nova", snap.Agents[0])
	}
}

func TestNotifyChangedBroadcastsSnapshot(t *testing.T) {
	store := newTestStore()
	b := NewBroadcaster(store, 10*time.Millisecond, time.Hour, 0)
	defer b.Stop()

	conn := connectClient(t, b)
	_, firstSeq, _ := readMessage(t, conn)

	store.Apply(session.Event{Kind: session.EventEnqueue, AgentID: "zero", Task: "cron"}, time.Now())
	b.NotifyChanged()

	typ, seq, payload := readMessage(t, conn)
	if typ != MsgSnapshot {
		t.Fatalf("message type = %s, want snapshot", typ)
	}
	if seq <= firstSeq {
		t.Errorf("seq = %d, want > %d", seq, firstSeq)
	}
	snap := decodeSnapshot(t, payload)
	if snap.Agents[1].State != session.Working {
		t.Errorf("zero state = %s, want working", snap.Agents[1].State)
	}
	if snap.Agents[1].CurrentTask == nil || *snap.Agents[1].CurrentTask != "cron" {
		t.Errorf("zero currentTask = %v, want cron", snap.Agents[1].CurrentTask)
	}
}

func TestNotifyChangedCoalesces(t *testing.T) {
	b := NewBroadcaster(newTestStore(), time.Hour, time.Hour, 0)
	defer b.Stop()

	b.NotifyChanged()
	b.flushMu.Lock()
	first := b.flushTimer
	b.flushMu.Unlock()
	if first == nil {
		t.Fatal("NotifyChanged did not schedule a flush")
	}

	for i := 0; i < 10; i++ {
		b.NotifyChanged()
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	if b.flushTimer != first {
		t.Error("repeated NotifyChanged scheduled a second flush")
	}
}

func TestNotifyHealthBroadcasts(t *testing.T) {
	b := NewBroadcaster(newTestStore(), time.Hour, time.Hour, 0)
	defer b.Stop()

	conn := connectClient(t, b)
	readMessage(t, conn) // initial snapshot

	b.NotifyHealth(TailHealth{Status: StatusFailed, ConsecutiveFailures: 3, LastError: "permission denied"})

	typ, _, payload := readMessage(t, conn)
	if typ != MsgHealth {
		t.Fatalf("message type = %s, want %s", typ, MsgHealth)
	}
	var h TailHealth
	if err := json.Unmarshal(payload, &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if h.Status != StatusFailed || h.ConsecutiveFailures != 3 {
		t.Errorf("health = %+v, want failed after 3", h)
	}
}

func TestBroadcasterSequenceIncrements(t *testing.T) {
	b := NewBroadcaster(newTestStore(), time.Hour, time.Hour, 0)
	defer b.Stop()

	var last uint64
	for i := 0; i < 5; i++ {
		data, err := b.encode(WSMessage{Type: MsgSnapshot})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Seq != last+1 {
			t.Errorf("seq = %d, want %d", msg.Seq, last+1)
		}
		last = msg.Seq
	}
}

func TestBroadcasterStopIdempotent(t *testing.T) {
	b := NewBroadcaster(newTestStore(), time.Hour, time.Hour, 0)
	b.NotifyChanged()
	b.Stop()
	b.Stop()

	if got := b.ClientCount(); got != 0 {
		t.Errorf("ClientCount after Stop = %d, want 0", got)
	}
}
