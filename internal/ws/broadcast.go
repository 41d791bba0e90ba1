package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/session"
	"github.com/gorilla/websocket"
)

// ErrTooManyConnections is returned by AddClient when the connection limit
// is reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

// Broadcaster pushes agent snapshots to WebSocket clients. Changes reported
// by the monitor are coalesced into at most one snapshot per throttle
// window; a full snapshot is also sent every snapshot interval.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	store    *session.Store
	throttle time.Duration
	maxConns int
	seq      atomic.Uint64

	snapshotTicker *time.Ticker
	stop           chan struct{}
	stopOnce       sync.Once

	flushMu    sync.Mutex
	flushTimer *time.Timer
}

// NewBroadcaster starts the periodic snapshot loop. maxConns <= 0 means
// unlimited clients.
func NewBroadcaster(store *session.Store, throttle, snapshotInterval time.Duration, maxConns int) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		store:    store,
		throttle: throttle,
		maxConns: maxConns,
		stop:     make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

// AddClient registers conn and queues the current snapshot for it.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}

	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.clients[c] = true
	b.mu.Unlock()

	go c.writePump()

	if data, err := b.encode(b.snapshotMessage()); err == nil {
		b.deliver(c, data)
	}
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

// NotifyChanged schedules a snapshot after the throttle window. Calls made
// while one is already pending are folded into it.
func (b *Broadcaster) NotifyChanged() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// NotifyHealth sends a tail health change to all clients immediately.
func (b *Broadcaster) NotifyHealth(h TailHealth) {
	b.broadcast(WSMessage{Type: MsgHealth, Payload: h})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	b.flushTimer = nil
	b.flushMu.Unlock()

	b.broadcast(b.snapshotMessage())
}

func (b *Broadcaster) snapshotMessage() WSMessage {
	return WSMessage{
		Type: MsgSnapshot,
		Payload: SnapshotPayload{
			Agents: b.store.States(),
			Stats:  b.store.Stats(),
		},
	}
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.stop:
			return
		case <-b.snapshotTicker.C:
			if b.ClientCount() > 0 {
				b.broadcast(b.snapshotMessage())
			}
		}
	}
}

func (b *Broadcaster) encode(msg WSMessage) ([]byte, error) {
	msg.Seq = b.seq.Add(1)
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ws] broadcast marshal error: %v", err)
		return nil, err
	}
	return data, nil
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := b.encode(msg)
	if err != nil {
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		b.deliver(c, data)
	}
}

// deliver queues data for c, disconnecting it if its buffer is full.
// The read lock keeps RemoveClient from closing c.send mid-send.
func (b *Broadcaster) deliver(c *client, data []byte) {
	b.mu.RLock()
	if !b.clients[c] {
		b.mu.RUnlock()
		return
	}
	select {
	case c.send <- data:
		b.mu.RUnlock()
	default:
		b.mu.RUnlock()
		log.Printf("[ws] client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop ends the snapshot loop, cancels any pending flush and disconnects
// all clients.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		b.snapshotTicker.Stop()

		b.flushMu.Lock()
		if b.flushTimer != nil {
			b.flushTimer.Stop()
			b.flushTimer = nil
		}
		b.flushMu.Unlock()

		b.mu.Lock()
		for c := range b.clients {
			delete(b.clients, c)
			close(c.send)
		}
		b.mu.Unlock()
	})
}
