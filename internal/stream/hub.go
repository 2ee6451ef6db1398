// Package stream publishes simulation snapshots to websocket clients and
// accepts pause, continue and step commands from them.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crowdsim/internal/logging"
	"crowdsim/internal/sim"
)

// Source is the part of a simulation the hub drives.
type Source interface {
	Snapshot(withCells bool) sim.Snapshot
	Pause() error
	Continue() error
	Advance(n int) error
}

// Message types sent to clients.
const (
	TypeSnapshot = "snapshot"
	TypeAck      = "ack"
)

// Command is a client request.
type Command struct {
	Op    string `json:"op"`
	Steps int    `json:"steps,omitempty"`
}

// Message is a server frame.
type Message struct {
	Type     string        `json:"type"`
	Op       string        `json:"op,omitempty"`
	Error    string        `json:"error,omitempty"`
	Snapshot *sim.Snapshot `json:"snapshot,omitempty"`
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logging.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithCells includes the full cell grid in every snapshot.
func WithCells(on bool) Option {
	return func(h *Hub) { h.cells = on }
}

// WithMinInterval limits how often snapshots are pushed.
func WithMinInterval(d time.Duration) Option {
	return func(h *Hub) { h.minInterval = d }
}

const writeWait = 5 * time.Second

// Hub fans snapshots out to every connected client.
type Hub struct {
	src         Source
	log         logging.Logger
	cells       bool
	minInterval time.Duration

	notify chan struct{}

	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates a hub for src.
func NewHub(src Source, opts ...Option) *Hub {
	h := &Hub{
		src:     src,
		log:     logging.NoOpLogger{},
		notify:  make(chan struct{}, 1),
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Notify schedules a snapshot push. It never blocks, so it is safe to call
// from a tick observer.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Observer adapts Notify to sim.WithTickObserver.
func (h *Hub) Observer() func(sim.TickReport) {
	return func(sim.TickReport) { h.Notify() }
}

// Run pushes a snapshot after every notification until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case <-h.notify:
		}
		if h.minInterval > 0 {
			if wait := h.minInterval - time.Since(last); wait > 0 {
				select {
				case <-ctx.Done():
					h.closeAll()
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		last = time.Now()
		h.Broadcast()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends the current snapshot to every client.
func (h *Hub) Broadcast() {
	snap := h.src.Snapshot(h.cells)
	payload, err := json.Marshal(Message{Type: TypeSnapshot, Snapshot: &snap})
	if err != nil {
		h.log.Error("failed to marshal snapshot", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := h.writeLocked(conn, payload); err != nil {
			h.log.Warn("failed to write to client", "remote", conn.RemoteAddr().String(), "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) writeLocked(conn *websocket.Conn, payload []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) send(conn *websocket.Conn, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writeLocked(conn, payload)
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// ServeHTTP upgrades the request and serves one client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.add(conn)
	defer h.remove(conn)
	h.log.Info("client connected", "remote", conn.RemoteAddr().String())

	snap := h.src.Snapshot(h.cells)
	if err := h.send(conn, Message{Type: TypeSnapshot, Snapshot: &snap}); err != nil {
		h.log.Warn("failed to send initial snapshot", "error", err)
		return
	}

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn("client read error", "error", err)
			}
			return
		}
		ack := Message{Type: TypeAck, Op: cmd.Op}
		if err := h.apply(cmd); err != nil {
			ack.Error = err.Error()
		}
		if err := h.send(conn, ack); err != nil {
			return
		}
		h.Broadcast()
	}
}

func (h *Hub) apply(cmd Command) error {
	switch cmd.Op {
	case "pause":
		return h.src.Pause()
	case "continue":
		return h.src.Continue()
	case "step":
		return h.src.Advance(max(cmd.Steps, 1))
	default:
		return fmt.Errorf("unknown command %q", cmd.Op)
	}
}
