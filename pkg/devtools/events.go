package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/atoms/pkg/atom"
)

// EventMessage is the JSON form of an atom.Event sent to WebSocket clients.
type EventMessage struct {
	Kind     atom.EventKind `json:"kind"`
	Store    string         `json:"store"`
	Time     time.Time      `json:"time"`
	Atom     string         `json:"atom,omitempty"`
	AtomID   uint64         `json:"atomId,omitempty"`
	Version  uint64         `json:"version,omitempty"`
	Error    string         `json:"error,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Frontier int            `json:"frontier,omitempty"`
	Notified int            `json:"notified,omitempty"`
}

func newEventMessage(e atom.Event) EventMessage {
	m := EventMessage{
		Kind:     e.Kind,
		Store:    e.Store,
		Time:     e.Time,
		Atom:     e.Atom,
		AtomID:   e.AtomID,
		Version:  e.Version,
		Reason:   e.Reason,
		Frontier: e.Frontier,
		Notified: e.Notified,
	}
	if e.Err != nil {
		m.Error = e.Err.Error()
	}
	return m
}

// hub fans store events out to WebSocket clients. Events are queued so a
// slow client never blocks the store that emitted them.
type hub struct {
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	queue    chan EventMessage
	done     chan struct{}
	dropped  atomic.Uint64
	logger   *slog.Logger
}

func newHub(size int, logger *slog.Logger) *hub {
	h := &hub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // the inspector is a local dev tool
			},
		},
		queue:  make(chan EventMessage, size),
		done:   make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

// publish queues e, dropping it when the queue is full.
func (h *hub) publish(e atom.Event) {
	select {
	case h.queue <- newEventMessage(e):
	default:
		if h.dropped.Add(1) == 1 {
			h.logger.Warn("devtools: event queue full, dropping events")
		}
	}
}

func (h *hub) run() {
	for {
		select {
		case msg := <-h.queue:
			h.broadcast(msg)
		case <-h.done:
			return
		}
	}
}

// handleWebSocket upgrades the connection and keeps it registered until the
// client disconnects.
func (h *hub) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *hub) broadcast(msg EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			h.mu.Lock()
			delete(h.clients, client)
			h.mu.Unlock()
			client.Close()
		}
	}
}

func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) close() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
