package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/waypointcast/tourguide/pipeline"
)

// maxHubConnections caps the WebSocket hub against an unbounded client list.
const maxHubConnections = 200

// Hub fans committed Decisions out to connected WebSocket clients. Clients
// join and leave through register/unregister channels, capped at
// maxHubConnections, and decisions arrive through Observe.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	publish    chan Message
	mu         sync.RWMutex
}

// NewHub builds a Hub. Call Run in its own goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		publish:    make(chan Message, 64),
	}
}

// Run drives the hub's event loop until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxHubConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("notify: websocket connection rejected, at cap (%d)", maxHubConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case msg := <-h.publish:
			h.broadcast(msg)
		}
	}
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("notify: failed to marshal decision for %s: %v", msg.PointKey, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("notify: websocket write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

// Register admits a new client connection.
func (h *Hub) Register(conn *websocket.Conn) { h.register <- conn }

// Unregister removes a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) { h.unregister <- conn }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Observe implements pipeline.DecisionSink by queueing msg for broadcast.
// It drops the message rather than blocking the Collector if the publish
// channel is full.
func (h *Hub) Observe(e pipeline.Entry) {
	select {
	case h.publish <- toMessage(e):
	default:
		log.Printf("notify: hub publish queue full, dropping decision for %s", e.Point.Key)
	}
}

var _ pipeline.DecisionSink = (*Hub)(nil)
