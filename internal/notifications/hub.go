// Package notifications fans feed events out to websocket clients.
package notifications

import (
	"context"
	"errors"
	"sync"

	"strayland/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const defaultMaxConns = 10000

// ErrHubFull is returned by Register when the connection limit is reached.
var ErrHubFull = errors.New("server connection limit reached")

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// Hub tracks feed websocket clients.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	maxConns int
	closed   bool
}

// NewHub creates a Hub; maxConns <= 0 uses the default limit.
func NewHub(maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	return &Hub{clients: make(map[*Client]struct{}), maxConns: maxConns}
}

// Register adds a connection for voterID, which may be empty.
func (h *Hub) Register(conn *websocket.Conn, voterID string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= h.maxConns {
		return nil, ErrHubFull
	}
	client := newClient(h, conn, voterID)
	h.clients[client] = struct{}{}
	observability.WebSocketConnections.Inc()
	return client, nil
}

// Unregister removes the client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	observability.WebSocketConnections.Dec()
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues message for every client without blocking on slow ones.
func (h *Hub) Broadcast(message []byte) {
	observability.WebSocketEventsTotal.WithLabelValues(eventType(message)).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.trySend(message)
	}
}

// Shutdown disconnects every client and refuses new ones. Each client's write
// pump sends the close frame once its channel is closed.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true

	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
		observability.WebSocketConnections.Dec()
	}
	return nil
}
