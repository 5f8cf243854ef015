package websocket

import (
	"log/slog"
	"sync"

	"github.com/dukerupert/hearth/internal/metrics"
)

// Hub tracks every open stream so that a user's streams can be cut when
// they change household.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.StreamOpened()
}

// Unregister removes a client from the hub. Calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		metrics.StreamClosed()
	}
}

// Disconnect closes every stream opened by uid and returns how many there
// were. Clients reconnect and pick up the user's current household.
func (h *Hub) Disconnect(uid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.clients {
		if c.uid == uid {
			c.kick()
			n++
		}
	}
	if n > 0 {
		h.logger.Info("streams disconnected", "uid", uid, "count", n)
	}
	return n
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
