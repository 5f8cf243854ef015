package websocket

import (
	"context"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Client is one WebSocket connection streaming snapshots for a user.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	uid      string
	done     chan struct{}
	kickOnce sync.Once
}

func NewClient(hub *Hub, conn *ws.Conn, uid string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		uid:  uid,
		done: make(chan struct{}),
	}
}

func (c *Client) kick() {
	c.kickOnce.Do(func() { close(c.done) })
}

// Run registers the client and writes every value from src as a JSON text
// message. It blocks until the peer goes away, src closes or the hub
// disconnects the client.
func Run[T any](ctx context.Context, c *Client, src func(ctx context.Context) <-chan T) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// Incoming messages are discarded; the read loop only notices the peer
	// closing and answers pings.
	ctx = c.conn.CloseRead(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	status, reason := pump(ctx, c, src(ctx))
	c.conn.Close(status, reason)
}

func (c *Client) write(ctx context.Context, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, v)
}

// pump drains values onto the connection and pings to detect stale peers.
func pump[T any](ctx context.Context, c *Client, values <-chan T) (ws.StatusCode, string) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-values:
			if !ok {
				return ws.StatusNormalClosure, ""
			}
			if err := c.write(ctx, v); err != nil {
				return ws.StatusInternalError, "write failed"
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return ws.StatusGoingAway, "ping failed"
			}
		case <-c.done:
			return ws.StatusGoingAway, "household changed"
		case <-ctx.Done():
			return ws.StatusGoingAway, ""
		}
	}
}
