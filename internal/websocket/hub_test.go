package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/auth"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func mockClient(hub *Hub, uid string) *Client {
	return NewClient(hub, nil, uid)
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "alice")
	c2 := mockClient(hub, "bob")

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	// Should not panic
	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDisconnect(t *testing.T) {
	hub := NewHub(slog.Default())

	a1 := mockClient(hub, "alice")
	a2 := mockClient(hub, "alice")
	b := mockClient(hub, "bob")
	for _, c := range []*Client{a1, a2, b} {
		hub.Register(c)
	}

	if got := hub.Disconnect("alice"); got != 2 {
		t.Errorf("disconnected = %d, want 2", got)
	}
	// Should not panic on an already kicked client
	hub.Disconnect("alice")

	for _, c := range []*Client{a1, a2} {
		select {
		case <-c.done:
		default:
			t.Error("expected alice's client to be kicked")
		}
	}
	select {
	case <-b.done:
		t.Error("bob's client should stay connected")
	default:
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "alice")
			hub.Register(c)
			hub.Disconnect("alice")
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func streamServer(t *testing.T, hub *Hub, values chan []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithIdentity(r.Context(), auth.Identity{UID: "alice"})
		Serve(hub, w, r.WithContext(ctx), func(context.Context) <-chan []string { return values })
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *ws.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestServeStreamsSnapshots(t *testing.T) {
	hub := NewHub(slog.Default())
	values := make(chan []string, 2)
	values <- []string{"milk"}
	values <- []string{"milk", "eggs"}

	conn := dial(t, streamServer(t, hub, values))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []string
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0] != "milk" {
		t.Errorf("first snapshot = %v, want [milk]", got)
	}
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("second snapshot = %v, want 2 items", got)
	}

	close(values)
	_, _, err := conn.Read(ctx)
	if status := ws.CloseStatus(err); status != ws.StatusNormalClosure {
		t.Errorf("close status = %v, want %v", status, ws.StatusNormalClosure)
	}
}

func TestServeDisconnect(t *testing.T) {
	hub := NewHub(slog.Default())
	values := make(chan []string, 1)
	values <- []string{}

	conn := dial(t, streamServer(t, hub, values))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []string
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := hub.Disconnect("alice"); n != 1 {
		t.Fatalf("disconnected = %d, want 1", n)
	}

	_, _, err := conn.Read(ctx)
	if status := ws.CloseStatus(err); status != ws.StatusGoingAway {
		t.Errorf("close status = %v, want %v", status, ws.StatusGoingAway)
	}

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("clients = %d, want 0", got)
	}
}
