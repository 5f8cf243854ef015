package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/hearth/internal/auth"

	ws "github.com/coder/websocket"
)

// Serve upgrades the request and streams src's snapshots to it. The request
// must already carry an authenticated identity.
func Serve[T any](hub *Hub, w http.ResponseWriter, r *http.Request, src func(ctx context.Context) <-chan T) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true, // clients authenticate with a bearer token
	})
	if err != nil {
		hub.logger.Warn("websocket accept", "path", r.URL.Path, "error", err)
		return
	}

	uid := auth.UID(r.Context())
	hub.logger.Debug("stream opened", "path", r.URL.Path, "uid", uid)
	Run(r.Context(), NewClient(hub, conn, uid), src)
	hub.logger.Debug("stream closed", "path", r.URL.Path, "uid", uid, slog.Int("open", hub.ClientCount()))
}
