package store

import (
	"database/sql"
	"log/slog"
	"testing"

	"github.com/dukerupert/hearth/internal/changefeed"
	"github.com/dukerupert/hearth/internal/database"
)

func setupTestDB(t *testing.T) (*sql.DB, *changefeed.Hub) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, changefeed.NewHub(slog.Default())
}
