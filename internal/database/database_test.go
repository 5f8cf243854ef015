package database

import (
	"context"
	"testing"
)

func TestOpenRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	tables := []string{
		"accounts", "shopping_items", "cleaning_reminders", "doctor_appointments",
		"contacts", "push_subscriptions", "sent_notifications", "backups",
	}
	for _, name := range tables {
		var got string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&got)
		if err != nil {
			t.Errorf("table %s: %v", name, err)
		}
	}
}

func TestCheckpoint(t *testing.T) {
	db, err := Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO contacts (household_id, name) VALUES ('h1', 'Dr. Who')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := Checkpoint(context.Background(), db); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
}
