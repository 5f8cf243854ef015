package store

import (
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/model"
)

func setupBackupTestDB(t *testing.T) *BackupStore {
	t.Helper()
	db, _ := setupTestDB(t)
	return NewBackupStore(db)
}

func TestBackupCreate(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, err := bs.Create("hearth-2024.db.enc", "backups/2024-01-01T00:00:00Z.db.enc")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if b.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want %q", b.Status, model.BackupStatusPending)
	}
	if b.StartedAt == nil {
		t.Error("expected started_at")
	}
}

func TestBackupLifecycle(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, _ := bs.Create("a.db.enc", "backups/a.db.enc")
	if err := bs.UpdateStatus(b.ID, model.BackupStatusUploading, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := bs.UpdateCompleted(b.ID, 2048); err != nil {
		t.Fatalf("update completed: %v", err)
	}

	got, err := bs.GetByID(b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusCompleted)
	}
	if got.SizeBytes != 2048 {
		t.Errorf("size = %d, want 2048", got.SizeBytes)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at")
	}

	latest, err := bs.LatestCompleted()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != b.ID {
		t.Errorf("latest = %+v, want id %d", latest, b.ID)
	}
}

func TestBackupFailed(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, _ := bs.Create("a.db.enc", "backups/a.db.enc")
	bs.UpdateStatus(b.ID, model.BackupStatusFailed, "upload failed")

	got, _ := bs.GetByID(b.ID)
	if got.ErrorMessage != "upload failed" {
		t.Errorf("error = %q, want %q", got.ErrorMessage, "upload failed")
	}
	if latest, _ := bs.LatestCompleted(); latest != nil {
		t.Error("expected no completed backup")
	}
}

func TestBackupListAndPrune(t *testing.T) {
	bs := setupBackupTestDB(t)

	bs.Create("a.db.enc", "backups/a.db.enc")
	bs.Create("b.db.enc", "backups/b.db.enc")

	list, err := bs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Filename != "b.db.enc" {
		t.Errorf("first = %q, want newest first", list[0].Filename)
	}

	keys, err := bs.DeleteOlderThan(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete older: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("deleted keys = %v, want 2", keys)
	}
	list, _ = bs.List(10)
	if len(list) != 0 {
		t.Errorf("len after prune = %d, want 0", len(list))
	}
}
