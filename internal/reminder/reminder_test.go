package reminder

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/changefeed"
	"github.com/dukerupert/hearth/internal/database"
	"github.com/dukerupert/hearth/internal/epochday"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/push"
	"github.com/dukerupert/hearth/internal/store"
)

type sentPayload struct {
	householdID string
	payload     push.Payload
}

type fakeNotifier struct {
	sent    []sentPayload
	err     error
	offline bool // no device receives the payload
}

func (f *fakeNotifier) NotifyHousehold(_ context.Context, householdID string, p push.Payload) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, sentPayload{householdID, p})
	if f.offline {
		return 0, nil
	}
	return 1, nil
}

func setupJob(t *testing.T, now time.Time) (*Job, *store.ReminderStore, *fakeNotifier) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reminders := store.NewReminderStore(db, changefeed.NewHub(slog.Default()))
	notifier := &fakeNotifier{}
	job := NewJob(reminders, store.NewPushStore(db), notifier, time.UTC, slog.Default())
	job.now = func() time.Time { return now }
	return job, reminders, notifier
}

func TestComputeStatus(t *testing.T) {
	today := int64(20000)
	tests := []struct {
		due  int64
		want Status
	}{
		{19990, StatusOverdue},
		{20000, StatusDueToday},
		{20001, StatusUpcoming},
	}
	for _, tt := range tests {
		got := ComputeStatus(model.CleaningReminder{DueDay: tt.due}, today)
		if got != tt.want {
			t.Errorf("ComputeStatus(due=%d) = %q, want %q", tt.due, got, tt.want)
		}
	}
}

func TestWithStatus(t *testing.T) {
	today, _ := epochday.Parse("2026-03-10")
	list := WithStatus([]model.CleaningReminder{{Title: "Mop", DueDay: today + 2}}, today)

	if len(list) != 1 {
		t.Fatalf("got %d, want 1", len(list))
	}
	if list[0].DueDate != "2026-03-12" {
		t.Errorf("due date = %q, want %q", list[0].DueDate, "2026-03-12")
	}
	if list[0].DaysUntil != 2 {
		t.Errorf("days until = %d, want 2", list[0].DaysUntil)
	}
	if list[0].Status != StatusUpcoming {
		t.Errorf("status = %q, want %q", list[0].Status, StatusUpcoming)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		titles []string
		want   string
		ok     bool
	}{
		{nil, "", false},
		{[]string{"Vacuum"}, "Vacuum is due", true},
		{[]string{"Vacuum", "Dust"}, "Vacuum and 1 more are due", true},
		{[]string{"Vacuum", "Dust", "Mop"}, "Vacuum and 2 more are due", true},
	}
	for _, tt := range tests {
		var due []model.CleaningReminder
		for _, title := range tt.titles {
			due = append(due, model.CleaningReminder{Title: title})
		}
		got, ok := Summary(due)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Summary(%v) = %q, %v; want %q, %v", tt.titles, got, ok, tt.want, tt.ok)
		}
	}
}

func TestJobRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	today := epochday.FromTime(now)
	job, reminders, notifier := setupJob(t, now)

	reminders.Insert("h1", model.CleaningReminder{Title: "Clean oven", DueDay: today - 3})
	reminders.Insert("h1", model.CleaningReminder{Title: "Water plants", DueDay: today})
	reminders.Insert("h1", model.CleaningReminder{Title: "Windows", DueDay: today + 1})
	reminders.Insert("h2", model.CleaningReminder{Title: "Laundry", DueDay: today + 5})
	reminders.Insert("h3", model.CleaningReminder{Title: "Bins", DueDay: today})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(notifier.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(notifier.sent))
	}
	byHousehold := map[string]string{}
	for _, s := range notifier.sent {
		byHousehold[s.householdID] = s.payload.Body
	}
	if got := byHousehold["h1"]; got != "Clean oven and 1 more are due" {
		t.Errorf("h1 body = %q", got)
	}
	if got := byHousehold["h3"]; got != "Bins is due" {
		t.Errorf("h3 body = %q", got)
	}
	if _, ok := byHousehold["h2"]; ok {
		t.Error("h2 has nothing due and should not be notified")
	}
}

func TestJobRunOncePerDay(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	job, reminders, notifier := setupJob(t, now)
	reminders.Insert("h1", model.CleaningReminder{Title: "Bins", DueDay: epochday.FromTime(now)})

	job.Run(context.Background())
	job.Run(context.Background())
	if len(notifier.sent) != 1 {
		t.Fatalf("sent %d, want 1 on the same day", len(notifier.sent))
	}

	job.now = func() time.Time { return now.Add(24 * time.Hour) }
	job.Run(context.Background())
	if len(notifier.sent) != 2 {
		t.Errorf("sent %d, want 2 on the next day", len(notifier.sent))
	}
}

func TestJobRunRetriesAfterFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	job, reminders, notifier := setupJob(t, now)
	reminders.Insert("h1", model.CleaningReminder{Title: "Bins", DueDay: epochday.FromTime(now)})

	notifier.err = errors.New("push down")
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	notifier.err = nil
	job.Run(context.Background())
	if len(notifier.sent) != 1 {
		t.Errorf("sent %d, want 1 after recovery", len(notifier.sent))
	}
}

func TestJobRunRetriesWhenNothingDelivered(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	job, reminders, notifier := setupJob(t, now)
	reminders.Insert("h1", model.CleaningReminder{Title: "Bins", DueDay: epochday.FromTime(now)})

	notifier.offline = true
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sent, _ := job.sent.WasSent("h1", model.NotifTypeRemindersDue, epochday.Format(epochday.FromTime(now))); sent {
		t.Fatal("day recorded as sent with no device reached")
	}

	notifier.offline = false
	job.Run(context.Background())
	job.Run(context.Background())
	if len(notifier.sent) != 2 {
		t.Errorf("attempts = %d, want 2 (undelivered, then delivered once)", len(notifier.sent))
	}
}

func TestJobRunUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 20:00 UTC on the 9th is already the 10th at UTC+10.
	now := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)
	job, reminders, notifier := setupJob(t, now)
	job.loc = loc

	tenth, _ := epochday.Parse("2026-03-10")
	reminders.Insert("h1", model.CleaningReminder{Title: "Bins", DueDay: tenth})

	job.Run(context.Background())
	if len(notifier.sent) != 1 {
		t.Errorf("sent %d, want 1", len(notifier.sent))
	}
}
