// Package reminder computes cleaning reminder status and runs the daily job
// that tells each household what is due.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/hearth/internal/epochday"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/push"
	"github.com/dukerupert/hearth/internal/store"
)

// sentRetention is how long dedupe records are kept.
const sentRetention = 30 * 24 * time.Hour

// Notifier delivers a payload to every device of a household.
type Notifier interface {
	NotifyHousehold(ctx context.Context, householdID string, payload push.Payload) (int, error)
}

// Job sends at most one summary notification per household per day.
type Job struct {
	reminders *store.ReminderStore
	sent      *store.PushStore
	notifier  Notifier
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

func NewJob(reminders *store.ReminderStore, sent *store.PushStore, notifier Notifier, loc *time.Location, logger *slog.Logger) *Job {
	return &Job{
		reminders: reminders,
		sent:      sent,
		notifier:  notifier,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

// Run notifies every household with reminders due today or earlier.
// A failure for one household is logged and does not stop the others.
func (j *Job) Run(ctx context.Context) error {
	now := j.now().In(j.loc)
	today := epochday.FromTime(now)

	households, err := j.reminders.ListHouseholdsWithDue(today)
	if err != nil {
		return fmt.Errorf("list households: %w", err)
	}

	for _, hid := range households {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.notify(ctx, hid, today); err != nil {
			metrics.RecordReminder("failed")
			j.logger.Error("send reminder summary", "household_id", hid, "error", err)
		}
	}

	if n, err := j.sent.CleanupSent(now.Add(-sentRetention)); err != nil {
		j.logger.Error("cleanup sent notifications", "error", err)
	} else if n > 0 {
		j.logger.Debug("cleaned up sent notifications", "count", n)
	}
	return nil
}

func (j *Job) notify(ctx context.Context, householdID string, today int64) error {
	refID := epochday.Format(today)
	sent, err := j.sent.WasSent(householdID, model.NotifTypeRemindersDue, refID)
	if err != nil {
		return fmt.Errorf("check sent: %w", err)
	}
	if sent {
		metrics.RecordReminder("skipped")
		return nil
	}

	due, err := j.reminders.ListDue(householdID, today)
	if err != nil {
		return fmt.Errorf("list due: %w", err)
	}
	body, ok := Summary(due)
	if !ok {
		return nil
	}

	delivered, err := j.notifier.NotifyHousehold(ctx, householdID, push.Payload{
		Title: "Cleaning reminders",
		Body:  body,
		URL:   "/reminders",
		Tag:   "reminders-" + refID,
	})
	if err != nil {
		return err
	}
	// The day stays open until a device receives it, so the next run retries.
	if delivered == 0 {
		metrics.RecordReminder("undelivered")
		j.logger.Warn("reminder summary not delivered", "household_id", householdID, "due", len(due))
		return nil
	}

	if err := j.sent.RecordSent(householdID, model.NotifTypeRemindersDue, refID); err != nil {
		return fmt.Errorf("record sent: %w", err)
	}
	metrics.RecordReminder("sent")
	j.logger.Info("reminder summary sent", "household_id", householdID, "due", len(due), "devices", delivered)
	return nil
}
