package reminder

import (
	"fmt"

	"github.com/dukerupert/hearth/internal/epochday"
	"github.com/dukerupert/hearth/internal/model"
)

type Status string

const (
	StatusOverdue  Status = "overdue"
	StatusDueToday Status = "due_today"
	StatusUpcoming Status = "upcoming"
)

type ReminderWithStatus struct {
	model.CleaningReminder
	Status    Status `json:"status"`
	DueDate   string `json:"due_date"`
	DaysUntil int64  `json:"days_until"`
}

// ComputeStatus classifies a reminder against today's epoch day.
func ComputeStatus(r model.CleaningReminder, today int64) Status {
	switch {
	case r.DueDay < today:
		return StatusOverdue
	case r.DueDay == today:
		return StatusDueToday
	default:
		return StatusUpcoming
	}
}

func WithStatus(reminders []model.CleaningReminder, today int64) []ReminderWithStatus {
	out := make([]ReminderWithStatus, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, ReminderWithStatus{
			CleaningReminder: r,
			Status:           ComputeStatus(r, today),
			DueDate:          epochday.Format(r.DueDay),
			DaysUntil:        r.DueDay - today,
		})
	}
	return out
}

// Summary is the notification body for a household's due reminders: the
// first reminder by name and a count of the rest. It reports false when
// nothing is due.
func Summary(due []model.CleaningReminder) (string, bool) {
	switch len(due) {
	case 0:
		return "", false
	case 1:
		return due[0].Title + " is due", true
	default:
		return fmt.Sprintf("%s and %d more are due", due[0].Title, len(due)-1), true
	}
}
