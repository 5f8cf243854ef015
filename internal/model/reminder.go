package model

import "time"

// CleaningReminder is a household chore due on DueDay (days since the Unix
// epoch). A zero IntervalDays marks a one-off reminder.
type CleaningReminder struct {
	ID           int64     `json:"id"`
	HouseholdID  string    `json:"household_id"`
	Title        string    `json:"title"`
	Room         string    `json:"room"`
	DueDay       int64     `json:"due_day"`
	IntervalDays int       `json:"interval_days"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r CleaningReminder) Recurring() bool {
	return r.IntervalDays > 0
}
