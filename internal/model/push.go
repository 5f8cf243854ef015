package model

import "time"

// Notification type constants
const (
	NotifTypeRemindersDue = "reminders_due"
	NotifTypeTest         = "test"
)

type PushSubscription struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	HouseholdID string    `json:"household_id"`
	Endpoint    string    `json:"endpoint"`
	P256dhKey   string    `json:"p256dh_key"`
	AuthKey     string    `json:"auth_key"`
	DeviceName  string    `json:"device_name"`
	CreatedAt   time.Time `json:"created_at"`
}
