package model

import "time"

type DoctorAppointment struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	Doctor      string    `json:"doctor"`
	Specialty   string    `json:"specialty"`
	Location    string    `json:"location"`
	Day         int64     `json:"day"`
	Time        string    `json:"time"` // "HH:MM", empty when unknown
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}
