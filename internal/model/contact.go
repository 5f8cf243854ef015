package model

import "time"

type Contact struct {
	ID          int64     `json:"id"`
	HouseholdID string    `json:"household_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Relation    string    `json:"relation"`
	CreatedAt   time.Time `json:"created_at"`
}
