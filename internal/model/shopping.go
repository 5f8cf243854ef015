package model

import "time"

type ShoppingItem struct {
	ID          string    `json:"id"`
	HouseholdID string    `json:"household_id"`
	Name        string    `json:"name"`
	Quantity    string    `json:"quantity"`
	Category    string    `json:"category"`
	Checked     bool      `json:"checked"`
	CreatedAt   time.Time `json:"created_at"`
}
