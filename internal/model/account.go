package model

import "time"

// Account is a locally registered sign-in identity. The household profile for
// the same UID lives in the document store.
type Account struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
