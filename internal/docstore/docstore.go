// Package docstore holds the shared household documents: one user profile per
// signed-in account and one household document per household. Every member
// of a household reads the same documents, so writes that touch a member set
// go through UpdateMembers, which is transactional on every backend.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by writes that target a missing document.
var ErrNotFound = errors.New("document not found")

// UserDoc is the profile stored at users/{uid}.
type UserDoc struct {
	UID         string  `json:"-"`
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	HouseholdID *string `json:"householdId"`
}

// HouseholdDoc is the document stored at households/{id}.
type HouseholdDoc struct {
	ID      string   `json:"-"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// MembersFunc receives the current member list and returns the list to store.
// Returning false leaves the document untouched.
type MembersFunc func(members []string) ([]string, bool)

type Store interface {
	// GetUser returns nil when the profile does not exist.
	GetUser(ctx context.Context, uid string) (*UserDoc, error)
	// CreateUser writes the profile unless one already exists, reporting
	// whether it wrote.
	CreateUser(ctx context.Context, user UserDoc) (bool, error)
	SetUserHousehold(ctx context.Context, uid string, householdID *string) error
	// FindUserByEmail matches the stored email case-insensitively.
	FindUserByEmail(ctx context.Context, email string) (*UserDoc, error)
	// GetUsers reads every uid in one consistent read. Missing profiles are
	// left out; the rest keep the order of uids.
	GetUsers(ctx context.Context, uids []string) ([]UserDoc, error)

	// GetHousehold returns nil when the household does not exist.
	GetHousehold(ctx context.Context, id string) (*HouseholdDoc, error)
	CreateHousehold(ctx context.Context, household HouseholdDoc) error
	RenameHousehold(ctx context.Context, id, name string) error
	// UpdateMembers applies fn to the member list as a read-modify-write
	// transaction.
	UpdateMembers(ctx context.Context, id string, fn MembersFunc) error
	// WatchHousehold signals once straight away and again after every write
	// to the household document. Signals coalesce while unread. The channel
	// closes when ctx ends.
	WatchHousehold(ctx context.Context, id string) (<-chan struct{}, error)
}

func cloneMembers(members []string) []string {
	if members == nil {
		return []string{}
	}
	return append([]string(nil), members...)
}
