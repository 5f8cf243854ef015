package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/hearth/internal/model"
)

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	err := scanner.Scan(&a.UID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const accountCols = `uid, email, display_name, password_hash, created_at`

// Create stores a new account. The email is kept lower-cased; a second
// account for the same address fails with ErrDuplicate.
func (s *AccountStore) Create(uid, email, displayName, passwordHash string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := s.db.Exec(
		`INSERT INTO accounts (uid, email, display_name, password_hash) VALUES (?, ?, ?, ?)`,
		uid, email, strings.TrimSpace(displayName), passwordHash,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert account %s: %w", email, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return s.GetByUID(uid)
}

func (s *AccountStore) GetByUID(uid string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE uid = ?`, uid)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByEmail(email string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}
