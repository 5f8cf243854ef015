package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/hearth/internal/changefeed"
	"github.com/dukerupert/hearth/internal/model"
)

type ContactStore struct {
	db   *sql.DB
	feed *changefeed.Hub
}

func NewContactStore(db *sql.DB, feed *changefeed.Hub) *ContactStore {
	return &ContactStore{db: db, feed: feed}
}

func scanContact(scanner interface{ Scan(...any) error }) (*model.Contact, error) {
	var c model.Contact
	err := scanner.Scan(&c.ID, &c.HouseholdID, &c.Name, &c.Phone, &c.Email, &c.Relation, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const contactCols = `id, household_id, name, phone, email, relation, created_at`

func (s *ContactStore) changed(householdID string) {
	s.feed.Publish(changefeed.Topic(changefeed.TableContacts, householdID))
}

func validateContact(c *model.Contact) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: contact name is required", ErrInvalid)
	}
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	return nil
}

func insertContact(e execer, householdID string, c *model.Contact) (int64, error) {
	result, err := e.Exec(
		`INSERT INTO contacts (household_id, name, phone, email, relation) VALUES (?, ?, ?, ?, ?)`,
		householdID, c.Name, c.Phone, c.Email, c.Relation,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *ContactStore) GetByID(householdID string, id int64) (*model.Contact, error) {
	row := s.db.QueryRow(`SELECT `+contactCols+` FROM contacts WHERE id = ? AND household_id = ?`, id, householdID)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (s *ContactStore) List(householdID string) ([]model.Contact, error) {
	rows, err := s.db.Query(
		`SELECT `+contactCols+` FROM contacts WHERE household_id = ? ORDER BY name COLLATE NOCASE ASC, id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func (s *ContactStore) Observe(ctx context.Context, householdID string) <-chan []model.Contact {
	return changefeed.Watch(ctx, s.feed, changefeed.Topic(changefeed.TableContacts, householdID),
		func(context.Context) ([]model.Contact, error) { return s.List(householdID) })
}

func (s *ContactStore) Count(householdID string) (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM contacts WHERE household_id = ?`, householdID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return count, nil
}

func (s *ContactStore) Insert(householdID string, c model.Contact) (*model.Contact, error) {
	if err := validateContact(&c); err != nil {
		return nil, err
	}
	id, err := insertContact(s.db, householdID, &c)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	s.changed(householdID)
	return s.GetByID(householdID, id)
}

func (s *ContactStore) InsertAll(householdID string, contacts []model.Contact) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range contacts {
		if err := validateContact(&contacts[i]); err != nil {
			return 0, err
		}
		if _, err := insertContact(tx, householdID, &contacts[i]); err != nil {
			return 0, fmt.Errorf("insert contact %q: %w", contacts[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.changed(householdID)
	return len(contacts), nil
}

func (s *ContactStore) Update(householdID string, c model.Contact) (*model.Contact, error) {
	if err := validateContact(&c); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`UPDATE contacts SET name = ?, phone = ?, email = ?, relation = ? WHERE id = ? AND household_id = ?`,
		c.Name, c.Phone, c.Email, c.Relation, c.ID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	s.changed(householdID)
	return s.GetByID(householdID, c.ID)
}

func (s *ContactStore) Delete(householdID string, id int64) error {
	result, err := s.db.Exec(`DELETE FROM contacts WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		s.changed(householdID)
	}
	return nil
}

func (s *ContactStore) DeleteAll(householdID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM contacts WHERE household_id = ?`, householdID)
	if err != nil {
		return 0, fmt.Errorf("delete all contacts: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if count > 0 {
		s.changed(householdID)
	}
	return count, nil
}
