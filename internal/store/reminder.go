package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/hearth/internal/changefeed"
	"github.com/dukerupert/hearth/internal/model"
)

type ReminderStore struct {
	db   *sql.DB
	feed *changefeed.Hub
}

func NewReminderStore(db *sql.DB, feed *changefeed.Hub) *ReminderStore {
	return &ReminderStore{db: db, feed: feed}
}

func scanReminder(scanner interface{ Scan(...any) error }) (*model.CleaningReminder, error) {
	var r model.CleaningReminder
	err := scanner.Scan(&r.ID, &r.HouseholdID, &r.Title, &r.Room, &r.DueDay, &r.IntervalDays, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const reminderCols = `id, household_id, title, room, due_day, interval_days, created_at`

func (s *ReminderStore) changed(householdID string) {
	s.feed.Publish(changefeed.Topic(changefeed.TableReminders, householdID))
}

func validateReminder(r *model.CleaningReminder) error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return fmt.Errorf("%w: reminder title is required", ErrInvalid)
	}
	if r.IntervalDays < 0 {
		return fmt.Errorf("%w: interval must not be negative", ErrInvalid)
	}
	return nil
}

func (s *ReminderStore) queryList(query string, args ...any) ([]model.CleaningReminder, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	reminders := []model.CleaningReminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

func (s *ReminderStore) GetByID(householdID string, id int64) (*model.CleaningReminder, error) {
	row := s.db.QueryRow(`SELECT `+reminderCols+` FROM cleaning_reminders WHERE id = ? AND household_id = ?`, id, householdID)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

// List returns reminders soonest-due first.
func (s *ReminderStore) List(householdID string) ([]model.CleaningReminder, error) {
	return s.queryList(
		`SELECT `+reminderCols+` FROM cleaning_reminders WHERE household_id = ? ORDER BY due_day ASC, id ASC`,
		householdID,
	)
}

func (s *ReminderStore) Observe(ctx context.Context, householdID string) <-chan []model.CleaningReminder {
	return changefeed.Watch(ctx, s.feed, changefeed.Topic(changefeed.TableReminders, householdID),
		func(context.Context) ([]model.CleaningReminder, error) { return s.List(householdID) })
}

// ListDue returns reminders whose due day is today or earlier.
func (s *ReminderStore) ListDue(householdID string, today int64) ([]model.CleaningReminder, error) {
	return s.queryList(
		`SELECT `+reminderCols+` FROM cleaning_reminders WHERE household_id = ? AND due_day <= ? ORDER BY due_day ASC, id ASC`,
		householdID, today,
	)
}

func (s *ReminderStore) CountDue(householdID string, today int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM cleaning_reminders WHERE household_id = ? AND due_day <= ?`,
		householdID, today,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count due reminders: %w", err)
	}
	return count, nil
}

// ListHouseholdsWithDue returns every household that has at least one
// reminder due on or before today.
func (s *ReminderStore) ListHouseholdsWithDue(today int64) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT household_id FROM cleaning_reminders WHERE due_day <= ? ORDER BY household_id`,
		today,
	)
	if err != nil {
		return nil, fmt.Errorf("list households with due reminders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan household id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertReminder(e execer, householdID string, r *model.CleaningReminder) (int64, error) {
	result, err := e.Exec(
		`INSERT INTO cleaning_reminders (household_id, title, room, due_day, interval_days) VALUES (?, ?, ?, ?, ?)`,
		householdID, r.Title, r.Room, r.DueDay, r.IntervalDays,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *ReminderStore) Insert(householdID string, r model.CleaningReminder) (*model.CleaningReminder, error) {
	if err := validateReminder(&r); err != nil {
		return nil, err
	}
	id, err := insertReminder(s.db, householdID, &r)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	s.changed(householdID)
	return s.GetByID(householdID, id)
}

func (s *ReminderStore) InsertAll(householdID string, reminders []model.CleaningReminder) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range reminders {
		if err := validateReminder(&reminders[i]); err != nil {
			return 0, err
		}
		if _, err := insertReminder(tx, householdID, &reminders[i]); err != nil {
			return 0, fmt.Errorf("insert reminder %q: %w", reminders[i].Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.changed(householdID)
	return len(reminders), nil
}

func (s *ReminderStore) Update(householdID string, r model.CleaningReminder) (*model.CleaningReminder, error) {
	if err := validateReminder(&r); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`UPDATE cleaning_reminders SET title = ?, room = ?, due_day = ?, interval_days = ? WHERE id = ? AND household_id = ?`,
		r.Title, r.Room, r.DueDay, r.IntervalDays, r.ID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	s.changed(householdID)
	return s.GetByID(householdID, r.ID)
}

func (s *ReminderStore) Delete(householdID string, id int64) error {
	result, err := s.db.Exec(`DELETE FROM cleaning_reminders WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		s.changed(householdID)
	}
	return nil
}

func (s *ReminderStore) DeleteAll(householdID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM cleaning_reminders WHERE household_id = ?`, householdID)
	if err != nil {
		return 0, fmt.Errorf("delete all reminders: %w", err)
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

// Complete marks a reminder done on today. A recurring reminder moves forward
// by whole intervals until it falls after today and the moved reminder is
// returned; a one-off reminder is deleted and nil is returned. found is false
// when no such reminder exists.
func (s *ReminderStore) Complete(householdID string, id, today int64) (next *model.CleaningReminder, found bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	r, err := scanReminder(tx.QueryRow(
		`SELECT `+reminderCols+` FROM cleaning_reminders WHERE id = ? AND household_id = ?`, id, householdID,
	))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get reminder: %w", err)
	}

	if r.Recurring() {
		r.DueDay = NextDueDay(r.DueDay, r.IntervalDays, today)
		_, err = tx.Exec(`UPDATE cleaning_reminders SET due_day = ? WHERE id = ?`, r.DueDay, id)
	} else {
		_, err = tx.Exec(`DELETE FROM cleaning_reminders WHERE id = ?`, id)
		r = nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("complete reminder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, true, fmt.Errorf("commit: %w", err)
	}
	s.changed(householdID)
	return r, true, nil
}

// NextDueDay advances due by whole multiples of interval (at least one) until
// the result is after today.
func NextDueDay(due int64, interval int, today int64) int64 {
	step := int64(interval)
	if due > today {
		return due + step
	}
	return due + ((today-due)/step+1)*step
}
