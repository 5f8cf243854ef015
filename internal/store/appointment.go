package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/changefeed"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/google/uuid"
)

type AppointmentStore struct {
	db   *sql.DB
	feed *changefeed.Hub
}

func NewAppointmentStore(db *sql.DB, feed *changefeed.Hub) *AppointmentStore {
	return &AppointmentStore{db: db, feed: feed}
}

func scanAppointment(scanner interface{ Scan(...any) error }) (*model.DoctorAppointment, error) {
	var a model.DoctorAppointment
	err := scanner.Scan(&a.ID, &a.HouseholdID, &a.Doctor, &a.Specialty, &a.Location, &a.Day, &a.Time, &a.Notes, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const appointmentCols = `id, household_id, doctor, specialty, location, day, time, notes, created_at`

func (s *AppointmentStore) changed(householdID string) {
	s.feed.Publish(changefeed.Topic(changefeed.TableAppointments, householdID))
}

func prepareAppointment(householdID string, a *model.DoctorAppointment) error {
	a.Doctor = strings.TrimSpace(a.Doctor)
	if a.Doctor == "" {
		return fmt.Errorf("%w: doctor is required", ErrInvalid)
	}
	if a.Time != "" {
		if _, err := time.Parse("15:04", a.Time); err != nil {
			return fmt.Errorf("%w: time must be HH:MM", ErrInvalid)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.HouseholdID = householdID
	return nil
}

func upsertAppointment(e execer, a *model.DoctorAppointment) error {
	result, err := e.Exec(
		`INSERT INTO doctor_appointments (id, household_id, doctor, specialty, location, day, time, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET doctor = excluded.doctor, specialty = excluded.specialty,
		   location = excluded.location, day = excluded.day, time = excluded.time, notes = excluded.notes
		 WHERE doctor_appointments.household_id = excluded.household_id`,
		a.ID, a.HouseholdID, a.Doctor, a.Specialty, a.Location, a.Day, a.Time, a.Notes,
	)
	if err != nil {
		return err
	}
	return checkUpserted(result, a.ID)
}

func (s *AppointmentStore) queryList(query string, args ...any) ([]model.DoctorAppointment, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	appointments := []model.DoctorAppointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, *a)
	}
	return appointments, rows.Err()
}

func (s *AppointmentStore) GetByID(householdID, id string) (*model.DoctorAppointment, error) {
	row := s.db.QueryRow(`SELECT `+appointmentCols+` FROM doctor_appointments WHERE id = ? AND household_id = ?`, id, householdID)
	a, err := scanAppointment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// List returns appointments in calendar order. Appointments without a time
// sort first within their day.
func (s *AppointmentStore) List(householdID string) ([]model.DoctorAppointment, error) {
	return s.queryList(
		`SELECT `+appointmentCols+` FROM doctor_appointments WHERE household_id = ? ORDER BY day ASC, time ASC, created_at ASC`,
		householdID,
	)
}

func (s *AppointmentStore) Observe(ctx context.Context, householdID string) <-chan []model.DoctorAppointment {
	return changefeed.Watch(ctx, s.feed, changefeed.Topic(changefeed.TableAppointments, householdID),
		func(context.Context) ([]model.DoctorAppointment, error) { return s.List(householdID) })
}

// ListUpcoming returns appointments from today onwards.
func (s *AppointmentStore) ListUpcoming(householdID string, today int64) ([]model.DoctorAppointment, error) {
	return s.queryList(
		`SELECT `+appointmentCols+` FROM doctor_appointments WHERE household_id = ? AND day >= ? ORDER BY day ASC, time ASC, created_at ASC`,
		householdID, today,
	)
}

func (s *AppointmentStore) CountUpcoming(householdID string, today int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM doctor_appointments WHERE household_id = ? AND day >= ?`,
		householdID, today,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count upcoming appointments: %w", err)
	}
	return count, nil
}

func (s *AppointmentStore) Insert(householdID string, a model.DoctorAppointment) (*model.DoctorAppointment, error) {
	if err := prepareAppointment(householdID, &a); err != nil {
		return nil, err
	}
	if err := upsertAppointment(s.db, &a); err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	s.changed(householdID)
	return s.GetByID(householdID, a.ID)
}

func (s *AppointmentStore) InsertAll(householdID string, appointments []model.DoctorAppointment) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range appointments {
		if err := prepareAppointment(householdID, &appointments[i]); err != nil {
			return 0, err
		}
		if err := upsertAppointment(tx, &appointments[i]); err != nil {
			return 0, fmt.Errorf("insert appointment with %q: %w", appointments[i].Doctor, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.changed(householdID)
	return len(appointments), nil
}

func (s *AppointmentStore) Update(householdID string, a model.DoctorAppointment) (*model.DoctorAppointment, error) {
	id := a.ID
	if err := prepareAppointment(householdID, &a); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`UPDATE doctor_appointments SET doctor = ?, specialty = ?, location = ?, day = ?, time = ?, notes = ?
		 WHERE id = ? AND household_id = ?`,
		a.Doctor, a.Specialty, a.Location, a.Day, a.Time, a.Notes, id, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	s.changed(householdID)
	return s.GetByID(householdID, id)
}

func (s *AppointmentStore) Delete(householdID, id string) error {
	result, err := s.db.Exec(`DELETE FROM doctor_appointments WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		s.changed(householdID)
	}
	return nil
}

func (s *AppointmentStore) DeleteAll(householdID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM doctor_appointments WHERE household_id = ?`, householdID)
	if err != nil {
		return 0, fmt.Errorf("delete all appointments: %w", err)
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
