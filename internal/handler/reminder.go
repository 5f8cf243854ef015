package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/epochday"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/reminder"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type ReminderHandler struct {
	reminders *store.ReminderStore
	hub       *websocket.Hub
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

func NewReminderHandler(rs *store.ReminderStore, hub *websocket.Hub, loc *time.Location, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{reminders: rs, hub: hub, loc: loc, now: time.Now, logger: logger}
}

func (h *ReminderHandler) today() int64 {
	return epochday.FromTime(h.now().In(h.loc))
}

type reminderRequest struct {
	Title        string `json:"title"`
	Room         string `json:"room"`
	DueDate      string `json:"due_date"` // "2006-01-02", empty for today
	IntervalDays int    `json:"interval_days"`
}

func (h *ReminderHandler) reminder(req reminderRequest) (model.CleaningReminder, bool) {
	due := h.today()
	if req.DueDate != "" {
		d, err := epochday.Parse(req.DueDate)
		if err != nil {
			return model.CleaningReminder{}, false
		}
		due = d
	}
	return model.CleaningReminder{
		Title:        req.Title,
		Room:         req.Room,
		DueDay:       due,
		IntervalDays: req.IntervalDays,
	}, true
}

func (h *ReminderHandler) withStatus(r *model.CleaningReminder) reminder.ReminderWithStatus {
	return reminder.WithStatus([]model.CleaningReminder{*r}, h.today())[0]
}

// List handles GET /api/reminders
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.reminders.List(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list reminders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	writeJSON(w, http.StatusOK, reminder.WithStatus(list, h.today()))
}

// Due handles GET /api/reminders/due
func (h *ReminderHandler) Due(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	list, err := h.reminders.ListDue(auth.HouseholdID(r.Context()), today)
	if err != nil {
		h.logger.Error("list due reminders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	writeJSON(w, http.StatusOK, reminder.WithStatus(list, today))
}

// Count handles GET /api/reminders/count
func (h *ReminderHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.reminders.CountDue(auth.HouseholdID(r.Context()), h.today())
	if err != nil {
		h.logger.Error("count due reminders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count reminders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"due": n})
}

// Create handles POST /api/reminders
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rem, ok := h.reminder(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}

	created, err := h.reminders.Insert(auth.HouseholdID(r.Context()), rem)
	if err != nil {
		writeStoreError(w, h.logger, "create reminder", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.withStatus(created))
}

// InsertAll handles POST /api/reminders/batch
func (h *ReminderHandler) InsertAll(w http.ResponseWriter, r *http.Request) {
	var reqs []reminderRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	list := make([]model.CleaningReminder, 0, len(reqs))
	for _, req := range reqs {
		rem, ok := h.reminder(req)
		if !ok {
			writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
			return
		}
		list = append(list, rem)
	}

	n, err := h.reminders.InsertAll(auth.HouseholdID(r.Context()), list)
	if err != nil {
		writeStoreError(w, h.logger, "insert reminders", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"inserted": n})
}

// Update handles PUT /api/reminders/{id}
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req reminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rem, ok := h.reminder(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}
	rem.ID = id

	updated, err := h.reminders.Update(auth.HouseholdID(r.Context()), rem)
	if err != nil {
		writeStoreError(w, h.logger, "update reminder", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}
	writeJSON(w, http.StatusOK, h.withStatus(updated))
}

// Complete handles POST /api/reminders/{id}/complete. A recurring reminder
// comes back with its next due date; a one-off one is gone.
func (h *ReminderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	next, found, err := h.reminders.Complete(auth.HouseholdID(r.Context()), id, h.today())
	if err != nil {
		writeStoreError(w, h.logger, "complete reminder", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	resp := map[string]any{"completed": true, "next": nil}
	if next != nil {
		resp["next"] = h.withStatus(next)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.reminders.Delete(auth.HouseholdID(r.Context()), id); err != nil {
		writeStoreError(w, h.logger, "delete reminder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll handles DELETE /api/reminders
func (h *ReminderHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.reminders.DeleteAll(auth.HouseholdID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "delete reminders", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Stream handles GET /ws/reminders
func (h *ReminderHandler) Stream(w http.ResponseWriter, r *http.Request) {
	hid := auth.HouseholdID(r.Context())
	websocket.Serve(h.hub, w, r, func(ctx context.Context) <-chan []reminder.ReminderWithStatus {
		return mapStream(ctx, h.reminders.Observe(ctx, hid), func(list []model.CleaningReminder) []reminder.ReminderWithStatus {
			return reminder.WithStatus(list, h.today())
		})
	})
}
