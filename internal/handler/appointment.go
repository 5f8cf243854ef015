package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/epochday"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type AppointmentHandler struct {
	appointments *store.AppointmentStore
	hub          *websocket.Hub
	loc          *time.Location
	now          func() time.Time
	logger       *slog.Logger
}

func NewAppointmentHandler(as *store.AppointmentStore, hub *websocket.Hub, loc *time.Location, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{appointments: as, hub: hub, loc: loc, now: time.Now, logger: logger}
}

type appointmentRequest struct {
	ID        string `json:"id"`
	Doctor    string `json:"doctor"`
	Specialty string `json:"specialty"`
	Location  string `json:"location"`
	Date      string `json:"date"` // "2006-01-02"
	Time      string `json:"time"`
	Notes     string `json:"notes"`
}

func (req appointmentRequest) appointment() (model.DoctorAppointment, bool) {
	day, err := epochday.Parse(req.Date)
	if err != nil {
		return model.DoctorAppointment{}, false
	}
	return model.DoctorAppointment{
		ID:        req.ID,
		Doctor:    req.Doctor,
		Specialty: req.Specialty,
		Location:  req.Location,
		Day:       day,
		Time:      req.Time,
		Notes:     req.Notes,
	}, true
}

type appointmentView struct {
	model.DoctorAppointment
	Date string `json:"date"`
}

func appointmentViews(list []model.DoctorAppointment) []appointmentView {
	out := make([]appointmentView, 0, len(list))
	for _, a := range list {
		out = append(out, appointmentView{DoctorAppointment: a, Date: epochday.Format(a.Day)})
	}
	return out
}

func (h *AppointmentHandler) today() int64 {
	return epochday.FromTime(h.now().In(h.loc))
}

// List handles GET /api/appointments
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.appointments.List(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	writeJSON(w, http.StatusOK, appointmentViews(list))
}

// Upcoming handles GET /api/appointments/upcoming
func (h *AppointmentHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	list, err := h.appointments.ListUpcoming(auth.HouseholdID(r.Context()), h.today())
	if err != nil {
		h.logger.Error("list upcoming appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	writeJSON(w, http.StatusOK, appointmentViews(list))
}

// Count handles GET /api/appointments/count
func (h *AppointmentHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.appointments.CountUpcoming(auth.HouseholdID(r.Context()), h.today())
	if err != nil {
		h.logger.Error("count upcoming appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"upcoming": n})
}

// Create handles POST /api/appointments
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, ok := req.appointment()
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	created, err := h.appointments.Insert(auth.HouseholdID(r.Context()), a)
	if err != nil {
		writeStoreError(w, h.logger, "create appointment", err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentViews([]model.DoctorAppointment{*created})[0])
}

// InsertAll handles POST /api/appointments/batch
func (h *AppointmentHandler) InsertAll(w http.ResponseWriter, r *http.Request) {
	var reqs []appointmentRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	list := make([]model.DoctorAppointment, 0, len(reqs))
	for _, req := range reqs {
		a, ok := req.appointment()
		if !ok {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		list = append(list, a)
	}

	n, err := h.appointments.InsertAll(auth.HouseholdID(r.Context()), list)
	if err != nil {
		writeStoreError(w, h.logger, "insert appointments", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"inserted": n})
}

// Update handles PUT /api/appointments/{id}
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = r.PathValue("id")
	a, ok := req.appointment()
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	updated, err := h.appointments.Update(auth.HouseholdID(r.Context()), a)
	if err != nil {
		writeStoreError(w, h.logger, "update appointment", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	writeJSON(w, http.StatusOK, appointmentViews([]model.DoctorAppointment{*updated})[0])
}

// Delete handles DELETE /api/appointments/{id}
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.appointments.Delete(auth.HouseholdID(r.Context()), r.PathValue("id")); err != nil {
		writeStoreError(w, h.logger, "delete appointment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll handles DELETE /api/appointments
func (h *AppointmentHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.appointments.DeleteAll(auth.HouseholdID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "delete appointments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Stream handles GET /ws/appointments
func (h *AppointmentHandler) Stream(w http.ResponseWriter, r *http.Request) {
	hid := auth.HouseholdID(r.Context())
	websocket.Serve(h.hub, w, r, func(ctx context.Context) <-chan []appointmentView {
		return mapStream(ctx, h.appointments.Observe(ctx, hid), appointmentViews)
	})
}
