package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/epochday"
	"github.com/dukerupert/hearth/internal/household"
	"github.com/dukerupert/hearth/internal/reminder"
	"github.com/dukerupert/hearth/internal/store"
)

type DashboardHandler struct {
	shopping     *store.ShoppingStore
	reminders    *store.ReminderStore
	appointments *store.AppointmentStore
	contacts     *store.ContactStore
	households   *household.Service
	loc          *time.Location
	now          func() time.Time
	logger       *slog.Logger
}

func NewDashboardHandler(
	ss *store.ShoppingStore,
	rs *store.ReminderStore,
	as *store.AppointmentStore,
	cs *store.ContactStore,
	hs *household.Service,
	loc *time.Location,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		shopping:     ss,
		reminders:    rs,
		appointments: as,
		contacts:     cs,
		households:   hs,
		loc:          loc,
		now:          time.Now,
		logger:       logger,
	}
}

type dashboardCounts struct {
	Shopping     int `json:"shopping"`
	Reminders    int `json:"reminders"`
	Appointments int `json:"appointments"`
	Contacts     int `json:"contacts"`
	Members      int `json:"members"`
}

type dashboard struct {
	Household       string                        `json:"household"`
	Today           string                        `json:"today"`
	Counts          dashboardCounts               `json:"counts"`
	NextAppointment *appointmentView              `json:"next_appointment"`
	DueReminders    []reminder.ReminderWithStatus `json:"due_reminders"`
}

// Get handles GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	hid := auth.HouseholdID(r.Context())
	today := epochday.FromTime(h.now().In(h.loc))
	fail := func(op string, err error) {
		h.logger.Error("dashboard: "+op, "household_id", hid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
	}

	var d dashboard
	d.Today = epochday.Format(today)

	var err error
	if d.Counts.Shopping, err = h.shopping.CountUnchecked(hid); err != nil {
		fail("count shopping", err)
		return
	}
	due, err := h.reminders.ListDue(hid, today)
	if err != nil {
		fail("list due reminders", err)
		return
	}
	d.DueReminders = reminder.WithStatus(due, today)
	d.Counts.Reminders = len(due)

	upcoming, err := h.appointments.ListUpcoming(hid, today)
	if err != nil {
		fail("list upcoming appointments", err)
		return
	}
	d.Counts.Appointments = len(upcoming)
	if len(upcoming) > 0 {
		d.NextAppointment = &appointmentViews(upcoming[:1])[0]
	}

	if d.Counts.Contacts, err = h.contacts.Count(hid); err != nil {
		fail("count contacts", err)
		return
	}

	// The document store may be remote; a failure there leaves the local
	// counts intact.
	if hh, err := h.households.Household(r.Context()); err != nil {
		h.logger.Warn("dashboard: load household", "household_id", hid, "error", err)
	} else {
		d.Household = hh.Name
		d.Counts.Members = len(hh.Members)
	}

	writeJSON(w, http.StatusOK, d)
}
