package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/email"
	"github.com/dukerupert/hearth/internal/household"
	"github.com/dukerupert/hearth/internal/websocket"
)

// Mailer tells a user they were added to a household.
type Mailer interface {
	SendMemberAdded(ctx context.Context, toEmail, householdName, addedBy string) error
}

type HouseholdHandler struct {
	households *household.Service
	mailer     Mailer
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewHouseholdHandler(hs *household.Service, mailer Mailer, hub *websocket.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: hs, mailer: mailer, hub: hub, logger: logger}
}

func (h *HouseholdHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, household.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, household.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, household.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

// Get handles GET /api/household
func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	hh, err := h.households.Household(r.Context())
	if err != nil {
		h.writeServiceError(w, "load household", err)
		return
	}
	writeJSON(w, http.StatusOK, hh)
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename handles PUT /api/household
func (h *HouseholdHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.households.Rename(r.Context(), req.Name); err != nil {
		h.writeServiceError(w, "rename household", err)
		return
	}
	h.Get(w, r)
}

type addMemberRequest struct {
	Email string `json:"email"`
}

type addMemberResponse struct {
	Added   bool   `json:"added"`
	Message string `json:"message"`
}

// AddMember handles POST /api/household/members. The outcome is always
// reported in the body so the household screen can show it inline.
func (h *HouseholdHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	addr := strings.ToLower(strings.TrimSpace(req.Email))
	if addr == "" {
		writeJSON(w, http.StatusOK, addMemberResponse{Message: "Enter an email address"})
		return
	}

	hid := auth.HouseholdID(r.Context())
	added, err := h.households.AddMemberByEmail(r.Context(), hid, addr)
	if err != nil {
		h.logger.Error("add member", "household_id", hid, "error", err)
		writeJSON(w, http.StatusOK, addMemberResponse{Message: "Could not add member, try again"})
		return
	}
	if !added {
		writeJSON(w, http.StatusOK, addMemberResponse{Message: "No user found with email " + addr})
		return
	}

	h.notifyAdded(r.Context(), addr)
	writeJSON(w, http.StatusOK, addMemberResponse{Added: true, Message: "Added " + addr})
}

func (h *HouseholdHandler) notifyAdded(ctx context.Context, addr string) {
	if h.mailer == nil {
		return
	}
	hh, err := h.households.Household(ctx)
	if err != nil {
		h.logger.Warn("member added email: load household", "error", err)
		return
	}
	id, _ := auth.IdentityFromContext(ctx)
	addedBy := id.DisplayName
	if addedBy == "" {
		addedBy = id.Email
	}
	err = h.mailer.SendMemberAdded(ctx, addr, hh.Name, addedBy)
	switch {
	case errors.Is(err, email.ErrNotConfigured):
	case err != nil:
		h.logger.Warn("send member added email", "to", addr, "error", err)
	}
}

type joinRequest struct {
	Code string `json:"code"`
}

// Join handles POST /api/household/join
func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	hid, err := h.households.JoinByCode(r.Context(), req.Code)
	if err != nil {
		h.writeServiceError(w, "join household", err)
		return
	}
	h.hub.Disconnect(auth.UID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"household_id": hid})
}

// Leave handles POST /api/household/leave
func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	hid, err := h.households.Leave(r.Context())
	if err != nil {
		h.writeServiceError(w, "leave household", err)
		return
	}
	h.hub.Disconnect(auth.UID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"household_id": hid})
}

// StreamMembers handles GET /ws/household/members
func (h *HouseholdHandler) StreamMembers(w http.ResponseWriter, r *http.Request) {
	hid := auth.HouseholdID(r.Context())
	websocket.Serve(h.hub, w, r, func(ctx context.Context) <-chan []household.Member {
		return h.households.ObserveMembers(ctx, hid)
	})
}
