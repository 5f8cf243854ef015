package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/websocket"
)

type ContactHandler struct {
	contacts *store.ContactStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewContactHandler(cs *store.ContactStore, hub *websocket.Hub, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{contacts: cs, hub: hub, logger: logger}
}

type contactRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Relation string `json:"relation"`
}

func (req contactRequest) contact() model.Contact {
	return model.Contact{Name: req.Name, Phone: req.Phone, Email: req.Email, Relation: req.Relation}
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.contacts.List(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list contacts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.contacts.Insert(auth.HouseholdID(r.Context()), req.contact())
	if err != nil {
		writeStoreError(w, h.logger, "create contact", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *ContactHandler) InsertAll(w http.ResponseWriter, r *http.Request) {
	var reqs []contactRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	list := make([]model.Contact, 0, len(reqs))
	for _, req := range reqs {
		list = append(list, req.contact())
	}
	n, err := h.contacts.InsertAll(auth.HouseholdID(r.Context()), list)
	if err != nil {
		writeStoreError(w, h.logger, "insert contacts", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"inserted": n})
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req contactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c := req.contact()
	c.ID = id

	updated, err := h.contacts.Update(auth.HouseholdID(r.Context()), c)
	if err != nil {
		writeStoreError(w, h.logger, "update contact", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.contacts.Delete(auth.HouseholdID(r.Context()), id); err != nil {
		writeStoreError(w, h.logger, "delete contact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContactHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.contacts.DeleteAll(auth.HouseholdID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "delete contacts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *ContactHandler) Stream(w http.ResponseWriter, r *http.Request) {
	hid := auth.HouseholdID(r.Context())
	websocket.Serve(h.hub, w, r, func(ctx context.Context) <-chan []model.Contact {
		return h.contacts.Observe(ctx, hid)
	})
}
