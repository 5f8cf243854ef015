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

type ShoppingHandler struct {
	items  *store.ShoppingStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewShoppingHandler(ss *store.ShoppingStore, hub *websocket.Hub, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{items: ss, hub: hub, logger: logger}
}

type shoppingItemRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Category string `json:"category"`
	Checked  bool   `json:"checked"`
}

func (req shoppingItemRequest) item() model.ShoppingItem {
	return model.ShoppingItem{
		ID:       req.ID,
		Name:     req.Name,
		Quantity: req.Quantity,
		Category: req.Category,
		Checked:  req.Checked,
	}
}

func shoppingItems(reqs []shoppingItemRequest) []model.ShoppingItem {
	items := make([]model.ShoppingItem, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, req.item())
	}
	return items
}

// List handles GET /api/shopping
func (h *ShoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("list shopping items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Create handles POST /api/shopping
func (h *ShoppingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req shoppingItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.items.Insert(auth.HouseholdID(r.Context()), req.item())
	if err != nil {
		writeStoreError(w, h.logger, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// InsertAll handles POST /api/shopping/batch
func (h *ShoppingHandler) InsertAll(w http.ResponseWriter, r *http.Request) {
	var reqs []shoppingItemRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	n, err := h.items.InsertAll(auth.HouseholdID(r.Context()), shoppingItems(reqs))
	if err != nil {
		writeStoreError(w, h.logger, "insert items", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"inserted": n})
}

// ReplaceAll handles PUT /api/shopping
func (h *ShoppingHandler) ReplaceAll(w http.ResponseWriter, r *http.Request) {
	var reqs []shoppingItemRequest
	if !decodeJSON(w, r, &reqs) {
		return
	}
	hid := auth.HouseholdID(r.Context())
	if err := h.items.ReplaceAll(hid, shoppingItems(reqs)); err != nil {
		writeStoreError(w, h.logger, "replace items", err)
		return
	}
	h.List(w, r)
}

// Update handles PUT /api/shopping/{id}
func (h *ShoppingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req shoppingItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = r.PathValue("id")

	item, err := h.items.Update(auth.HouseholdID(r.Context()), req.item())
	if err != nil {
		writeStoreError(w, h.logger, "update item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ToggleChecked handles POST /api/shopping/{id}/check
func (h *ShoppingHandler) ToggleChecked(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.ToggleChecked(auth.HouseholdID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, "toggle item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/shopping/{id}
func (h *ShoppingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(auth.HouseholdID(r.Context()), r.PathValue("id")); err != nil {
		writeStoreError(w, h.logger, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearChecked handles POST /api/shopping/clear-checked
func (h *ShoppingHandler) ClearChecked(w http.ResponseWriter, r *http.Request) {
	n, err := h.items.ClearChecked(auth.HouseholdID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "clear checked items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// DeleteAll handles DELETE /api/shopping
func (h *ShoppingHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.items.DeleteAll(auth.HouseholdID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "delete items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Count handles GET /api/shopping/count
func (h *ShoppingHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.items.CountUnchecked(auth.HouseholdID(r.Context()))
	if err != nil {
		h.logger.Error("count shopping items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count items")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unchecked": n})
}

// StreamCount handles GET /ws/shopping/count
func (h *ShoppingHandler) StreamCount(w http.ResponseWriter, r *http.Request) {
	hid := auth.HouseholdID(r.Context())
	websocket.Serve(h.hub, w, r, func(ctx context.Context) <-chan int {
		return h.items.ObserveCount(ctx, hid)
	})
}

// Stream handles GET /ws/shopping
func (h *ShoppingHandler) Stream(w http.ResponseWriter, r *http.Request) {
	hid := auth.HouseholdID(r.Context())
	websocket.Serve(h.hub, w, r, func(ctx context.Context) <-chan []model.ShoppingItem {
		return h.items.Observe(ctx, hid)
	})
}
