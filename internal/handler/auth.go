package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/household"
	"github.com/dukerupert/hearth/internal/model"
)

type AuthHandler struct {
	auth       *auth.Service
	households *household.Service
	logger     *slog.Logger
}

func NewAuthHandler(as *auth.Service, hs *household.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: as, households: hs, logger: logger}
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type authResponse struct {
	Token string         `json:"token"`
	User  *model.Account `json:"user"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, token, err := h.auth.Register(r.Context(), req.Email, strings.TrimSpace(req.DisplayName), req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), auth.ErrInvalidInput.Error()+": "))
		return
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("register", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	h.bootstrap(r, account)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: account})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("login", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	h.bootstrap(r, account)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: account})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"uid":          id.UID,
		"email":        id.Email,
		"display_name": id.DisplayName,
		"household_id": auth.HouseholdID(r.Context()),
	})
}

// bootstrap makes sure the signed-in account has a profile document. A
// failure only delays it to the first authenticated request.
func (h *AuthHandler) bootstrap(r *http.Request, account *model.Account) {
	ctx := auth.WithIdentity(r.Context(), auth.Identity{
		UID:         account.UID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
	})
	if _, err := h.households.EnsureUserProfile(ctx); err != nil {
		h.logger.Warn("bootstrap profile", "uid", account.UID, "error", err)
	}
}
