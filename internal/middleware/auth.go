package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/household"
)

// TokenValidator turns a bearer token into the identity it was issued for.
type TokenValidator interface {
	ValidateToken(token string) (auth.Identity, error)
}

// HouseholdResolver finds (or lazily creates) the household of the
// identity in ctx.
type HouseholdResolver interface {
	GetOrCreateHouseholdID(ctx context.Context) (string, error)
}

// RequireAuth validates the bearer token and stores the identity in the
// request context. WebSocket clients cannot set headers, so a token query
// parameter is accepted as well.
func RequireAuth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			id, err := tokens.ValidateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := auth.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireHousehold resolves the caller's household id into the context.
// It must run after RequireAuth.
func RequireHousehold(households HouseholdResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hid, err := households.GetOrCreateHouseholdID(r.Context())
			if errors.Is(err, household.ErrUnauthenticated) {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if err != nil {
				logger.Error("resolve household", "uid", auth.UID(r.Context()), "error", err)
				writeError(w, http.StatusServiceUnavailable, "household unavailable")
				return
			}

			ctx := auth.WithHouseholdID(r.Context(), hid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets through only callers whose email is in emails. It must
// run after RequireAuth.
func RequireAdmin(emails []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !slices.ContainsFunc(emails, func(e string) bool { return strings.EqualFold(e, id.Email) }) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
