package auth

import "context"

type contextKey struct{}

type householdKey struct{}

// Identity is the signed-in user a request acts for.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func UID(ctx context.Context) string {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	return id.UID
}

// WithHouseholdID records the household the request's user currently belongs to.
func WithHouseholdID(ctx context.Context, householdID string) context.Context {
	return context.WithValue(ctx, householdKey{}, householdID)
}

func HouseholdID(ctx context.Context) string {
	id, _ := ctx.Value(householdKey{}).(string)
	return id
}
