package auth

import (
	"context"
	"testing"
)

func TestWithIdentityRoundTrip(t *testing.T) {
	id := Identity{UID: "u1", Email: "a@example.com", DisplayName: "Alice"}
	ctx := WithIdentity(context.Background(), id)

	got, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("expected identity in context")
	}
	if got != id {
		t.Errorf("identity = %+v, want %+v", got, id)
	}
	if UID(ctx) != "u1" {
		t.Errorf("UID = %q, want %q", UID(ctx), "u1")
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := IdentityFromContext(ctx); ok {
		t.Error("expected no identity")
	}
	if UID(ctx) != "" {
		t.Errorf("UID = %q, want empty", UID(ctx))
	}
	if HouseholdID(ctx) != "" {
		t.Errorf("HouseholdID = %q, want empty", HouseholdID(ctx))
	}
}

func TestWithHouseholdID(t *testing.T) {
	ctx := WithHouseholdID(context.Background(), "h1")
	if got := HouseholdID(ctx); got != "h1" {
		t.Errorf("HouseholdID = %q, want %q", got, "h1")
	}
}
