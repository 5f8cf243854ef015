package docstore

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// testStore runs the behaviour every Store backend must share.
func testStore(t *testing.T, s Store) {
	t.Run("CreateAndGetUser", func(t *testing.T) { testCreateAndGetUser(t, s) })
	t.Run("FindUserByEmail", func(t *testing.T) { testFindUserByEmail(t, s) })
	t.Run("SetUserHousehold", func(t *testing.T) { testSetUserHousehold(t, s) })
	t.Run("GetUsers", func(t *testing.T) { testGetUsers(t, s) })
	t.Run("Household", func(t *testing.T) { testHousehold(t, s) })
	t.Run("UpdateMembers", func(t *testing.T) { testUpdateMembers(t, s) })
	t.Run("ConcurrentUpdateMembers", func(t *testing.T) { testConcurrentUpdateMembers(t, s) })
	t.Run("WatchHousehold", func(t *testing.T) { testWatchHousehold(t, s) })
}

func strPtr(s string) *string { return &s }

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for watch signal")
	}
}

func testCreateAndGetUser(t *testing.T, s Store) {
	ctx := context.Background()
	uid := uuid.NewString()

	created, err := s.CreateUser(ctx, UserDoc{UID: uid, Email: uid + "@example.com", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !created {
		t.Error("expected first create to write")
	}

	created, err = s.CreateUser(ctx, UserDoc{UID: uid, Email: "other@example.com", DisplayName: "Mallory"})
	if err != nil {
		t.Fatalf("create user again: %v", err)
	}
	if created {
		t.Error("expected second create to be a no-op")
	}

	u, err := s.GetUser(ctx, uid)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u == nil {
		t.Fatal("expected user")
	}
	if u.UID != uid || u.DisplayName != "Alice" || u.HouseholdID != nil {
		t.Errorf("user = %+v", u)
	}

	missing, err := s.GetUser(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("get missing user: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func testFindUserByEmail(t *testing.T, s Store) {
	ctx := context.Background()
	uid := uuid.NewString()
	email := "Find." + uid + "@Example.com"
	s.CreateUser(ctx, UserDoc{UID: uid, Email: email})

	u, err := s.FindUserByEmail(ctx, "find."+uid+"@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u == nil || u.UID != uid {
		t.Errorf("found = %+v, want uid %s", u, uid)
	}

	none, err := s.FindUserByEmail(ctx, "nobody-"+uid+"@example.com")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil, got %+v", none)
	}
}

func testSetUserHousehold(t *testing.T, s Store) {
	ctx := context.Background()
	uid := uuid.NewString()
	s.CreateUser(ctx, UserDoc{UID: uid, Email: uid + "@example.com"})

	if err := s.SetUserHousehold(ctx, uid, strPtr("h-"+uid)); err != nil {
		t.Fatalf("set household: %v", err)
	}
	u, _ := s.GetUser(ctx, uid)
	if u.HouseholdID == nil || *u.HouseholdID != "h-"+uid {
		t.Errorf("household = %v, want h-%s", u.HouseholdID, uid)
	}

	if err := s.SetUserHousehold(ctx, uid, nil); err != nil {
		t.Fatalf("clear household: %v", err)
	}
	u, _ = s.GetUser(ctx, uid)
	if u.HouseholdID != nil {
		t.Errorf("household = %v, want nil", *u.HouseholdID)
	}

	err := s.SetUserHousehold(ctx, uuid.NewString(), strPtr("x"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func testGetUsers(t *testing.T, s Store) {
	ctx := context.Background()
	a, b := uuid.NewString(), uuid.NewString()
	s.CreateUser(ctx, UserDoc{UID: a, Email: a + "@example.com", DisplayName: "A"})
	s.CreateUser(ctx, UserDoc{UID: b, Email: b + "@example.com", DisplayName: "B"})

	users, err := s.GetUsers(ctx, []string{b, uuid.NewString(), a})
	if err != nil {
		t.Fatalf("get users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[0].UID != b || users[1].UID != a {
		t.Errorf("order = %s, %s, want %s, %s", users[0].UID, users[1].UID, b, a)
	}

	empty, err := s.GetUsers(ctx, nil)
	if err != nil {
		t.Fatalf("get no users: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("len = %d, want 0", len(empty))
	}
}

func testHousehold(t *testing.T, s Store) {
	ctx := context.Background()
	id := uuid.NewString()

	if err := s.CreateHousehold(ctx, HouseholdDoc{ID: id, Name: "Home", Members: []string{"u1"}}); err != nil {
		t.Fatalf("create household: %v", err)
	}
	if err := s.CreateHousehold(ctx, HouseholdDoc{ID: id, Name: "Dup"}); err == nil {
		t.Error("expected error creating a household twice")
	}

	h, err := s.GetHousehold(ctx, id)
	if err != nil {
		t.Fatalf("get household: %v", err)
	}
	if h.ID != id || h.Name != "Home" || !slices.Equal(h.Members, []string{"u1"}) {
		t.Errorf("household = %+v", h)
	}

	if err := s.RenameHousehold(ctx, id, "Cottage"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	h, _ = s.GetHousehold(ctx, id)
	if h.Name != "Cottage" {
		t.Errorf("name = %q, want %q", h.Name, "Cottage")
	}
	if !slices.Equal(h.Members, []string{"u1"}) {
		t.Errorf("members changed by rename: %v", h.Members)
	}

	if err := s.RenameHousehold(ctx, uuid.NewString(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rename missing err = %v, want ErrNotFound", err)
	}

	missing, err := s.GetHousehold(ctx, uuid.NewString())
	if err != nil {
		t.Fatalf("get missing household: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func testUpdateMembers(t *testing.T, s Store) {
	ctx := context.Background()
	id := uuid.NewString()
	s.CreateHousehold(ctx, HouseholdDoc{ID: id, Name: "Home", Members: []string{"a"}})

	err := s.UpdateMembers(ctx, id, func(m []string) ([]string, bool) {
		return append(m, "b"), true
	})
	if err != nil {
		t.Fatalf("update members: %v", err)
	}

	err = s.UpdateMembers(ctx, id, func(m []string) ([]string, bool) {
		return append(m, "ignored"), false
	})
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}

	h, _ := s.GetHousehold(ctx, id)
	if !slices.Equal(h.Members, []string{"a", "b"}) {
		t.Errorf("members = %v, want [a b]", h.Members)
	}

	err = s.UpdateMembers(ctx, uuid.NewString(), func(m []string) ([]string, bool) { return m, true })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func testConcurrentUpdateMembers(t *testing.T, s Store) {
	ctx := context.Background()
	id := uuid.NewString()
	s.CreateHousehold(ctx, HouseholdDoc{ID: id, Name: "Busy"})

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			err := s.UpdateMembers(ctx, id, func(m []string) ([]string, bool) {
				return append(m, uid), true
			})
			if err != nil {
				t.Errorf("update members: %v", err)
			}
		}(uuid.NewString())
	}
	wg.Wait()

	h, _ := s.GetHousehold(ctx, id)
	if len(h.Members) != n {
		t.Errorf("members = %d, want %d", len(h.Members), n)
	}
}

func testWatchHousehold(t *testing.T, s Store) {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	s.CreateHousehold(ctx, HouseholdDoc{ID: id, Name: "Watched"})

	ch, err := s.WatchHousehold(ctx, id)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	waitSignal(t, ch)

	if err := s.RenameHousehold(ctx, id, "Renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	waitSignal(t, ch)

	err = s.UpdateMembers(ctx, id, func(m []string) ([]string, bool) { return append(m, "z"), true })
	if err != nil {
		t.Fatalf("update members: %v", err)
	}
	waitSignal(t, ch)

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}
