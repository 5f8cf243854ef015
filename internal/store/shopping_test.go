package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/hearth/internal/changefeed"
	"github.com/dukerupert/hearth/internal/model"
)

func setupShoppingTestDB(t *testing.T) (*ShoppingStore, *changefeed.Hub) {
	t.Helper()
	db, hub := setupTestDB(t)
	return NewShoppingStore(db, hub), hub
}

func TestShoppingInsertGeneratesIDAndCategory(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)

	item, err := ss.Insert("h1", model.ShoppingItem{Name: "  Milk ", Quantity: "2"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if item.ID == "" {
		t.Error("expected generated id")
	}
	if item.Name != "Milk" {
		t.Errorf("name = %q, want %q", item.Name, "Milk")
	}
	if item.Category != "Dairy" {
		t.Errorf("category = %q, want %q", item.Category, "Dairy")
	}
	if item.HouseholdID != "h1" {
		t.Errorf("household_id = %q, want %q", item.HouseholdID, "h1")
	}
	if item.Checked {
		t.Error("expected unchecked")
	}
}

func TestShoppingInsertKeepsClientID(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)

	item, err := ss.Insert("h1", model.ShoppingItem{ID: "client-1", Name: "Bread", Category: "Treats"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if item.ID != "client-1" {
		t.Errorf("id = %q, want %q", item.ID, "client-1")
	}
	if item.Category != "Treats" {
		t.Errorf("category = %q, want %q", item.Category, "Treats")
	}

	// Inserting the same id again replaces the row.
	item, err = ss.Insert("h1", model.ShoppingItem{ID: "client-1", Name: "Rye bread"})
	if err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if item.Name != "Rye bread" {
		t.Errorf("name = %q, want %q", item.Name, "Rye bread")
	}
	items, _ := ss.List("h1")
	if len(items) != 1 {
		t.Errorf("len = %d, want 1", len(items))
	}
}

func TestShoppingInsertRequiresName(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)

	_, err := ss.Insert("h1", model.ShoppingItem{Name: "   "})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestShoppingListOrder(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)

	soap, _ := ss.Insert("h1", model.ShoppingItem{Name: "shampoo"})
	ss.Insert("h1", model.ShoppingItem{Name: "apples"})
	ss.Insert("h1", model.ShoppingItem{Name: "milk"})
	if _, err := ss.ToggleChecked("h1", soap.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	items, err := ss.List("h1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"apples", "milk", "shampoo"}
	if len(items) != len(want) {
		t.Fatalf("len = %d, want %d", len(items), len(want))
	}
	for i, name := range want {
		if items[i].Name != name {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Name, name)
		}
	}
	if !items[2].Checked {
		t.Error("expected checked item last")
	}
}

func TestShoppingHouseholdIsolation(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)

	item, _ := ss.Insert("h1", model.ShoppingItem{Name: "eggs"})
	ss.Insert("h2", model.ShoppingItem{Name: "flour"})

	items, _ := ss.List("h2")
	if len(items) != 1 || items[0].Name != "flour" {
		t.Errorf("h2 items = %+v, want only flour", items)
	}

	got, err := ss.GetByID("h2", item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected item to be invisible to another household")
	}

	updated, err := ss.Update("h2", model.ShoppingItem{ID: item.ID, Name: "stolen"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated != nil {
		t.Error("expected update from another household to miss")
	}
}

func TestShoppingForeignIDConflicts(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)

	if _, err := ss.Insert("hA", model.ShoppingItem{ID: "x", Name: "eggs"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := ss.Insert("hB", model.ShoppingItem{ID: "keep", Name: "milk"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	item, err := ss.Insert("hB", model.ShoppingItem{ID: "x", Name: "flour"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("insert err = %v, want ErrConflict", err)
	}
	if item != nil {
		t.Errorf("item = %+v, want nil", item)
	}

	n, err := ss.InsertAll("hB", []model.ShoppingItem{{Name: "rice"}, {ID: "x", Name: "flour"}})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("insert all err = %v, want ErrConflict", err)
	}
	if n != 0 {
		t.Errorf("inserted = %d, want 0", n)
	}

	if err := ss.ReplaceAll("hB", []model.ShoppingItem{{ID: "x", Name: "flour"}}); !errors.Is(err, ErrConflict) {
		t.Errorf("replace all err = %v, want ErrConflict", err)
	}

	items, _ := ss.List("hB")
	if len(items) != 1 || items[0].ID != "keep" {
		t.Errorf("hB items = %+v, want only keep", items)
	}
	original, _ := ss.GetByID("hA", "x")
	if original == nil || original.Name != "eggs" {
		t.Errorf("hA item = %+v, want eggs", original)
	}
}

func TestShoppingUpdateToggleDelete(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)

	item, _ := ss.Insert("h1", model.ShoppingItem{Name: "butter"})

	updated, err := ss.Update("h1", model.ShoppingItem{ID: item.ID, Name: "salted butter", Quantity: "1"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "salted butter" || updated.Quantity != "1" {
		t.Errorf("updated = %+v", updated)
	}

	toggled, err := ss.ToggleChecked("h1", item.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Checked {
		t.Error("expected checked after toggle")
	}
	toggled, _ = ss.ToggleChecked("h1", item.ID)
	if toggled.Checked {
		t.Error("expected unchecked after second toggle")
	}

	missing, err := ss.ToggleChecked("h1", "nope")
	if err != nil {
		t.Fatalf("toggle missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing item")
	}

	if err := ss.Delete("h1", item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := ss.GetByID("h1", item.ID); got != nil {
		t.Error("expected nil for deleted item")
	}
}

func TestShoppingBulkOperations(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)

	n, err := ss.InsertAll("h1", []model.ShoppingItem{{Name: "rice"}, {Name: "beans"}, {Name: "tea"}})
	if err != nil {
		t.Fatalf("insert all: %v", err)
	}
	if n != 3 {
		t.Errorf("inserted = %d, want 3", n)
	}

	count, _ := ss.CountUnchecked("h1")
	if count != 3 {
		t.Errorf("unchecked = %d, want 3", count)
	}

	items, _ := ss.List("h1")
	ss.ToggleChecked("h1", items[0].ID)
	cleared, err := ss.ClearChecked("h1")
	if err != nil {
		t.Fatalf("clear checked: %v", err)
	}
	if cleared != 1 {
		t.Errorf("cleared = %d, want 1", cleared)
	}

	if err := ss.ReplaceAll("h1", []model.ShoppingItem{{Name: "coffee"}}); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	names, _ := ss.UncheckedNames("h1")
	if len(names) != 1 || names[0] != "coffee" {
		t.Errorf("names = %v, want [coffee]", names)
	}

	deleted, err := ss.DeleteAll("h1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestShoppingInsertAllIsAtomic(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)

	_, err := ss.InsertAll("h1", []model.ShoppingItem{{Name: "rice"}, {Name: ""}})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if count, _ := ss.CountUnchecked("h1"); count != 0 {
		t.Errorf("unchecked = %d, want 0 after failed batch", count)
	}
}

func TestShoppingObserve(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := ss.Observe(ctx, "h1")

	select {
	case items := <-ch:
		if len(items) != 0 {
			t.Errorf("initial len = %d, want 0", len(items))
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for initial snapshot")
	}

	ss.Insert("h1", model.ShoppingItem{Name: "jam"})

	select {
	case items := <-ch:
		if len(items) != 1 || items[0].Name != "jam" {
			t.Errorf("snapshot = %+v, want [jam]", items)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for change snapshot")
	}
}

func TestShoppingObserveCount(t *testing.T) {
	ss, _ := setupShoppingTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := ss.ObserveCount(ctx, "h1")
	if got := <-ch; got != 0 {
		t.Errorf("initial count = %d, want 0", got)
	}

	ss.Insert("h1", model.ShoppingItem{Name: "jam"})

	select {
	case got := <-ch:
		if got != 1 {
			t.Errorf("count = %d, want 1", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for count")
	}
}
