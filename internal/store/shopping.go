package store

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/changefeed"
	"github.com/dukerupert/hearth/internal/model"
	"github.com/dukerupert/hearth/internal/shopping"
	"github.com/google/uuid"
)

type ShoppingStore struct {
	db   *sql.DB
	feed *changefeed.Hub
}

func NewShoppingStore(db *sql.DB, feed *changefeed.Hub) *ShoppingStore {
	return &ShoppingStore{db: db, feed: feed}
}

func scanShoppingItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	var checked int
	err := scanner.Scan(&item.ID, &item.HouseholdID, &item.Name, &item.Quantity, &item.Category, &checked, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.Checked = checked != 0
	return &item, nil
}

const shoppingCols = `id, household_id, name, quantity, category, checked, created_at`

func (s *ShoppingStore) changed(householdID string) {
	s.feed.Publish(changefeed.Topic(changefeed.TableShopping, householdID))
}

// prepareShoppingItem fills in the id and category when the caller left them empty.
func prepareShoppingItem(householdID string, item *model.ShoppingItem) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return fmt.Errorf("%w: item name is required", ErrInvalid)
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Category == "" {
		item.Category = shopping.Categorize(item.Name)
	}
	item.HouseholdID = householdID
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// upsertShoppingItem inserts item, replacing an existing row with the same id
// in the same household. An id held by another household fails with
// ErrConflict.
func upsertShoppingItem(e execer, item *model.ShoppingItem) error {
	result, err := e.Exec(
		`INSERT INTO shopping_items (id, household_id, name, quantity, category, checked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, quantity = excluded.quantity,
		   category = excluded.category, checked = excluded.checked
		 WHERE shopping_items.household_id = excluded.household_id`,
		item.ID, item.HouseholdID, item.Name, item.Quantity, item.Category, boolInt(item.Checked), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	return checkUpserted(result, item.ID)
}

func (s *ShoppingStore) GetByID(householdID, id string) (*model.ShoppingItem, error) {
	row := s.db.QueryRow(`SELECT `+shoppingCols+` FROM shopping_items WHERE id = ? AND household_id = ?`, id, householdID)
	item, err := scanShoppingItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get shopping item: %w", err)
	}
	return item, nil
}

// List returns unchecked items first, each group ordered by shop category and
// then by when the item was added.
func (s *ShoppingStore) List(householdID string) ([]model.ShoppingItem, error) {
	rows, err := s.db.Query(
		`SELECT `+shoppingCols+` FROM shopping_items WHERE household_id = ? ORDER BY checked ASC, created_at ASC, rowid ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list shopping items: %w", err)
	}
	defer rows.Close()

	items := []model.ShoppingItem{}
	for rows.Next() {
		item, err := scanShoppingItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(items, func(a, b model.ShoppingItem) int {
		if a.Checked != b.Checked {
			if a.Checked {
				return 1
			}
			return -1
		}
		return cmp.Compare(shopping.Rank(a.Category), shopping.Rank(b.Category))
	})
	return items, nil
}

// Observe streams the household's list, re-emitting after every change.
func (s *ShoppingStore) Observe(ctx context.Context, householdID string) <-chan []model.ShoppingItem {
	return changefeed.Watch(ctx, s.feed, changefeed.Topic(changefeed.TableShopping, householdID),
		func(context.Context) ([]model.ShoppingItem, error) { return s.List(householdID) })
}

func (s *ShoppingStore) Insert(householdID string, item model.ShoppingItem) (*model.ShoppingItem, error) {
	if err := prepareShoppingItem(householdID, &item); err != nil {
		return nil, err
	}
	if err := upsertShoppingItem(s.db, &item); err != nil {
		return nil, fmt.Errorf("insert shopping item: %w", err)
	}
	s.changed(householdID)
	return s.GetByID(householdID, item.ID)
}

// InsertAll adds every item in one transaction and returns how many were written.
func (s *ShoppingStore) InsertAll(householdID string, items []model.ShoppingItem) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := range items {
		if err := prepareShoppingItem(householdID, &items[i]); err != nil {
			return 0, err
		}
		if err := upsertShoppingItem(tx, &items[i]); err != nil {
			return 0, fmt.Errorf("insert shopping item %q: %w", items[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.changed(householdID)
	return len(items), nil
}

// ReplaceAll swaps the household's whole list for items atomically.
func (s *ShoppingStore) ReplaceAll(householdID string, items []model.ShoppingItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM shopping_items WHERE household_id = ?`, householdID); err != nil {
		return fmt.Errorf("clear shopping items: %w", err)
	}
	for i := range items {
		if err := prepareShoppingItem(householdID, &items[i]); err != nil {
			return err
		}
		if err := upsertShoppingItem(tx, &items[i]); err != nil {
			return fmt.Errorf("insert shopping item %q: %w", items[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.changed(householdID)
	return nil
}

// Update overwrites name, quantity, category and checked state. It returns nil
// when the item does not exist in the household.
func (s *ShoppingStore) Update(householdID string, item model.ShoppingItem) (*model.ShoppingItem, error) {
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrInvalid)
	}
	if item.Category == "" {
		item.Category = shopping.Categorize(name)
	}
	result, err := s.db.Exec(
		`UPDATE shopping_items SET name = ?, quantity = ?, category = ?, checked = ? WHERE id = ? AND household_id = ?`,
		name, item.Quantity, item.Category, boolInt(item.Checked), item.ID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("update shopping item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	s.changed(householdID)
	return s.GetByID(householdID, item.ID)
}

func (s *ShoppingStore) ToggleChecked(householdID, id string) (*model.ShoppingItem, error) {
	result, err := s.db.Exec(
		`UPDATE shopping_items SET checked = 1 - checked WHERE id = ? AND household_id = ?`,
		id, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle checked: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	s.changed(householdID)
	return s.GetByID(householdID, id)
}

func (s *ShoppingStore) Delete(householdID, id string) error {
	result, err := s.db.Exec(`DELETE FROM shopping_items WHERE id = ? AND household_id = ?`, id, householdID)
	if err != nil {
		return fmt.Errorf("delete shopping item: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		s.changed(householdID)
	}
	return nil
}

func (s *ShoppingStore) ClearChecked(householdID string) (int64, error) {
	return s.deleteWhere(householdID, `DELETE FROM shopping_items WHERE household_id = ? AND checked = 1`, "clear checked")
}

func (s *ShoppingStore) DeleteAll(householdID string) (int64, error) {
	return s.deleteWhere(householdID, `DELETE FROM shopping_items WHERE household_id = ?`, "delete all shopping items")
}

func (s *ShoppingStore) deleteWhere(householdID, query, op string) (int64, error) {
	result, err := s.db.Exec(query, householdID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if count > 0 {
		s.changed(householdID)
	}
	return count, nil
}

func (s *ShoppingStore) CountUnchecked(householdID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM shopping_items WHERE household_id = ? AND checked = 0`,
		householdID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unchecked: %w", err)
	}
	return count, nil
}

// ObserveCount streams the number of unchecked items.
func (s *ShoppingStore) ObserveCount(ctx context.Context, householdID string) <-chan int {
	return changefeed.Watch(ctx, s.feed, changefeed.Topic(changefeed.TableShopping, householdID),
		func(context.Context) (int, error) { return s.CountUnchecked(householdID) })
}

// UncheckedNames returns the names of items still to buy, in list order.
func (s *ShoppingStore) UncheckedNames(householdID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT name FROM shopping_items WHERE household_id = ? AND checked = 0 ORDER BY created_at ASC, rowid ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unchecked names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
