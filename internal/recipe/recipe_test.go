package recipe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const findResponse = `[
	{
		"id": 641803,
		"title": "Easy Apple Crumble",
		"image": "https://img.spoonacular.com/recipes/641803-312x231.jpg",
		"usedIngredientCount": 2,
		"missedIngredientCount": 1,
		"usedIngredients": [{"id": 9003, "name": "apples"}, {"id": 19335, "name": "sugar"}],
		"missedIngredients": [{"id": 1001, "name": "butter"}],
		"likes": 4
	}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient("test-key", slog.Default())
	c.baseURL = server.URL
	c.retryBase = time.Millisecond
	return c
}

func TestFindByIngredients(t *testing.T) {
	var query map[string]string
	var apiKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-api-key")
		if r.URL.Path != "/recipes/findByIngredients" {
			t.Errorf("path = %q", r.URL.Path)
		}
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(findResponse))
	})

	recipes, err := c.FindByIngredients(context.Background(), []string{" Sugar", "apples", "sugar"}, 5)
	if err != nil {
		t.Fatalf("FindByIngredients: %v", err)
	}

	want := map[string]string{
		"ingredients":  "apples,sugar",
		"number":       "5",
		"ranking":      "1",
		"ignorePantry": "true",
	}
	for k, v := range want {
		if query[k] != v {
			t.Errorf("query %s = %q, want %q", k, query[k], v)
		}
	}

	if _, ok := query["apiKey"]; ok {
		t.Error("api key sent in query string")
	}
	if apiKey != "test-key" {
		t.Errorf("x-api-key = %q, want %q", apiKey, "test-key")
	}

	if len(recipes) != 1 {
		t.Fatalf("got %d recipes, want 1", len(recipes))
	}
	r := recipes[0]
	if r.ID != 641803 || r.Title != "Easy Apple Crumble" {
		t.Errorf("recipe = %+v", r)
	}
	if !slices.Equal(r.UsedIngredients, []string{"apples", "sugar"}) {
		t.Errorf("used = %v", r.UsedIngredients)
	}
	if !slices.Equal(r.MissedIngredients, []string{"butter"}) {
		t.Errorf("missed = %v", r.MissedIngredients)
	}
}

func TestFindByIngredientsNotConfigured(t *testing.T) {
	c := NewClient("", slog.Default())
	if _, err := c.FindByIngredients(context.Background(), []string{"eggs"}, 1); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestFindByIngredientsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	recipes, err := c.FindByIngredients(context.Background(), []string{" ", ""}, 5)
	if err != nil {
		t.Fatalf("FindByIngredients: %v", err)
	}
	if len(recipes) != 0 {
		t.Errorf("got %d recipes, want 0", len(recipes))
	}
}

func TestFindByIngredientsCaches(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(findResponse))
	})

	ctx := context.Background()
	c.FindByIngredients(ctx, []string{"apples", "sugar"}, 5)
	c.FindByIngredients(ctx, []string{"SUGAR", "apples"}, 5)

	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}

	c.FindByIngredients(ctx, []string{"apples", "sugar"}, 6)
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2 after changing number", n)
	}
}

func TestFindByIngredientsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(findResponse))
	})

	recipes, err := c.FindByIngredients(context.Background(), []string{"apples"}, 1)
	if err != nil {
		t.Fatalf("FindByIngredients: %v", err)
	}
	if len(recipes) != 1 {
		t.Errorf("got %d recipes, want 1", len(recipes))
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestFindByIngredientsGivesUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := c.FindByIngredients(context.Background(), []string{"apples"}, 1); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != maxAttempts {
		t.Errorf("calls = %d, want %d", n, maxAttempts)
	}
}

func TestFindByIngredientsNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	if _, err := c.FindByIngredients(context.Background(), []string{"apples"}, 1); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestFindByIngredientsKeepsKeyOutOfErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	var logs bytes.Buffer
	c := NewClient("SECRET-KEY-123", slog.New(slog.NewTextHandler(&logs, nil)))
	c.baseURL = addr
	c.retryBase = time.Millisecond

	_, err := c.FindByIngredients(context.Background(), []string{"eggs"}, 1)
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Errorf("error leaks api key: %v", err)
	}
	if strings.Contains(logs.String(), "SECRET-KEY-123") {
		t.Errorf("logs leak api key: %s", logs.String())
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]string{" Milk", "eggs", "", "milk", "Bread "})
	want := []string{"bread", "eggs", "milk"}
	if !slices.Equal(got, want) {
		t.Errorf("Normalize = %v, want %v", got, want)
	}
}

func TestSplitList(t *testing.T) {
	if got := SplitList("  "); got != nil {
		t.Errorf("SplitList(blank) = %v, want nil", got)
	}
	if got := SplitList("a, b"); !slices.Equal(got, []string{"a", " b"}) {
		t.Errorf("SplitList = %v", got)
	}
}
