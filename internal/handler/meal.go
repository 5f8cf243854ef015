package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/recipe"
	"github.com/dukerupert/hearth/internal/store"
)

// RecipeFinder looks up recipes that use a set of ingredients.
type RecipeFinder interface {
	FindByIngredients(ctx context.Context, ingredients []string, number int) ([]recipe.Recipe, error)
}

type MealHandler struct {
	recipes  RecipeFinder
	shopping *store.ShoppingStore
	logger   *slog.Logger
}

func NewMealHandler(recipes RecipeFinder, ss *store.ShoppingStore, logger *slog.Logger) *MealHandler {
	return &MealHandler{recipes: recipes, shopping: ss, logger: logger}
}

type mealSuggestions struct {
	Ingredients []string        `json:"ingredients"`
	Recipes     []recipe.Recipe `json:"recipes"`
}

// Suggestions handles GET /api/meals/suggestions. Without an ingredients
// parameter the household's unchecked shopping items are used.
func (h *MealHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	number := 0
	if s := q.Get("number"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "number must be a positive integer")
			return
		}
		number = n
	}

	ingredients := recipe.SplitList(q.Get("ingredients"))
	if len(ingredients) == 0 {
		names, err := h.shopping.UncheckedNames(auth.HouseholdID(r.Context()))
		if err != nil {
			h.logger.Error("list shopping names", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load shopping list")
			return
		}
		ingredients = names
	}
	ingredients = recipe.Normalize(ingredients)

	recipes, err := h.recipes.FindByIngredients(r.Context(), ingredients, number)
	if errors.Is(err, recipe.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "recipe lookup is not configured")
		return
	}
	if err != nil {
		h.logger.Error("find recipes", "ingredients", len(ingredients), "error", err)
		writeError(w, http.StatusBadGateway, "recipe lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, mealSuggestions{Ingredients: ingredients, Recipes: recipes})
}
