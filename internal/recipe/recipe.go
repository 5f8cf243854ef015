// Package recipe suggests meals from the ingredients a household has on
// its shopping list, using the Spoonacular findByIngredients endpoint.
package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sethvargo/go-retry"
)

const (
	cacheTTL      = time.Hour
	cacheSize     = 256
	defaultNumber = 10
	maxNumber     = 100
	maxAttempts   = 3
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("recipe lookup not configured")

// Recipe is one suggestion with the ingredients it uses from the query and
// the ones the household would still need.
type Recipe struct {
	ID                int      `json:"id"`
	Title             string   `json:"title"`
	Image             string   `json:"image"`
	UsedIngredients   []string `json:"used_ingredients"`
	MissedIngredients []string `json:"missed_ingredients"`
}

type Client struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	cache     *expirable.LRU[string, []Recipe]
	retryBase time.Duration
	logger    *slog.Logger
}

func NewClient(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:    apiKey,
		baseURL:   "https://api.spoonacular.com",
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     expirable.NewLRU[string, []Recipe](cacheSize, nil, cacheTTL),
		retryBase: 250 * time.Millisecond,
		logger:    logger,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type apiIngredient struct {
	Name string `json:"name"`
}

type apiRecipe struct {
	ID                int             `json:"id"`
	Title             string          `json:"title"`
	Image             string          `json:"image"`
	UsedIngredients   []apiIngredient `json:"usedIngredients"`
	MissedIngredients []apiIngredient `json:"missedIngredients"`
}

// FindByIngredients returns up to number recipes that use the given
// ingredients, ranked to use as many of them as possible. Results are
// cached per ingredient set.
func (c *Client) FindByIngredients(ctx context.Context, ingredients []string, number int) ([]Recipe, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ingredients = Normalize(ingredients)
	if len(ingredients) == 0 {
		return []Recipe{}, nil
	}
	if number <= 0 {
		number = defaultNumber
	}
	number = min(number, maxNumber)

	key := strings.Join(ingredients, ",") + "|" + strconv.Itoa(number)
	if cached, ok := c.cache.Get(key); ok {
		metrics.RecordRecipeLookup("cache")
		return cached, nil
	}

	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(c.retryBase))
	recipes, err := retry.DoValue(ctx, backoff, func(ctx context.Context) ([]Recipe, error) {
		return c.fetch(ctx, ingredients, number)
	})
	if err != nil {
		metrics.RecordRecipeLookup("error")
		return nil, err
	}

	metrics.RecordRecipeLookup("api")
	c.cache.Add(key, recipes)
	return recipes, nil
}

func (c *Client) fetch(ctx context.Context, ingredients []string, number int) ([]Recipe, error) {
	q := url.Values{}
	q.Set("ingredients", strings.Join(ingredients, ","))
	q.Set("number", strconv.Itoa(number))
	q.Set("ranking", "1")
	q.Set("ignorePantry", "true")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/recipes/findByIngredients?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Keep the key out of the URL; transport errors print it.
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("recipe request failed", "error", err)
		return nil, retry.RetryableError(fmt.Errorf("recipe request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("recipe API returned status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.logger.Warn("recipe request failed", "status", resp.StatusCode)
			return nil, retry.RetryableError(err)
		}
		return nil, err
	}

	var results []apiRecipe
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode recipe response: %w", err)
	}

	recipes := make([]Recipe, 0, len(results))
	for _, r := range results {
		recipes = append(recipes, Recipe{
			ID:                r.ID,
			Title:             r.Title,
			Image:             r.Image,
			UsedIngredients:   names(r.UsedIngredients),
			MissedIngredients: names(r.MissedIngredients),
		})
	}
	return recipes, nil
}

func names(in []apiIngredient) []string {
	out := make([]string, 0, len(in))
	for _, i := range in {
		out = append(out, i.Name)
	}
	return out
}

// Normalize trims, lower-cases, sorts and de-duplicates ingredient names.
func Normalize(ingredients []string) []string {
	out := make([]string, 0, len(ingredients))
	for _, i := range ingredients {
		i = strings.ToLower(strings.TrimSpace(i))
		if i != "" {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SplitList parses a comma-separated ingredients query value.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
