package shopping

import (
	"strings"
	"unicode"
)

// Other is the category for names that match no keyword.
const Other = "Other"

type category struct {
	name     string
	keywords []string
}

// categories is ordered the way a shop is usually walked; the order drives
// Rank. Keywords are singular and lower case; multi-word keywords match as a
// whole phrase.
var categories = []category{
	{"Produce", []string{
		"apple", "banana", "orange", "lemon", "lime", "avocado", "tomato", "potato",
		"onion", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrot", "celery",
		"cucumber", "pepper", "mushroom", "grape", "berry", "strawberry", "blueberry",
		"melon", "pineapple", "mango", "peach", "pear", "herb", "basil", "parsley",
		"cilantro", "ginger", "zucchini", "asparagus", "green bean", "salad", "fruit",
	}},
	{"Dairy", []string{
		"milk", "egg", "butter", "cheese", "yogurt", "yoghurt", "cream", "sour cream",
		"cottage cheese", "half and half", "quark", "kefir",
	}},
	{"Meat & Seafood", []string{
		"chicken", "beef", "pork", "turkey", "bacon", "sausage", "ham", "steak", "mince",
		"ground beef", "lamb", "fish", "salmon", "tuna", "shrimp", "prawn", "cod",
	}},
	{"Bakery", []string{
		"bread", "bagel", "bun", "roll", "croissant", "tortilla", "muffin", "baguette",
		"pita", "cake",
	}},
	{"Pantry", []string{
		"rice", "pasta", "noodle", "flour", "sugar", "salt", "oil", "olive oil",
		"vinegar", "cereal", "oat", "bean", "lentil", "sauce", "soup", "spice",
		"honey", "jam", "peanut butter", "can", "canned", "stock", "broth",
	}},
	{"Frozen", []string{
		"frozen", "ice cream", "frozen pizza", "ice", "pea", "fries", "cookie dough",
	}},
	{"Beverages", []string{
		"coffee", "tea", "juice", "water", "soda", "beer", "wine", "sparkling water",
	}},
	{"Snacks", []string{
		"chip", "crisp", "cracker", "cookie", "biscuit", "chocolate", "candy", "nut",
		"popcorn", "pretzel",
	}},
	{"Household", []string{
		"paper towel", "toilet paper", "tissue", "dish soap", "detergent", "sponge",
		"trash bag", "bin bag", "foil", "cling film", "battery", "bulb", "cleaner",
		"bleach",
	}},
	{"Personal Care", []string{
		"shampoo", "conditioner", "soap", "toothpaste", "toothbrush", "deodorant",
		"razor", "lotion", "sunscreen", "floss",
	}},
}

// Categorize assigns a shopping category from an item name. The longest
// matching keyword wins, so "ice cream" beats "cream" and "dish soap" beats
// "soap". Plural words match their singular keyword.
func Categorize(name string) string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return Other
	}

	best, bestLen := Other, 0
	for _, c := range categories {
		for _, kw := range c.keywords {
			if len(kw) > bestLen && containsPhrase(words, strings.Fields(kw)) {
				best, bestLen = c.name, len(kw)
			}
		}
	}
	return best
}

// Rank orders categories for display; unknown categories sort last.
func Rank(name string) int {
	for i, c := range categories {
		if strings.EqualFold(c.name, name) {
			return i
		}
	}
	return len(categories)
}

func containsPhrase(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, kw := range phrase {
			if !wordMatches(words[i+j], kw) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func wordMatches(word, kw string) bool {
	switch word {
	case kw, kw + "s", kw + "es":
		return true
	}
	return strings.HasSuffix(kw, "y") && word == kw[:len(kw)-1]+"ies"
}
