// Package selection filters the recipe catalog and tracks the user's picks.
// Every function is pure and leaves its inputs untouched.
package selection

import (
	"errors"
	"fmt"
	"strings"

	"cooking-ops/internal/recipe"
)

// ErrUnknownCategory is returned by ParseCategory for unrecognized input.
var ErrUnknownCategory = errors.New("unknown category")

// CategoryAll is the filter value that matches every category.
const CategoryAll recipe.Category = "all"

// Filter returns the recipes matching both the category and the search text, in
// catalog order. Search is a case-insensitive substring match against the dish
// name, the variations and the ingredient names. Empty search matches everything.
func Filter(catalog []recipe.Recipe, searchText string, category recipe.Category) []recipe.Recipe {
	needle := strings.ToLower(searchText)
	out := make([]recipe.Recipe, 0, len(catalog))
	for _, r := range catalog {
		if category != CategoryAll && r.Category != category {
			continue
		}
		if !matches(r, needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(r recipe.Recipe, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.DishName), needle) {
		return true
	}
	for _, v := range r.Variations {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	for _, ing := range r.Ingredients {
		if strings.Contains(strings.ToLower(ing.Name), needle) {
			return true
		}
	}
	return false
}

// Toggle removes r from selected when a recipe with the same ID is present,
// otherwise appends it. The result is a new slice.
func Toggle(selected []recipe.Recipe, r recipe.Recipe) []recipe.Recipe {
	out := make([]recipe.Recipe, 0, len(selected)+1)
	removed := false
	for _, s := range selected {
		if s.ID == r.ID {
			removed = true
			continue
		}
		out = append(out, s)
	}
	if !removed {
		out = append(out, r)
	}
	return out
}

// Contains reports whether a recipe with the given ID is selected.
func Contains(selected []recipe.Recipe, id string) bool {
	for _, s := range selected {
		if s.ID == id {
			return true
		}
	}
	return false
}

// IDs returns the IDs of the selected recipes in selection order.
func IDs(selected []recipe.Recipe) []string {
	ids := make([]string, 0, len(selected))
	for _, s := range selected {
		ids = append(ids, s.ID)
	}
	return ids
}

// FindByID returns the catalog recipe with the given ID.
func FindByID(catalog []recipe.Recipe, id string) (recipe.Recipe, bool) {
	for _, r := range catalog {
		if r.ID == id {
			return r, true
		}
	}
	return recipe.Recipe{}, false
}

// ParseCategory maps user input to a filter category. It accepts "all", the
// category values and the short forms "lunch", "dinner" and "snack".
func ParseCategory(s string) (recipe.Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return CategoryAll, nil
	case "breakfast":
		return recipe.CategoryBreakfast, nil
	case "lunch/dinner", "lunch", "dinner":
		return recipe.CategoryLunchDinner, nil
	case "evening snack", "snack":
		return recipe.CategoryEveningSnack, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownCategory, s)
	}
}
