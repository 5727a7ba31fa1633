// Package shopping aggregates a meal plan into a consolidated shopping list.
package shopping

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"cooking-ops/internal/planner"
)

// DefaultUnit is used for ingredients that carry no shopping quantity.
const DefaultUnit = "pcs"

// Item is one line of the shopping list. Value keeps full precision; use Round
// for display.
type Item struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Checked bool    `json:"checked"`
}

// BuildList aggregates the shopping quantities of every planned recipe, scaled
// from the recipe's base servings to the target servings of its slot. Items are
// keyed by lower-cased name and exact unit, and appear in first-insertion order
// walking days in order and slots breakfast, lunch/dinner, snack.
func BuildList(plan []planner.MealPlanDay, servings planner.Servings) []Item {
	type key struct{ name, unit string }

	items := []Item{}
	index := make(map[key]int)

	for _, day := range plan {
		for _, slot := range planner.Slots {
			r := day.Recipe(slot)
			if r == nil {
				continue
			}
			multiplier := float64(servings.For(slot)) / float64(r.EffectiveServings())

			for _, ing := range r.Ingredients {
				value, unit := 0.0, DefaultUnit
				if ing.Shopping != nil {
					value, unit = ing.Shopping.Value, ing.Shopping.Unit
				}

				k := key{name: strings.ToLower(ing.Name), unit: unit}
				if i, ok := index[k]; ok {
					items[i].Value += value * multiplier
					continue
				}
				index[k] = len(items)
				items = append(items, Item{Name: ing.Name, Value: value * multiplier, Unit: unit})
			}
		}
	}
	return items
}

// Round rounds v to two decimals, halves away from zero.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// ErrItemOutOfRange is returned for an index outside the shopping list.
var ErrItemOutOfRange = errors.New("shopping list item out of range")

// ToggleChecked returns a copy of items with the checked flag of the item at
// index flipped.
func ToggleChecked(items []Item, index int) ([]Item, error) {
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("item %d of %d: %w", index+1, len(items), ErrItemOutOfRange)
	}
	out := make([]Item, len(items))
	copy(out, items)
	out[index].Checked = !out[index].Checked
	return out, nil
}

// ClearChecked returns the unchecked items, preserving order.
func ClearChecked(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !it.Checked {
			out = append(out, it)
		}
	}
	return out
}

// FormatValue renders a quantity for display.
func FormatValue(v float64) string {
	return strconv.FormatFloat(Round(v), 'f', -1, 64)
}

// FormatMarkdown renders the list as a numbered Markdown checklist.
func FormatMarkdown(items []Item) string {
	if len(items) == 0 {
		return "_Shopping list is empty._"
	}
	var sb strings.Builder
	sb.WriteString("*Shopping list*\n")
	for i, it := range items {
		box := "[ ]"
		if it.Checked {
			box = "[x]"
		}
		fmt.Fprintf(&sb, "%d. %s %s %s %s\n", i+1, box, FormatValue(it.Value), it.Unit, it.Name)
	}
	return sb.String()
}
