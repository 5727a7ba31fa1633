package recipe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Category groups recipes by the meal they are meant for.
type Category string

const (
	CategoryBreakfast    Category = "breakfast"
	CategoryLunchDinner  Category = "lunch/dinner"
	CategoryEveningSnack Category = "evening snack"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryBreakfast, CategoryLunchDinner, CategoryEveningSnack}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Quantity is an amount with its unit.
type Quantity struct {
	Value float64 `json:"value" yaml:"value" validate:"gte=0"`
	Unit  string  `json:"unit" yaml:"unit"`
}

// Ingredient carries two quantities: what goes in the pot (Kitchen) and what to buy
// for one batch at the recipe's base servings (Shopping).
type Ingredient struct {
	Name     string    `json:"name" yaml:"name" validate:"required"`
	Kitchen  *Quantity `json:"kitchen,omitempty" yaml:"kitchen,omitempty" validate:"omitempty"`
	Shopping *Quantity `json:"shopping,omitempty" yaml:"shopping,omitempty" validate:"omitempty"`
}

// Step is a single preparation instruction.
type Step struct {
	Instruction     string `json:"instruction" yaml:"instruction" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" yaml:"durationMinutes" validate:"gte=0"`
}

// Recipe is a dish in the catalog. Recipes are immutable once loaded.
type Recipe struct {
	ID               string       `json:"id" yaml:"id" validate:"required"`
	DishName         string       `json:"dishName" yaml:"dishName" validate:"required"`
	Category         Category     `json:"category" yaml:"category" validate:"category"`
	Variations       []string     `json:"variations" yaml:"variations"`
	Servings         int          `json:"servings" yaml:"servings" validate:"min=1"`
	Ingredients      []Ingredient `json:"ingredients" yaml:"ingredients" validate:"dive"`
	Steps            []Step       `json:"steps" yaml:"steps" validate:"dive"`
	TotalTimeMinutes int          `json:"totalTimeMinutes" yaml:"totalTimeMinutes" validate:"gte=0"`
	OwnerID          string       `json:"ownerId" yaml:"ownerId"`

	// Source is where an imported recipe came from ("ghost" or the clipped URL).
	Source          string `json:"source,omitempty" yaml:"source,omitempty"`
	SourceUpdatedAt string `json:"sourceUpdatedAt,omitempty" yaml:"sourceUpdatedAt,omitempty"`
}

// EffectiveServings is the base serving count used as a scaling divisor.
// It is never below 1.
func (r Recipe) EffectiveServings() int {
	return max(r.Servings, 1)
}

// TotalTime returns the declared total time, or the sum of the step durations
// when none was declared.
func (r Recipe) TotalTime() int {
	if r.TotalTimeMinutes > 0 {
		return r.TotalTimeMinutes
	}
	total := 0
	for _, s := range r.Steps {
		total += s.DurationMinutes
	}
	return total
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	return v
}

// Validate checks the structural invariants of a recipe.
func (r Recipe) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid recipe %q: %s", r.DishName, strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid recipe %q: %w", r.DishName, err)
	}
	return nil
}
