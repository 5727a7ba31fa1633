package planner

import (
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/shared"
)

// Slot is one of the three meals of a planned day.
type Slot string

const (
	SlotBreakfast   Slot = "breakfast"
	SlotLunchDinner Slot = "lunchDinner"
	SlotSnack       Slot = "snack"
)

// Slots lists the meal slots in the order they are filled and aggregated.
var Slots = []Slot{SlotBreakfast, SlotLunchDinner, SlotSnack}

// MealPlanDay holds the recipes planned for a single date. Any slot may be nil.
type MealPlanDay struct {
	Date        string         `json:"date"`
	Breakfast   *recipe.Recipe `json:"breakfast,omitempty"`
	LunchDinner *recipe.Recipe `json:"lunchDinner,omitempty"`
	Snack       *recipe.Recipe `json:"snack,omitempty"`
}

// Recipe returns the recipe planned for slot, or nil.
func (d MealPlanDay) Recipe(slot Slot) *recipe.Recipe {
	switch slot {
	case SlotBreakfast:
		return d.Breakfast
	case SlotLunchDinner:
		return d.LunchDinner
	case SlotSnack:
		return d.Snack
	}
	return nil
}

func (d *MealPlanDay) set(slot Slot, r *recipe.Recipe) {
	switch slot {
	case SlotBreakfast:
		d.Breakfast = r
	case SlotLunchDinner:
		d.LunchDinner = r
	case SlotSnack:
		d.Snack = r
	}
}

// Servings is the number of people to cook for, per slot.
type Servings struct {
	Breakfast   int `json:"breakfast" binding:"gte=0,lte=50"`
	LunchDinner int `json:"lunchDinner" binding:"gte=0,lte=50"`
	Snack       int `json:"snack" binding:"gte=0,lte=50"`
}

// Valid reports whether every slot is within 0..shared.MaxServings.
func (s Servings) Valid() bool {
	for _, n := range []int{s.Breakfast, s.LunchDinner, s.Snack} {
		if n < 0 || n > shared.MaxServings {
			return false
		}
	}
	return true
}

// DefaultServings matches a household of two with lunch cooked for four.
var DefaultServings = Servings{Breakfast: 2, LunchDinner: 4, Snack: 2}

// For returns the target servings for slot.
func (s Servings) For(slot Slot) int {
	switch slot {
	case SlotBreakfast:
		return s.Breakfast
	case SlotLunchDinner:
		return s.LunchDinner
	case SlotSnack:
		return s.Snack
	}
	return 0
}
