package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecipe() Recipe {
	return Recipe{
		ID:         "r1",
		DishName:   "Avocado Toast",
		Category:   CategoryBreakfast,
		Variations: []string{"Spicy"},
		Servings:   2,
		Ingredients: []Ingredient{
			{Name: "Bread", Kitchen: &Quantity{Value: 2, Unit: "slices"}, Shopping: &Quantity{Value: 1, Unit: "loaf"}},
			{Name: "Avocado"},
		},
		Steps: []Step{
			{Instruction: "Toast bread", DurationMinutes: 3},
			{Instruction: "Mash avocado", DurationMinutes: 2},
		},
		OwnerID: "owner",
	}
}

func TestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, sampleRecipe().Validate())
	})

	t.Run("ZeroServings", func(t *testing.T) {
		r := sampleRecipe()
		r.Servings = 0
		err := r.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Servings")
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		r := sampleRecipe()
		r.Category = "brunch"
		err := r.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Category")
	})

	t.Run("UnnamedIngredient", func(t *testing.T) {
		r := sampleRecipe()
		r.Ingredients = append(r.Ingredients, Ingredient{})
		require.Error(t, r.Validate())
	})

	t.Run("NegativeShoppingValue", func(t *testing.T) {
		r := sampleRecipe()
		r.Ingredients[0].Shopping.Value = -1
		require.Error(t, r.Validate())
	})
}

func TestEffectiveServings(t *testing.T) {
	r := sampleRecipe()
	assert.Equal(t, 2, r.EffectiveServings())

	r.Servings = 0
	assert.Equal(t, 1, r.EffectiveServings())

	r.Servings = -3
	assert.Equal(t, 1, r.EffectiveServings())
}

func TestTotalTime(t *testing.T) {
	r := sampleRecipe()
	assert.Equal(t, 5, r.TotalTime())

	r.TotalTimeMinutes = 12
	assert.Equal(t, 12, r.TotalTime())
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("all").Valid())
}
