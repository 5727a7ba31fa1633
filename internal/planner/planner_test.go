package planner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cooking-ops/internal/database"
	"cooking-ops/internal/llm"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockTextGenerator struct {
	content string
	err     error
	calls   int
	prompt  string
}

func (m *MockTextGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	m.calls++
	m.prompt = prompt
	if m.err != nil {
		return llm.ContentResponse{}, m.err
	}
	return llm.ContentResponse{Content: m.content, Usage: shared.TokenUsage{TotalTokens: 42}}, nil
}

func testCatalog() []recipe.Recipe {
	return []recipe.Recipe{
		{ID: "1", DishName: "Avocado Toast", Category: recipe.CategoryBreakfast, Servings: 2},
		{ID: "2", DishName: "Chicken Stir Fry", Category: recipe.CategoryLunchDinner, Servings: 4},
		{ID: "3", DishName: "Berry Smoothie Bowl", Category: recipe.CategoryBreakfast, Servings: 1},
	}
}

func TestRequestMealPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		gen := &MockTextGenerator{content: "Avocado Toast, Chicken Stir Fry, Berry Smoothie Bowl"}
		r := NewRequester(gen, llm.Always, zap.NewNop())

		names, meta, err := r.RequestMealPlan(ctx, testCatalog(), "broccoli, spinach", 1)
		require.NoError(t, err)

		assert.Equal(t, []string{"Avocado Toast", "Chicken Stir Fry", "Berry Smoothie Bowl"}, names)
		assert.Equal(t, shared.AgentMealPlan, meta.AgentName)
		assert.Equal(t, 42, meta.Usage.TotalTokens)
		assert.Contains(t, gen.prompt, "- Chicken Stir Fry (lunch/dinner)")
		assert.Contains(t, gen.prompt, `Fridge Contents: "broccoli, spinach"`)
		assert.Contains(t, gen.prompt, "Suggest a 1-day plan")
	})

	t.Run("CredentialMissingSkipsCall", func(t *testing.T) {
		gen := &MockTextGenerator{}
		r := NewRequester(gen, func() bool { return false }, zap.NewNop())

		_, _, err := r.RequestMealPlan(ctx, testCatalog(), "", 3)
		assert.ErrorIs(t, err, llm.ErrCredentialMissing)
		assert.Equal(t, 0, gen.calls)
	})

	t.Run("Unreachable", func(t *testing.T) {
		gen := &MockTextGenerator{err: llm.ErrServiceUnreachable}
		r := NewRequester(gen, llm.Always, zap.NewNop())

		_, _, err := r.RequestMealPlan(ctx, testCatalog(), "", 3)
		assert.True(t, llm.IsUnavailable(err))
	})

	t.Run("ProviderError", func(t *testing.T) {
		gen := &MockTextGenerator{err: errors.New("quota exceeded")}
		r := NewRequester(gen, llm.Always, zap.NewNop())

		_, _, err := r.RequestMealPlan(ctx, testCatalog(), "", 3)
		assert.True(t, llm.IsRequestFailed(err))
	})

	t.Run("BadInput", func(t *testing.T) {
		r := NewRequester(&MockTextGenerator{}, llm.Always, zap.NewNop())

		_, _, err := r.RequestMealPlan(ctx, nil, "", 3)
		assert.ErrorIs(t, err, ErrEmptyCatalog)

		_, _, err = r.RequestMealPlan(ctx, testCatalog(), "", 0)
		assert.ErrorIs(t, err, ErrInvalidDays)

		_, _, err = r.RequestMealPlan(ctx, testCatalog(), "", 100000000000000)
		assert.ErrorIs(t, err, ErrInvalidDays)
	})
}

func TestParseDishNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"Plain", "A, B,C", []string{"A", "B", "C"}},
		{"DropsEmpty", "A,, ,B,", []string{"A", "B"}},
		{"TrailingPeriod", "Avocado Toast, Chicken Stir Fry.", []string{"Avocado Toast", "Chicken Stir Fry"}},
		{"InnerPeriodKept", "Pancakes w. Syrup., Toast, Eggs.", []string{"Pancakes w. Syrup.", "Toast", "Eggs"}},
		{"CodeFence", "```\nA, B\n```", []string{"A", "B"}},
		{"Empty", "  ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDishNames(tt.in))
		})
	}
}

func TestAssemblePlan(t *testing.T) {
	start := time.Date(2024, 3, 30, 9, 0, 0, 0, time.UTC)
	catalog := testCatalog()

	t.Run("FillsSlotsInOrder", func(t *testing.T) {
		names := []string{
			"Avocado Toast", "Chicken Stir Fry", "Berry Smoothie Bowl",
			"Berry Smoothie Bowl", "Chicken Stir Fry", "Avocado Toast",
		}
		plan := AssemblePlan(names, catalog, 2, start, zap.NewNop())
		require.Len(t, plan, 2)

		assert.Equal(t, "2024-03-30", plan[0].Date)
		assert.Equal(t, "2024-03-31", plan[1].Date)
		assert.Equal(t, "Avocado Toast", plan[0].Breakfast.DishName)
		assert.Equal(t, "Chicken Stir Fry", plan[0].LunchDinner.DishName)
		assert.Equal(t, "Berry Smoothie Bowl", plan[0].Snack.DishName)
		assert.Equal(t, "Berry Smoothie Bowl", plan[1].Recipe(SlotBreakfast).DishName)
	})

	t.Run("LengthIsCapped", func(t *testing.T) {
		plan := AssemblePlan(nil, catalog, 100000000000000, start, zap.NewNop())
		assert.Len(t, plan, shared.MaxPlanDays)
	})

	t.Run("UnknownNameLeavesSlotEmpty", func(t *testing.T) {
		names := []string{"Avocado Toast", "Pizza", "avocado toast"}
		plan := AssemblePlan(names, catalog, 1, start, zap.NewNop())
		require.Len(t, plan, 1)

		assert.NotNil(t, plan[0].Breakfast)
		assert.Nil(t, plan[0].LunchDinner)
		assert.Nil(t, plan[0].Snack)
	})

	t.Run("ShortListLeavesTrailingSlotsEmpty", func(t *testing.T) {
		plan := AssemblePlan([]string{"Avocado Toast", "Chicken Stir Fry"}, catalog, 3, start, zap.NewNop())
		require.Len(t, plan, 3)

		assert.NotNil(t, plan[0].LunchDinner)
		assert.Nil(t, plan[0].Snack)
		for _, day := range plan[1:] {
			for _, slot := range Slots {
				assert.Nil(t, day.Recipe(slot))
			}
		}
	})

	t.Run("LongListIsTruncated", func(t *testing.T) {
		names := ParseDishNames(strings.Repeat("Avocado Toast, ", 9))
		require.Len(t, names, 9)
		plan := AssemblePlan(names, catalog, 2, start, zap.NewNop())
		require.Len(t, plan, 2)
		assert.NotNil(t, plan[1].Snack)
	})

	t.Run("SlotsAreIndependentCopies", func(t *testing.T) {
		plan := AssemblePlan([]string{"Avocado Toast", "", "Avocado Toast"}, catalog, 1, start, zap.NewNop())
		plan[0].Breakfast.DishName = "changed"
		assert.Equal(t, "Avocado Toast", plan[0].Snack.DishName)
		assert.Equal(t, "Avocado Toast", catalog[0].DishName)
	})
}

func TestServingsFor(t *testing.T) {
	s := DefaultServings
	assert.Equal(t, 2, s.For(SlotBreakfast))
	assert.Equal(t, 4, s.For(SlotLunchDinner))
	assert.Equal(t, 2, s.For(SlotSnack))
	assert.Equal(t, 0, s.For(Slot("brunch")))
}

func TestPlanRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "plans.db"), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	repo := NewPlanRepository(db.SQL)

	latest, err := repo.Latest(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := AssemblePlan([]string{"Avocado Toast"}, testCatalog(), 1, start, zap.NewNop())
	second := AssemblePlan([]string{"Berry Smoothie Bowl", "Chicken Stir Fry"}, testCatalog(), 2, start, zap.NewNop())

	_, err = repo.Save(ctx, "u1", first)
	require.NoError(t, err)
	id, err := repo.Save(ctx, "u1", second)
	require.NoError(t, err)

	latest, err = repo.Latest(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, id, latest.ID)
	require.Len(t, latest.Days, 2)
	assert.Equal(t, "Berry Smoothie Bowl", latest.Days[0].Breakfast.DishName)
	assert.Nil(t, latest.Days[1].Breakfast)

	recent, err := repo.ListRecentByUserID(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
