package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"cooking-ops/internal/catalog"
	"cooking-ops/internal/llm"
	"cooking-ops/internal/planner"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/scheduler"
	"cooking-ops/internal/shopping"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = Defaults{Cooks: 2, Stoves: 4, PlanDays: 7, Servings: planner.DefaultServings}

func loadedState(t *testing.T) *State {
	t.Helper()
	st := NewState("u1", testDefaults)
	tk, err := st.Begin(OpCatalog)
	require.NoError(t, err)
	recipes, err := catalog.DemoRecipes()
	require.NoError(t, err)
	require.True(t, st.CommitCatalog(tk, catalog.Result{Recipes: recipes}))
	st.Finish(tk)
	return st
}

func TestBeginBusy(t *testing.T) {
	st := NewState("u1", testDefaults)

	tk, err := st.Begin(OpSchedule)
	require.NoError(t, err)
	assert.True(t, st.Busy(OpSchedule))

	_, err = st.Begin(OpSchedule)
	assert.ErrorIs(t, err, ErrBusy)

	_, err = st.Begin(OpPlan)
	assert.NoError(t, err)

	st.Finish(tk)
	assert.False(t, st.Busy(OpSchedule))

	_, err = st.Begin(OpSchedule)
	assert.NoError(t, err)
}

func TestSupersedeDiscardsStaleResult(t *testing.T) {
	st := NewState("u1", testDefaults)

	older := st.Supersede(OpPlan)
	newer := st.Supersede(OpPlan)
	assert.True(t, st.Busy(OpPlan))

	newPlan := []planner.MealPlanDay{{Date: "2024-01-02"}}
	require.True(t, st.CommitPlan(newer, newPlan))
	st.Finish(newer)

	assert.False(t, st.CommitPlan(older, []planner.MealPlanDay{{Date: "2024-01-01"}}))
	st.Finish(older)

	snap := st.Snapshot()
	require.Len(t, snap.Plan, 1)
	assert.Equal(t, "2024-01-02", snap.Plan[0].Date)
	assert.False(t, snap.Busy[OpPlan])
}

func TestFailureKeepsPreviousResult(t *testing.T) {
	st := NewState("u1", testDefaults)

	tk, _ := st.Begin(OpSchedule)
	schedule := &scheduler.OptimizedSchedule{TotalDuration: 12}
	require.True(t, st.CommitSchedule(tk, schedule))
	st.Finish(tk)

	tk, _ = st.Begin(OpSchedule)
	assert.True(t, st.Fail(tk, llm.ErrCredentialMissing))
	st.Finish(tk)

	snap := st.Snapshot()
	assert.Same(t, schedule, snap.Schedule)
	require.NotNil(t, snap.LastFailure)
	assert.Equal(t, KindCredentialMissing, snap.LastFailure.Kind)
	assert.Equal(t, OpSchedule, snap.LastFailure.Op)

	tk, _ = st.Begin(OpSchedule)
	require.True(t, st.CommitSchedule(tk, &scheduler.OptimizedSchedule{}))
	assert.Nil(t, st.Snapshot().LastFailure)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{llm.ErrCredentialMissing, KindCredentialMissing},
		{fmt.Errorf("wrapped: %w", llm.ErrServiceUnreachable), KindServiceUnreachable},
		{&llm.RequestError{Agent: "Scheduler", Err: errors.New("bad")}, KindRequestFailed},
		{scheduler.ErrNoRecipes, KindInvalidInput},
		{planner.ErrInvalidDays, KindInvalidInput},
		{fmt.Errorf("x: %w", ErrUnknownRecipe), KindInvalidInput},
		{shopping.ErrItemOutOfRange, KindInvalidInput},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
}

func TestSelection(t *testing.T) {
	st := loadedState(t)

	selected, err := st.ToggleSelection("mock-2")
	require.NoError(t, err)
	assert.True(t, selected)

	_, err = st.ToggleSelection("nope")
	assert.Error(t, err)

	st.SetFilter("toast", recipe.CategoryBreakfast)
	filtered := st.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "Avocado Toast", filtered[0].DishName)

	selected, err = st.ToggleSelection("mock-2")
	require.NoError(t, err)
	assert.False(t, selected)
	assert.Empty(t, st.Snapshot().Selected)
}

func TestSupersededFirstLoadFillsEmptyCatalog(t *testing.T) {
	st := NewState("u1", testDefaults)
	older := st.Supersede(OpCatalog)
	newer := st.Supersede(OpCatalog)

	demo, err := catalog.DemoRecipes()
	require.NoError(t, err)
	assert.False(t, st.CommitCatalog(older, catalog.Result{Recipes: demo}))
	require.True(t, st.FillCatalog(catalog.Result{Recipes: demo}))
	assert.Len(t, st.Filtered(), len(demo))

	live := []recipe.Recipe{{ID: "live-1", DishName: "Soup", Category: recipe.CategoryLunchDinner, Servings: 2}}
	require.True(t, st.CommitCatalog(newer, catalog.Result{Recipes: live, IsLive: true}))
	assert.False(t, st.FillCatalog(catalog.Result{Recipes: demo}))

	snap := st.Snapshot()
	assert.True(t, snap.IsLive)
	assert.Equal(t, live, snap.Catalog)
}

func TestCatalogReloadPrunesSelection(t *testing.T) {
	st := loadedState(t)
	_, err := st.ToggleSelection("mock-1")
	require.NoError(t, err)
	_, err = st.ToggleSelection("mock-3")
	require.NoError(t, err)

	tk, _ := st.Begin(OpCatalog)
	live := []recipe.Recipe{{ID: "mock-3", DishName: "Berry Smoothie Bowl v2", Category: recipe.CategoryBreakfast, Servings: 1}}
	require.True(t, st.CommitCatalog(tk, catalog.Result{Recipes: live, IsLive: true}))

	snap := st.Snapshot()
	assert.True(t, snap.IsLive)
	require.Len(t, snap.Selected, 1)
	assert.Equal(t, "Berry Smoothie Bowl v2", snap.Selected[0].DishName)
}

func TestSettersValidate(t *testing.T) {
	st := NewState("u1", testDefaults)

	assert.ErrorIs(t, st.SetResources(0, 1), scheduler.ErrInvalidResources)
	assert.ErrorIs(t, st.SetResources(9, 1), scheduler.ErrInvalidResources)
	assert.ErrorIs(t, st.SetResources(1, 11), scheduler.ErrInvalidResources)
	require.NoError(t, st.SetResources(3, 2))

	assert.ErrorIs(t, st.SetServings(planner.Servings{Breakfast: -1}), ErrInvalidServings)
	assert.ErrorIs(t, st.SetServings(planner.Servings{Snack: 51}), ErrInvalidServings)
	require.NoError(t, st.SetServings(planner.Servings{Breakfast: 1, LunchDinner: 0, Snack: 5}))

	assert.ErrorIs(t, st.SetPlanInputs(0, ""), planner.ErrInvalidDays)
	assert.ErrorIs(t, st.SetPlanInputs(100000000000000, ""), planner.ErrInvalidDays)
	require.NoError(t, st.SetPlanInputs(3, "spinach"))

	snap := st.Snapshot()
	assert.Equal(t, 3, snap.Cooks)
	assert.Equal(t, 2, snap.Stoves)
	assert.Equal(t, 5, snap.Servings.Snack)
	assert.Equal(t, 3, snap.PlanDays)
	assert.Equal(t, "spinach", snap.InventoryNotes)
}

func TestUpdateShoppingList(t *testing.T) {
	st := NewState("u1", testDefaults)
	st.SetShoppingList([]shopping.Item{{Name: "Rice", Value: 800, Unit: "g"}})

	items, err := st.UpdateShoppingList(func(items []shopping.Item) ([]shopping.Item, error) {
		return shopping.ToggleChecked(items, 0)
	})
	require.NoError(t, err)
	assert.True(t, items[0].Checked)

	_, err = st.UpdateShoppingList(func(items []shopping.Item) ([]shopping.Item, error) {
		return shopping.ToggleChecked(items, 4)
	})
	assert.Error(t, err)
	assert.True(t, st.Snapshot().ShoppingList[0].Checked)
}

func TestDebugLogRing(t *testing.T) {
	st := NewState("u1", testDefaults)
	for i := 0; i < DebugCapacity+10; i++ {
		st.Logf("event %d", i)
	}

	events := st.DebugLog()
	require.Len(t, events, DebugCapacity)
	assert.Equal(t, "event 10", events[0].Message)
	assert.Equal(t, fmt.Sprintf("event %d", DebugCapacity+9), events[len(events)-1].Message)
}

func TestStore(t *testing.T) {
	store := NewStore(testDefaults)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, _ := store.Get("shared")
			st.Logf("hello")
		}()
	}
	wg.Wait()

	st, created := store.Get("shared")
	assert.False(t, created)
	assert.Len(t, st.DebugLog(), 20)
	assert.Equal(t, 1, store.Len())

	_, created = store.Get("other")
	assert.True(t, created)
}
