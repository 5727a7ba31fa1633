package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cooking-ops/internal/catalog"
	"cooking-ops/internal/clipper"
	"cooking-ops/internal/ghost"
	"cooking-ops/internal/llm"
	"cooking-ops/internal/metrics"
	"cooking-ops/internal/planner"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/scheduler"
	"cooking-ops/internal/selection"
	"cooking-ops/internal/session"
	"cooking-ops/internal/shared"
	"cooking-ops/internal/shopping"

	"go.uber.org/zap"
)

// DefaultUserID is used when a surface does not identify its user.
const DefaultUserID = "default"

var (
	// ErrSuperseded is returned when a newer request for the same operation
	// replaced this one before it finished.
	ErrSuperseded = errors.New("result superseded by a newer request")
	// ErrGhostNotConfigured is returned by Ghost features without credentials.
	ErrGhostNotConfigured = errors.New("ghost is not configured")
	// ErrClipperNotConfigured is returned by ClipURL when clipping is disabled.
	ErrClipperNotConfigured = errors.New("recipe clipping is not configured")
)

// Deps holds the application's dependencies. Plans, Lists, Metrics, Collector,
// Ghost and Clipper are optional.
type Deps struct {
	Log         *zap.Logger
	Sessions    *session.Store
	Catalog     *catalog.Provider
	Scheduler   *scheduler.Requester
	Planner     *planner.Requester
	RecipeStore *recipe.Repository
	Extractor   *recipe.Extractor
	Plans       *planner.PlanRepository
	Lists       *shopping.Repository
	Metrics     *metrics.Store
	Collector   *metrics.Collector
	Ghost       ghost.Client
	Clipper     *clipper.Clipper

	// IngestDelay is the pause between extracted posts, to stay under free
	// tier rate limits.
	IngestDelay time.Duration
	Now         func() time.Time
}

// App orchestrates the catalog, the requesters and the per-user sessions. It
// is shared by the HTTP API, the Telegram bot and the CLI.
type App struct {
	Deps
}

// New creates an App.
func New(d Deps) *App {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &App{Deps: d}
}

// Session returns the user's session. A new session is restored from the
// latest persisted plan and shopping list.
func (a *App) Session(ctx context.Context, userID string) *session.State {
	if userID == "" {
		userID = DefaultUserID
	}
	st, created := a.Sessions.Get(userID)
	if created {
		a.restore(ctx, st)
	}
	return st
}

func (a *App) restore(ctx context.Context, st *session.State) {
	var (
		days  []planner.MealPlanDay
		items []shopping.Item
	)
	if a.Plans != nil {
		p, err := a.Plans.Latest(ctx, st.UserID())
		if err != nil {
			a.Log.Warn("failed to restore meal plan", zap.String("user", st.UserID()), zap.Error(err))
		} else if p != nil {
			days = p.Days
		}
	}
	if a.Lists != nil {
		l, err := a.Lists.Latest(ctx, st.UserID())
		if err != nil {
			a.Log.Warn("failed to restore shopping list", zap.String("user", st.UserID()), zap.Error(err))
		} else {
			items = l
		}
	}
	if days != nil || items != nil {
		st.Restore(days, items)
	}
}

// LoadCatalog (re)loads the catalog into the user's session. The newest load
// wins; a superseded load is still applied when the session has no catalog
// yet. DataUnavailable is reported in the result, never as an error.
func (a *App) LoadCatalog(ctx context.Context, userID string) (catalog.Result, error) {
	st := a.Session(ctx, userID)
	t := st.Supersede(session.OpCatalog)
	defer st.Finish(t)

	res := a.Catalog.Fetch(ctx)
	if res.Error != "" {
		st.Logf("catalog: %s", res.Error)
	}
	if !st.CommitCatalog(t, res) && !st.FillCatalog(res) {
		return res, ErrSuperseded
	}
	return res, nil
}

func (a *App) ensureCatalog(ctx context.Context, st *session.State) error {
	if st.Snapshot().CatalogLoaded {
		return nil
	}
	_, err := a.LoadCatalog(ctx, st.UserID())
	return err
}

// RecipeView is the filtered catalog as shown to a user.
type RecipeView struct {
	Recipes []recipe.Recipe `json:"recipes"`
	IsLive  bool            `json:"isLive"`
	Error   string          `json:"error,omitempty"`
}

// Recipes sets the user's filter and returns the matching recipes.
func (a *App) Recipes(ctx context.Context, userID, search string, category recipe.Category) (RecipeView, error) {
	st := a.Session(ctx, userID)
	if err := a.ensureCatalog(ctx, st); err != nil && !errors.Is(err, ErrSuperseded) {
		return RecipeView{}, err
	}
	st.SetFilter(search, category)
	snap := st.Snapshot()
	return RecipeView{Recipes: st.Filtered(), IsLive: snap.IsLive, Error: snap.CatalogError}, nil
}

// ToggleSelection selects or deselects a catalog recipe.
func (a *App) ToggleSelection(ctx context.Context, userID, recipeID string) (bool, error) {
	st := a.Session(ctx, userID)
	if err := a.ensureCatalog(ctx, st); err != nil && !errors.Is(err, ErrSuperseded) {
		return false, err
	}
	return st.ToggleSelection(recipeID)
}

// SetResources sets the number of cooks and stove burners.
func (a *App) SetResources(ctx context.Context, userID string, cooks, stoves int) error {
	return a.Session(ctx, userID).SetResources(cooks, stoves)
}

// Optimize requests a cooking schedule for the user's selection. A second call
// while one is pending fails with session.ErrBusy.
func (a *App) Optimize(ctx context.Context, userID string) (*scheduler.OptimizedSchedule, error) {
	st := a.Session(ctx, userID)
	t, err := st.Begin(session.OpSchedule)
	if err != nil {
		return nil, err
	}
	defer st.Finish(t)

	snap := st.Snapshot()
	schedule, meta, err := a.Scheduler.RequestSchedule(ctx, snap.Selected, snap.Cooks, snap.Stoves)
	a.observe(ctx, meta, err)
	if err != nil {
		st.Fail(t, err)
		a.Log.Warn("schedule request failed", zap.String("user", st.UserID()), zap.Error(err))
		return nil, err
	}
	if !st.CommitSchedule(t, schedule) {
		return nil, ErrSuperseded
	}
	a.Log.Info("schedule generated",
		zap.String("user", st.UserID()),
		zap.Strings("recipes", selection.IDs(snap.Selected)),
		zap.Int("total_duration", schedule.TotalDuration),
	)
	return schedule, nil
}

// GeneratePlan requests a meal plan of days days. With force set, a pending
// request is superseded instead of rejected.
func (a *App) GeneratePlan(ctx context.Context, userID string, days int, inventoryNotes string, force bool) ([]planner.MealPlanDay, error) {
	st := a.Session(ctx, userID)
	if err := st.SetPlanInputs(days, inventoryNotes); err != nil {
		return nil, err
	}
	if err := a.ensureCatalog(ctx, st); err != nil && !errors.Is(err, ErrSuperseded) {
		return nil, err
	}

	var t session.Ticket
	if force {
		t = st.Supersede(session.OpPlan)
	} else {
		var err error
		if t, err = st.Begin(session.OpPlan); err != nil {
			return nil, err
		}
	}
	defer st.Finish(t)

	snap := st.Snapshot()
	names, meta, err := a.Planner.RequestMealPlan(ctx, snap.Catalog, inventoryNotes, days)
	a.observe(ctx, meta, err)
	if err != nil {
		st.Fail(t, err)
		a.Log.Warn("meal plan request failed", zap.String("user", st.UserID()), zap.Error(err))
		return nil, err
	}

	plan := planner.AssemblePlan(names, snap.Catalog, days, a.Now(), a.Log)
	if !st.CommitPlan(t, plan) {
		return nil, ErrSuperseded
	}
	if a.Plans != nil {
		if _, err := a.Plans.Save(ctx, st.UserID(), plan); err != nil {
			a.Log.Warn("failed to save meal plan", zap.String("user", st.UserID()), zap.Error(err))
		}
	}
	a.Log.Info("meal plan generated", zap.String("user", st.UserID()), zap.Int("days", days))
	return plan, nil
}

// SetServings sets the per-slot target servings used for the shopping list.
func (a *App) SetServings(ctx context.Context, userID string, servings planner.Servings) error {
	return a.Session(ctx, userID).SetServings(servings)
}

// BuildShoppingList aggregates the current plan into a fresh shopping list.
func (a *App) BuildShoppingList(ctx context.Context, userID string) ([]shopping.Item, error) {
	st := a.Session(ctx, userID)
	snap := st.Snapshot()
	items := shopping.BuildList(snap.Plan, snap.Servings)
	st.SetShoppingList(items)
	st.Logf("shopping list rebuilt with %d items", len(items))
	a.saveList(ctx, st.UserID(), items)
	return items, nil
}

// PlanHistory returns up to limit of the user's stored plans, newest first.
func (a *App) PlanHistory(ctx context.Context, userID string, limit int) ([]planner.StoredPlan, error) {
	if a.Plans == nil {
		return nil, nil
	}
	return a.Plans.ListRecentByUserID(ctx, a.Session(ctx, userID).UserID(), limit)
}

// ResetShoppingList empties the user's shopping list and drops the stored copy.
func (a *App) ResetShoppingList(ctx context.Context, userID string) error {
	st := a.Session(ctx, userID)
	st.SetShoppingList([]shopping.Item{})
	st.Logf("shopping list reset")
	if a.Lists == nil {
		return nil
	}
	return a.Lists.Delete(ctx, st.UserID())
}

// ShoppingList returns the user's current shopping list.
func (a *App) ShoppingList(ctx context.Context, userID string) []shopping.Item {
	return a.Session(ctx, userID).Snapshot().ShoppingList
}

// ToggleItem flips the checked flag of the item at index.
func (a *App) ToggleItem(ctx context.Context, userID string, index int) ([]shopping.Item, error) {
	st := a.Session(ctx, userID)
	items, err := st.UpdateShoppingList(func(items []shopping.Item) ([]shopping.Item, error) {
		return shopping.ToggleChecked(items, index)
	})
	if err != nil {
		return nil, err
	}
	a.saveList(ctx, st.UserID(), items)
	return items, nil
}

// ClearChecked removes the checked items from the shopping list.
func (a *App) ClearChecked(ctx context.Context, userID string) ([]shopping.Item, error) {
	st := a.Session(ctx, userID)
	items, err := st.UpdateShoppingList(func(items []shopping.Item) ([]shopping.Item, error) {
		return shopping.ClearChecked(items), nil
	})
	if err != nil {
		return nil, err
	}
	a.saveList(ctx, st.UserID(), items)
	return items, nil
}

func (a *App) saveList(ctx context.Context, userID string, items []shopping.Item) {
	if a.Lists == nil {
		return
	}
	if err := a.Lists.Save(ctx, userID, items); err != nil {
		a.Log.Warn("failed to save shopping list", zap.String("user", userID), zap.Error(err))
	}
}

// ClipURL imports the recipe at url into the catalog and reloads the user's
// catalog.
func (a *App) ClipURL(ctx context.Context, userID, url string) (*clipper.Result, error) {
	if a.Clipper == nil {
		return nil, ErrClipperNotConfigured
	}
	st := a.Session(ctx, userID)
	t, err := st.Begin(session.OpClip)
	if err != nil {
		return nil, err
	}
	defer st.Finish(t)

	res, err := a.Clipper.ClipURL(ctx, url)
	if res != nil {
		a.observe(ctx, res.Meta, err)
	}
	if err != nil {
		st.Fail(t, err)
		return nil, err
	}
	st.Logf("clipped %s from %s", res.Recipe.DishName, url)

	if _, err := a.LoadCatalog(ctx, userID); err != nil && !errors.Is(err, ErrSuperseded) {
		return res, err
	}
	return res, nil
}

// UsageReport returns LLM usage for the last days days.
func (a *App) UsageReport(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	if a.Metrics == nil {
		return nil, nil
	}
	return a.Metrics.GetDailyUsage(ctx, days)
}

// Stats summarizes the stored catalog and active sessions.
type Stats struct {
	StoredRecipes int `json:"storedRecipes"`
	Sessions      int `json:"sessions"`
}

// Stats counts the catalog owner's stored recipes and the open sessions.
func (a *App) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Sessions: a.Sessions.Len()}
	if a.RecipeStore == nil || a.Catalog == nil {
		return s, nil
	}
	n, err := a.RecipeStore.Count(ctx, a.Catalog.OwnerID())
	if err != nil {
		return s, err
	}
	s.StoredRecipes = n
	return s, nil
}

// CleanupMetrics deletes execution metrics older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	if a.Metrics == nil {
		return 0, nil
	}
	if days < 1 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", days)
	}
	return a.Metrics.Cleanup(ctx, days)
}

// observe records an agent execution. Errors raised before any model call,
// such as invalid input, are not recorded.
func (a *App) observe(ctx context.Context, meta shared.AgentMeta, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case llm.IsUnavailable(err):
		outcome = metrics.OutcomeUnavailable
	case llm.IsRequestFailed(err):
		outcome = metrics.OutcomeFailed
	default:
		return
	}

	if a.Collector != nil {
		a.Collector.Observe(meta, outcome)
	}
	if a.Metrics != nil {
		if err := a.Metrics.RecordMeta(ctx, meta, outcome); err != nil {
			a.Log.Warn("failed to record metrics", zap.String("agent", meta.AgentName), zap.Error(err))
		}
	}
}
