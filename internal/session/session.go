// Package session holds the explicit per-user state of the assistant: the
// loaded catalog, the selection, the last schedule, plan and shopping list, and
// the in-flight request bookkeeping that makes the latest request win.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"cooking-ops/internal/catalog"
	"cooking-ops/internal/llm"
	"cooking-ops/internal/planner"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/scheduler"
	"cooking-ops/internal/selection"
	"cooking-ops/internal/shared"
	"cooking-ops/internal/shopping"
)

// Op names an asynchronous operation that can be in flight.
type Op string

const (
	OpCatalog  Op = "catalog"
	OpSchedule Op = "schedule"
	OpPlan     Op = "plan"
	OpClip     Op = "clip"
)

var (
	// ErrBusy is returned by Begin while the same operation is still pending.
	ErrBusy = errors.New("operation already in progress")
	// ErrUnknownRecipe is returned when a selection names a recipe outside the catalog.
	ErrUnknownRecipe = errors.New("recipe is not in the catalog")

	ErrInvalidServings = fmt.Errorf("servings must be between 0 and %d", shared.MaxServings)
)

// Ticket identifies one issued request. Only the most recently issued ticket
// for an operation may commit its result.
type Ticket struct {
	Op  Op
	Seq uint64
}

// FailureKind classifies the last error for display.
type FailureKind string

const (
	KindCredentialMissing  FailureKind = "CREDENTIAL_MISSING"
	KindServiceUnreachable FailureKind = "SERVICE_UNREACHABLE"
	KindRequestFailed      FailureKind = "REQUEST_FAILED"
	KindInvalidInput       FailureKind = "INVALID_INPUT"
	KindInternal           FailureKind = "INTERNAL"
)

// KindOf maps an error to its FailureKind.
func KindOf(err error) FailureKind {
	switch {
	case errors.Is(err, llm.ErrCredentialMissing):
		return KindCredentialMissing
	case errors.Is(err, llm.ErrServiceUnreachable):
		return KindServiceUnreachable
	case llm.IsRequestFailed(err):
		return KindRequestFailed
	case errors.Is(err, scheduler.ErrNoRecipes),
		errors.Is(err, scheduler.ErrInvalidResources),
		errors.Is(err, planner.ErrEmptyCatalog),
		errors.Is(err, planner.ErrInvalidDays),
		errors.Is(err, ErrUnknownRecipe),
		errors.Is(err, ErrInvalidServings),
		errors.Is(err, shopping.ErrItemOutOfRange),
		errors.Is(err, selection.ErrUnknownCategory):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// Failure records the last failed operation.
type Failure struct {
	Op      Op          `json:"op"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// Defaults seed a new session.
type Defaults struct {
	Cooks    int
	Stoves   int
	PlanDays int
	Servings planner.Servings
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	UserID         string                       `json:"userId"`
	Catalog        []recipe.Recipe              `json:"-"`
	CatalogLoaded  bool                         `json:"catalogLoaded"`
	IsLive         bool                         `json:"isLive"`
	CatalogError   string                       `json:"catalogError,omitempty"`
	Search         string                       `json:"search"`
	Category       recipe.Category              `json:"category"`
	Selected       []recipe.Recipe              `json:"selected"`
	Cooks          int                          `json:"cooks"`
	Stoves         int                          `json:"stoves"`
	Schedule       *scheduler.OptimizedSchedule `json:"schedule,omitempty"`
	Plan           []planner.MealPlanDay        `json:"plan"`
	PlanDays       int                          `json:"planDays"`
	InventoryNotes string                       `json:"inventoryNotes"`
	Servings       planner.Servings             `json:"servings"`
	ShoppingList   []shopping.Item              `json:"shoppingList"`
	Busy           map[Op]bool                  `json:"busy"`
	LastFailure    *Failure                     `json:"lastFailure,omitempty"`
}

// State is the mutable state of one user's session. All methods are safe for
// concurrent use.
type State struct {
	mu  sync.Mutex
	now func() time.Time

	userID         string
	catalog        []recipe.Recipe
	catalogLoaded  bool
	isLive         bool
	catalogError   string
	search         string
	category       recipe.Category
	selected       []recipe.Recipe
	cooks          int
	stoves         int
	schedule       *scheduler.OptimizedSchedule
	plan           []planner.MealPlanDay
	planDays       int
	inventoryNotes string
	servings       planner.Servings
	shoppingList   []shopping.Item

	seq         uint64
	pending     map[Op]uint64
	lastFailure *Failure
	debug       *DebugLog
}

// NewState creates an empty session for userID.
func NewState(userID string, d Defaults) *State {
	return &State{
		now:      time.Now,
		userID:   userID,
		category: selection.CategoryAll,
		cooks:    d.Cooks,
		stoves:   d.Stoves,
		planDays: d.PlanDays,
		servings: d.Servings,
		pending:  make(map[Op]uint64),
		debug:    newDebugLog(),
	}
}

// UserID returns the owner of the session.
func (s *State) UserID() string { return s.userID }

// Begin issues a ticket for op, or ErrBusy when one is already pending.
func (s *State) Begin(op Op) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[op]; ok {
		return Ticket{}, fmt.Errorf("%s: %w", op, ErrBusy)
	}
	return s.issue(op), nil
}

// Supersede issues a new ticket for op even if one is pending. The older
// request can no longer commit.
func (s *State) Supersede(op Op) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[op]; ok {
		s.logLocked("%s superseded by a newer request", op)
	}
	return s.issue(op)
}

func (s *State) issue(op Op) Ticket {
	s.seq++
	s.pending[op] = s.seq
	s.logLocked("%s #%d started", op, s.seq)
	return Ticket{Op: op, Seq: s.seq}
}

// Finish releases t. It has no effect when t was superseded.
func (s *State) Finish(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentLocked(t) {
		delete(s.pending, t.Op)
	}
}

// Busy reports whether op has a pending request.
func (s *State) Busy(op Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[op]
	return ok
}

func (s *State) currentLocked(t Ticket) bool {
	seq, ok := s.pending[t.Op]
	return ok && seq == t.Seq
}

// commit runs apply under the lock when t is current. Stale results are
// dropped and reported as false.
func (s *State) commit(t Ticket, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(t) {
		s.logLocked("%s #%d discarded (stale)", t.Op, t.Seq)
		return false
	}
	apply()
	s.lastFailure = nil
	s.logLocked("%s #%d committed", t.Op, t.Seq)
	return true
}

// CommitCatalog replaces the catalog. Selected recipes missing from the new
// catalog are dropped from the selection.
func (s *State) CommitCatalog(t Ticket, res catalog.Result) bool {
	return s.commit(t, func() { s.applyCatalogLocked(res) })
}

// FillCatalog applies res only while no catalog has been loaded yet, so a
// superseded first load still leaves the session usable. The newer load
// replaces it when it commits.
func (s *State) FillCatalog(res catalog.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalogLoaded {
		return false
	}
	s.applyCatalogLocked(res)
	s.logLocked("catalog filled from a superseded load")
	return true
}

func (s *State) applyCatalogLocked(res catalog.Result) {
	s.catalog = res.Recipes
	s.catalogLoaded = true
	s.isLive = res.IsLive
	s.catalogError = res.Error

	kept := make([]recipe.Recipe, 0, len(s.selected))
	for _, r := range s.selected {
		if fresh, ok := selection.FindByID(res.Recipes, r.ID); ok {
			kept = append(kept, fresh)
		}
	}
	s.selected = kept
}

// CommitSchedule replaces the current schedule.
func (s *State) CommitSchedule(t Ticket, schedule *scheduler.OptimizedSchedule) bool {
	return s.commit(t, func() { s.schedule = schedule })
}

// CommitPlan replaces the meal plan. The shopping list is left untouched until
// it is rebuilt.
func (s *State) CommitPlan(t Ticket, plan []planner.MealPlanDay) bool {
	return s.commit(t, func() { s.plan = plan })
}

// Fail records err as the last failure when t is current. Previous results are
// kept.
func (s *State) Fail(t Ticket, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(t) {
		s.logLocked("%s #%d failed after being superseded: %v", t.Op, t.Seq, err)
		return false
	}
	s.recordFailureLocked(t.Op, err)
	return true
}

func (s *State) recordFailureLocked(op Op, err error) {
	s.lastFailure = &Failure{Op: op, Kind: KindOf(err), Message: err.Error(), At: s.now()}
	s.logLocked("%s failed (%s): %v", op, s.lastFailure.Kind, err)
}

// SetFilter updates the search text and category filter.
func (s *State) SetFilter(search string, category recipe.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = search
	s.category = category
}

// Filtered applies the session filter to the catalog.
func (s *State) Filtered() []recipe.Recipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return selection.Filter(s.catalog, s.search, s.category)
}

// ToggleSelection selects or deselects the catalog recipe with the given ID and
// reports whether it is now selected.
func (s *State) ToggleSelection(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := selection.FindByID(s.catalog, id)
	if !ok {
		return false, fmt.Errorf("%q: %w", id, ErrUnknownRecipe)
	}
	s.selected = selection.Toggle(s.selected, r)
	selected := selection.Contains(s.selected, id)
	s.logLocked("toggled %s (selected=%t)", r.DishName, selected)
	return selected, nil
}

// SetResources updates the number of cooks and stove burners.
func (s *State) SetResources(cooks, stoves int) error {
	if !scheduler.ValidResources(cooks, stoves) {
		return scheduler.ErrInvalidResources
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooks, s.stoves = cooks, stoves
	return nil
}

// SetServings updates the per-slot target servings.
func (s *State) SetServings(v planner.Servings) error {
	if !v.Valid() {
		return ErrInvalidServings
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servings = v
	return nil
}

// SetPlanInputs updates the plan length and the fridge notes.
func (s *State) SetPlanInputs(days int, inventoryNotes string) error {
	if days < 1 || days > shared.MaxPlanDays {
		return planner.ErrInvalidDays
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planDays = days
	s.inventoryNotes = inventoryNotes
	return nil
}

// SetShoppingList replaces the shopping list.
func (s *State) SetShoppingList(items []shopping.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shoppingList = items
}

// UpdateShoppingList applies fn to the shopping list atomically and returns
// the new list.
func (s *State) UpdateShoppingList(fn func([]shopping.Item) ([]shopping.Item, error)) ([]shopping.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := fn(s.shoppingList)
	if err != nil {
		return nil, err
	}
	s.shoppingList = items
	return items, nil
}

// Restore seeds persisted results into a fresh session.
func (s *State) Restore(plan []planner.MealPlanDay, items []shopping.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan != nil {
		s.plan = plan
	}
	if items != nil {
		s.shoppingList = items
	}
	s.logLocked("restored %d plan days and %d shopping items", len(plan), len(items))
}

// Logf appends an event to the session debug log.
func (s *State) Logf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logLocked(format, args...)
}

func (s *State) logLocked(format string, args ...any) {
	s.debug.add(s.now(), format, args...)
}

// DebugLog returns the recent events, oldest first.
func (s *State) DebugLog() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debug.entries()
}

// Snapshot returns a copy of the session state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	busy := make(map[Op]bool, len(s.pending))
	for op := range s.pending {
		busy[op] = true
	}
	var failure *Failure
	if s.lastFailure != nil {
		f := *s.lastFailure
		failure = &f
	}

	return Snapshot{
		UserID:         s.userID,
		Catalog:        append([]recipe.Recipe(nil), s.catalog...),
		CatalogLoaded:  s.catalogLoaded,
		IsLive:         s.isLive,
		CatalogError:   s.catalogError,
		Search:         s.search,
		Category:       s.category,
		Selected:       append([]recipe.Recipe{}, s.selected...),
		Cooks:          s.cooks,
		Stoves:         s.stoves,
		Schedule:       s.schedule,
		Plan:           append([]planner.MealPlanDay{}, s.plan...),
		PlanDays:       s.planDays,
		InventoryNotes: s.inventoryNotes,
		Servings:       s.servings,
		ShoppingList:   append([]shopping.Item{}, s.shoppingList...),
		Busy:           busy,
		LastFailure:    failure,
	}
}
