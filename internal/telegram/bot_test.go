package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cooking-ops/internal/app"
	"cooking-ops/internal/catalog"
	"cooking-ops/internal/config"
	"cooking-ops/internal/database"
	"cooking-ops/internal/llm"
	"cooking-ops/internal/metrics"
	"cooking-ops/internal/planner"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/scheduler"
	"cooking-ops/internal/selection"
	"cooking-ops/internal/session"
	"cooking-ops/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	allowedUser int64 = 42
	adminUser   int64 = 7
)

// fakeSender records everything the bot sends.
type fakeSender struct {
	mu     sync.Mutex
	nextID int
	texts  []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		f.texts = append(f.texts, m.Text)
	case tgbotapi.EditMessageTextConfig:
		f.texts = append(f.texts, m.Text)
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type stubGenerator struct {
	content string
	err     error
}

func (g stubGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	if g.err != nil {
		return llm.ContentResponse{}, g.err
	}
	return llm.ContentResponse{Content: g.content}, nil
}

type panicGenerator struct{}

func (panicGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	panic("generator exploded")
}

func newTestBot(t *testing.T, gen llm.TextGenerator, available llm.Availability) (*Bot, *fakeSender) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "bot.db")
	db, err := database.NewDB(dbPath, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop()
	recipes := recipe.NewRepository(db.SQL, log)
	a := app.New(app.Deps{
		Log: log,
		Sessions: session.NewStore(session.Defaults{
			Cooks: 2, Stoves: 4, PlanDays: 7, Servings: planner.DefaultServings,
		}),
		Catalog:     catalog.NewProvider(recipes, "default", log),
		Scheduler:   scheduler.NewRequester(gen, available, log),
		Planner:     planner.NewRequester(gen, available, log),
		RecipeStore: recipes,
		Plans:       planner.NewPlanRepository(db.SQL),
		Lists:       shopping.NewRepository(db.SQL),
		Metrics:     metrics.NewStore(db.SQL),
		Collector:   metrics.NewCollector(prometheus.NewRegistry()),
	})

	cfg := &config.Config{
		TelegramAllowedUserIDs: []int64{allowedUser, adminUser},
		AdminTelegramID:        adminUser,
		DatabasePath:           dbPath,
	}
	sender := &fakeSender{}
	return newBot(sender, a, cfg, log), sender
}

func command(from int64, text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: from},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(cmd)},
		},
	}}
}

func TestUnauthorizedUserIsIgnored(t *testing.T) {
	b, sender := newTestBot(t, stubGenerator{}, llm.Always)
	b.HandleUpdate(context.Background(), command(999, "/help"))
	assert.Equal(t, 0, sender.count())
}

func TestHelpForPlainText(t *testing.T) {
	b, sender := newTestBot(t, stubGenerator{}, llm.Always)
	update := command(allowedUser, "/help")
	update.Message.Entities = nil
	update.Message.Text = "hello"
	b.HandleUpdate(context.Background(), update)
	assert.Contains(t, sender.last(), "/optimize")
}

func TestPickAndOptimize(t *testing.T) {
	schedule := `{"timeline":[{"timeOffset":0,"action":"Toast the bread","involvedRecipes":["Avocado Toast"],"assignees":[1]}],"totalDuration":6,"criticalWarnings":["Watch the toaster"]}`
	b, sender := newTestBot(t, stubGenerator{content: schedule}, llm.Always)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(allowedUser, "/recipes"))
	assert.Contains(t, sender.last(), "Showing demo recipes")
	assert.Contains(t, sender.last(), "1. *Avocado Toast*")

	b.HandleUpdate(ctx, command(allowedUser, "/pick 1"))
	assert.Contains(t, sender.last(), "Selected *Avocado Toast*")

	b.HandleUpdate(ctx, command(allowedUser, "/optimize"))
	out := sender.last()
	assert.Contains(t, out, "Cooking Timeline")
	assert.Contains(t, out, "`T+0` Toast the bread")
	assert.Contains(t, out, "Watch the toaster")
}

func TestOptimizeWithoutCredentials(t *testing.T) {
	unavailable := func() bool { return false }
	b, sender := newTestBot(t, stubGenerator{}, unavailable)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(allowedUser, "/pick 1"))
	b.HandleUpdate(ctx, command(allowedUser, "/optimize"))
	assert.Contains(t, sender.last(), "not configured")
}

func TestCategoryFilter(t *testing.T) {
	b, sender := newTestBot(t, stubGenerator{}, llm.Always)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(allowedUser, "/category lunch"))
	out := sender.last()
	assert.Contains(t, out, "Chicken Stir Fry")
	assert.NotContains(t, out, "Avocado Toast")

	b.HandleUpdate(ctx, command(allowedUser, "/category soup"))
	assert.Contains(t, sender.last(), "⚠️")
}

func TestResourcesValidation(t *testing.T) {
	b, sender := newTestBot(t, stubGenerator{}, llm.Always)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(allowedUser, "/resources 0 2"))
	assert.Contains(t, sender.last(), "Usage")

	b.HandleUpdate(ctx, command(allowedUser, "/resources 3 2"))
	assert.Contains(t, sender.last(), "3 cooks")
}

func TestPlanAndShoppingList(t *testing.T) {
	b, sender := newTestBot(t, stubGenerator{content: "Avocado Toast, Chicken Stir Fry, Berry Smoothie Bowl"}, llm.Always)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(allowedUser, "/plan 1 eggs and milk"))
	out := sender.last()
	assert.Contains(t, out, "Meal Plan")
	assert.Contains(t, out, "Chicken Stir Fry")

	b.HandleUpdate(ctx, command(allowedUser, "/list"))
	assert.Contains(t, sender.last(), "Shopping list")

	b.HandleUpdate(ctx, command(allowedUser, "/check 1"))
	assert.Contains(t, sender.last(), "1. [x]")

	b.HandleUpdate(ctx, command(allowedUser, "/check 99"))
	assert.Contains(t, sender.last(), "⚠️")
}

func TestPlanLengthIsBounded(t *testing.T) {
	b, sender := newTestBot(t, stubGenerator{content: "Avocado Toast"}, llm.Always)

	assert.NotPanics(t, func() {
		b.HandleUpdate(context.Background(), command(allowedUser, "/plan 100000000000000"))
	})
	assert.Contains(t, sender.last(), "between 1 and 14")
}

func TestHandleUpdateRecoversFromPanic(t *testing.T) {
	b, sender := newTestBot(t, panicGenerator{}, llm.Always)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(allowedUser, "/pick 1"))
	assert.NotPanics(t, func() {
		b.HandleUpdate(ctx, command(allowedUser, "/optimize"))
	})
	assert.Contains(t, sender.last(), "Something went wrong")

	b.HandleUpdate(ctx, command(allowedUser, "/help"))
	assert.Contains(t, sender.last(), "/optimize")
}

func TestMetricsIsAdminOnly(t *testing.T) {
	b, sender := newTestBot(t, stubGenerator{}, llm.Always)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(allowedUser, "/metrics"))
	assert.Contains(t, sender.last(), "Admin only")

	b.HandleUpdate(ctx, command(adminUser, "/metrics"))
	assert.Contains(t, sender.last(), "System Health")
}

func TestHandleWebhookRejectsBadJSON(t *testing.T) {
	b, _ := newTestBot(t, stubGenerator{}, llm.Always)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	b.HandleWebhook(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrap: %w", llm.ErrCredentialMissing), "not configured"},
		{llm.ErrServiceUnreachable, "Cannot reach"},
		{session.ErrBusy, "Still working"},
		{app.ErrSuperseded, "newer request"},
		{&llm.RequestError{Err: errors.New("bad `json`")}, "The request failed"},
		{errors.New("boom"), "⚠️ boom"},
	}
	for _, tt := range tests {
		assert.Contains(t, formatError(tt.err), tt.want)
	}
}

func TestFormatDebugLogKeepsNewest(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var events []session.Event
	for i := 0; i < 5; i++ {
		events = append(events, session.Event{At: at, Message: fmt.Sprintf("event %d", i)})
	}
	out := formatDebugLog(events, 2)
	assert.NotContains(t, out, "event 2")
	assert.Contains(t, out, "event 3")
	assert.Contains(t, out, "event 4")
	assert.Equal(t, "_No events yet._", formatDebugLog(nil, 2))
}

func TestFormatRecipeListEmpty(t *testing.T) {
	out := formatRecipeList(app.RecipeView{IsLive: true}, nil, selection.CategoryAll)
	assert.Contains(t, out, "No recipes match.")
	assert.NotContains(t, out, "demo")
}

func TestFormattersEscapeMarkdown(t *testing.T) {
	r := recipe.Recipe{ID: "r1", DishName: "Mac_and_Cheese *deluxe*", Category: recipe.CategoryBreakfast}

	view := app.RecipeView{Recipes: []recipe.Recipe{r}, Error: "bad chef_1 token"}
	out := formatRecipeList(view, nil, selection.CategoryAll)
	assert.Contains(t, out, `Mac\_and\_Cheese \*deluxe\*`)
	assert.Contains(t, out, `chef\_1`)

	plan := []planner.MealPlanDay{{Date: "2024-05-01", Breakfast: &r}}
	assert.Contains(t, formatPlan(plan), `Mac\_and\_Cheese`)

	s := &scheduler.OptimizedSchedule{
		Timeline:         []scheduler.OptimizedStep{{Action: "Boil [pasta]", InvolvedRecipes: []string{r.DishName}}},
		CriticalWarnings: []string{"oven_1 busy"},
	}
	out = formatSchedule(s)
	assert.Contains(t, out, `Boil \[pasta]`)
	assert.Contains(t, out, `oven\_1 busy`)

	assert.Contains(t, formatError(errors.New("no_such_recipe")), `no\_such\_recipe`)

	list := formatShoppingList([]shopping.Item{{Name: "extra_virgin oil", Value: 1, Unit: "l"}})
	assert.Contains(t, list, `extra\_virgin oil`)
}
