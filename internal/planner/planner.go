package planner

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"cooking-ops/internal/llm"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/shared"

	"go.uber.org/zap"
)

//go:embed mealplan_prompt.md
var mealPlanPrompt string

var mealPlanTemplate = template.Must(template.New("mealplan").Parse(mealPlanPrompt))

var (
	// ErrEmptyCatalog is returned when there is nothing to plan with.
	ErrEmptyCatalog = errors.New("no recipes to plan with")
	// ErrInvalidDays is returned for a plan length outside 1..shared.MaxPlanDays.
	ErrInvalidDays = fmt.Errorf("plan length must be between 1 and %d days", shared.MaxPlanDays)
)

type mealPlanPromptData struct {
	Recipes        []recipe.Recipe
	InventoryNotes string
	Days           int
}

// Requester asks the language model for a multi-day meal plan.
type Requester struct {
	textGen   llm.TextGenerator
	available llm.Availability
	log       *zap.Logger
}

// NewRequester creates a Requester. available is checked before every request.
func NewRequester(textGen llm.TextGenerator, available llm.Availability, log *zap.Logger) *Requester {
	if available == nil {
		available = llm.Always
	}
	return &Requester{textGen: textGen, available: available, log: log}
}

// RequestMealPlan returns a flat list of dish names, three per day in slot order.
// The names are whatever the model answered and may not match the catalog.
func (r *Requester) RequestMealPlan(ctx context.Context, catalog []recipe.Recipe, inventoryNotes string, days int) ([]string, shared.AgentMeta, error) {
	meta := shared.AgentMeta{AgentName: shared.AgentMealPlan}
	if len(catalog) == 0 {
		return nil, meta, ErrEmptyCatalog
	}
	if days < 1 || days > shared.MaxPlanDays {
		return nil, meta, ErrInvalidDays
	}
	if !r.available() {
		return nil, meta, llm.ErrCredentialMissing
	}

	var buf bytes.Buffer
	err := mealPlanTemplate.Execute(&buf, mealPlanPromptData{
		Recipes:        catalog,
		InventoryNotes: inventoryNotes,
		Days:           days,
	})
	if err != nil {
		return nil, meta, fmt.Errorf("failed to build meal plan prompt: %w", err)
	}

	start := time.Now()
	resp, err := r.textGen.GenerateContent(ctx, buf.String())
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		return nil, meta, llm.Classify(shared.AgentMealPlan, err)
	}

	names := ParseDishNames(resp.Content)
	r.log.Debug("meal plan suggested",
		zap.Int("days", days),
		zap.Int("names", len(names)),
		zap.Duration("latency", meta.Latency),
	)
	return names, meta, nil
}

// ParseDishNames splits a comma-separated answer into trimmed, non-empty names.
// A surrounding code fence and the answer's final period are dropped; a period
// inside a dish name is kept.
func ParseDishNames(text string) []string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), ".")

	names := []string{}
	for _, part := range strings.Split(text, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// AssemblePlan lays names out over days, filling breakfast, lunch/dinner and
// snack in turn. Names are resolved against the catalog by exact dish name;
// unknown or missing names leave the slot empty. Day i is dated start+i.
func AssemblePlan(names []string, catalog []recipe.Recipe, days int, start time.Time, log *zap.Logger) []MealPlanDay {
	byName := make(map[string]recipe.Recipe, len(catalog))
	for _, r := range catalog {
		if _, ok := byName[r.DishName]; !ok {
			byName[r.DishName] = r
		}
	}

	days = min(max(days, 0), shared.MaxPlanDays)
	plan := make([]MealPlanDay, 0, days)
	for i := 0; i < days; i++ {
		day := MealPlanDay{Date: start.AddDate(0, 0, i).Format(time.DateOnly)}
		for j, slot := range Slots {
			idx := i*len(Slots) + j
			if idx >= len(names) {
				continue
			}
			r, ok := byName[names[idx]]
			if !ok {
				log.Warn("suggested dish not in catalog",
					zap.String("dish", names[idx]),
					zap.String("date", day.Date),
					zap.String("slot", string(slot)),
				)
				continue
			}
			day.set(slot, &r)
		}
		plan = append(plan, day)
	}
	return plan
}
