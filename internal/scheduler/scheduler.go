// Package scheduler requests an interleaved cooking timeline for a set of
// recipes from the language model.
package scheduler

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"text/template"
	"time"

	"cooking-ops/internal/llm"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/shared"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

//go:embed schedule_prompt.md
var schedulePrompt string

var scheduleTemplate = template.Must(template.New("schedule").Parse(schedulePrompt))

var (
	// ErrNoRecipes is returned when no recipe was selected.
	ErrNoRecipes = errors.New("select at least one recipe to schedule")
	// ErrInvalidResources is returned when cooks or stoves is out of range.
	ErrInvalidResources = fmt.Errorf("cooks must be between 1 and %d, stoves between 1 and %d", shared.MaxCooks, shared.MaxStoves)
)

// OptimizedStep is one entry of the cooking timeline. TimeOffset is the start
// minute relative to the beginning of the session.
type OptimizedStep struct {
	TimeOffset      int      `json:"timeOffset" validate:"gte=0"`
	Action          string   `json:"action" validate:"required"`
	InvolvedRecipes []string `json:"involvedRecipes"`
	Assignees       []int    `json:"assignees"`
	ResourceUsed    string   `json:"resourceUsed,omitempty"`
	IsParallel      bool     `json:"isParallel"`
}

// OptimizedSchedule is the timeline returned by the model, used as-is.
type OptimizedSchedule struct {
	Timeline         []OptimizedStep `json:"timeline" validate:"dive"`
	TotalDuration    int             `json:"totalDuration" validate:"gte=0"`
	CriticalWarnings []string        `json:"criticalWarnings"`
}

type promptRecipe struct {
	DishName  string
	StepsJSON string
}

type promptData struct {
	Recipes []promptRecipe
	Cooks   int
	Stoves  int
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Requester asks the language model for cooking schedules.
type Requester struct {
	jsonGen   llm.TextGenerator
	available llm.Availability
	log       *zap.Logger
}

// NewRequester creates a Requester. jsonGen should be configured for JSON output.
func NewRequester(jsonGen llm.TextGenerator, available llm.Availability, log *zap.Logger) *Requester {
	if available == nil {
		available = llm.Always
	}
	return &Requester{jsonGen: jsonGen, available: available, log: log}
}

// ValidResources reports whether cooks and stoves are within the kitchen limits.
func ValidResources(cooks, stoves int) bool {
	return cooks >= 1 && cooks <= shared.MaxCooks && stoves >= 1 && stoves <= shared.MaxStoves
}

// RequestSchedule returns a timeline for cooking recipes with the given number
// of cooks and stove burners.
func (r *Requester) RequestSchedule(ctx context.Context, recipes []recipe.Recipe, cooks, stoves int) (*OptimizedSchedule, shared.AgentMeta, error) {
	meta := shared.AgentMeta{AgentName: shared.AgentScheduler}
	if len(recipes) == 0 {
		return nil, meta, ErrNoRecipes
	}
	if !ValidResources(cooks, stoves) {
		return nil, meta, ErrInvalidResources
	}
	if !r.available() {
		return nil, meta, llm.ErrCredentialMissing
	}

	prompt, err := buildPrompt(recipes, cooks, stoves)
	if err != nil {
		return nil, meta, err
	}

	start := time.Now()
	resp, err := r.jsonGen.GenerateContent(ctx, prompt)
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		return nil, meta, llm.Classify(shared.AgentScheduler, err)
	}

	schedule, err := decodeSchedule(resp.Content)
	if err != nil {
		return nil, meta, err
	}

	r.log.Debug("schedule received",
		zap.Int("recipes", len(recipes)),
		zap.Int("steps", len(schedule.Timeline)),
		zap.Int("total_duration", schedule.TotalDuration),
	)
	return schedule, meta, nil
}

func buildPrompt(recipes []recipe.Recipe, cooks, stoves int) (string, error) {
	data := promptData{Cooks: cooks, Stoves: stoves}
	for _, rec := range recipes {
		steps := rec.Steps
		if steps == nil {
			steps = []recipe.Step{}
		}
		stepsJSON, err := json.Marshal(steps)
		if err != nil {
			return "", fmt.Errorf("failed to marshal steps for %s: %w", rec.DishName, err)
		}
		data.Recipes = append(data.Recipes, promptRecipe{DishName: rec.DishName, StepsJSON: string(stepsJSON)})
	}

	var buf bytes.Buffer
	if err := scheduleTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build schedule prompt: %w", err)
	}
	return buf.String(), nil
}

func decodeSchedule(content string) (*OptimizedSchedule, error) {
	var schedule OptimizedSchedule
	if err := json.Unmarshal([]byte(content), &schedule); err != nil {
		return nil, llm.Malformed(shared.AgentScheduler, err, content)
	}
	if schedule.Timeline == nil {
		return nil, llm.Malformed(shared.AgentScheduler, errors.New("missing timeline"), content)
	}
	if err := validate.Struct(schedule); err != nil {
		return nil, llm.Malformed(shared.AgentScheduler, err, content)
	}

	for i := range schedule.Timeline {
		if schedule.Timeline[i].InvolvedRecipes == nil {
			schedule.Timeline[i].InvolvedRecipes = []string{}
		}
		if schedule.Timeline[i].Assignees == nil {
			schedule.Timeline[i].Assignees = []int{}
		}
	}
	if schedule.CriticalWarnings == nil {
		schedule.CriticalWarnings = []string{}
	}
	return &schedule, nil
}
