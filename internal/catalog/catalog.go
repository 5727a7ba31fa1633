package catalog

import (
	"context"
	_ "embed"
	"fmt"

	"cooking-ops/internal/recipe"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed demo_recipes.yaml
var demoRecipesYAML []byte

// Source lists the recipes stored for an owner.
type Source interface {
	ListByOwner(ctx context.Context, ownerID string) ([]recipe.Recipe, error)
}

// Result is the outcome of a catalog fetch. When IsLive is false the recipes are
// the built-in demo set and Error may explain why.
type Result struct {
	Recipes []recipe.Recipe `json:"recipes"`
	IsLive  bool            `json:"isLive"`
	Error   string          `json:"error,omitempty"`
}

// Provider loads the recipe catalog for a single owner.
type Provider struct {
	source  Source
	ownerID string
	log     *zap.Logger
}

// NewProvider creates a Provider. A nil source always yields the demo set.
func NewProvider(source Source, ownerID string, log *zap.Logger) *Provider {
	return &Provider{source: source, ownerID: ownerID, log: log}
}

// OwnerID returns the owner whose recipes the provider loads.
func (p *Provider) OwnerID() string { return p.ownerID }

// Fetch returns the owner's live recipes, or the demo set when the store is
// empty or cannot be read. It never fails.
func (p *Provider) Fetch(ctx context.Context) Result {
	if p.source == nil {
		return p.demo("recipe store not configured")
	}

	recipes, err := p.source.ListByOwner(ctx, p.ownerID)
	if err != nil {
		p.log.Warn("recipe store unavailable, using demo catalog",
			zap.String("owner", p.ownerID),
			zap.Error(err),
		)
		return p.demo(fmt.Sprintf("failed to load recipes: %v", err))
	}
	if len(recipes) == 0 {
		p.log.Info("no live recipes, using demo catalog", zap.String("owner", p.ownerID))
		return p.demo(fmt.Sprintf("no live recipes for owner %q", p.ownerID))
	}

	return Result{Recipes: recipes, IsLive: true}
}

func (p *Provider) demo(reason string) Result {
	recipes, err := DemoRecipes()
	if err != nil {
		p.log.Error("failed to decode demo catalog", zap.Error(err))
		return Result{Error: reason}
	}
	return Result{Recipes: recipes, Error: reason}
}

// DemoRecipes decodes the built-in demo catalog. Each call returns a fresh copy.
func DemoRecipes() ([]recipe.Recipe, error) {
	var recipes []recipe.Recipe
	if err := yaml.Unmarshal(demoRecipesYAML, &recipes); err != nil {
		return nil, fmt.Errorf("failed to decode demo recipes: %w", err)
	}
	return recipes, nil
}
