package app

import (
	"context"
	"fmt"
	"time"

	"cooking-ops/internal/catalog"
	"cooking-ops/internal/clipper"
	"cooking-ops/internal/config"
	"cooking-ops/internal/database"
	"cooking-ops/internal/ghost"
	"cooking-ops/internal/llm"
	"cooking-ops/internal/metrics"
	"cooking-ops/internal/planner"
	"cooking-ops/internal/recipe"
	"cooking-ops/internal/scheduler"
	"cooking-ops/internal/session"
	"cooking-ops/internal/shopping"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// defaultIngestDelay keeps bulk extraction under free-tier rate limits.
const defaultIngestDelay = 5 * time.Second

// Build opens the database, creates the LLM generators and wires every
// component from configuration. The returned function releases them.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (*App, func(), error) {
	db, err := database.NewDB(cfg.DatabasePath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gens, err := llm.NewGenerators(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}
	if !cfg.OptimizationAvailable() {
		log.Warn("no API key for the selected LLM provider; optimization and planning are disabled",
			zap.String("provider", cfg.LLMProvider))
	}

	available := llm.AvailabilityFrom(cfg)
	recipes := recipe.NewRepository(db.SQL, log)
	extractor := recipe.NewExtractor(gens.JSON, cfg.CatalogOwnerID)

	var ghostClient ghost.Client
	if cfg.GhostEnabled() {
		ghostClient = ghost.NewClient(cfg)
	}
	// Clipped recipes are only published when an admin key is present.
	var publisher ghost.Client
	if ghostClient != nil && cfg.GhostAdminKey != "" {
		publisher = ghostClient
	}

	a := New(Deps{
		Log: log,
		Sessions: session.NewStore(session.Defaults{
			Cooks:    cfg.DefaultCooks,
			Stoves:   cfg.DefaultStoves,
			PlanDays: cfg.DefaultPlanDays,
			Servings: planner.Servings{
				Breakfast:   cfg.DefaultServingsBreakfast,
				LunchDinner: cfg.DefaultServingsLunch,
				Snack:       cfg.DefaultServingsSnack,
			},
		}),
		Catalog:     catalog.NewProvider(recipes, cfg.CatalogOwnerID, log),
		Scheduler:   scheduler.NewRequester(gens.JSON, available, log),
		Planner:     planner.NewRequester(gens.Text, available, log),
		RecipeStore: recipes,
		Extractor:   extractor,
		Plans:       planner.NewPlanRepository(db.SQL),
		Lists:       shopping.NewRepository(db.SQL),
		Metrics:     metrics.NewStore(db.SQL),
		Collector:   metrics.NewCollector(reg),
		Ghost:       ghostClient,
		Clipper:     clipper.NewClipper(extractor, recipes, publisher, log),
		IngestDelay: defaultIngestDelay,
	})

	cleanup := func() {
		if err := gens.Close(); err != nil {
			log.Warn("failed to close llm clients", zap.Error(err))
		}
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
	return a, cleanup, nil
}
