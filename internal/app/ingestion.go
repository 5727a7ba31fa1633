package app

import (
	"context"
	"fmt"
	"time"

	"cooking-ops/internal/ghost"
	"cooking-ops/internal/recipe"

	"go.uber.org/zap"
)

// SourceGhost marks recipes imported from the Ghost blog.
const SourceGhost = "ghost"

// IngestReport summarizes a Ghost import.
type IngestReport struct {
	Fetched int
	Saved   int
	Skipped int
	Failed  int
	Removed int
}

// IngestFromGhost imports every Ghost post as a structured recipe. Posts whose
// recipe is already stored at the same revision are skipped, and previously
// imported recipes whose post no longer exists are removed.
func (a *App) IngestFromGhost(ctx context.Context, ownerID string) (IngestReport, error) {
	var report IngestReport
	if a.Ghost == nil {
		return report, ErrGhostNotConfigured
	}

	posts, err := a.Ghost.FetchRecipes(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to fetch recipes from ghost: %w", err)
	}
	report.Fetched = len(posts)
	a.Log.Info("fetched recipe posts from ghost", zap.Int("count", len(posts)))

	live := make(map[string]struct{}, len(posts))
	for i, post := range posts {
		live[post.ID] = struct{}{}

		existing, err := a.RecipeStore.Get(ctx, post.ID)
		if err != nil {
			return report, err
		}
		if existing != nil && existing.SourceUpdatedAt == post.UpdatedAt {
			report.Skipped++
			continue
		}

		if err := a.processAndSaveRecipe(ctx, post); err != nil {
			report.Failed++
			a.Log.Warn("failed to import post", zap.String("post", post.Title), zap.Error(err))
		} else {
			report.Saved++
			a.Log.Info("imported recipe", zap.String("post", post.Title))
		}

		if a.IngestDelay > 0 && i < len(posts)-1 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(a.IngestDelay):
			}
		}
	}

	removed, err := a.removeOrphans(ctx, ownerID, live)
	report.Removed = removed
	if err != nil {
		return report, err
	}
	return report, nil
}

// processAndSaveRecipe extracts a recipe from a post and stores it.
func (a *App) processAndSaveRecipe(ctx context.Context, post ghost.Post) error {
	res, err := a.Extractor.ExtractRecipe(ctx, recipe.PostData{
		ID:        post.ID,
		Title:     post.Title,
		UpdatedAt: post.UpdatedAt,
		HTML:      post.HTML,
		Source:    SourceGhost,
	})
	a.observe(ctx, res.Meta, err)
	if err != nil {
		return fmt.Errorf("failed to extract recipe: %w", err)
	}

	if err := a.RecipeStore.Save(ctx, res.Recipe); err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

func (a *App) removeOrphans(ctx context.Context, ownerID string, live map[string]struct{}) (int, error) {
	stored, err := a.RecipeStore.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, r := range stored {
		if r.Source != SourceGhost {
			continue
		}
		if _, ok := live[r.ID]; ok {
			continue
		}
		if err := a.RecipeStore.Delete(ctx, r.ID); err != nil {
			return removed, err
		}
		removed++
		a.Log.Info("removed recipe deleted from ghost", zap.String("id", r.ID), zap.String("dish", r.DishName))
	}
	return removed, nil
}
