package llm

import (
	"context"
	"errors"

	"cooking-ops/internal/config"
)

// Generators bundles the two generator flavors the app needs: one constrained to
// JSON output (schedules, recipe extraction) and one free-text (meal plans).
type Generators struct {
	JSON    TextGenerator
	Text    TextGenerator
	closers []Closer
}

// NewGenerators builds generators for the configured provider. A missing
// credential is not an error here: the returned generators fail every call with
// ErrCredentialMissing and Availability reports false.
func NewGenerators(ctx context.Context, cfg *config.Config) (*Generators, error) {
	if !cfg.OptimizationAvailable() {
		return &Generators{JSON: unavailable{}, Text: unavailable{}}, nil
	}

	switch cfg.LLMProvider {
	case config.ProviderGroq:
		return &Generators{
			JSON: NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel, true),
			Text: NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel, false),
		}, nil
	default:
		jsonGen, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, true)
		if err != nil {
			return nil, err
		}
		textGen, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, false)
		if err != nil {
			jsonGen.Close()
			return nil, err
		}
		return &Generators{JSON: jsonGen, Text: textGen, closers: []Closer{jsonGen, textGen}}, nil
	}
}

// Close releases provider clients.
func (g *Generators) Close() error {
	var errs []error
	for _, c := range g.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// AvailabilityFrom derives the capability check from configuration.
func AvailabilityFrom(cfg *config.Config) Availability {
	return cfg.OptimizationAvailable
}

type unavailable struct{}

func (unavailable) GenerateContent(context.Context, string) (ContentResponse, error) {
	return ContentResponse{}, ErrCredentialMissing
}
