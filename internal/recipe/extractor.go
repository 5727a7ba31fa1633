package recipe

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"cooking-ops/internal/llm"
	"cooking-ops/internal/shared"

	"github.com/google/uuid"
)

//go:embed extractor_prompt.md
var extractorPrompt string

var extractorTemplate = template.Must(template.New("extractor").Parse(extractorPrompt))

// PostData is the raw material a recipe is extracted from.
type PostData struct {
	ID        string
	Title     string
	UpdatedAt string
	HTML      string
	Source    string
}

// ExtractorResult holds an extracted recipe and the agent metadata for metrics.
type ExtractorResult struct {
	Recipe Recipe
	Meta   shared.AgentMeta
}

// Extractor turns unstructured recipe content into a Recipe using an LLM.
type Extractor struct {
	textGen llm.TextGenerator
	ownerID string
}

// NewExtractor creates an Extractor. Extracted recipes belong to ownerID.
func NewExtractor(textGen llm.TextGenerator, ownerID string) *Extractor {
	return &Extractor{textGen: textGen, ownerID: ownerID}
}

// ExtractRecipe asks the model for a structured recipe and validates it.
// Posts without an ID get a fresh UUID.
func (e *Extractor) ExtractRecipe(ctx context.Context, data PostData) (ExtractorResult, error) {
	start := time.Now()

	var buf bytes.Buffer
	if err := extractorTemplate.Execute(&buf, data); err != nil {
		return ExtractorResult{}, fmt.Errorf("failed to build extractor prompt: %w", err)
	}

	resp, err := e.textGen.GenerateContent(ctx, buf.String())
	meta := shared.AgentMeta{
		AgentName: shared.AgentExtractor,
		Usage:     resp.Usage,
		Latency:   time.Since(start),
	}
	if err != nil {
		return ExtractorResult{Meta: meta}, llm.Classify(shared.AgentExtractor, err)
	}

	var rec Recipe
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &rec); err != nil {
		return ExtractorResult{Meta: meta}, llm.Malformed(shared.AgentExtractor, err, resp.Content)
	}

	rec.ID = data.ID
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DishName == "" {
		rec.DishName = data.Title
	}
	rec.OwnerID = e.ownerID
	rec.Source = data.Source
	rec.SourceUpdatedAt = data.UpdatedAt
	if rec.TotalTimeMinutes == 0 {
		rec.TotalTimeMinutes = rec.TotalTime()
	}

	if err := rec.Validate(); err != nil {
		return ExtractorResult{Recipe: rec, Meta: meta}, &llm.RequestError{Agent: shared.AgentExtractor, Err: err}
	}

	return ExtractorResult{Recipe: rec, Meta: meta}, nil
}

// stripCodeFence removes a ```json fence some models wrap around their answer.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
