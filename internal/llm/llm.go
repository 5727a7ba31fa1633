package llm

import (
	"context"

	"cooking-ops/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Availability reports whether the optimization service can be attempted at all,
// i.e. a usable credential is configured. It is checked before every request.
type Availability func() bool

// Always is an Availability that never blocks a request.
func Always() bool { return true }
