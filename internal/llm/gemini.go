package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cooking-ops/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// GeminiClient is a client for the Google Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGeminiClient creates a new Gemini API client. With jsonOutput the model is
// asked to answer with application/json only.
func NewGeminiClient(ctx context.Context, apiKey, modelName string, jsonOutput bool) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrCredentialMissing
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	if jsonOutput {
		model.ResponseMIMEType = "application/json"
	}

	return &GeminiClient{client: client, model: model, modelName: modelName}, nil
}

// GenerateContent sends a prompt to the Gemini model and returns the generated text.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return ContentResponse{}, classifyGeminiError(err)
	}

	usage := shared.TokenUsage{Model: c.modelName}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ContentResponse{Usage: usage}, fmt.Errorf("no content generated")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return ContentResponse{Usage: usage}, fmt.Errorf("generated content is not text")
	}

	return ContentResponse{Content: text, Usage: usage}, nil
}

// Close closes the underlying Gemini client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func classifyGeminiError(err error) error {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPCode() == http.StatusUnauthorized,
			apiErr.HTTPCode() == http.StatusForbidden,
			apiErr.GRPCStatus() != nil && apiErr.GRPCStatus().Code() == codes.Unauthenticated,
			apiErr.GRPCStatus() != nil && apiErr.GRPCStatus().Code() == codes.PermissionDenied:
			return fmt.Errorf("%w: gemini rejected the API key: %v", ErrCredentialMissing, err)
		case apiErr.GRPCStatus() != nil && apiErr.GRPCStatus().Code() == codes.Unavailable:
			return fmt.Errorf("%w: gemini: %v", ErrServiceUnreachable, err)
		}
	}
	if te := transportError("gemini", err); te != nil {
		return te
	}
	return fmt.Errorf("failed to generate content: %w", err)
}
