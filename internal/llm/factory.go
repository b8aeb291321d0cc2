package llm

import (
	"context"
	"fmt"
	"strings"

	"veritas/internal/review"
)

type ReviewerOptions struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

func NewReviewer(ctx context.Context, opts ReviewerOptions) (review.Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "gemini":
		return NewGeminiReviewer(ctx, opts.APIKey, opts.Model)
	case "openai":
		return NewOpenAIReviewer(opts.APIKey, opts.Model, opts.BaseURL), nil
	case "ollama":
		return NewOllamaReviewer(opts.Model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported reviewer provider: %s", opts.Provider)
	}
}
