package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// EmbedderOptions selects and configures an embedding provider. APIKey
// and BaseURL are provider-dependent; Ollama needs neither, OpenAI-
// compatible endpoints may need both.
type EmbedderOptions struct {
	Provider  string
	APIKey    string
	Model     string
	Dimension int
	BaseURL   string
}

// NewEmbedder builds the embedder for the configured provider. The
// default is "openai" since that protocol also fronts self-hosted
// inference servers.
func NewEmbedder(ctx context.Context, opts EmbedderOptions) (Embedder, error) {
	switch provider := normalizeProvider(opts.Provider); provider {
	case "openai":
		return NewOpenAIEmbedder(opts.APIKey, opts.Model, opts.Dimension, opts.BaseURL), nil
	case "ollama":
		return NewOllamaEmbedder(opts.Model, opts.Dimension, opts.BaseURL), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, opts.APIKey, opts.Model, opts.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedder provider %q (want openai, ollama, or gemini)", provider)
	}
}

func normalizeProvider(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		return "openai"
	}
	return p
}
