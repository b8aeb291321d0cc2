package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"veritas/internal/review"
)

// GeminiReviewer implements review.Completer using Gemini text generation.
type GeminiReviewer struct {
	client        *genai.Client
	model         string
	promptBuilder *PromptBuilder
}

func NewGeminiReviewer(ctx context.Context, apiKey, modelName string) (*GeminiReviewer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiReviewer{
		client:        client,
		model:         modelName,
		promptBuilder: &PromptBuilder{},
	}, nil
}

func (r *GeminiReviewer) Review(ctx context.Context, code string, pairs []review.ContextPair) (string, error) {
	prompt := r.promptBuilder.BuildReviewPrompt(code, pairs)

	temp := float32(0.1)
	resp, err := r.client.Models.GenerateContent(ctx, r.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
