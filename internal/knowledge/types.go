// Package knowledge turns code under review into vectors and retrieves
// similar past findings to ground the reviewer's prompts.
package knowledge

import (
	"context"

	"veritas/internal/storage"
)

// Embedder converts text to vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Searcher serves ranked nearest-neighbour lookups over stored examples.
type Searcher interface {
	SearchSimilar(ctx context.Context, vector []float32, topK int) ([]storage.Match, error)
}

// Upserter persists new examples with their embeddings.
type Upserter interface {
	UpsertExamples(ctx context.Context, examples []storage.VectorExample) error
}
