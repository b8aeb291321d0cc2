package knowledge

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"veritas/internal/review"
	"veritas/internal/storage"
)

// ExampleWriter embeds confirmed findings and persists them so later
// reviews can retrieve them as precedent.
type ExampleWriter struct {
	embedder Embedder
	store    Upserter
}

func NewExampleWriter(embedder Embedder, store Upserter) *ExampleWriter {
	return &ExampleWriter{embedder: embedder, store: store}
}

func (w *ExampleWriter) StoreExamples(ctx context.Context, examples []review.FeedbackExample) error {
	if len(examples) == 0 {
		return nil
	}

	texts := make([]string, len(examples))
	for i, ex := range examples {
		texts[i] = ex.Excerpt
	}

	vecs, err := w.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed feedback examples: %w", err)
	}
	if len(vecs) != len(examples) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vecs), len(examples))
	}

	records := make([]storage.VectorExample, len(examples))
	for i, ex := range examples {
		records[i] = storage.VectorExample{
			Example: storage.Example{
				ID:    uuid.NewString(),
				Code:  ex.Excerpt,
				Smell: ex.Category,
				Fix:   ex.Remedy,
			},
			Embedding: vecs[i],
		}
	}

	return w.store.UpsertExamples(ctx, records)
}
