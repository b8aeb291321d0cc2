package knowledge

import (
	"context"

	"github.com/rs/zerolog"

	"veritas/internal/review"
)

const (
	// Larger subjects get a wider retrieval window.
	retrieveTopKSmall = 3
	retrieveTopKLarge = 5

	largeSubjectLines = 1000
	largeSubjectUnits = 10

	// Neighbours scoring below this are too weak to cite as precedent.
	similarityFloor = 0.6
)

// Retriever looks up stored review examples similar to the code under
// review. Retrieval is best-effort: any collaborator failure yields an
// empty context rather than an error, so the review proceeds without
// precedent.
type Retriever struct {
	embedder Embedder
	store    Searcher
	log      zerolog.Logger
}

func NewRetriever(embedder Embedder, store Searcher, log zerolog.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
		log:      log,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, code string, lineCount, unitCount int) []review.ContextPair {
	topK := retrieveTopKSmall
	if lineCount > largeSubjectLines || unitCount > largeSubjectUnits {
		topK = retrieveTopKLarge
	}

	vecs, err := r.embedder.Embed(ctx, []string{code})
	if err != nil {
		r.log.Warn().Err(err).Msg("embedding failed, reviewing without retrieved context")
		return nil
	}
	if len(vecs) == 0 {
		return nil
	}

	matches, err := r.store.SearchSimilar(ctx, vecs[0], topK)
	if err != nil {
		r.log.Warn().Err(err).Msg("similarity search failed, reviewing without retrieved context")
		return nil
	}

	pairs := make([]review.ContextPair, 0, len(matches))
	for _, m := range matches {
		if m.Score < similarityFloor {
			continue
		}
		pairs = append(pairs, review.ContextPair{
			Pattern: m.Example.Category(),
			Remedy:  m.Example.Fix,
			Excerpt: m.Example.Code,
		})
	}

	r.log.Debug().
		Int("top_k", topK).
		Int("matched", len(matches)).
		Int("kept", len(pairs)).
		Msg("retrieved similar examples")
	return pairs
}
