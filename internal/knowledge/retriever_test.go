package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/storage"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vec) }

type fakeSearcher struct {
	matches  []storage.Match
	err      error
	lastTopK int
}

func (f *fakeSearcher) SearchSimilar(_ context.Context, _ []float32, topK int) ([]storage.Match, error) {
	f.lastTopK = topK
	return f.matches, f.err
}

func TestRetrieveFiltersWeakMatches(t *testing.T) {
	searcher := &fakeSearcher{matches: []storage.Match{
		{Score: 0.95, Example: storage.Example{Code: "eval(user_input)", Smell: "injection", Fix: "never eval user input"}},
		{Score: 0.61, Example: storage.Example{Code: "x == None", SmellType: "comparison", Fix: "use is None"}},
		{Score: 0.4, Example: storage.Example{Code: "unrelated", Smell: "noise", Fix: "irrelevant"}},
	}}
	r := NewRetriever(&fakeEmbedder{vec: []float32{1, 0}}, searcher, zerolog.Nop())

	pairs := r.Retrieve(context.Background(), "some code", 100, 2)

	require.Len(t, pairs, 2)
	assert.Equal(t, "injection", pairs[0].Pattern)
	assert.Equal(t, "never eval user input", pairs[0].Remedy)
	assert.Equal(t, "eval(user_input)", pairs[0].Excerpt)

	// The legacy metadata key normalizes into the same pattern slot.
	assert.Equal(t, "comparison", pairs[1].Pattern)
	assert.Equal(t, "use is None", pairs[1].Remedy)
}

func TestRetrieveTopKWidensForLargeSubjects(t *testing.T) {
	cases := []struct {
		name     string
		lines    int
		units    int
		wantTopK int
	}{
		{"small", 100, 2, 3},
		{"many lines", 1500, 2, 5},
		{"many units", 100, 12, 5},
		{"boundary", 1000, 10, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			r := NewRetriever(&fakeEmbedder{vec: []float32{1}}, searcher, zerolog.Nop())

			r.Retrieve(context.Background(), "code", tc.lines, tc.units)
			assert.Equal(t, tc.wantTopK, searcher.lastTopK)
		})
	}
}

func TestRetrieveToleratesCollaboratorFailures(t *testing.T) {
	t.Run("embedder error", func(t *testing.T) {
		r := NewRetriever(&fakeEmbedder{err: errors.New("boom")}, &fakeSearcher{}, zerolog.Nop())
		assert.Empty(t, r.Retrieve(context.Background(), "code", 10, 1))
	})

	t.Run("search error", func(t *testing.T) {
		searcher := &fakeSearcher{err: errors.New("db locked")}
		r := NewRetriever(&fakeEmbedder{vec: []float32{1}}, searcher, zerolog.Nop())
		assert.Empty(t, r.Retrieve(context.Background(), "code", 10, 1))
	})
}
