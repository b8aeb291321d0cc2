package review

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/parser"
)

type fakeRetriever struct {
	mu    sync.Mutex
	calls int
	pairs []ContextPair
}

func (f *fakeRetriever) Retrieve(ctx context.Context, code string, lineCount, unitCount int) []ContextPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.pairs
}

// fakeCompleter replies with a canned response per call, cycling through
// responses when there are more calls than entries.
type fakeCompleter struct {
	mu        sync.Mutex
	calls     int
	responses []string
	err       error
}

func (f *fakeCompleter) Review(ctx context.Context, code string, pairs []ContextPair) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return `{"findings": []}`, nil
	}
	return f.responses[(f.calls-1)%len(f.responses)], nil
}

type fakeFeedback struct {
	mu      sync.Mutex
	batches [][]FeedbackExample
	err     error
}

func (f *fakeFeedback) StoreExamples(ctx context.Context, examples []FeedbackExample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, examples)
	return f.err
}

func newTestPipeline(retriever *fakeRetriever, completer *fakeCompleter, feedback *fakeFeedback) *Pipeline {
	var fb FeedbackStore
	if feedback != nil {
		fb = feedback
	}
	return NewPipeline(retriever, completer, fb, Options{Logger: zerolog.Nop()})
}

func mustParser(t *testing.T, lang string) *parser.Parser {
	t.Helper()
	p, err := parser.NewParser(lang)
	require.NoError(t, err)
	return p
}

func TestPipeline_CacheShortCircuits(t *testing.T) {
	retriever := &fakeRetriever{}
	completer := &fakeCompleter{responses: []string{`{"findings": [{"category": "Bug", "severity": "High", "explanation": "x", "remedy": "y"}]}`}}
	feedback := &fakeFeedback{}
	p := newTestPipeline(retriever, completer, feedback)

	subject := Subject{Name: "a.py", Source: "x = 1\n"}
	dec := mustParser(t, "python")

	first := p.Run(context.Background(), subject, dec)
	second := p.Run(context.Background(), subject, dec)

	assert.Equal(t, *first, *second, "identical content within TTL returns the identical state")
	assert.Equal(t, 1, completer.calls, "second run must perform no completion calls")
	assert.Equal(t, 1, retriever.calls, "second run must perform no retrieval calls")
}

func TestPipeline_SyntaxErrorReportedFirstAndNeverSuppressed(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`{"findings": []}`}}
	p := newTestPipeline(&fakeRetriever{}, completer, nil)

	state := p.Run(context.Background(), Subject{Name: "broken.py", Source: "x = 1 +"}, mustParser(t, "python"))

	require.NotEmpty(t, state.SyntaxFindings)
	first := state.AllFindings()[0]
	assert.Contains(t, strings.ToLower(first.Category), "syntax")
	assert.Equal(t, SeverityHigh, first.Severity)
	assert.Empty(t, state.Findings)
	assert.Contains(t, state.Report, "Syntax Error")
	assert.Equal(t, 1, completer.calls, "analysis continues on invalid text")
}

func TestPipeline_WholeUnitFindingsUntagged(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`{"findings": [{"category": "Bug", "severity": "Low", "explanation": "x"}]}`}}
	p := newTestPipeline(&fakeRetriever{}, completer, nil)

	state := p.Run(context.Background(), Subject{Name: "small.py", Source: "def f():\n    return 1\n"}, mustParser(t, "python"))

	assert.Equal(t, WholeUnit, state.Strategy)
	require.Len(t, state.Findings, 1)
	assert.Nil(t, state.Findings[0].Origin)
}

// buildLargeSource produces a python module of roughly the requested line
// count with the given number of top-level functions plus module-level code.
func buildLargeSource(funcs, bodyLines int) string {
	var sb strings.Builder
	sb.WriteString("import os\n\nSETTING = os.getenv(\"SETTING\")\n\n")
	for i := 0; i < funcs; i++ {
		fmt.Fprintf(&sb, "def handler_%d(payload):\n", i)
		for j := 0; j < bodyLines; j++ {
			fmt.Fprintf(&sb, "    value_%d = payload + %d\n", j, j)
		}
		fmt.Fprintf(&sb, "    return value_%d\n\n", bodyLines-1)
	}
	return sb.String()
}

func TestPipeline_DecomposedRun(t *testing.T) {
	source := buildLargeSource(18, 65) // ~1200 lines, 18 sub-units plus module remainder

	long := `{"findings": [{"category": "Bug", "severity": "Medium", "explanation": "` + strings.Repeat("p", 300) + `", "remedy": "fix"}]}`
	short := `{"findings": []}`
	completer := &fakeCompleter{responses: []string{short, long, short}}
	feedback := &fakeFeedback{}
	p := newTestPipeline(&fakeRetriever{}, completer, feedback)

	state := p.Run(context.Background(), Subject{Name: "big.py", Source: source}, mustParser(t, "python"))

	t.Run("One call per sub-unit plus module remainder", func(t *testing.T) {
		assert.Equal(t, Decomposed, state.Strategy)
		assert.Equal(t, 19, completer.calls)
	})

	t.Run("Diagnostic is the longest raw response", func(t *testing.T) {
		assert.Equal(t, len(long), state.Diagnostics.RawLength)
	})

	t.Run("Findings tagged with their origin unit", func(t *testing.T) {
		require.NotEmpty(t, state.Findings)
		for _, f := range state.Findings {
			require.NotNil(t, f.Origin)
			assert.NotEmpty(t, f.Origin.Name)
		}
	})

	t.Run("High and medium findings forwarded to feedback store", func(t *testing.T) {
		require.NotEmpty(t, feedback.batches)
		for _, ex := range feedback.batches[0] {
			assert.LessOrEqual(t, len(ex.Excerpt), feedbackExcerptLimit)
			assert.NotEmpty(t, ex.Category)
		}
	})
}

func TestPipeline_CompleterFailureDegrades(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("model unavailable")}
	p := newTestPipeline(&fakeRetriever{}, completer, nil)

	state := p.Run(context.Background(), Subject{Name: "a.py", Source: "x = 1\n"}, mustParser(t, "python"))

	assert.Empty(t, state.Findings)
	assert.False(t, state.Diagnostics.ParseSucceeded)
	assert.Contains(t, state.Report, "clean")
}

func TestPipeline_NilDecomposerAnalyzesWhole(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`{"findings": [{"category": "Bug", "severity": "Low", "explanation": "x"}]}`}}
	p := newTestPipeline(&fakeRetriever{}, completer, nil)

	state := p.Run(context.Background(), Subject{Name: "notes.txt", Source: "free text"}, nil)

	assert.Equal(t, WholeUnit, state.Strategy)
	assert.Empty(t, state.SyntaxFindings)
	assert.Len(t, state.Findings, 1)
}

func TestPipeline_FeedbackFailureSwallowed(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`{"findings": [{"category": "Bug", "severity": "High", "explanation": "x", "remedy": "y"}]}`}}
	feedback := &fakeFeedback{err: fmt.Errorf("store down")}
	p := newTestPipeline(&fakeRetriever{}, completer, feedback)

	state := p.Run(context.Background(), Subject{Name: "a.py", Source: "y = 2\n"}, mustParser(t, "python"))

	require.Len(t, state.Findings, 1)
	assert.Contains(t, state.Report, "Bug")
}

func TestPipeline_FalsePositiveFilterApplied(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`{"findings": [{"category": "Hardcoded Secret", "severity": "High", "explanation": "embedded key"}]}`}}
	p := newTestPipeline(&fakeRetriever{}, completer, nil)

	state := p.Run(context.Background(), Subject{Name: "cfg.py", Source: "import os\nKEY = os.getenv(\"KEY\")\n"}, mustParser(t, "python"))

	assert.Empty(t, state.Findings, "env-sourced value must not be reported as hardcoded")
}
