package review

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"veritas/internal/parser"
)

// feedbackExcerptLimit bounds the code excerpt stored alongside a finding.
const feedbackExcerptLimit = 500

// maxConcurrentCalls caps the parallel completion calls of a decomposed run.
const maxConcurrentCalls = 4

// Retriever supplies similar past defect patterns for a code text. It must
// not fail: an unavailable backend degrades to an empty context.
type Retriever interface {
	Retrieve(ctx context.Context, code string, lineCount, unitCount int) []ContextPair
}

// Completer runs one review completion call and returns the raw model text.
type Completer interface {
	Review(ctx context.Context, code string, pairs []ContextPair) (string, error)
}

// FeedbackStore receives qualifying findings for future retrieval corpus
// growth. Fire-and-forget from the pipeline's perspective.
type FeedbackStore interface {
	StoreExamples(ctx context.Context, examples []FeedbackExample) error
}

// FeedbackExample is one finding prepared for the retrieval corpus.
type FeedbackExample struct {
	Excerpt  string
	Category string
	Remedy   string
}

// Decomposer splits a source text into named sub-units and validates its
// syntax. parser.Parser satisfies it.
type Decomposer interface {
	Decompose(ctx context.Context, source string) ([]parser.Unit, error)
	Validate(ctx context.Context, source string) (*parser.SyntaxIssue, error)
}

// Options tunes a Pipeline. Zero values fall back to defaults.
type Options struct {
	Thresholds  StrategyThresholds
	CallTimeout time.Duration
	CacheTTL    time.Duration
	Clock       Clock
	Logger      zerolog.Logger
}

// Pipeline runs the review stages for one subject at a time:
// SyntaxCheck, Retrieve, Analyze, Output, Store. Instances are safe for
// concurrent use; each run owns its own state.
type Pipeline struct {
	retriever   Retriever
	completer   Completer
	feedback    FeedbackStore
	cache       *ResultCache
	thresholds  StrategyThresholds
	callTimeout time.Duration
	log         zerolog.Logger
}

// NewPipeline wires the pipeline's collaborators. retriever and feedback may
// be nil, in which case those stages degrade to no-ops; completer must not be.
func NewPipeline(retriever Retriever, completer Completer, feedback FeedbackStore, opts Options) *Pipeline {
	if opts.Thresholds == (StrategyThresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Pipeline{
		retriever:   retriever,
		completer:   completer,
		feedback:    feedback,
		cache:       NewResultCache(opts.CacheTTL, opts.Clock),
		thresholds:  opts.Thresholds,
		callTimeout: opts.CallTimeout,
		log:         opts.Logger,
	}
}

// Run reviews one subject to completion and returns its final state. The
// caller always receives a well-formed state: stage failures degrade, and a
// catastrophic failure inside orchestration is rendered as an error report.
// dec may be nil for subjects in a language the parser does not support;
// such subjects are analyzed whole with no syntax findings.
func (p *Pipeline) Run(ctx context.Context, subject Subject, dec Decomposer) (state *PipelineState) {
	hash := ContentHash(subject.Source)
	if cached, ok := p.cache.Get(hash); ok {
		p.log.Debug().Str("subject", subject.Name).Str("hash", hash[:8]).Msg("result cache hit")
		return &cached
	}

	state = &PipelineState{Subject: subject.Name}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("subject", subject.Name).Interface("panic", r).Msg("pipeline failed")
			state.Report = fmt.Sprintf("Error during analysis: %v", r)
		}
		p.cache.Put(hash, *state)
	}()

	lineCount := countLines(subject.Source)

	// SyntaxCheck. A failure becomes one High finding and the run continues;
	// partial feedback on invalid text is still worth having.
	var units []parser.Unit
	if dec != nil {
		if issue, err := dec.Validate(ctx, subject.Source); err != nil {
			p.log.Warn().Err(err).Str("subject", subject.Name).Msg("syntax check unavailable")
		} else if issue != nil {
			state.SyntaxFindings = append(state.SyntaxFindings, Finding{
				Category:    "Syntax Error",
				Severity:    SeverityHigh,
				Explanation: fmt.Sprintf("Syntax error at line %d: %s", issue.Line, issue.Message),
				Remedy:      fmt.Sprintf("Fix the syntax error near line %d. Check for missing brackets, commas, or indentation issues.", issue.Line),
			})
		}

		var err error
		units, err = dec.Decompose(ctx, subject.Source)
		if err != nil {
			// Decomposition failure falls back to whole-unit analysis.
			p.log.Warn().Err(err).Str("subject", subject.Name).Msg("decomposition failed, analyzing whole unit")
			units = nil
		}
	}

	state.Strategy = p.thresholds.Select(lineCount, len(units))
	if state.Strategy == Decomposed && len(units) == 0 {
		state.Strategy = WholeUnit
	}

	// Retrieve. Never fails the pipeline; it only starves it of context.
	var pairs []ContextPair
	if p.retriever != nil {
		pairs = p.retriever.Retrieve(ctx, subject.Source, lineCount, len(units))
	}

	// Analyze.
	var results []callResult
	if state.Strategy == Decomposed {
		results = p.analyzeDecomposed(ctx, subject, units, pairs)
	} else {
		results = []callResult{{outcome: p.completeOne(ctx, subject.Source, pairs)}}
	}

	merged, diag := mergeResults(results)
	state.Findings = FilterFalsePositives(merged, subject.Source)
	state.Diagnostics = diag

	// Output.
	state.Report = RenderReport(state.SyntaxFindings, state.Findings)

	// Store. Best-effort; failures are logged and swallowed so they never
	// invalidate an already-computed report.
	p.storeFeedback(ctx, subject, state.AllFindings())

	return state
}

// analyzeDecomposed runs one completion call for the module-level remainder
// (when present) and one per sub-unit. Calls are independent and issued
// concurrently; each writes its own slot, then the results are joined in
// unit-processing order.
func (p *Pipeline) analyzeDecomposed(ctx context.Context, subject Subject, units []parser.Unit, pairs []ContextPair) []callResult {
	targets := make([]parser.Unit, 0, len(units)+1)
	if rem := parser.ModuleRemainder(subject.Source, units); rem != nil {
		targets = append(targets, *rem)
	}
	targets = append(targets, units...)

	p.log.Info().
		Str("subject", subject.Name).
		Int("calls", len(targets)).
		Msg("decomposed analysis")

	results := make([]callResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCalls)
	for i := range targets {
		unit := targets[i]
		g.Go(func() error {
			results[i] = callResult{
				unit:    &unit,
				outcome: p.completeOne(gctx, unit.Source, pairs),
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// completeOne issues a single bounded completion call and extracts findings
// from its response. A failed or timed-out call is a failed extraction for
// that unit, never an aborted run.
func (p *Pipeline) completeOne(ctx context.Context, code string, pairs []ContextPair) ExtractionOutcome {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	raw, err := p.completer.Review(callCtx, code, pairs)
	if err != nil {
		p.log.Warn().Err(err).Msg("completion call failed")
		return ExtractionOutcome{}
	}

	outcome := ExtractFindings(raw)
	if !outcome.ParseSucceeded {
		if WrongShape(raw) {
			p.log.Warn().Int("raw_length", outcome.RawLength).Msg("model answered in summary shape instead of findings")
		} else {
			p.log.Warn().Int("raw_length", outcome.RawLength).Msg("completion response unparsable")
		}
	}
	return outcome
}

func (p *Pipeline) storeFeedback(ctx context.Context, subject Subject, findings []Finding) {
	if p.feedback == nil {
		return
	}

	var examples []FeedbackExample
	for _, f := range findings {
		if f.Severity != SeverityHigh && f.Severity != SeverityMedium {
			continue
		}
		examples = append(examples, FeedbackExample{
			Excerpt:  truncate(subject.Source, feedbackExcerptLimit),
			Category: f.Category,
			Remedy:   f.Remedy,
		})
	}
	if len(examples) == 0 {
		return
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.callTimeout)
	defer cancel()
	if err := p.feedback.StoreExamples(storeCtx, examples); err != nil {
		p.log.Error().Err(err).Str("subject", subject.Name).Msg("failed to store feedback examples")
		return
	}
	p.log.Info().Str("subject", subject.Name).Int("examples", len(examples)).Msg("stored feedback examples")
}
