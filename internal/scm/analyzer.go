package scm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"veritas/internal/parser"
	"veritas/internal/review"
)

// DefaultMaxFiles caps how many changed files one merge request review
// will analyze.
const DefaultMaxFiles = 10

// MRAnalyzer reviews the changed files of a merge request and posts the
// aggregate result as a single comment.
type MRAnalyzer struct {
	platform  Platform
	pipeline  *review.Pipeline
	processed *ProcessedSet
	maxFiles  int
	log       zerolog.Logger
}

func NewMRAnalyzer(platform Platform, pipeline *review.Pipeline, processed *ProcessedSet, maxFiles int, log zerolog.Logger) *MRAnalyzer {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &MRAnalyzer{
		platform:  platform,
		pipeline:  pipeline,
		processed: processed,
		maxFiles:  maxFiles,
		log:       log,
	}
}

// Analyze runs the review for one merge request event. A revision that
// was already analyzed within the idempotency window is skipped, as is a
// merge request that is no longer open by the time the event is handled.
func (a *MRAnalyzer) Analyze(ctx context.Context, ev MergeRequestEvent) error {
	log := a.log.With().Int("project_id", ev.ProjectID).Int("mr_iid", ev.MRIID).Str("sha", ev.HeadSHA).Logger()

	if a.processed.Seen(ev.Key()) {
		log.Info().Msg("revision already analyzed, skipping")
		return nil
	}

	open, err := a.platform.MergeRequestOpen(ctx, ev.ProjectID, ev.MRIID)
	if err != nil {
		return fmt.Errorf("checking merge request state: %w", err)
	}
	if !open {
		log.Info().Msg("merge request not open, skipping")
		a.processed.Mark(ev.Key())
		return nil
	}

	changed, err := a.platform.ChangedFiles(ctx, ev.ProjectID, ev.MRIID)
	if err != nil {
		return fmt.Errorf("listing changed files: %w", err)
	}

	var results []FileResult
	var skipped []string
	reviewed := 0
	for _, f := range changed {
		if f.Deleted {
			continue
		}
		if _, err := parser.ForFile(f.Path); errors.Is(err, parser.ErrUnsupportedLanguage) {
			continue
		}
		if reviewed >= a.maxFiles {
			skipped = append(skipped, f.Path)
			continue
		}
		reviewed++

		results = append(results, a.reviewFile(ctx, ev, f.Path))
	}

	if len(results) == 0 && len(skipped) == 0 {
		log.Info().Msg("no reviewable files in merge request")
		a.processed.Mark(ev.Key())
		return nil
	}

	body := FormatComment(results, skipped)
	if err := a.platform.UpsertComment(ctx, ev.ProjectID, ev.MRIID, CommentMarker, body); err != nil {
		return fmt.Errorf("posting review comment: %w", err)
	}

	// Marked only now: a run that failed earlier must stay eligible for
	// the platform's webhook redelivery.
	a.processed.Mark(ev.Key())

	log.Info().Int("files_reviewed", len(results)).Int("files_skipped", len(skipped)).Msg("merge request review posted")
	return nil
}

func (a *MRAnalyzer) reviewFile(ctx context.Context, ev MergeRequestEvent, path string) FileResult {
	content, err := a.platform.FileContent(ctx, ev.ProjectID, path, ev.HeadSHA)
	if err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("failed to fetch file content")
		return FileResult{Path: path, Err: err}
	}

	dec, err := parser.ForFile(path)
	if err != nil {
		return FileResult{Path: path, Err: err}
	}

	state := a.pipeline.Run(ctx, review.Subject{Name: path, Source: content}, dec)
	return FileResult{Path: path, State: state}
}
