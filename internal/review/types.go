package review

import (
	"encoding/json"
	"strings"
)

// Severity classifies a finding. The set is closed; anything unrecognized
// normalizes to Low.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// NormalizeSeverity maps free-form model output onto the closed severity set.
func NormalizeSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Origin identifies the sub-unit a finding was produced from. Present only
// on findings from decomposed analysis.
type Origin struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Finding is a single reported issue. Findings are value objects with no
// identity beyond their fields.
type Finding struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
	Remedy      string   `json:"remedy"`
	Origin      *Origin  `json:"origin,omitempty"`
}

// UnmarshalJSON accepts both the current wire names and the legacy ones the
// fine-tuned model was trained on ("type", "suggested_fix").
func (f *Finding) UnmarshalJSON(data []byte) error {
	var w struct {
		Category     string `json:"category"`
		Type         string `json:"type"`
		Severity     string `json:"severity"`
		Explanation  string `json:"explanation"`
		Remedy       string `json:"remedy"`
		SuggestedFix string `json:"suggested_fix"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.Category = w.Category
	if f.Category == "" {
		f.Category = w.Type
	}
	f.Remedy = w.Remedy
	if f.Remedy == "" {
		f.Remedy = w.SuggestedFix
	}
	f.Severity = NormalizeSeverity(w.Severity)
	f.Explanation = w.Explanation
	return nil
}

// ContextPair is one retrieved exemplar: a named defect pattern, its
// remedy, and the code excerpt it was confirmed on. Scoped to a single
// pipeline run, never persisted.
type ContextPair struct {
	Pattern string
	Remedy  string
	Excerpt string
}

// ExtractionOutcome records the result of recovering findings from one raw
// completion response, including the diagnostics needed to distinguish "the
// model found nothing" from "the model's output was unparsable".
type ExtractionOutcome struct {
	Findings       []Finding `json:"findings"`
	RawText        string    `json:"raw_text"`
	RawLength      int       `json:"raw_length"`
	ParseSucceeded bool      `json:"parse_succeeded"`
}

// Subject is one piece of code submitted for review.
type Subject struct {
	Name   string
	Source string
}

// PipelineState is the per-run aggregate produced by the orchestrator. It is
// mutated stage by stage within a single run and snapshotted into the result
// cache afterwards; it is never shared between concurrent runs.
type PipelineState struct {
	Subject        string            `json:"subject"`
	Strategy       Strategy          `json:"strategy"`
	SyntaxFindings []Finding         `json:"syntax_findings"`
	Findings       []Finding         `json:"findings"`
	Report         string            `json:"report"`
	Diagnostics    ExtractionOutcome `json:"diagnostics"`
}

// AllFindings returns syntax findings followed by semantic findings, the
// order the report renders them in.
func (s *PipelineState) AllFindings() []Finding {
	out := make([]Finding, 0, len(s.SyntaxFindings)+len(s.Findings))
	out = append(out, s.SyntaxFindings...)
	out = append(out, s.Findings...)
	return out
}
