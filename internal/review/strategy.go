package review

import "strings"

// Strategy decides whether a subject is analyzed whole or split into
// sub-units.
type Strategy string

const (
	WholeUnit  Strategy = "whole_unit"
	Decomposed Strategy = "decomposed"
)

// StrategyThresholds is the tunable three-tier policy: small files are
// analyzed whole, large files are decomposed, and in between a high sub-unit
// density forces decomposition.
type StrategyThresholds struct {
	SmallLines int // below this, always WholeUnit
	LargeLines int // above this, always Decomposed
	DenseUnits int // in the medium tier, more sub-units than this forces Decomposed
}

// DefaultThresholds returns the policy the pipeline ships with.
func DefaultThresholds() StrategyThresholds {
	return StrategyThresholds{
		SmallLines: 200,
		LargeLines: 1000,
		DenseUnits: 15,
	}
}

// Select is a pure function of the subject's line count and sub-unit count.
func (t StrategyThresholds) Select(lineCount, unitCount int) Strategy {
	switch {
	case lineCount < t.SmallLines:
		return WholeUnit
	case lineCount > t.LargeLines:
		return Decomposed
	case unitCount > t.DenseUnits:
		return Decomposed
	default:
		return WholeUnit
	}
}

// countLines counts logical lines: a trailing newline terminates the last
// line rather than starting an empty one, so a 199-line file ending in a
// newline measures 199, not 200.
func countLines(source string) int {
	if source == "" {
		return 0
	}
	n := strings.Count(source, "\n")
	if !strings.HasSuffix(source, "\n") {
		n++
	}
	return n
}
