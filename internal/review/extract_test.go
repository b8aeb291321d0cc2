package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFindings_StrictParse(t *testing.T) {
	raw := `{"findings": [{"category": "Bug", "severity": "High", "explanation": "mutable default", "remedy": "use None"}]}`

	outcome := ExtractFindings(raw)

	assert.True(t, outcome.ParseSucceeded)
	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "Bug", outcome.Findings[0].Category)
	assert.Equal(t, SeverityHigh, outcome.Findings[0].Severity)
	assert.Equal(t, len(raw), outcome.RawLength)
}

func TestExtractFindings_LegacyFieldNames(t *testing.T) {
	raw := `{"issues": [{"type": "Security Issue", "severity": "medium", "explanation": "sql injection", "suggested_fix": "parameterize"}]}`

	outcome := ExtractFindings(raw)

	assert.True(t, outcome.ParseSucceeded)
	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "Security Issue", outcome.Findings[0].Category)
	assert.Equal(t, SeverityMedium, outcome.Findings[0].Severity)
	assert.Equal(t, "parameterize", outcome.Findings[0].Remedy)
}

func TestExtractFindings_UnknownSeverityNormalizesToLow(t *testing.T) {
	raw := `{"findings": [{"category": "Smell", "severity": "catastrophic", "explanation": "x"}]}`

	outcome := ExtractFindings(raw)

	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, SeverityLow, outcome.Findings[0].Severity)
}

func TestExtractFindings_SurroundingProse(t *testing.T) {
	raw := "Sure! Here is the review you asked for:\n" +
		`{"findings": [{"category": "Bug", "severity": "Low", "explanation": "shadowed variable"}]}` +
		"\nLet me know if you need anything else."

	outcome := ExtractFindings(raw)

	assert.True(t, outcome.ParseSucceeded)
	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "shadowed variable", outcome.Findings[0].Explanation)
}

func TestExtractFindings_PicksCandidateWithMostFindings(t *testing.T) {
	// The model's known failure mode: an empty placeholder first, then the
	// substantive answer.
	raw := `{"findings": []}` + "\nSome example output follows.\n" +
		`{"findings": [` +
		`{"category": "Bug", "severity": "High", "explanation": "a"}, ` +
		`{"category": "Smell", "severity": "Low", "explanation": "b"}]}`

	outcome := ExtractFindings(raw)

	assert.True(t, outcome.ParseSucceeded)
	assert.Len(t, outcome.Findings, 2)
}

func TestExtractFindings_PicksLargestRegardlessOfPosition(t *testing.T) {
	raw := `{"findings": [` +
		`{"category": "Bug", "severity": "High", "explanation": "a"}, ` +
		`{"category": "Bug", "severity": "High", "explanation": "b"}]}` +
		"\ntrailing example:\n" + `{"findings": [{"category": "Bug", "severity": "Low", "explanation": "c"}]}` +
		"\nnot even valid json {"

	outcome := ExtractFindings(raw)

	assert.True(t, outcome.ParseSucceeded)
	require.Len(t, outcome.Findings, 2)
	assert.Equal(t, "a", outcome.Findings[0].Explanation)
}

func TestExtractFindings_NestedBraces(t *testing.T) {
	raw := "prose " + `{"findings": [{"category": "Bug", "severity": "High", "explanation": "nested"}], "meta": {"depth": {"x": "}"}}}` + " prose"

	outcome := ExtractFindings(raw)

	assert.True(t, outcome.ParseSucceeded)
	require.Len(t, outcome.Findings, 1)
	assert.Equal(t, "nested", outcome.Findings[0].Explanation)
}

func TestExtractFindings_NoJSON(t *testing.T) {
	outcome := ExtractFindings("I could not find any issues worth reporting in this code.")

	assert.False(t, outcome.ParseSucceeded)
	assert.Empty(t, outcome.Findings)
	assert.Equal(t, 57, outcome.RawLength)
}

func TestExtractFindings_SummaryShape(t *testing.T) {
	raw := `{"summary": "looks fine", "bugs": 0, "security_issues": 1}`

	outcome := ExtractFindings(raw)

	assert.False(t, outcome.ParseSucceeded, "summary-shaped responses are not safely recoverable")
	assert.Empty(t, outcome.Findings)
	assert.True(t, WrongShape(raw))
}

func TestExtractFindings_FlatFallback(t *testing.T) {
	// An unterminated outer structure around a flat findings object defeats
	// the candidate scanner but not the last-resort span match.
	raw := `[{"findings": []}`

	outcome := ExtractFindings(raw)

	assert.True(t, outcome.ParseSucceeded)
	assert.Empty(t, outcome.Findings)
}

func TestExtractFindings_RawPreviewBounded(t *testing.T) {
	raw := strings.Repeat("x", rawPreviewLimit+500)

	outcome := ExtractFindings(raw)

	assert.Len(t, outcome.RawText, rawPreviewLimit)
	assert.Equal(t, rawPreviewLimit+500, outcome.RawLength)
	assert.False(t, outcome.ParseSucceeded)
}

func TestWrongShape(t *testing.T) {
	assert.False(t, WrongShape(`{"findings": []}`))
	assert.False(t, WrongShape("not json at all"))
	assert.True(t, WrongShape(`{"performance_issues": ["slow loop"]}`))
}
