package scm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"veritas/internal/review"
)

func TestFormatCommentCleanDiff(t *testing.T) {
	out := FormatComment([]FileResult{
		{Path: "main.py", State: &review.PipelineState{}},
	}, nil)

	assert.True(t, strings.HasPrefix(out, CommentMarker))
	assert.Contains(t, out, "No issues found")
	assert.NotContains(t, out, "main.py")
}

func TestFormatCommentOrdersBySeverity(t *testing.T) {
	state := &review.PipelineState{
		Findings: []review.Finding{
			{Category: "style", Severity: review.SeverityLow, Explanation: "minor nit"},
			{Category: "sql_injection", Severity: review.SeverityHigh, Explanation: "string-built query", Remedy: "use parameters"},
			{Category: "n_plus_one", Severity: review.SeverityMedium, Explanation: "query in loop"},
		},
	}
	out := FormatComment([]FileResult{{Path: "app.py", State: state}}, nil)

	assert.Contains(t, out, "Found **3** issue(s): 1 high, 1 medium, 1 low.")
	assert.Contains(t, out, "### `app.py`")
	assert.Contains(t, out, "**Fix:** use parameters")

	highIdx := strings.Index(out, "sql_injection")
	medIdx := strings.Index(out, "n_plus_one")
	lowIdx := strings.Index(out, "style")
	assert.Less(t, highIdx, medIdx)
	assert.Less(t, medIdx, lowIdx)
}

func TestFormatCommentSyntaxFindingsComeFirst(t *testing.T) {
	state := &review.PipelineState{
		SyntaxFindings: []review.Finding{
			{Category: "Syntax Error", Severity: review.SeverityHigh, Explanation: "unexpected token at line 3"},
		},
	}
	out := FormatComment([]FileResult{{Path: "broken.go", State: state}}, nil)
	assert.Contains(t, out, "Syntax Error")
	assert.Contains(t, out, "🔴 High")
}

func TestFormatCommentFailedFileAndSkipped(t *testing.T) {
	out := FormatComment(
		[]FileResult{{Path: "gone.py", Err: assertErr("404 not found")}},
		[]string{"extra1.py", "extra2.py"},
	)

	assert.Contains(t, out, "Review failed: 404 not found")
	assert.Contains(t, out, "Skipped")
	assert.Contains(t, out, "extra1.py, extra2.py")
}

func TestFormatCommentEscapesTableBreakers(t *testing.T) {
	state := &review.PipelineState{
		Findings: []review.Finding{
			{Category: "a|b", Severity: review.SeverityLow, Explanation: "line one\nline two"},
		},
	}
	out := FormatComment([]FileResult{{Path: "f.py", State: state}}, nil)

	assert.Contains(t, out, `a\|b`)
	assert.Contains(t, out, "line one line two")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
