package scm

import (
	"fmt"
	"sort"
	"strings"

	"veritas/internal/review"
)

// CommentMarker is embedded invisibly in every review comment so that a
// later run can find and update it instead of posting a new one.
const CommentMarker = "<!-- veritas-review -->"

const maxCommentLength = 60000

var severityBadge = map[review.Severity]string{
	review.SeverityHigh:   "🔴 High",
	review.SeverityMedium: "🟠 Medium",
	review.SeverityLow:    "🟡 Low",
}

var severityRank = map[review.Severity]int{
	review.SeverityHigh:   0,
	review.SeverityMedium: 1,
	review.SeverityLow:    2,
}

// FileResult is the outcome of reviewing one changed file.
type FileResult struct {
	Path  string
	State *review.PipelineState
	Err   error
}

// FormatComment renders the merge request review comment for a set of
// per-file results.
func FormatComment(results []FileResult, skipped []string) string {
	var sb strings.Builder
	sb.WriteString(CommentMarker)
	sb.WriteString("\n## Veritas Code Review\n\n")

	high, medium, low := countSeverities(results)
	total := high + medium + low
	if total == 0 {
		sb.WriteString("No issues found in the changed files. ✅\n")
	} else {
		fmt.Fprintf(&sb, "Found **%d** issue(s): %d high, %d medium, %d low.\n", total, high, medium, low)
	}

	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(&sb, "\n### `%s`\n\n⚠️ Review failed: %s\n", res.Path, res.Err)
			continue
		}

		findings := res.State.AllFindings()
		if len(findings) == 0 {
			continue
		}
		sort.SliceStable(findings, func(i, j int) bool {
			return severityRank[findings[i].Severity] < severityRank[findings[j].Severity]
		})

		fmt.Fprintf(&sb, "\n### `%s`\n\n", res.Path)
		sb.WriteString("| Severity | Category | Location | Detail |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, f := range findings {
			detail := f.Explanation
			if f.Remedy != "" {
				detail += " **Fix:** " + f.Remedy
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
				severityBadge[f.Severity], escapeCell(f.Category), formatLocation(f.Origin), escapeCell(detail))
		}
	}

	if len(skipped) > 0 {
		sb.WriteString("\n<sub>Skipped (unsupported or too many files): ")
		sb.WriteString(strings.Join(skipped, ", "))
		sb.WriteString("</sub>\n")
	}

	out := sb.String()
	if len(out) > maxCommentLength {
		out = out[:maxCommentLength] + "\n\n*(comment truncated)*"
	}
	return out
}

func countSeverities(results []FileResult) (high, medium, low int) {
	for _, res := range results {
		if res.State == nil {
			continue
		}
		for _, f := range res.State.AllFindings() {
			switch f.Severity {
			case review.SeverityHigh:
				high++
			case review.SeverityMedium:
				medium++
			default:
				low++
			}
		}
	}
	return high, medium, low
}

func formatLocation(o *review.Origin) string {
	if o == nil || o.Name == "" {
		return "file"
	}
	if o.StartLine > 0 {
		return fmt.Sprintf("%s `%s` (lines %d-%d)", o.Kind, o.Name, o.StartLine, o.EndLine)
	}
	return fmt.Sprintf("%s `%s`", o.Kind, o.Name)
}

// escapeCell keeps multi-line model output from breaking the table.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
