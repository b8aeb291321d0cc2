package review

import (
	"fmt"
	"strings"
)

// RenderReport formats the human-readable report: syntax findings first,
// then semantic findings, each with severity, category, and, when tagged,
// the originating sub-unit and its line range.
func RenderReport(syntax, semantic []Finding) string {
	all := make([]Finding, 0, len(syntax)+len(semantic))
	all = append(all, syntax...)
	all = append(all, semantic...)

	if len(all) == 0 {
		return "Code looks clean! No issues found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d issue(s):\n", len(all))
	for _, f := range all {
		origin := ""
		if f.Origin != nil {
			origin = fmt.Sprintf(" (in %s '%s' at lines %d-%d)", f.Origin.Kind, f.Origin.Name, f.Origin.StartLine, f.Origin.EndLine)
		}
		fmt.Fprintf(&sb, "- [%s] %s%s: %s\n", f.Severity, f.Category, origin, f.Explanation)
	}
	return sb.String()
}
