package review

import (
	"strings"

	"veritas/internal/parser"
)

// callResult pairs one completion call's outcome with the unit it analyzed.
// A nil unit marks a whole-file pass; its findings stay untagged.
type callResult struct {
	unit    *parser.Unit
	outcome ExtractionOutcome
}

// mergeResults concatenates findings in unit-processing order, tagging each
// with its origin, and selects the diagnostic outcome to carry forward: the
// call with the largest raw response length, independent of which call
// contributed the findings.
func mergeResults(results []callResult) ([]Finding, ExtractionOutcome) {
	var merged []Finding
	var diag ExtractionOutcome
	diagSet := false

	for _, r := range results {
		for _, f := range r.outcome.Findings {
			if r.unit != nil {
				f.Origin = &Origin{
					Name:      r.unit.Name,
					Kind:      r.unit.Kind,
					StartLine: r.unit.StartLine,
					EndLine:   r.unit.EndLine,
				}
			}
			merged = append(merged, f)
		}
		if !diagSet || r.outcome.RawLength > diag.RawLength {
			diag = r.outcome
			diagSet = true
		}
	}
	return merged, diag
}

// envAccessorPatterns are the environment-variable accessors of the reviewed
// languages. Their presence means a flagged value is externally supplied.
var envAccessorPatterns = []string{
	"os.Getenv",
	"os.LookupEnv",
	"os.getenv",
	"os.environ",
}

var credentialTerms = []string{"key", "secret", "password"}

// FilterFalsePositives suppresses semantic findings contradicted by the
// source text. Syntax findings pass through untouched: they are always
// structurally valid.
//
// A "hardcoded" finding is suppressed when the source uses an environment
// accessor. A "security" finding needs both a credential-like term in its
// explanation and the accessor pattern in the source before it is dropped.
func FilterFalsePositives(findings []Finding, source string) []Finding {
	usesEnv := usesEnvAccessor(source)
	filtered := make([]Finding, 0, len(findings))

	for _, f := range findings {
		category := strings.ToLower(f.Category)
		explanation := strings.ToLower(f.Explanation)

		if strings.Contains(category, "syntax") {
			filtered = append(filtered, f)
			continue
		}

		if usesEnv && (strings.Contains(category, "hardcoded") || strings.Contains(category, "hard-coded")) {
			continue
		}

		if usesEnv && strings.Contains(category, "security") && containsAny(explanation, credentialTerms) {
			continue
		}

		filtered = append(filtered, f)
	}
	return filtered
}

func usesEnvAccessor(source string) bool {
	for _, pattern := range envAccessorPatterns {
		if strings.Contains(source, pattern) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(source), ".env")
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
