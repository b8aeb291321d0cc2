package review

import (
	"encoding/json"
	"strings"
)

// rawPreviewLimit bounds the raw-response prefix kept for diagnostics.
const rawPreviewLimit = 2000

// findingsKeys are the array keys the completion model is known to emit:
// the requested name and the legacy name from its training data.
var findingsKeys = []string{"findings", "issues"}

// summaryShapeKeys are top-level keys of the summary-shaped responses the
// model sometimes falls back into. Those responses are not safely
// recoverable; mapping their fields onto findings would be guesswork.
var summaryShapeKeys = []string{"summary", "bugs", "security_issues", "performance_issues"}

// ExtractFindings recovers a structured findings list from a raw completion
// response. The response should contain exactly one JSON object with a
// findings array but in practice may carry leading or trailing prose,
// multiple candidate objects, or malformed structures. It never fails: an
// unparsable response yields an empty list with ParseSucceeded unset.
func ExtractFindings(raw string) ExtractionOutcome {
	outcome := ExtractionOutcome{
		RawText:   truncate(raw, rawPreviewLimit),
		RawLength: len(raw),
	}

	// 1. The common case: the whole response is the requested object.
	if findings, ok := parseObject([]byte(raw)); ok {
		outcome.Findings = findings
		outcome.ParseSucceeded = true
		return outcome
	}

	// 2. Delimit a candidate object around every occurrence of a findings
	// key and keep the one with the most findings. The model is known to
	// emit an empty placeholder object before the substantive answer, so
	// position is not a useful signal but count is.
	best, found := bestCandidate(raw)
	if found {
		outcome.Findings = best
		outcome.ParseSucceeded = true
		return outcome
	}

	// 3. Last resort: a single flat brace-delimited span around the key.
	if findings, ok := flatFallback(raw); ok {
		outcome.Findings = findings
		outcome.ParseSucceeded = true
		return outcome
	}

	return outcome
}

// parseObject parses data as a standalone JSON object and pulls out its
// findings array. A valid object without a findings array does not count,
// including the summary-shaped responses.
func parseObject(data []byte) ([]Finding, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	for _, key := range findingsKeys {
		rawList, ok := obj[key]
		if !ok {
			continue
		}
		var findings []Finding
		if err := json.Unmarshal(rawList, &findings); err != nil {
			return nil, false
		}
		if findings == nil {
			findings = []Finding{}
		}
		return findings, true
	}
	return nil, false
}

func bestCandidate(raw string) ([]Finding, bool) {
	var (
		best      []Finding
		bestCount = -1
		found     bool
	)
	for _, key := range findingsKeys {
		needle := `"` + key + `"`
		for pos := strings.Index(raw, needle); pos >= 0; {
			start := strings.LastIndex(raw[:pos], "{")
			if start >= 0 {
				if end, ok := matchBraces(raw, start); ok {
					if findings, ok := parseObject([]byte(raw[start : end+1])); ok {
						if len(findings) > bestCount {
							best = findings
							bestCount = len(findings)
						}
						found = true
					}
				}
			}
			next := strings.Index(raw[pos+len(needle):], needle)
			if next < 0 {
				break
			}
			pos += len(needle) + next
		}
	}
	return best, found
}

// matchBraces scans forward from the opening brace at start and returns the
// index of its matching closing brace. Brace characters inside JSON string
// literals are skipped, so nesting stays correct.
func matchBraces(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// flatFallback tries the narrowest recovery: the span from the last opening
// brace before a findings key to the first closing brace after it. Only
// helps when the findings array is empty or trivially flat, which is exactly
// the shape the other paths miss when the surrounding object is truncated.
func flatFallback(raw string) ([]Finding, bool) {
	for _, key := range findingsKeys {
		needle := `"` + key + `"`
		pos := strings.Index(raw, needle)
		if pos < 0 {
			continue
		}
		start := strings.LastIndex(raw[:pos], "{")
		if start < 0 {
			continue
		}
		rel := strings.Index(raw[pos:], "}")
		if rel < 0 {
			continue
		}
		if findings, ok := parseObject([]byte(raw[start : pos+rel+1])); ok {
			return findings, true
		}
	}
	return nil, false
}

// WrongShape reports whether raw parses as a JSON object that answered in a
// summary shape instead of the requested findings array.
func WrongShape(raw string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return false
	}
	for _, key := range findingsKeys {
		if _, ok := obj[key]; ok {
			return false
		}
	}
	for _, key := range summaryShapeKeys {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
