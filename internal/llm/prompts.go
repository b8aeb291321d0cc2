// Package llm holds the completion clients that ask a language model to
// review code and answer in a structured JSON shape.
package llm

import (
	"fmt"
	"strings"

	"veritas/internal/review"
)

// PromptBuilder assembles review prompts. Retrieved examples of
// previously confirmed findings are inlined as precedent so the model
// anchors its categories and remedies to them.
type PromptBuilder struct{}

func (b *PromptBuilder) BuildReviewPrompt(code string, pairs []review.ContextPair) string {
	var sb strings.Builder

	sb.WriteString(`You are a rigorous code reviewer. Analyze the code below for bugs,
security issues, performance problems, and maintainability smells.

Respond with ONLY a JSON object of this exact shape, no prose before or after:

{
  "findings": [
    {
      "category": "<short snake_case label>",
      "severity": "High" | "Medium" | "Low",
      "explanation": "<why this is a problem>",
      "remedy": "<how to fix it>"
    }
  ]
}

If the code has no issues, respond with {"findings": []}.
`)

	if len(pairs) > 0 {
		sb.WriteString("\nKnown problem patterns from past reviews. If the code matches one, reuse its remedy:\n")
		for i, p := range pairs {
			fmt.Fprintf(&sb, "\nSimilar past issue %d: %s\n", i+1, p.Pattern)
			if p.Excerpt != "" {
				fmt.Fprintf(&sb, "```\n%s\n```\n", p.Excerpt)
			}
			fmt.Fprintf(&sb, "Remedy: %s\n", p.Remedy)
		}
	}

	sb.WriteString("\nCode to review:\n```\n")
	sb.WriteString(code)
	sb.WriteString("\n```\n")

	return sb.String()
}
