// Package criteria builds multi-criteria judge prompts and parses the
// structured scores back out of a judge's free-text response.
package criteria

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/llmjudge/evalengine/internal/domain"
)

// tokenEncoding is shared across all BuildPrompt calls; tiktoken-go's
// encoding tables are read-only once loaded, so one package-level *cached*
// encoder (not a singleton state machine) is safe to reuse concurrently.
var tokenEncoding = loadEncoding()

func loadEncoding() *tiktoken.Tiktoken {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil
	}
	return enc
}

// CountTokens returns an approximate token count for s, falling back to a
// chars/4 heuristic if the tiktoken encoding failed to load.
func CountTokens(s string) int {
	if tokenEncoding == nil {
		return len(s) / 4
	}
	return len(tokenEncoding.Encode(s, nil, nil))
}

// BuildPrompt renders the multi-criteria evaluation prompt, trimming the
// response under evaluation if the full prompt would exceed tokenBudget.
// Grounded on
// original_source/.../multi_criteria_client.py::_build_multi_criteria_prompt.
func BuildPrompt(prompt, response string, c domain.EvaluationCriteria, tokenBudget int) string {
	body := renderPrompt(prompt, response, c)
	if tokenBudget <= 0 || CountTokens(body) <= tokenBudget {
		return body
	}

	// Trim the response text until the rendered prompt fits, preserving the
	// criteria block and instructions intact (those are fixed-size and
	// required for a parseable reply).
	trimmed := response
	for CountTokens(body) > tokenBudget && len(trimmed) > 200 {
		cut := len(trimmed) * 3 / 4
		trimmed = trimmed[:cut] + "\n[...truncated for token budget...]"
		body = renderPrompt(prompt, trimmed, c)
	}
	return body
}

func renderPrompt(prompt, response string, c domain.EvaluationCriteria) string {
	var criteriaBlock strings.Builder
	names := make([]string, 0, len(c.Criteria))
	for _, crit := range c.Criteria {
		names = append(names, crit.Name)
		fmt.Fprintf(&criteriaBlock, "\n%s (Weight: %.1f%%, Scale: %d-%d):\n%s\n",
			strings.ToUpper(crit.Name), crit.Weight*100, crit.ScaleMin, crit.ScaleMax, crit.Description)
		if crit.EvaluationPrompt != "" {
			fmt.Fprintf(&criteriaBlock, "Evaluation guidance: %s\n", crit.EvaluationPrompt)
		}
		if len(crit.Examples) > 0 {
			criteriaBlock.WriteString("Examples:\n")
			for score, example := range crit.Examples {
				fmt.Fprintf(&criteriaBlock, "  %d: %s\n", score, example)
			}
		}
	}

	scaleMin, scaleMax := 1, 5
	if len(c.Criteria) > 0 {
		scaleMin, scaleMax = c.Criteria[0].ScaleMin, c.Criteria[0].ScaleMax
	}

	return fmt.Sprintf(`You are an expert evaluator conducting a comprehensive multi-criteria assessment.
You must evaluate the following response across %d distinct criteria.

=== ORIGINAL QUESTION ===
%s

=== RESPONSE TO EVALUATE ===
%s

=== EVALUATION CRITERIA ===
%s

=== INSTRUCTIONS ===
1. Evaluate the response on each criterion separately
2. Provide a score from %d to %d for each criterion
3. Give detailed reasoning for each score
4. Provide an overall assessment and recommendations

IMPORTANT: You must respond with ONLY valid JSON. No additional text before or after the JSON.

Required JSON format:

{
  "criterion_scores": [
    {"criterion_name": "%s", "score": 4, "reasoning": "...", "confidence": 0.85}
  ],
  "overall_reasoning": "...",
  "strengths": ["..."],
  "weaknesses": ["..."],
  "suggestions": ["..."]
}

Required criteria to include: %s

Respond with valid JSON only:`,
		len(c.Criteria), prompt, response, criteriaBlock.String(),
		scaleMin, scaleMax, firstOr(names, "accuracy"), strings.Join(names, ", "))
}

func firstOr(names []string, fallback string) string {
	if len(names) > 0 {
		return names[0]
	}
	return fallback
}
