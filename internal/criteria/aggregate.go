package criteria

import (
	"github.com/llmjudge/evalengine/internal/domain"
)

// ParsedResult is the outcome of parsing one judge response: the
// domain.MultiCriteriaResult plus any non-fatal validation warnings
// collected along the way.
type ParsedResult struct {
	Result   domain.MultiCriteriaResult
	Warnings []ValidationIssue
	Refusal  bool
}

// ParseJudgeResponse runs the full pipeline from a judge's raw text to a
// domain.MultiCriteriaResult: refusal pre-check, four-strategy JSON
// extraction, structure validation, and score/aggregate construction.
// Grounded on
// original_source/.../multi_criteria_client.py::_parse_multi_criteria_response,
// split here into the smaller composable steps above.
func ParseJudgeResponse(rawText string, c domain.EvaluationCriteria, judgeModel string) ParsedResult {
	if DetectRefusal(rawText) {
		result := domain.MultiCriteriaResult{
			Scores:           fallbackScores(c, "judge declined to evaluate"),
			CriteriaUsed:     c,
			JudgeModel:       judgeModel,
			OverallReasoning: "The judge model declined to evaluate this response.",
		}
		result.Recompute()
		return ParsedResult{Result: result, Refusal: true}
	}

	parsed, err := ExtractJSON(rawText)
	if err != nil {
		result := domain.MultiCriteriaResult{
			Scores:           fallbackScores(c, err.Error()),
			CriteriaUsed:     c,
			JudgeModel:       judgeModel,
			OverallReasoning: "Failed to parse judge response: " + err.Error(),
			Metadata:         map[string]any{"parsing_error": err.Error(), "raw_response": rawText},
		}
		result.Recompute()
		return ParsedResult{Result: result}
	}

	warnings := ValidateStructure(parsed, c)
	scores := ToScores(parsed, c)

	result := domain.MultiCriteriaResult{
		Scores:           scores,
		CriteriaUsed:     c,
		JudgeModel:       judgeModel,
		OverallReasoning: parsed.OverallReasoning,
		Strengths:        parsed.Strengths,
		Weaknesses:       parsed.Weaknesses,
		Suggestions:      parsed.Suggestions,
	}
	result.Recompute()

	return ParsedResult{Result: result, Warnings: warnings}
}
