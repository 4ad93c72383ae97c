package criteria

import (
	"encoding/json"
	"strings"

	"github.com/llmjudge/evalengine/internal/domain"
)

// evaluationVerdictJSON mirrors the single-criterion JSON envelope each
// backend's Evaluate prompt asks the judge to return.
type evaluationVerdictJSON struct {
	Score      json.Number `json:"score"`
	Reasoning  string      `json:"reasoning"`
	Confidence float64     `json:"confidence"`
}

// comparisonVerdictJSON mirrors the pairwise-comparison JSON envelope.
type comparisonVerdictJSON struct {
	Winner     string  `json:"winner"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// ParseEvaluationVerdict parses a judge backend's raw single-criterion
// response into the validated domain.EvaluationVerdict shape at the engine
// boundary (spec.md section 9's discriminated-variant design note), reusing
// the same extraction strategies the multi-criteria path uses. It never
// errors: a refusal or unparseable response degrades to a fallback verdict at
// reduced confidence, and an out-of-range score or confidence is clamped into
// [1,5] / [0,1] with the declared confidence otherwise kept, mirroring
// original_source/.../anthropic_client.py::evaluate_with_anthropic's
// parse-validate-or-fallback discipline (including its keyword-based score
// guess on parse failure).
func ParseEvaluationVerdict(rawText string) domain.EvaluationVerdict {
	if DetectRefusal(rawText) {
		return domain.EvaluationVerdict{
			Score:      3,
			Reasoning:  "The judge model declined to evaluate this response.",
			Confidence: 0.1,
		}
	}

	span, err := extractSpan(rawText)
	if err != nil {
		return fallbackEvaluationVerdict(rawText)
	}

	var v evaluationVerdictJSON
	if err := json.Unmarshal([]byte(span), &v); err != nil {
		return fallbackEvaluationVerdict(rawText)
	}

	score, err := v.Score.Float64()
	if err != nil {
		return fallbackEvaluationVerdict(rawText)
	}

	return domain.EvaluationVerdict{
		Score:      clampScoreToInt(score, 1, 5),
		Reasoning:  v.Reasoning,
		Confidence: clamp01(v.Confidence),
	}
}

// fallbackEvaluationVerdict guesses a score from sentiment keywords in the
// raw text, the same heuristic
// original_source/.../anthropic_client.py::evaluate_with_anthropic falls
// back to when structured parsing fails.
func fallbackEvaluationVerdict(rawText string) domain.EvaluationVerdict {
	lower := strings.ToLower(rawText)
	score := 3
	switch {
	case strings.Contains(lower, "excellent") || strings.Contains(lower, "outstanding"):
		score = 5
	case strings.Contains(lower, "good") || strings.Contains(lower, "well"):
		score = 4
	case strings.Contains(lower, "poor") || strings.Contains(lower, "bad"):
		score = 2
	case strings.Contains(lower, "terrible") || strings.Contains(lower, "awful"):
		score = 1
	}
	return domain.EvaluationVerdict{
		Score:      score,
		Reasoning:  "Failed to parse structured response from judge: " + truncate(rawText, 200),
		Confidence: 0.3,
	}
}

// ParseComparisonVerdict parses a judge backend's raw pairwise-comparison
// response into the validated domain.ComparisonVerdict shape, validating
// `winner ∈ {A,B,tie}` per spec.md section 4.H. It never errors: a refusal,
// unparseable response, or invalid winner value degrades to a "tie" verdict
// at reduced confidence, mirroring
// original_source/.../anthropic_client.py::compare_with_anthropic's
// validate-or-fallback discipline.
func ParseComparisonVerdict(rawText string) domain.ComparisonVerdict {
	if DetectRefusal(rawText) {
		return domain.ComparisonVerdict{
			Winner:     domain.WinnerTie,
			Reasoning:  "The judge model declined to compare these responses.",
			Confidence: 0.1,
		}
	}

	span, err := extractSpan(rawText)
	if err != nil {
		return fallbackComparisonVerdict(rawText)
	}

	var v comparisonVerdictJSON
	if err := json.Unmarshal([]byte(span), &v); err != nil {
		return fallbackComparisonVerdict(rawText)
	}

	winner, ok := normalizeWinner(v.Winner)
	if !ok {
		return fallbackComparisonVerdict(rawText)
	}

	return domain.ComparisonVerdict{
		Winner:     winner,
		Reasoning:  v.Reasoning,
		Confidence: clamp01(v.Confidence),
	}
}

func normalizeWinner(raw string) (domain.ComparisonWinner, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "a":
		return domain.WinnerA, true
	case "b":
		return domain.WinnerB, true
	case "tie":
		return domain.WinnerTie, true
	default:
		return "", false
	}
}

func fallbackComparisonVerdict(rawText string) domain.ComparisonVerdict {
	return domain.ComparisonVerdict{
		Winner:     domain.WinnerTie,
		Reasoning:  "Failed to parse structured comparison response from judge: " + truncate(rawText, 200),
		Confidence: 0.3,
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
