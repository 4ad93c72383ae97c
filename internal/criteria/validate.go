package criteria

import (
	"strings"

	"github.com/llmjudge/evalengine/internal/domain"
)

// refusalPhrases are substrings that mark a judge's own response as a
// refusal rather than an evaluation (SPEC_FULL.md section 4 supplemented
// feature: judge-model refusal detection). Grounded on the phrase families
// teacher internal/adapter/ai/refusal_detector.go asks an LLM to look for,
// here checked directly against text rather than via a second model call --
// this runs before ExtractJSON, so no extra round trip is needed just to
// detect a refusal.
var refusalPhrases = []string{
	"i cannot", "i can't", "i'm unable", "i am unable", "i refuse",
	"i'm sorry, but", "unfortunately, i cannot", "unfortunately i cannot",
	"as an ai", "i don't have access", "i lack the ability",
	"against my guidelines", "violates my guidelines", "i'm not able to",
}

// DetectRefusal reports whether text reads as the judge declining to
// evaluate, rather than a parse-worthy evaluation response.
func DetectRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ValidationIssue is one warning surfaced while validating a parsed judge
// response against the criteria it was asked to score.
type ValidationIssue struct {
	CriterionName string
	Message       string
}

// ValidateStructure checks a parsed judgeResponse against the criteria it was
// asked to score, returning non-fatal warnings. Grounded on
// original_source/.../multi_criteria_client.py::_validate_response_structure
// and ::_validate_criterion_score.
func ValidateStructure(resp judgeResponse, c domain.EvaluationCriteria) []ValidationIssue {
	var issues []ValidationIssue

	if len(resp.CriterionScores) == 0 {
		issues = append(issues, ValidationIssue{Message: "criterion_scores is empty"})
		return issues
	}

	expected := make(map[string]domain.CriterionDefinition, len(c.Criteria))
	for _, crit := range c.Criteria {
		expected[crit.Name] = crit
	}
	provided := make(map[string]struct{}, len(resp.CriterionScores))

	for _, s := range resp.CriterionScores {
		provided[s.CriterionName] = struct{}{}

		def, known := expected[s.CriterionName]
		if !known {
			issues = append(issues, ValidationIssue{CriterionName: s.CriterionName, Message: "unknown criterion in judge response"})
			continue
		}
		if s.Score < float64(def.ScaleMin) || s.Score > float64(def.ScaleMax) {
			issues = append(issues, ValidationIssue{
				CriterionName: s.CriterionName,
				Message:       "score outside expected scale range",
			})
		}
		if s.Confidence < 0 || s.Confidence > 1 {
			issues = append(issues, ValidationIssue{
				CriterionName: s.CriterionName,
				Message:       "confidence outside 0-1 range",
			})
		}
		if strings.TrimSpace(s.Reasoning) == "" {
			issues = append(issues, ValidationIssue{CriterionName: s.CriterionName, Message: "empty reasoning"})
		}
	}

	for name := range expected {
		if _, ok := provided[name]; !ok {
			issues = append(issues, ValidationIssue{CriterionName: name, Message: "missing from judge response"})
		}
	}

	return issues
}

// unknownCriterionDefinition synthesizes a CriterionDefinition for a
// criterion name the judge scored but that was not part of the requested
// EvaluationCriteria, so its CriterionScore can still carry a weight/scale
// (SPEC_FULL.md section 4 supplemented feature: unknown-criterion synthetic
// definition). Grounded on
// original_source/.../multi_criteria_client.py's fallback
// CriterionDefinition construction in _parse_multi_criteria_response.
func unknownCriterionDefinition(name string, criteriaCount int) domain.CriterionDefinition {
	weight := 1.0
	if criteriaCount > 0 {
		weight = 1.0 / float64(criteriaCount)
	}
	return domain.CriterionDefinition{
		Name:        name,
		Description: "Unknown criterion",
		Weight:      weight,
		ScaleMin:    1,
		ScaleMax:    5,
	}
}

// ToScores converts a parsed judgeResponse into domain.CriterionScores,
// resolving each against c's definitions (or a synthetic definition for an
// unrecognized criterion name), and falls back to one neutral score per
// requested criterion if the judge returned none at all.
func ToScores(resp judgeResponse, c domain.EvaluationCriteria) []domain.CriterionScore {
	if len(resp.CriterionScores) == 0 {
		return fallbackScores(c, "no criterion scores returned by judge")
	}

	out := make([]domain.CriterionScore, 0, len(resp.CriterionScores))
	for _, s := range resp.CriterionScores {
		def, ok := c.Find(s.CriterionName)
		if !ok {
			def = unknownCriterionDefinition(s.CriterionName, len(c.Criteria))
		}
		out = append(out, domain.CriterionScore{
			CriterionName: s.CriterionName,
			Score:         clampScoreToInt(s.Score, def.ScaleMin, def.ScaleMax),
			Reasoning:     s.Reasoning,
			Confidence:    clamp01(s.Confidence),
			Weight:        def.Weight,
			MinScore:      def.ScaleMin,
			MaxScore:      def.ScaleMax,
		})
	}
	return out
}

// fallbackScores produces one neutral (midpoint) score per criterion, used
// when the judge's response could not be parsed or scored at all.
func fallbackScores(c domain.EvaluationCriteria, reason string) []domain.CriterionScore {
	if len(c.Criteria) == 0 {
		return []domain.CriterionScore{{
			CriterionName: "overall_quality",
			Score:         3,
			Reasoning:     reason,
			Confidence:    0.1,
			Weight:        1,
			MinScore:      1,
			MaxScore:      5,
		}}
	}
	out := make([]domain.CriterionScore, len(c.Criteria))
	for i, def := range c.Criteria {
		out[i] = domain.CriterionScore{
			CriterionName: def.Name,
			Score:         midpoint(def.ScaleMin, def.ScaleMax),
			Reasoning:     "Fallback score for " + def.Name + ": " + reason,
			Confidence:    0.1,
			Weight:        def.Weight,
			MinScore:      def.ScaleMin,
			MaxScore:      def.ScaleMax,
		}
	}
	return out
}

func midpoint(min, max int) int {
	if min >= max {
		return min
	}
	return (min + max) / 2
}

func clampScoreToInt(score float64, min, max int) int {
	rounded := int(score + 0.5)
	if rounded < min {
		return min
	}
	if rounded > max {
		return max
	}
	return rounded
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
