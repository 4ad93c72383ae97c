package criteria

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// judgeResponse mirrors the JSON envelope BuildPrompt asks the judge to
// return.
type judgeResponse struct {
	CriterionScores []criterionScoreJSON `json:"criterion_scores"`
	OverallReasoning string              `json:"overall_reasoning"`
	Strengths        []string            `json:"strengths"`
	Weaknesses       []string            `json:"weaknesses"`
	Suggestions      []string            `json:"suggestions"`
}

type criterionScoreJSON struct {
	CriterionName string  `json:"criterion_name"`
	Score         float64 `json:"score"`
	Reasoning     string  `json:"reasoning"`
	Confidence    float64 `json:"confidence"`
}

var codeBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)` + "```json\\s*(.*?)\\s*```"),
	regexp.MustCompile(`(?s)` + "```\\s*(.*?)\\s*```"),
	regexp.MustCompile(`(?s)` + "`(.*?)`"),
}

var markerPrefixes = []string{"JSON:", "json:", "Response:", "Output:", "Result:"}

// ExtractJSON runs the four extraction strategies from
// original_source/.../multi_criteria_client.py::_extract_json_from_response
// in order, returning the first strategy's successful parse of the
// multi-criteria judge envelope.
func ExtractJSON(text string) (judgeResponse, error) {
	span, err := extractSpan(text)
	if err != nil {
		return judgeResponse{}, err
	}
	return parseJudgeJSON(span)
}

// extractSpan runs the same four strategies but returns the raw JSON span
// rather than unmarshaling it, so callers other than the multi-criteria path
// (single-criterion and pairwise-comparison verdict parsing) can reuse the
// extraction discipline against their own envelope shapes.
func extractSpan(text string) (string, error) {
	text = strings.TrimSpace(text)

	strategies := []func(string) (string, error){
		spanByBraces,
		spanByCodeBlock,
		spanByMarkers,
		spanFallback,
	}

	var lastErr error
	for _, strategy := range strategies {
		span, err := strategy(text)
		if err == nil {
			return span, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("could not extract valid JSON from judge response: %w", lastErr)
}

// spanByBraces finds the first balanced {...} span.
func spanByBraces(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", fmt.Errorf("no opening brace found")
	}

	depth := 0
	end := -1
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 {
		return "", fmt.Errorf("unbalanced braces")
	}

	span := text[start:end]
	if !json.Valid([]byte(span)) {
		return "", fmt.Errorf("invalid JSON")
	}
	return span, nil
}

// spanByCodeBlock looks for fenced ```json / ``` / ` blocks.
func spanByCodeBlock(text string) (string, error) {
	for _, pattern := range codeBlockPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if strings.HasPrefix(candidate, "{") && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no code block found")
}

// spanByMarkers looks for an explicit "JSON:" (or similar) marker, then
// balanced-brace-scans from the first '{' after it.
func spanByMarkers(text string) (string, error) {
	lower := strings.ToLower(text)
	for _, marker := range markerPrefixes {
		idx := strings.Index(lower, strings.ToLower(marker))
		if idx == -1 {
			continue
		}
		braceIdx := strings.IndexByte(text[idx:], '{')
		if braceIdx == -1 {
			continue
		}
		return spanByBraces(text[idx+braceIdx:])
	}
	return "", fmt.Errorf("no JSON markers found")
}

// spanFallback scans line-by-line, collecting the first run of lines that
// looks like a JSON object.
func spanFallback(text string) (string, error) {
	lines := strings.Split(text, "\n")
	var jsonLines []string
	inJSON := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "{"):
			inJSON = true
			jsonLines = append(jsonLines, line)
		case inJSON:
			jsonLines = append(jsonLines, line)
			if strings.HasSuffix(line, "}") && strings.Count(line, "}") >= strings.Count(line, "{") {
				goto done
			}
		}
	}
done:
	if len(jsonLines) == 0 {
		return "", fmt.Errorf("no JSON structure found")
	}
	span := strings.Join(jsonLines, "\n")
	if !json.Valid([]byte(span)) {
		return "", fmt.Errorf("invalid JSON")
	}
	return span, nil
}

func parseJudgeJSON(s string) (judgeResponse, error) {
	var r judgeResponse
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return judgeResponse{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return r, nil
}
