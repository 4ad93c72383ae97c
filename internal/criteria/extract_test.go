package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "criterion_scores": [
    {"criterion_name": "accuracy", "score": 4, "reasoning": "solid", "confidence": 0.9},
    {"criterion_name": "clarity", "score": 3, "reasoning": "ok", "confidence": 0.8}
  ],
  "overall_reasoning": "good overall",
  "strengths": ["clear"],
  "weaknesses": ["verbose"],
  "suggestions": ["trim it down"]
}`

func TestExtractByBraces(t *testing.T) {
	r, err := ExtractJSON(sampleJSON)
	require.NoError(t, err)
	assert.Len(t, r.CriterionScores, 2)
	assert.Equal(t, "good overall", r.OverallReasoning)
}

func TestExtractByBracesWithSurroundingText(t *testing.T) {
	text := "Here is my evaluation:\n" + sampleJSON + "\nThank you."
	r, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Len(t, r.CriterionScores, 2)
}

func TestExtractByCodeBlock(t *testing.T) {
	text := "```json\n" + sampleJSON + "\n```"
	r, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Len(t, r.CriterionScores, 2)
}

func TestExtractByMarkers(t *testing.T) {
	text := "JSON:\n" + sampleJSON
	r, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Len(t, r.CriterionScores, 2)
}

func TestExtractFallback(t *testing.T) {
	text := "some preamble\n" + sampleJSON
	r, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Len(t, r.CriterionScores, 2)
}

func TestExtractJSONFailsOnGarbage(t *testing.T) {
	_, err := ExtractJSON("no json here at all")
	assert.Error(t, err)
}

func TestExtractJSONFailsOnUnbalancedBraces(t *testing.T) {
	_, err := ExtractJSON("{\"a\": 1")
	assert.Error(t, err)
}
