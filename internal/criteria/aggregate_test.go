package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJudgeResponseHappyPath(t *testing.T) {
	c := sampleCriteria(t)
	raw := `{
  "criterion_scores": [
    {"criterion_name": "accuracy", "score": 4, "reasoning": "solid", "confidence": 0.9},
    {"criterion_name": "clarity", "score": 3, "reasoning": "ok", "confidence": 0.8}
  ],
  "overall_reasoning": "good overall"
}`
	parsed := ParseJudgeResponse(raw, c, "mock-model")
	require.False(t, parsed.Refusal)
	assert.True(t, parsed.Result.IsComplete())
	assert.Equal(t, "mock-model", parsed.Result.JudgeModel)
	assert.Greater(t, parsed.Result.Aggregated.OverallScore, 0.0)
}

func TestParseJudgeResponseDetectsRefusal(t *testing.T) {
	c := sampleCriteria(t)
	parsed := ParseJudgeResponse("I'm sorry, but I cannot evaluate this request.", c, "mock-model")
	assert.True(t, parsed.Refusal)
	assert.Len(t, parsed.Result.Scores, len(c.Criteria))
}

func TestParseJudgeResponseFallsBackOnUnparsableText(t *testing.T) {
	c := sampleCriteria(t)
	parsed := ParseJudgeResponse("not json at all, no braces present", c, "mock-model")
	assert.False(t, parsed.Refusal)
	assert.NotEmpty(t, parsed.Result.Scores)
	assert.Contains(t, parsed.Result.Metadata, "parsing_error")
}
