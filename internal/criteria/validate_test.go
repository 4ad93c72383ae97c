package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmjudge/evalengine/internal/domain"
)

func sampleCriteria(t *testing.T) domain.EvaluationCriteria {
	t.Helper()
	accuracy, err := domain.NewCriterionDefinition("accuracy", "factual correctness", 0.6)
	require.NoError(t, err)
	clarity, err := domain.NewCriterionDefinition("clarity", "ease of understanding", 0.4)
	require.NoError(t, err)
	c, err := domain.NewEvaluationCriteria("basic", "", []domain.CriterionDefinition{accuracy, clarity}, true)
	require.NoError(t, err)
	return c
}

func TestDetectRefusal(t *testing.T) {
	assert.True(t, DetectRefusal("I'm sorry, but I cannot evaluate this content."))
	assert.True(t, DetectRefusal("As an AI, I am unable to provide that assessment."))
	assert.False(t, DetectRefusal(sampleJSON))
}

func TestValidateStructureFlagsMissingAndUnknown(t *testing.T) {
	c := sampleCriteria(t)
	resp := judgeResponse{CriterionScores: []criterionScoreJSON{
		{CriterionName: "accuracy", Score: 4, Reasoning: "fine", Confidence: 0.8},
		{CriterionName: "tone", Score: 2, Reasoning: "meh", Confidence: 0.5},
	}}
	issues := ValidateStructure(resp, c)

	var sawMissingClarity, sawUnknownTone bool
	for _, issue := range issues {
		if issue.CriterionName == "clarity" && issue.Message == "missing from judge response" {
			sawMissingClarity = true
		}
		if issue.CriterionName == "tone" && issue.Message == "unknown criterion in judge response" {
			sawUnknownTone = true
		}
	}
	assert.True(t, sawMissingClarity)
	assert.True(t, sawUnknownTone)
}

func TestValidateStructureFlagsOutOfRangeScore(t *testing.T) {
	c := sampleCriteria(t)
	resp := judgeResponse{CriterionScores: []criterionScoreJSON{
		{CriterionName: "accuracy", Score: 99, Reasoning: "fine", Confidence: 0.8},
		{CriterionName: "clarity", Score: 3, Reasoning: "fine", Confidence: 0.8},
	}}
	issues := ValidateStructure(resp, c)
	found := false
	for _, issue := range issues {
		if issue.CriterionName == "accuracy" && issue.Message == "score outside expected scale range" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestToScoresHandlesUnknownCriterion(t *testing.T) {
	c := sampleCriteria(t)
	resp := judgeResponse{CriterionScores: []criterionScoreJSON{
		{CriterionName: "novelty", Score: 4, Reasoning: "fine", Confidence: 0.8},
	}}
	scores := ToScores(resp, c)
	require.Len(t, scores, 1)
	assert.Equal(t, "novelty", scores[0].CriterionName)
	assert.Equal(t, 1, scores[0].MinScore)
	assert.Equal(t, 5, scores[0].MaxScore)
}

func TestToScoresFallsBackWhenEmpty(t *testing.T) {
	c := sampleCriteria(t)
	scores := ToScores(judgeResponse{}, c)
	require.Len(t, scores, 2)
	for _, s := range scores {
		assert.Equal(t, midpoint(s.MinScore, s.MaxScore), s.Score)
	}
}

func TestClampScoreToInt(t *testing.T) {
	assert.Equal(t, 5, clampScoreToInt(9.9, 1, 5))
	assert.Equal(t, 1, clampScoreToInt(-2, 1, 5))
	assert.Equal(t, 4, clampScoreToInt(3.6, 1, 5))
}
