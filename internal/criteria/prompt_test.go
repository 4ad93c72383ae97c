package criteria

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptIncludesAllCriteria(t *testing.T) {
	c := sampleCriteria(t)
	p := BuildPrompt("What is 2+2?", "The answer is 4.", c, 0)
	assert.Contains(t, p, "ACCURACY")
	assert.Contains(t, p, "CLARITY")
	assert.Contains(t, p, "What is 2+2?")
	assert.Contains(t, p, "The answer is 4.")
}

func TestBuildPromptTrimsUnderTokenBudget(t *testing.T) {
	c := sampleCriteria(t)
	longResponse := strings.Repeat("word ", 5000)
	full := BuildPrompt("question", longResponse, c, 0)
	trimmed := BuildPrompt("question", longResponse, c, 200)
	require.Less(t, CountTokens(trimmed), CountTokens(full))
	assert.Contains(t, trimmed, "truncated for token budget")
}

func TestCountTokensNonNegative(t *testing.T) {
	assert.GreaterOrEqual(t, CountTokens("hello world"), 1)
	assert.Equal(t, 0, CountTokens(""))
}
