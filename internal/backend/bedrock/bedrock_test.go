package bedrock

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmjudge/evalengine/internal/domain"
)

func TestName(t *testing.T) {
	b := &Backend{modelID: "anthropic.claude-3-5-sonnet-20241022-v2:0"}
	assert.Equal(t, domain.BackendBedrock, b.Name())
}

func TestParseConverseOutputExtractsTextAndUsage(t *testing.T) {
	output := &bedrockruntime.ConverseOutput{
		StopReason: bedrocktypes.StopReasonEndTurn,
		Output: &bedrocktypes.ConverseOutputMemberMessage{
			Value: bedrocktypes.Message{
				Role: bedrocktypes.ConversationRoleAssistant,
				Content: []bedrocktypes.ContentBlock{
					&bedrocktypes.ContentBlockMemberText{Value: `{"score": 4, "reasoning": "solid"}`},
				},
			},
		},
		Usage: &bedrocktypes.TokenUsage{
			InputTokens:  aws.Int32(50),
			OutputTokens: aws.Int32(20),
			TotalTokens:  aws.Int32(70),
		},
	}

	resp, err := parseConverseOutput(output, "anthropic.claude-3-5-sonnet-20241022-v2:0")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 4, "reasoning": "solid"}`, resp.Content)
	assert.Equal(t, 50, resp.Usage.InputTokens)
	assert.Equal(t, 20, resp.Usage.OutputTokens)
	assert.Equal(t, 70, resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.StopReason)
}

func TestParseConverseOutputConcatenatesMultipleTextBlocks(t *testing.T) {
	output := &bedrockruntime.ConverseOutput{
		Output: &bedrocktypes.ConverseOutputMemberMessage{
			Value: bedrocktypes.Message{
				Content: []bedrocktypes.ContentBlock{
					&bedrocktypes.ContentBlockMemberText{Value: "part one "},
					&bedrocktypes.ContentBlockMemberText{Value: "part two"},
				},
			},
		},
	}

	resp, err := parseConverseOutput(output, "model")
	require.NoError(t, err)
	assert.Equal(t, "part one part two", resp.Content)
}

func TestParseConverseOutputErrorsOnEmptyContent(t *testing.T) {
	output := &bedrockruntime.ConverseOutput{
		StopReason: bedrocktypes.StopReasonEndTurn,
		Output: &bedrocktypes.ConverseOutputMemberMessage{
			Value: bedrocktypes.Message{},
		},
	}

	_, err := parseConverseOutput(output, "model")
	assert.Error(t, err)
}
