// Package bedrock implements domain.Backend against AWS Bedrock's Converse
// API for Anthropic Claude models hosted on Bedrock.
package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/llmjudge/evalengine/internal/domain"
)

// Backend calls AWS Bedrock's Converse API. Grounded on
// teradata-labs/loom's pkg/llm/bedrock/converse.go (ConverseInput shape,
// InferenceConfiguration, ConverseOutputMemberMessage/ContentBlockMemberText
// response unwrapping) -- that file's Converse implementation, not its
// legacy InvokeModel one, since the Converse API is what AWS recommends for
// new integrations and needs no model-specific request envelope.
type Backend struct {
	client      *bedrockruntime.Client
	modelID     string
	maxTokens   int32
	temperature float32
}

// Config is the subset of configuration New needs.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ModelID         string
	MaxTokens       int32
}

// New constructs a Bedrock-backed domain.Backend. Credentials follow the AWS
// default chain (IAM role, env vars, shared config) unless AccessKeyID and
// SecretAccessKey are both set, in which case they're used directly.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock backend: load AWS config: %w", err)
	}

	return &Backend{
		client:      bedrockruntime.NewFromConfig(awsCfg),
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: 0,
	}, nil
}

func (b *Backend) Name() domain.BackendName { return domain.BackendBedrock }

func (b *Backend) Evaluate(ctx domain.Context, prompt, response, criteriaLabel, model string) (domain.BackendResponse, error) {
	userPrompt := fmt.Sprintf(
		"%s\n\nCandidate response to evaluate:\n%s\n\nScore the response strictly on the criterion %q. "+
			"Respond with JSON only: {\"score\": <1-5 integer>, \"reasoning\": <string>, \"confidence\": <0-1 float>}.",
		prompt, response, criteriaLabel,
	)
	return b.converse(ctx, userPrompt, model)
}

func (b *Backend) Compare(ctx domain.Context, prompt, responseA, responseB, model string) (domain.BackendResponse, error) {
	userPrompt := fmt.Sprintf(
		"Prompt given to two assistants:\n%s\n\nResponse A:\n%s\n\nResponse B:\n%s\n\n"+
			"Decide which response better answers the prompt. Respond with JSON only: "+
			"{\"winner\": \"A\"|\"B\"|\"tie\", \"reasoning\": <string>, \"confidence\": <0-1 float>}.",
		prompt, responseA, responseB,
	)
	return b.converse(ctx, userPrompt, model)
}

func (b *Backend) EvaluateMultiCriteria(ctx domain.Context, fullPrompt string, model string) (domain.BackendResponse, error) {
	return b.converse(ctx, fullPrompt, model)
}

func (b *Backend) converse(ctx domain.Context, userPrompt, model string) (domain.BackendResponse, error) {
	modelID := model
	if modelID == "" {
		modelID = b.modelID
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		Messages: []bedrocktypes.Message{
			{
				Role: bedrocktypes.ConversationRoleUser,
				Content: []bedrocktypes.ContentBlock{
					&bedrocktypes.ContentBlockMemberText{Value: userPrompt},
				},
			},
		},
		InferenceConfig: &bedrocktypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(b.maxTokens),
			Temperature: aws.Float32(b.temperature),
		},
	}

	output, err := b.client.Converse(ctx, input)
	if err != nil {
		return domain.BackendResponse{}, fmt.Errorf("bedrock backend: converse: %w", err)
	}
	return parseConverseOutput(output, modelID)
}

// parseConverseOutput extracts a domain.BackendResponse from a Converse API
// result. Split out from converse so it can be exercised with a
// hand-constructed *bedrockruntime.ConverseOutput in tests, without a live
// AWS client.
func parseConverseOutput(output *bedrockruntime.ConverseOutput, modelID string) (domain.BackendResponse, error) {
	var content string
	if message, ok := output.Output.(*bedrocktypes.ConverseOutputMemberMessage); ok {
		for _, block := range message.Value.Content {
			if text, ok := block.(*bedrocktypes.ContentBlockMemberText); ok {
				content += text.Value
			}
		}
	}
	if content == "" {
		return domain.BackendResponse{}, fmt.Errorf("bedrock backend: empty response content, stop_reason=%s", output.StopReason)
	}

	usage := domain.BackendUsage{}
	if output.Usage != nil {
		usage = domain.BackendUsage{
			InputTokens:  int(aws.ToInt32(output.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(output.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(output.Usage.TotalTokens)),
		}
	}

	return domain.BackendResponse{
		Content:    content,
		Usage:      usage,
		Model:      modelID,
		StopReason: string(output.StopReason),
	}, nil
}
