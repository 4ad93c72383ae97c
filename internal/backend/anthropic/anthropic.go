// Package anthropic implements domain.Backend against the Anthropic Messages
// API via the official anthropics/anthropic-sdk-go client.
package anthropic

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/llmjudge/evalengine/internal/domain"
)

// Backend calls Claude through client.Messages.New. It carries no
// request-scoped state; a single instance is safe for concurrent use
// because the underlying SDK client is.
type Backend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// Config is the subset of configuration New needs, kept narrow so
// internal/backend/anthropic does not import internal/config directly.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
	MaxTokens      int64
}

// New constructs an Anthropic-backed domain.Backend. A zero-value APIKey is
// allowed at construction time -- the SDK falls back to the ANTHROPIC_API_KEY
// environment variable -- so credentials can be supplied either way.
func New(cfg Config, logger *slog.Logger) *Backend {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	// internal/resilience.RetryEngine already owns retry/backoff policy for
	// every backend uniformly; disable the SDK's own retry-on-429/5xx so a
	// single logical attempt never turns into a double-retried one.
	opts = append(opts, option.WithMaxRetries(0))

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func (b *Backend) Name() domain.BackendName { return domain.BackendAnthropic }

// Evaluate asks Claude to score a single response against one criterion.
func (b *Backend) Evaluate(ctx domain.Context, prompt, response, criteriaLabel, model string) (domain.BackendResponse, error) {
	userPrompt := fmt.Sprintf(
		"%s\n\nCandidate response to evaluate:\n%s\n\nScore the response strictly on the criterion %q. "+
			"Respond with JSON only: {\"score\": <1-5 integer>, \"reasoning\": <string>, \"confidence\": <0-1 float>}.",
		prompt, response, criteriaLabel,
	)
	return b.send(ctx, userPrompt, model)
}

// Compare asks Claude to pick a winner between two responses to the same
// prompt.
func (b *Backend) Compare(ctx domain.Context, prompt, responseA, responseB, model string) (domain.BackendResponse, error) {
	userPrompt := fmt.Sprintf(
		"Prompt given to two assistants:\n%s\n\nResponse A:\n%s\n\nResponse B:\n%s\n\n"+
			"Decide which response better answers the prompt. Respond with JSON only: "+
			"{\"winner\": \"A\"|\"B\"|\"tie\", \"reasoning\": <string>, \"confidence\": <0-1 float>}.",
		prompt, responseA, responseB,
	)
	return b.send(ctx, userPrompt, model)
}

// EvaluateMultiCriteria submits a fully-constructed multi-criteria prompt
// (internal/criteria.BuildPrompt already embedded the criteria set) and
// returns Claude's raw JSON content for internal/criteria to parse.
func (b *Backend) EvaluateMultiCriteria(ctx domain.Context, fullPrompt string, model string) (domain.BackendResponse, error) {
	return b.send(ctx, fullPrompt, model)
}

func (b *Backend) send(ctx domain.Context, userPrompt, model string) (domain.BackendResponse, error) {
	if model == "" {
		model = b.model
	}

	message, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: b.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return domain.BackendResponse{}, b.classify(err)
	}

	var content string
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}
	if content == "" {
		return domain.BackendResponse{}, fmt.Errorf("anthropic backend: empty response content, stop_reason=%s", message.StopReason)
	}

	return domain.BackendResponse{
		Content: content,
		Usage: domain.BackendUsage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
		Model:      string(message.Model),
		StopReason: string(message.StopReason),
	}, nil
}

// classify wraps err with its HTTP status code, if the SDK surfaced one, so
// internal/resilience.Classifier.ClassifyTyped can skip message pattern
// matching. The Go SDK returns a single *anthropic.Error for every non-2xx
// response rather than a typed exception hierarchy per status code.
func (b *Backend) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic backend: status %d: %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("anthropic backend: %w", err)
}
