// Package openai implements domain.Backend against the OpenAI-compatible
// chat completions endpoint via a hand-rolled net/http client.
package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/llmjudge/evalengine/internal/domain"
)

// Backend calls an OpenAI-compatible /chat/completions endpoint. Grounded on
// the teacher's internal/adapter/ai/real/client.go request/response shape and
// status-code branching, stripped of the CV evaluator's Groq/OpenRouter
// multi-account fallback -- that concern belongs entirely to
// internal/orchestrator here, not to an individual backend.
type Backend struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
}

// Config is the subset of configuration New needs.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
	MaxTokens      int
}

// New constructs an OpenAI-backed domain.Backend with an otelhttp-instrumented
// transport, matching the teacher's span-per-call convention.
func New(cfg Config) *Backend {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("AI %s %s", r.Method, r.URL.Host)
		}),
	)

	return &Backend{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		maxTokens:  maxTokens,
	}
}

func (b *Backend) Name() domain.BackendName { return domain.BackendOpenAI }

func (b *Backend) Evaluate(ctx domain.Context, prompt, response, criteriaLabel, model string) (domain.BackendResponse, error) {
	userPrompt := fmt.Sprintf(
		"%s\n\nCandidate response to evaluate:\n%s\n\nScore the response strictly on the criterion %q. "+
			"Respond with JSON only: {\"score\": <1-5 integer>, \"reasoning\": <string>, \"confidence\": <0-1 float>}.",
		prompt, response, criteriaLabel,
	)
	return b.chat(ctx, userPrompt, model)
}

func (b *Backend) Compare(ctx domain.Context, prompt, responseA, responseB, model string) (domain.BackendResponse, error) {
	userPrompt := fmt.Sprintf(
		"Prompt given to two assistants:\n%s\n\nResponse A:\n%s\n\nResponse B:\n%s\n\n"+
			"Decide which response better answers the prompt. Respond with JSON only: "+
			"{\"winner\": \"A\"|\"B\"|\"tie\", \"reasoning\": <string>, \"confidence\": <0-1 float>}.",
		prompt, responseA, responseB,
	)
	return b.chat(ctx, userPrompt, model)
}

func (b *Backend) EvaluateMultiCriteria(ctx domain.Context, fullPrompt string, model string) (domain.BackendResponse, error) {
	return b.chat(ctx, fullPrompt, model)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (b *Backend) chat(ctx domain.Context, userPrompt, model string) (domain.BackendResponse, error) {
	if model == "" {
		model = b.model
	}

	reqBody := chatRequest{
		Model:       model,
		Temperature: 0.0,
		MaxTokens:   b.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a careful, consistent judge of response quality. Always reply with valid JSON and nothing else."},
			{Role: "user", Content: userPrompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.BackendResponse{}, fmt.Errorf("openai backend: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return domain.BackendResponse{}, fmt.Errorf("openai backend: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domain.BackendResponse{}, fmt.Errorf("openai backend: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.BackendResponse{}, fmt.Errorf("openai backend: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(bodyBytes)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return domain.BackendResponse{}, fmt.Errorf("openai backend: status %d: %s", resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return domain.BackendResponse{}, fmt.Errorf("openai backend: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return domain.BackendResponse{}, fmt.Errorf("openai backend: empty choices")
	}

	usedModel := out.Model
	if usedModel == "" {
		usedModel = model
	}

	return domain.BackendResponse{
		Content:    out.Choices[0].Message.Content,
		Model:      usedModel,
		StopReason: out.Choices[0].FinishReason,
		Usage: domain.BackendUsage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
			TotalTokens:  out.Usage.TotalTokens,
		},
	}, nil
}
