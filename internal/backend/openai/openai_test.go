package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmjudge/evalengine/internal/domain"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini", MaxTokens: 512})
}

func chatCompletionResponse(content, finishReason string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":    "chatcmpl-test",
		"model": "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     30,
			"completion_tokens": 12,
			"total_tokens":      42,
		},
	})
	return body
}

func TestEvaluateParsesContentAndUsage(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatCompletionResponse(`{"score": 5, "reasoning": "great", "confidence": 0.9}`, "stop"))
	})

	resp, err := b.Evaluate(context.Background(), "prompt", "response", "accuracy", "")
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "\"score\": 5")
	assert.Equal(t, 30, resp.Usage.InputTokens)
	assert.Equal(t, 12, resp.Usage.OutputTokens)
	assert.Equal(t, 42, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.StopReason)
}

func TestChatSendsAuthorizationHeaderAndModel(t *testing.T) {
	var gotAuth, gotModel string
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotModel, _ = payload["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(chatCompletionResponse(`{"winner": "tie"}`, "stop"))
	})

	_, err := b.Compare(context.Background(), "prompt", "A", "B", "")
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotModel)
}

func TestChatPropagatesNonOKStatus(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	})

	_, err := b.Evaluate(context.Background(), "prompt", "response", "accuracy", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestChatErrorsOnEmptyChoices(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model": "gpt-4o-mini", "choices": []}`))
	})

	_, err := b.EvaluateMultiCriteria(context.Background(), "full prompt", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty choices")
}

func TestName(t *testing.T) {
	b := New(Config{APIKey: "k"})
	assert.Equal(t, domain.BackendOpenAI, b.Name())
}
