package anthropic

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
	return New(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "claude-sonnet-4-5", MaxTokens: 512}, nil)
}

func jsonMessageResponse(content, stopReason string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-sonnet-4-5",
		"stop_reason":   stopReason,
		"stop_sequence": nil,
		"content": []map[string]any{
			{"type": "text", "text": content},
		},
		"usage": map[string]any{
			"input_tokens":  42,
			"output_tokens": 17,
		},
	})
	return body
}

func TestEvaluateParsesContentAndUsage(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jsonMessageResponse(`{"score": 4, "reasoning": "solid", "confidence": 0.8}`, "end_turn"))
	})

	resp, err := b.Evaluate(context.Background(), "What is 2+2?", "4", "accuracy", "")
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "\"score\": 4")
	assert.Equal(t, 42, resp.Usage.InputTokens)
	assert.Equal(t, 17, resp.Usage.OutputTokens)
	assert.Equal(t, 59, resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.StopReason)
}

func TestCompareUsesConfiguredModelWhenCallerOmitsOne(t *testing.T) {
	var gotModel string
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotModel, _ = payload["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jsonMessageResponse(`{"winner": "A", "reasoning": "clearer", "confidence": 0.6}`, "end_turn"))
	})

	_, err := b.Compare(context.Background(), "prompt", "response A", "response B", "")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", gotModel)
}

func TestEvaluateMultiCriteriaReturnsRawContentForCallerToParse(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jsonMessageResponse(`{"criterion_scores": [], "overall_reasoning": "ok"}`, "end_turn"))
	})

	resp, err := b.EvaluateMultiCriteria(context.Background(), "full prompt with criteria", "")
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "criterion_scores")
}

func TestSendWrapsNonOKStatusWithCode(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`))
	})

	_, err := b.Evaluate(context.Background(), "prompt", "response", "accuracy", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestName(t *testing.T) {
	b := New(Config{APIKey: "k"}, nil)
	assert.Equal(t, domain.BackendAnthropic, b.Name())
}
