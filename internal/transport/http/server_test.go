package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmjudge/evalengine/internal/domain"
)

func TestBuildRouterServesHealthzAndStatus(t *testing.T) {
	s := newTestServer(t, &stubBackend{name: domain.BackendAnthropic, content: `{"score":5}`})
	router := BuildRouter(s, RouterConfig{RequestTimeout: 5 * time.Second})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestBuildRouterAppliesCORSWhenOriginsConfigured(t *testing.T) {
	s := newTestServer(t, &stubBackend{name: domain.BackendAnthropic, content: `{"score":5}`})
	router := BuildRouter(s, RouterConfig{
		RequestTimeout:     5 * time.Second,
		CORSAllowedOrigins: []string{"https://example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/evaluate", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewHTTPServerSetsTimeouts(t *testing.T) {
	srv := NewHTTPServer(":0", http.NewServeMux())
	assert.Greater(t, srv.ReadTimeout, time.Duration(0))
	assert.Greater(t, srv.WriteTimeout, time.Duration(0))
}
