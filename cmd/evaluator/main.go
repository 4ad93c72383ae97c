// Command evaluator starts the multi-provider LLM-as-judge evaluation
// service: it wires the resilient fallback orchestrator to every configured
// backend and exposes it over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/llmjudge/evalengine/internal/backend/anthropic"
	"github.com/llmjudge/evalengine/internal/backend/bedrock"
	"github.com/llmjudge/evalengine/internal/backend/mock"
	"github.com/llmjudge/evalengine/internal/backend/openai"
	"github.com/llmjudge/evalengine/internal/config"
	"github.com/llmjudge/evalengine/internal/domain"
	"github.com/llmjudge/evalengine/internal/observability"
	"github.com/llmjudge/evalengine/internal/orchestrator"
	transporthttp "github.com/llmjudge/evalengine/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		logger.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	metrics := observability.NewMetrics()

	backends := buildBackends(cfg, logger)
	if len(backends) == 0 {
		logger.Warn("no real backends configured, falling back to mock only")
		backends = append(backends, mock.New(domain.BackendMock, "mock-judge"))
	}

	priority := make([]domain.BackendName, 0, len(cfg.ProviderPriority))
	for _, name := range cfg.ProviderPriority {
		priority = append(priority, domain.BackendName(name))
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Backends:                backends,
		ProviderPriority:        priority,
		RequestTimeoutFor:       cfg.RequestTimeoutFor,
		CancellationGracePeriod: cfg.CancellationGracePeriod,
		RetryBaseAttempts:       cfg.RetryBaseAttempts,
		RetryBaseDelay:          cfg.RetryBaseDelay,
		RetryMaxDelay:           cfg.RetryMaxDelay,
		RetryMultiplier:         cfg.RetryMultiplier,
		RetryJitter:             cfg.RetryJitter,
		BreakerFailureThreshold: cfg.BreakerFailureThreshold,
		BreakerRecoveryTimeout:  cfg.BreakerRecoveryTimeout,
		BreakerSuccessThreshold: cfg.BreakerSuccessThreshold,
		HealthIdleTimeout:       cfg.HealthIdleTimeout,
		CacheEnabled:            cfg.CacheEnabled,
		CacheTTL:                cfg.CacheTTL,
		CacheMaxSize:            cfg.CacheMaxSize,
		SimplifiedResponses:     cfg.SimplifiedResponses,
		PromptTokenBudget:       cfg.PromptTokenBudget,
		Logger:                  logger,
		Metrics:                 metrics,
	})
	if err != nil {
		logger.Error("failed to construct orchestrator", slog.Any("error", err))
		os.Exit(1)
	}
	defer orch.Close()

	ctx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go orch.RunHealthSweep(ctx, cfg.HealthSweepInterval)

	srv := transporthttp.NewServer(orch, cfg)
	router := transporthttp.BuildRouter(srv, transporthttp.RouterConfig{
		Logger:             logger,
		CORSAllowedOrigins: splitOrigins(cfg.CORSAllowOrigins),
		RateLimitRequests:  cfg.RateLimitPerMin,
		RequestTimeout:     cfg.DefaultRequestTimeout,
	})

	httpSrv := transporthttp.NewHTTPServer(fmt.Sprintf(":%d", cfg.Port), router)
	httpSrv.ReadTimeout = cfg.HTTPReadTimeout
	httpSrv.WriteTimeout = cfg.HTTPWriteTimeout
	httpSrv.IdleTimeout = cfg.HTTPIdleTimeout

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// buildBackends constructs one domain.Backend per provider with credentials
// configured, skipping any provider whose API key (or AWS credentials) is
// absent rather than failing startup -- the orchestrator tolerates a
// partial backend set per spec.md's degraded-mode semantics.
func buildBackends(cfg config.Config, logger *slog.Logger) []domain.Backend {
	var backends []domain.Backend

	if cfg.AnthropicAPIKey != "" {
		backends = append(backends, anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			BaseURL:        cfg.AnthropicBaseURL,
			Model:          cfg.AnthropicModel,
			RequestTimeout: cfg.AnthropicRequestTimeout,
			MaxTokens:      cfg.AnthropicMaxTokens,
		}, logger))
	}

	if cfg.OpenAIAPIKey != "" {
		backends = append(backends, openai.New(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.OpenAIModel,
			RequestTimeout: cfg.OpenAIRequestTimeout,
			MaxTokens:      cfg.OpenAIMaxTokens,
		}))
	}

	if cfg.BedrockAccessKeyID != "" {
		bedrockBackend, err := bedrock.New(context.Background(), bedrock.Config{
			Region:          cfg.BedrockRegion,
			AccessKeyID:     cfg.BedrockAccessKeyID,
			SecretAccessKey: cfg.BedrockSecretAccessKey,
			ModelID:         cfg.BedrockModel,
			MaxTokens:       cfg.BedrockMaxTokens,
		})
		if err != nil {
			logger.Warn("bedrock backend unavailable", slog.Any("error", err))
		} else {
			backends = append(backends, bedrockBackend)
		}
	}

	return backends
}

func splitOrigins(raw string) []string {
	if raw == "" || raw == "*" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
