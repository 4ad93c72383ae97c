// Package config defines configuration parsing for the evaluation engine.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the immutable configuration snapshot the core accepts, per
// spec.md section 6's "Configuration surface".
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	AnthropicAPIKey         string        `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL        string        `env:"ANTHROPIC_BASE_URL"`
	AnthropicModel          string        `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5"`
	AnthropicMaxTokens      int64         `env:"ANTHROPIC_MAX_TOKENS" envDefault:"1024"`
	AnthropicRequestTimeout time.Duration `env:"ANTHROPIC_REQUEST_TIMEOUT" envDefault:"30s"`
	AnthropicConnectTimeout time.Duration `env:"ANTHROPIC_CONNECT_TIMEOUT" envDefault:"10s"`

	OpenAIAPIKey         string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL        string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel          string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIMaxTokens      int           `env:"OPENAI_MAX_TOKENS" envDefault:"1024"`
	OpenAIRequestTimeout time.Duration `env:"OPENAI_REQUEST_TIMEOUT" envDefault:"30s"`
	OpenAIConnectTimeout time.Duration `env:"OPENAI_CONNECT_TIMEOUT" envDefault:"10s"`

	BedrockRegion          string        `env:"BEDROCK_REGION" envDefault:"us-east-1"`
	BedrockModel           string        `env:"BEDROCK_MODEL" envDefault:"anthropic.claude-3-5-sonnet-20241022-v2:0"`
	BedrockMaxTokens       int32         `env:"BEDROCK_MAX_TOKENS" envDefault:"1024"`
	BedrockAccessKeyID     string        `env:"BEDROCK_ACCESS_KEY_ID"`
	BedrockSecretAccessKey string        `env:"BEDROCK_SECRET_ACCESS_KEY"`
	BedrockRequestTimeout  time.Duration `env:"BEDROCK_REQUEST_TIMEOUT" envDefault:"30s"`
	BedrockConnectTimeout  time.Duration `env:"BEDROCK_CONNECT_TIMEOUT" envDefault:"10s"`

	// DefaultRequestTimeout/DefaultConnectTimeout are the fallback used for
	// any backend with no specific override (spec.md 4.B "unknown backends
	// inherit a general default").
	DefaultRequestTimeout    time.Duration `env:"DEFAULT_REQUEST_TIMEOUT" envDefault:"30s"`
	DefaultConnectTimeout    time.Duration `env:"DEFAULT_CONNECT_TIMEOUT" envDefault:"10s"`
	CancellationGracePeriod time.Duration `env:"CANCELLATION_GRACE_PERIOD" envDefault:"2s"`

	// Retry Engine configuration (base values; category policies derive
	// their own attempts/delay/cap from these per spec.md section 4.C).
	RetryBaseAttempts int           `env:"RETRY_BASE_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay    time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1s"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`
	RetryMultiplier   float64       `env:"RETRY_MULTIPLIER" envDefault:"2.0"`
	RetryJitter       bool          `env:"RETRY_JITTER" envDefault:"true"`

	// Circuit Breaker configuration.
	BreakerFailureThreshold int           `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"3"`
	BreakerRecoveryTimeout  time.Duration `env:"BREAKER_RECOVERY_TIMEOUT" envDefault:"30s"`
	BreakerSuccessThreshold int           `env:"BREAKER_SUCCESS_THRESHOLD" envDefault:"1"`

	// Health Monitor configuration.
	HealthSweepInterval time.Duration `env:"HEALTH_SWEEP_INTERVAL" envDefault:"60s"`
	HealthIdleTimeout   time.Duration `env:"HEALTH_IDLE_TIMEOUT" envDefault:"600s"`

	// Response Cache configuration.
	CacheEnabled bool          `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"3600s"`
	CacheMaxSize int           `env:"CACHE_MAX_SIZE" envDefault:"1000"`

	// Fallback Orchestrator configuration.
	ProviderPriority    []string `env:"PROVIDER_PRIORITY" envSeparator:"," envDefault:"anthropic,openai,bedrock"`
	SimplifiedResponses bool     `env:"SIMPLIFIED_RESPONSES_ENABLED" envDefault:"true"`

	// Multi-criteria Engine configuration.
	DefaultCriteriaProfile string `env:"DEFAULT_CRITERIA_PROFILE" envDefault:"balanced"`
	CriteriaProfilePath    string `env:"CRITERIA_PROFILE_PATH"`
	PromptTokenBudget      int    `env:"PROMPT_TOKEN_BUDGET" envDefault:"4096"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"evalengine"`

	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin  int    `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`

	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// RequestTimeoutFor returns the provider-specific request/connect timeout
// pair, falling back to the general default for unknown backends (spec.md
// section 4.B "Provider-specific defaults").
func (c Config) RequestTimeoutFor(backend string) (request, connect time.Duration) {
	switch strings.ToLower(backend) {
	case "anthropic":
		return c.AnthropicRequestTimeout, c.AnthropicConnectTimeout
	case "openai":
		return c.OpenAIRequestTimeout, c.OpenAIConnectTimeout
	case "bedrock":
		return c.BedrockRequestTimeout, c.BedrockConnectTimeout
	default:
		return c.DefaultRequestTimeout, c.DefaultConnectTimeout
	}
}
