package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "RETRY_BASE_ATTEMPTS", "PROVIDER_PRIORITY"} {
		original, had := os.LookupEnv(key)
		require.NoError(t, os.Unsetenv(key))
		if had {
			t.Cleanup(func() { os.Setenv(key, original) })
		}
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 3, cfg.RetryBaseAttempts)
	assert.Equal(t, []string{"anthropic", "openai", "bedrock"}, cfg.ProviderPriority)
	assert.True(t, cfg.IsDev())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("RETRY_BASE_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.Equal(t, 5, cfg.RetryBaseAttempts)
}

func TestRequestTimeoutForKnownAndUnknownBackend(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	req, conn := cfg.RequestTimeoutFor("anthropic")
	assert.Equal(t, cfg.AnthropicRequestTimeout, req)
	assert.Equal(t, cfg.AnthropicConnectTimeout, conn)

	req, conn = cfg.RequestTimeoutFor("nonexistent")
	assert.Equal(t, cfg.DefaultRequestTimeout, req)
	assert.Equal(t, cfg.DefaultConnectTimeout, conn)
	assert.Equal(t, 30*time.Second, req)
}
