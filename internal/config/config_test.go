package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smegmarip/photo-organizer/internal/config"
)

// configKeys is every environment variable Load consults.
var configKeys = []string{
	"VISION_CONFIDENCE_THRESHOLD",
	"T_EXACT_SECONDS",
	"T_HIGH_SECONDS",
	"MAX_IMAGE_MB",
	"MAX_IMAGE_DIM",
	"RETRY_ATTEMPTS",
	"RETRY_DELAY_SECONDS",
	"VISION_TIMEOUT_SECONDS",
	"AI_PROVIDER",
	"GEMINI_API_KEY",
	"GEMINI_MODEL",
	"ANTHROPIC_API_KEY",
	"CLAUDE_MODEL",
}

// clearEnv blanks every config key so ambient shell settings cannot leak
// into a test. Blank values are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Nil(t, cfg.ConfidenceOverride, "no override unless the variable is set")
	assert.Equal(t, 10, cfg.TExactSeconds)
	assert.Equal(t, 30, cfg.THighSeconds)
	assert.Equal(t, 5.0, cfg.MaxImageMB)
	assert.Equal(t, 8000, cfg.MaxImageDim)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 2, cfg.RetryDelaySeconds)
	assert.Equal(t, 60, cfg.VisionTimeoutSeconds)
	assert.Equal(t, config.ProviderGemini, cfg.Provider)
	assert.Equal(t, "flash", cfg.GeminiModel)
	assert.Equal(t, "sonnet-3.5", cfg.ClaudeModel)
	assert.Empty(t, cfg.GeminiAPIKey)
	assert.Empty(t, cfg.AnthropicAPIKey)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("VISION_CONFIDENCE_THRESHOLD", "0.65")
	t.Setenv("T_EXACT_SECONDS", "5")
	t.Setenv("T_HIGH_SECONDS", "45")
	t.Setenv("MAX_IMAGE_MB", "3.5")
	t.Setenv("MAX_IMAGE_DIM", "2048")
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_DELAY_SECONDS", "1")
	t.Setenv("VISION_TIMEOUT_SECONDS", "90")
	t.Setenv("AI_PROVIDER", "Claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("CLAUDE_MODEL", "haiku-3.5")

	cfg, err := config.Load()

	require.NoError(t, err)
	require.NotNil(t, cfg.ConfidenceOverride)
	assert.Equal(t, 0.65, *cfg.ConfidenceOverride)
	assert.Equal(t, 5, cfg.TExactSeconds)
	assert.Equal(t, 45, cfg.THighSeconds)
	assert.Equal(t, 3.5, cfg.MaxImageMB)
	assert.Equal(t, 2048, cfg.MaxImageDim)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, config.ProviderClaude, cfg.Provider, "provider names are case-insensitive")
	assert.Equal(t, "sk-test", cfg.AnthropicAPIKey)
	assert.Equal(t, "haiku-3.5", cfg.ClaudeModel)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"threshold above one", "VISION_CONFIDENCE_THRESHOLD", "1.5", "must be in [0, 1]"},
		{"threshold below zero", "VISION_CONFIDENCE_THRESHOLD", "-0.1", "must be in [0, 1]"},
		{"exact window negative", "T_EXACT_SECONDS", "-1", "must be in [0, 300]"},
		{"exact window huge", "T_EXACT_SECONDS", "301", "must be in [0, 300]"},
		{"exact exceeds high", "T_EXACT_SECONDS", "60", "must not exceed T_HIGH_SECONDS"},
		{"image size zero", "MAX_IMAGE_MB", "0", "must be positive"},
		{"image dimension too small", "MAX_IMAGE_DIM", "100", "must be at least 512"},
		{"too many retries", "RETRY_ATTEMPTS", "11", "must be in [0, 10]"},
		{"negative retry delay", "RETRY_DELAY_SECONDS", "-2", "must not be negative"},
		{"zero timeout", "VISION_TIMEOUT_SECONDS", "0", "must be positive"},
		{"unknown provider", "AI_PROVIDER", "openai", "AI_PROVIDER must be"},
		{"integer garbage", "RETRY_ATTEMPTS", "lots", "must be an integer"},
		{"float garbage", "MAX_IMAGE_MB", "big", "must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfidence_PerModeDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Confidence(false), "database matching is strict")
	assert.Equal(t, 0.5, cfg.Confidence(true), "auto-clustering is lenient")
}

func TestConfidence_OverrideAppliesToBothModes(t *testing.T) {
	clearEnv(t)
	t.Setenv("VISION_CONFIDENCE_THRESHOLD", "0.42")
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 0.42, cfg.Confidence(false))
	assert.Equal(t, 0.42, cfg.Confidence(true))
}

func TestDurationHelpers(t *testing.T) {
	clearEnv(t)
	t.Setenv("T_EXACT_SECONDS", "7")
	t.Setenv("T_HIGH_SECONDS", "33")
	t.Setenv("RETRY_DELAY_SECONDS", "4")
	t.Setenv("VISION_TIMEOUT_SECONDS", "120")
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, cfg.TExactWindow())
	assert.Equal(t, 33*time.Second, cfg.THighWindow())
	assert.Equal(t, 4*time.Second, cfg.RetryDelay())
	assert.Equal(t, 120*time.Second, cfg.VisionTimeout())
}

func TestAPIKeyAndModel_FollowProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")
	t.Setenv("GEMINI_MODEL", "pro")
	t.Setenv("CLAUDE_MODEL", "opus-3")

	t.Setenv("AI_PROVIDER", "gemini")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "gem-key", cfg.APIKey())
	assert.Equal(t, "pro", cfg.Model())

	t.Setenv("AI_PROVIDER", "claude")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, "ant-key", cfg.APIKey())
	assert.Equal(t, "opus-3", cfg.Model())
}
