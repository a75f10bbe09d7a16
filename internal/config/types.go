package config

import "time"

// Provider names accepted in AI_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
)

// Mode-dependent confidence defaults. Database matching is stricter than
// auto-clustering: a wrong roster match misfiles a photo under a person's
// name, while a conservative cluster split is cheap to fix by hand.
const (
	DefaultDatabaseConfidence    = 0.7
	DefaultAutoClusterConfidence = 0.5
)

// Config holds runtime settings loaded from the environment.
type Config struct {
	// ConfidenceOverride is non-nil when VISION_CONFIDENCE_THRESHOLD was
	// set; otherwise the mode default applies (see Confidence).
	ConfidenceOverride *float64

	TExactSeconds int
	THighSeconds  int

	MaxImageMB  float64
	MaxImageDim int

	RetryAttempts        int
	RetryDelaySeconds    int
	VisionTimeoutSeconds int

	Provider        string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	ClaudeModel     string
}

// Confidence resolves the effective threshold for a run mode, honoring the
// environment override when present.
func (c *Config) Confidence(autoCluster bool) float64 {
	if c.ConfidenceOverride != nil {
		return *c.ConfidenceOverride
	}
	if autoCluster {
		return DefaultAutoClusterConfidence
	}
	return DefaultDatabaseConfidence
}

// TExactWindow returns the exact-match timestamp window as a duration.
func (c *Config) TExactWindow() time.Duration {
	return time.Duration(c.TExactSeconds) * time.Second
}

// THighWindow returns the high-priority timestamp window as a duration.
func (c *Config) THighWindow() time.Duration {
	return time.Duration(c.THighSeconds) * time.Second
}

// RetryDelay returns the base retry spacing as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// VisionTimeout returns the per-call vision deadline as a duration.
func (c *Config) VisionTimeout() time.Duration {
	return time.Duration(c.VisionTimeoutSeconds) * time.Second
}

// APIKey returns the credential for the configured provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderClaude {
		return c.AnthropicAPIKey
	}
	return c.GeminiAPIKey
}

// Model returns the configured model short name for the active provider.
func (c *Config) Model() string {
	if c.Provider == ProviderClaude {
		return c.ClaudeModel
	}
	return c.GeminiModel
}
