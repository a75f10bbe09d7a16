package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Load reads configuration from the environment, applying defaults for
// unset keys and validating the result. A key that is set but malformed or
// out of range is a startup error; callers should treat it as fatal.
func Load() (*Config, error) {
	config := &Config{
		// Default values
		TExactSeconds:        10,
		THighSeconds:         30,
		MaxImageMB:           5.0,
		MaxImageDim:          8000,
		RetryAttempts:        3,
		RetryDelaySeconds:    2,
		VisionTimeoutSeconds: 60,
		Provider:             ProviderGemini,
		GeminiModel:          "flash",
		ClaudeModel:          "sonnet-3.5",
	}

	if val, ok, err := getFloatEnv("VISION_CONFIDENCE_THRESHOLD"); err != nil {
		return nil, err
	} else if ok {
		config.ConfidenceOverride = &val
	}
	if val, ok, err := getIntEnv("T_EXACT_SECONDS"); err != nil {
		return nil, err
	} else if ok {
		config.TExactSeconds = val
	}
	if val, ok, err := getIntEnv("T_HIGH_SECONDS"); err != nil {
		return nil, err
	} else if ok {
		config.THighSeconds = val
	}
	if val, ok, err := getFloatEnv("MAX_IMAGE_MB"); err != nil {
		return nil, err
	} else if ok {
		config.MaxImageMB = val
	}
	if val, ok, err := getIntEnv("MAX_IMAGE_DIM"); err != nil {
		return nil, err
	} else if ok {
		config.MaxImageDim = val
	}
	if val, ok, err := getIntEnv("RETRY_ATTEMPTS"); err != nil {
		return nil, err
	} else if ok {
		config.RetryAttempts = val
	}
	if val, ok, err := getIntEnv("RETRY_DELAY_SECONDS"); err != nil {
		return nil, err
	} else if ok {
		config.RetryDelaySeconds = val
	}
	if val, ok, err := getIntEnv("VISION_TIMEOUT_SECONDS"); err != nil {
		return nil, err
	} else if ok {
		config.VisionTimeoutSeconds = val
	}

	if val := getStringEnv("AI_PROVIDER"); val != "" {
		config.Provider = strings.ToLower(val)
	}
	if val := getStringEnv("GEMINI_API_KEY"); val != "" {
		config.GeminiAPIKey = val
	}
	if val := getStringEnv("GEMINI_MODEL"); val != "" {
		config.GeminiModel = val
	}
	if val := getStringEnv("ANTHROPIC_API_KEY"); val != "" {
		config.AnthropicAPIKey = val
	}
	if val := getStringEnv("CLAUDE_MODEL"); val != "" {
		config.ClaudeModel = val
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that the loaded values are usable. Credential presence is
// checked later, when a vision backend is actually constructed, so commands
// that never call the vision service (undo, roster listing) keep working
// without keys.
func (c *Config) Validate() error {
	if c.ConfidenceOverride != nil {
		if v := *c.ConfidenceOverride; v < 0 || v > 1 {
			return fmt.Errorf("VISION_CONFIDENCE_THRESHOLD must be in [0, 1], got %v", v)
		}
	}
	if c.TExactSeconds < 0 || c.TExactSeconds > 300 {
		return fmt.Errorf("T_EXACT_SECONDS must be in [0, 300], got %d", c.TExactSeconds)
	}
	if c.THighSeconds < 0 || c.THighSeconds > 300 {
		return fmt.Errorf("T_HIGH_SECONDS must be in [0, 300], got %d", c.THighSeconds)
	}
	if c.TExactSeconds > c.THighSeconds {
		return fmt.Errorf("T_EXACT_SECONDS (%d) must not exceed T_HIGH_SECONDS (%d)",
			c.TExactSeconds, c.THighSeconds)
	}
	if c.MaxImageMB <= 0 {
		return fmt.Errorf("MAX_IMAGE_MB must be positive, got %v", c.MaxImageMB)
	}
	if c.MaxImageDim < 512 {
		return fmt.Errorf("MAX_IMAGE_DIM must be at least 512, got %d", c.MaxImageDim)
	}
	if c.RetryAttempts < 0 || c.RetryAttempts > 10 {
		return fmt.Errorf("RETRY_ATTEMPTS must be in [0, 10], got %d", c.RetryAttempts)
	}
	if c.RetryDelaySeconds < 0 {
		return fmt.Errorf("RETRY_DELAY_SECONDS must not be negative, got %d", c.RetryDelaySeconds)
	}
	if c.VisionTimeoutSeconds <= 0 {
		return fmt.Errorf("VISION_TIMEOUT_SECONDS must be positive, got %d", c.VisionTimeoutSeconds)
	}
	if c.Provider != ProviderGemini && c.Provider != ProviderClaude {
		return fmt.Errorf("AI_PROVIDER must be %q or %q, got %q",
			ProviderGemini, ProviderClaude, c.Provider)
	}
	return nil
}

// getStringEnv retrieves a string setting from the environment
func getStringEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// getIntEnv retrieves an integer setting from the environment
func getIntEnv(key string) (int, bool, error) {
	raw := getStringEnv(key)
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return val, true, nil
}

// getFloatEnv retrieves a float setting from the environment
func getFloatEnv(key string) (float64, bool, error) {
	raw := getStringEnv(key)
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number, got %q", key, raw)
	}
	return val, true, nil
}
