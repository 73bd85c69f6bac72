package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/houhuawei23/ai-anki-cards/internal/tokens"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects the backend.
	// Values: "openai", "deepseek", "ollama", "custom", "openrouter",
	// "anthropic", "gemini", "mock"
	Provider string

	// Model is a model ID or friendly name. Empty uses the backend default.
	Model string

	// APIKey overrides the backend's credential env var.
	APIKey string

	// BaseURL overrides the backend's default endpoint.
	BaseURL string

	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	MaxTokens        int

	Retry RetryConfig

	// RequestsPerSecond throttles calls across all goroutines.
	// Zero disables throttling.
	RequestsPerSecond float64

	// Estimator counts streamed output tokens with the model's ratios.
	// The zero value uses the stock ratios.
	Estimator tokens.Estimator
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64

	// Jitter randomizes each wait by ±Jitter (0.2 = ±20%).
	Jitter float64

	// Timeout bounds a single attempt. Zero means no per-attempt limit.
	Timeout time.Duration
}

// DefaultRetryConfig waits 1s, 2s, 4s between three retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		InitialWait: 1 * time.Second,
		MaxWait:     60 * time.Second,
		Multiplier:  2.0,
		Timeout:     60 * time.Second,
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    "deepseek",
		Model:       "deepseek-chat",
		Temperature: 0.7,
		TopP:        1.0,
		MaxTokens:   2000,
		Retry:       DefaultRetryConfig(),
	}
}

// DiscoverConfig checks standard API key env vars in priority order
// (DeepSeek → OpenAI → Anthropic → Gemini → OpenRouter) and returns a
// Config for the first provider whose key is found. Returns
// (Config{}, false) if none found.
func DiscoverConfig() (Config, bool) {
	for _, name := range []string{"deepseek", "openai", "anthropic", "gemini", "openrouter"} {
		b := backends[name]
		if k := os.Getenv(b.KeyEnv); k != "" {
			cfg := DefaultConfig()
			cfg.Provider = name
			cfg.Model = b.DefaultModel
			cfg.APIKey = k
			return cfg, true
		}
	}
	return Config{}, false
}

// Validate checks that the provider is known and has credentials when it
// needs them.
func (c Config) Validate() error {
	b, ok := LookupBackend(c.Provider)
	if !ok {
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if b.NeedsKey && b.ResolveAPIKey(c.APIKey) == "" {
		return fmt.Errorf("%w: %s is required for the %s provider", ErrMissingCredentials, b.KeyEnv, c.Provider)
	}
	if c.Provider == "custom" && c.BaseURL == "" {
		return fmt.Errorf("base_url is required for the custom provider")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", c.MaxTokens)
	}
	return nil
}

// BaseRequest returns a Request carrying the sampling parameters from c.
func (c Config) BaseRequest(prompt string) Request {
	req := UserRequest(prompt)
	req.MaxTokens = c.MaxTokens
	req.Temperature = c.Temperature
	req.TopP = c.TopP
	req.PresencePenalty = c.PresencePenalty
	req.FrequencyPenalty = c.FrequencyPenalty
	return req
}
