package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/houhuawei23/ai-anki-cards/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with retry, rate-limit and logging
// middleware. eventRepo may be nil.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log *zap.Logger) (Provider, error) {
	b, ok := LookupBackend(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}

	var base Provider
	var err error

	switch b.SDK {
	case "openai":
		base, err = NewOpenAIProvider(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Backend:   b,
			Estimator: cfg.Estimator,
		})
	case "anthropic":
		base, err = NewAnthropicProvider(AnthropicConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Estimator: cfg.Estimator,
		})
	case "gemini":
		base, err = NewGeminiProvider(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, Estimator: cfg.Estimator})
	case "mock":
		mock := NewMockProvider()
		mock.Estimator = cfg.Estimator
		base = mock
	default:
		return nil, fmt.Errorf("provider %q has no client implementation", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return Wrap(base, cfg, b.Name, eventRepo, log), nil
}

// Wrap applies the standard middleware stack to base:
// caller → retry → rate limit → logging → base.
// Every attempt is logged; every attempt waits for the limiter.
func Wrap(base Provider, cfg Config, backend string, eventRepo store.EventRepo, log *zap.Logger) Provider {
	logged := WithLogging(base, backend, eventRepo, log)
	limited := WithRateLimit(logged, cfg.RequestsPerSecond, 1)
	return WithRetry(limited, cfg.Retry)
}
