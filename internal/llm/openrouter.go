package llm

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
// OpenRouter exposes an OpenAI-compatible API, so the OpenAI SDK is reused
// with OpenRouter's endpoint and credentials. Model IDs are passed through
// as-is.
func NewOpenRouterProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	cfg.Backend = backends["openrouter"]
	return NewOpenAIProvider(cfg)
}
