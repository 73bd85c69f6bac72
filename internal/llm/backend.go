package llm

import (
	"os"
	"sort"
)

// Backend describes how to reach one provider family: its endpoint,
// where its credentials live and which optional request fields it accepts.
type Backend struct {
	Name string

	// SDK selects the client implementation: "openai", "anthropic",
	// "gemini" or "mock".
	SDK string

	// BaseURL is the default endpoint. Empty means the SDK default.
	BaseURL string

	// KeyEnv is the environment variable holding the API key.
	KeyEnv string

	// NeedsKey is false for local servers that accept any key.
	NeedsKey bool

	// Penalties reports whether presence/frequency penalties are accepted.
	Penalties bool

	// JSONMode reports whether a JSON object response can be forced.
	JSONMode bool

	// DefaultModel is used when no model is configured.
	DefaultModel string

	// Models maps friendly names to model IDs.
	Models map[string]string
}

var backends = map[string]Backend{
	"openai": {
		Name:         "openai",
		SDK:          "openai",
		KeyEnv:       "OPENAI_API_KEY",
		NeedsKey:     true,
		Penalties:    true,
		JSONMode:     true,
		DefaultModel: "gpt-4o-mini",
		Models:       openaiModels,
	},
	"deepseek": {
		Name:         "deepseek",
		SDK:          "openai",
		BaseURL:      "https://api.deepseek.com/v1",
		KeyEnv:       "DEEPSEEK_API_KEY",
		NeedsKey:     true,
		Penalties:    true,
		JSONMode:     true,
		DefaultModel: "deepseek-chat",
	},
	"ollama": {
		Name:         "ollama",
		SDK:          "openai",
		BaseURL:      "http://localhost:11434/v1",
		KeyEnv:       "OLLAMA_API_KEY",
		DefaultModel: "llama3.1",
	},
	"custom": {
		Name:      "custom",
		SDK:       "openai",
		KeyEnv:    "LLM_API_KEY",
		Penalties: true,
	},
	"openrouter": {
		Name:         "openrouter",
		SDK:          "openai",
		BaseURL:      defaultOpenRouterBaseURL,
		KeyEnv:       "OPENROUTER_API_KEY",
		NeedsKey:     true,
		DefaultModel: "google/gemini-2.0-flash-exp",
	},
	"anthropic": {
		Name:         "anthropic",
		SDK:          "anthropic",
		KeyEnv:       "ANTHROPIC_API_KEY",
		NeedsKey:     true,
		DefaultModel: "claude-haiku",
		Models:       anthropicModels,
	},
	"gemini": {
		Name:         "gemini",
		SDK:          "gemini",
		KeyEnv:       "GEMINI_API_KEY",
		NeedsKey:     true,
		Penalties:    true,
		JSONMode:     true,
		DefaultModel: "gemini-flash",
		Models:       geminiModels,
	},
	"mock": {
		Name:         "mock",
		SDK:          "mock",
		DefaultModel: "mock",
	},
}

// LookupBackend returns the backend registered under name.
func LookupBackend(name string) (Backend, bool) {
	b, ok := backends[name]
	return b, ok
}

// BackendNames returns all registered backend names, sorted.
func BackendNames() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolveAPIKey returns explicit if set, else the backend's env var.
func (b Backend) ResolveAPIKey(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if b.KeyEnv == "" {
		return ""
	}
	return os.Getenv(b.KeyEnv)
}

// ResolveModel maps a friendly name to a model ID, falling back to the
// backend default when name is empty.
func (b Backend) ResolveModel(name string) string {
	if name == "" {
		name = b.DefaultModel
	}
	return resolveModel(name, b.Models)
}

// resolveModel maps a friendly model name to a provider model ID.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	// If not in the map, use as-is (allows direct model IDs).
	return name
}
