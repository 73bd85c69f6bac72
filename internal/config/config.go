// Package config loads ankigen settings from defaults, an optional YAML
// file, .env files and ANKIGEN_* environment variables, in increasing
// order of precedence. Command-line flags are applied by the caller.
package config

import (
	"time"

	"github.com/houhuawei23/ai-anki-cards/internal/cache"
	"github.com/houhuawei23/ai-anki-cards/internal/llm"
)

// Config holds all application configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Generation GenerationConfig `mapstructure:"generation"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Export     ExportConfig     `mapstructure:"export"`
	Log        LogConfig        `mapstructure:"log"`

	// ModelInfo is a YAML file of model metrics merged over the built-in
	// catalog.
	ModelInfo string `mapstructure:"model_info"`

	// Source is the config file that was read, if any.
	Source string `mapstructure:"-"`

	// Unresolved lists ${VAR} references whose variable was not set.
	Unresolved []string `mapstructure:"-"`
}

// LLMConfig selects the model backend and sampling parameters.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider" validate:"required"`
	Model             string  `mapstructure:"model"`
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url" validate:"omitempty,url"`
	Temperature       float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopP              float64 `mapstructure:"top_p" validate:"gte=0,lte=1"`
	PresencePenalty   float64 `mapstructure:"presence_penalty" validate:"gte=-2,lte=2"`
	FrequencyPenalty  float64 `mapstructure:"frequency_penalty" validate:"gte=-2,lte=2"`
	MaxTokens         int     `mapstructure:"max_tokens" validate:"gte=1"`
	Timeout           int     `mapstructure:"timeout" validate:"gte=1"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"gte=0"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
}

// GenerationConfig controls what is generated and how requests are split.
type GenerationConfig struct {
	CardType              string `mapstructure:"card_type" validate:"oneof=basic cloze mcq"`
	CardCount             int    `mapstructure:"card_count" validate:"gte=0"`
	Difficulty            string `mapstructure:"difficulty" validate:"oneof=easy medium hard"`
	CustomPrompt          string `mapstructure:"custom_prompt"`
	EnableDeduplication   bool   `mapstructure:"enable_deduplication"`
	EnableQualityFilter   bool   `mapstructure:"enable_quality_filter"`
	SingleAnswer          bool   `mapstructure:"single_answer"`
	Stream                bool   `mapstructure:"stream"`
	MaxCardsPerRequest    int    `mapstructure:"max_cards_per_request" validate:"gte=1"`
	MaxConcurrentRequests int    `mapstructure:"max_concurrent_requests" validate:"gte=1"`
	TagsFile              string `mapstructure:"tags_file"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Backend   string        `mapstructure:"backend" validate:"oneof=sqlite file redis none"`
	Dir       string        `mapstructure:"dir" validate:"required_if=Backend file"`
	RedisAddr string        `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int           `mapstructure:"redis_db" validate:"gte=0"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// ExportConfig sets the default output format.
type ExportConfig struct {
	Format   string `mapstructure:"format" validate:"oneof=json jsonl csv txt yaml yml"`
	DeckName string `mapstructure:"deck_name"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// LLMClient converts the section into the client configuration.
func (c LLMConfig) LLMClient() llm.Config {
	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = c.MaxRetries
	retry.Timeout = time.Duration(c.Timeout) * time.Second
	return llm.Config{
		Provider:          c.Provider,
		Model:             c.Model,
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Temperature:       c.Temperature,
		TopP:              c.TopP,
		PresencePenalty:   c.PresencePenalty,
		FrequencyPenalty:  c.FrequencyPenalty,
		MaxTokens:         c.MaxTokens,
		Retry:             retry,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

// Options converts the section into cache options. A disabled cache maps
// to the "none" backend.
func (c CacheConfig) Options() cache.Options {
	backend := c.Backend
	if !c.Enabled {
		backend = "none"
	}
	return cache.Options{
		Backend:   backend,
		Dir:       c.Dir,
		RedisAddr: c.RedisAddr,
		RedisDB:   c.RedisDB,
		TTL:       c.TTL,
	}
}
