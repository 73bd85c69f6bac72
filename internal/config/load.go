package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// ANKIGEN_LLM_PROVIDER or ANKIGEN_GENERATION_CARD_TYPE.
const EnvPrefix = "ANKIGEN"

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = ".config.yml"

// Options locate the configuration sources.
type Options struct {
	// File is an explicit config file. It must exist.
	File string

	// Dir is searched for DefaultFile and .env. Empty means the working
	// directory.
	Dir string

	// EnvFiles are extra .env files. Missing ones are skipped.
	EnvFiles []string
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load builds the configuration.
func Load(opts Options) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := loadEnvFiles(append([]string{filepath.Join(dir, ".env"), homeEnvFile()}, opts.EnvFiles...)); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	file := opts.File
	if file == "" {
		if candidate := filepath.Join(dir, DefaultFile); fileExists(candidate) {
			file = candidate
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Source = file
	cfg.expand()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading any source.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// WriteDefault writes the built-in configuration to path as YAML. It
// refuses to overwrite an existing file.
func WriteDefault(path string) error {
	v := viper.New()
	setDefaults(v)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "deepseek")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.top_p", 1.0)
	v.SetDefault("llm.presence_penalty", 0.0)
	v.SetDefault("llm.frequency_penalty", 0.0)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout", 60)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.requests_per_second", 0.0)

	v.SetDefault("generation.card_type", "basic")
	v.SetDefault("generation.card_count", 0)
	v.SetDefault("generation.difficulty", "medium")
	v.SetDefault("generation.custom_prompt", "")
	v.SetDefault("generation.enable_deduplication", true)
	v.SetDefault("generation.enable_quality_filter", true)
	v.SetDefault("generation.single_answer", false)
	v.SetDefault("generation.stream", true)
	v.SetDefault("generation.max_cards_per_request", 20)
	v.SetDefault("generation.max_concurrent_requests", 5)
	v.SetDefault("generation.tags_file", "")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "0s")

	v.SetDefault("export.format", "json")
	v.SetDefault("export.deck_name", "Generated Deck")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("model_info", "")
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("configuration validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// expand resolves ${VAR} references in the string settings that commonly
// hold them. Unset variables are left in place and recorded.
func (c *Config) expand() {
	for _, p := range []*string{
		&c.LLM.Provider,
		&c.LLM.Model,
		&c.LLM.APIKey,
		&c.LLM.BaseURL,
		&c.Generation.TagsFile,
		&c.Cache.Dir,
		&c.Cache.RedisAddr,
		&c.Export.DeckName,
		&c.ModelInfo,
	} {
		*p = envRef.ReplaceAllStringFunc(*p, func(ref string) string {
			name := envRef.FindStringSubmatch(ref)[1]
			if val, ok := os.LookupEnv(name); ok && val != "" {
				return val
			}
			c.Unresolved = append(c.Unresolved, name)
			return ref
		})
	}
}

func loadEnvFiles(paths []string) error {
	for _, p := range paths {
		if p == "" || !fileExists(p) {
			continue
		}
		// Variables already in the environment win.
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

func homeEnvFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ankigen", ".env")
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "ankigen")
	}
	return filepath.Join(os.TempDir(), "ankigen-cache")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
