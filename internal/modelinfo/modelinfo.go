// Package modelinfo holds per-model resource metrics used to size requests:
// output token limits, average card cost per type, throughput, token ratios
// and pricing. A default catalog is embedded; a YAML file can override or
// extend it.
package modelinfo

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/tokens"
)

//go:embed models.yaml
var embeddedCatalog []byte

const (
	defaultMaxOutput     = 4000
	defaultMaxOutputCeil = 8000
	defaultContextLength = 128000
	defaultSpeed         = 30
)

// CardMetrics is the observed cost of producing one card of a given type.
type CardMetrics struct {
	AvgTimePerCard   float64 `yaml:"avg_time_per_card"`
	AvgTokensPerCard int     `yaml:"avg_tokens_per_card"`
}

// MaxOutput bounds the output tokens of a single request.
type MaxOutput struct {
	Default int `yaml:"default"`
	Maximum int `yaml:"maximum"`
}

// TokenRatios are tokens per character for wide and narrow scripts.
type TokenRatios struct {
	Chinese float64 `yaml:"chinese"`
	English float64 `yaml:"english"`
}

// Pricing is USD per million tokens.
type Pricing struct {
	Input         float64 `yaml:"input"`
	InputCacheHit float64 `yaml:"input_cache_hit"`
	Output        float64 `yaml:"output"`
}

// IsZero reports whether no price is configured.
func (p Pricing) IsZero() bool {
	return p.Input == 0 && p.InputCacheHit == 0 && p.Output == 0
}

// Cost returns the USD cost of a request. Cache-hit input tokens are billed
// at the cache-hit rate, the remainder of the input at the full rate.
func (p Pricing) Cost(inputTokens, cacheHitTokens, outputTokens int) float64 {
	miss := inputTokens - cacheHitTokens
	if miss < 0 {
		miss = 0
	}
	return float64(miss)*p.Input/1_000_000 +
		float64(cacheHitTokens)*p.InputCacheHit/1_000_000 +
		float64(outputTokens)*p.Output/1_000_000
}

// Profile describes one model.
type Profile struct {
	Name              string
	Provider          string                    `yaml:"provider"`
	ContextLength     int                       `yaml:"context_length"`
	MaxOutput         MaxOutput                 `yaml:"max_output"`
	Speed             float64                   `yaml:"speed_tokens_per_second"`
	TokenPerCharacter TokenRatios               `yaml:"token_per_character"`
	Pricing           Pricing                   `yaml:"pricing_per_million_tokens"`
	CardMetrics       map[card.Type]CardMetrics `yaml:"card_metrics"`
}

// DefaultProfile is used for models missing from the catalog.
func DefaultProfile() Profile {
	return Profile{
		Name:          "default",
		ContextLength: defaultContextLength,
		MaxOutput:     MaxOutput{Default: defaultMaxOutput, Maximum: defaultMaxOutputCeil},
		Speed:         defaultSpeed,
	}
}

// AvgTokensPerCard returns the expected output tokens for one card.
func (p Profile) AvgTokensPerCard(t card.Type) int {
	if m, ok := p.CardMetrics[t]; ok && m.AvgTokensPerCard > 0 {
		return m.AvgTokensPerCard
	}
	if t == card.TypeMCQ {
		return 500
	}
	return 150
}

// AvgTimePerCard returns the expected seconds to produce one card.
func (p Profile) AvgTimePerCard(t card.Type) float64 {
	if m, ok := p.CardMetrics[t]; ok && m.AvgTimePerCard > 0 {
		return m.AvgTimePerCard
	}
	if t == card.TypeMCQ {
		return 15
	}
	return 5
}

// Estimator returns a token estimator tuned to this model.
func (p Profile) Estimator() tokens.Estimator {
	return tokens.New(p.TokenPerCharacter.Chinese, p.TokenPerCharacter.English)
}

// normalize fills zero fields with defaults.
func (p Profile) normalize(name string) Profile {
	p.Name = name
	if p.ContextLength <= 0 {
		p.ContextLength = defaultContextLength
	}
	if p.MaxOutput.Default <= 0 {
		p.MaxOutput.Default = defaultMaxOutput
	}
	if p.MaxOutput.Maximum <= 0 {
		p.MaxOutput.Maximum = defaultMaxOutputCeil
	}
	if p.Speed <= 0 {
		p.Speed = defaultSpeed
	}
	return p
}

// Catalog is an immutable set of profiles keyed by model id.
type Catalog struct {
	profiles map[string]Profile
}

type catalogFile struct {
	Models map[string]Profile `yaml:"models"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	c := &Catalog{profiles: make(map[string]Profile)}
	if err := c.merge(embeddedCatalog); err != nil {
		return nil, fmt.Errorf("parse embedded model catalog: %w", err)
	}
	return c, nil
}

// Load returns the embedded catalog overlaid with the profiles in path.
// An empty path yields the embedded catalog alone.
func Load(path string) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model info %s: %w", path, err)
	}
	if err := c.merge(data); err != nil {
		return nil, fmt.Errorf("parse model info %s: %w", path, err)
	}
	return c, nil
}

func (c *Catalog) merge(data []byte) error {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for name, p := range f.Models {
		c.profiles[name] = p.normalize(name)
	}
	return nil
}

// Lookup returns the profile for model, or DefaultProfile if unknown.
func (c *Catalog) Lookup(model string) (Profile, bool) {
	if c != nil {
		if p, ok := c.profiles[model]; ok {
			return p, true
		}
	}
	p := DefaultProfile()
	p.Name = model
	return p, false
}

// Names returns the model ids in the catalog, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.profiles))
	for n := range c.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
