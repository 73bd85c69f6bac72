// Package prompt renders the per-card-type prompts sent to the model.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/cardgen"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{"join": strings.Join}

// Data is what every prompt template can refer to.
type Data struct {
	Content      string
	CardCount    int
	Difficulty   string
	BasicTags    []string
	OptionalTags []string
}

// Templates holds the parsed built-in prompts. It implements
// cardgen.Renderer.
type Templates struct {
	byType map[card.Type]*template.Template
}

// Load parses the embedded templates.
func Load() (*Templates, error) {
	t := &Templates{byType: make(map[card.Type]*template.Template, len(card.Types))}
	for _, ct := range card.Types {
		tmpl, err := template.New(string(ct)+".tmpl").
			Funcs(funcs).
			Option("missingkey=error").
			ParseFS(templateFS, "templates/"+string(ct)+".tmpl", "templates/tags.tmpl")
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s prompt: %v", cardgen.ErrTemplate, ct, err)
		}
		t.byType[ct] = tmpl
	}
	return t, nil
}

// MustLoad is Load for package-level initialization.
func MustLoad() *Templates {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

// Render builds the prompt for one chunk. A non-empty customPrompt
// replaces the built-in template and sees the same fields.
func (t *Templates) Render(cardType card.Type, content string, cardCount int, difficulty, customPrompt string, requiredTags, optionalTags []string) (string, error) {
	data := Data{
		Content:      content,
		CardCount:    cardCount,
		Difficulty:   difficulty,
		BasicTags:    requiredTags,
		OptionalTags: optionalTags,
	}

	var tmpl *template.Template
	if strings.TrimSpace(customPrompt) != "" {
		parsed, err := template.New("custom").Funcs(funcs).Option("missingkey=error").Parse(customPrompt)
		if err != nil {
			return "", fmt.Errorf("%w: parse custom prompt: %v", cardgen.ErrTemplate, err)
		}
		tmpl = parsed
	} else {
		var ok bool
		if tmpl, ok = t.byType[cardType]; !ok {
			return "", fmt.Errorf("%w: no prompt for card type %q", cardgen.ErrTemplate, cardType)
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: render %s prompt: %v", cardgen.ErrTemplate, tmpl.Name(), err)
	}
	return buf.String(), nil
}
