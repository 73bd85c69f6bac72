package cardgen

import (
	"fmt"
	"maps"
	"strings"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
)

// Field aliases, tried in order. Models mix template field names with
// lower-case variants.
var (
	basicFrontKeys  = []string{"Front", "front", "Question", "question"}
	basicBackKeys   = []string{"Back", "back", "Answer", "answer"}
	clozeTextKeys   = []string{"Text", "text", "Front", "front"}
	mcqQuestionKeys = []string{"Question", "question", "Front", "front"}
	explanationKeys = []string{"Note", "Explanation", "explanation"}
	optionsKeys     = []string{"Options", "options"}
	tagsKeys        = []string{"Tags", "tags"}
	optionLetters   = []string{"A", "B", "C", "D", "E", "F"}
)

// Assemble builds a card of type t from one parsed record. Records that
// break the card invariants are rejected with an error.
func Assemble(rec Record, t card.Type) (card.Card, error) {
	tags := tagsOf(rec)
	meta := metadataOf(rec)

	switch t {
	case card.TypeBasic:
		return card.NewBasic(field(rec, basicFrontKeys...), field(rec, basicBackKeys...), tags, meta)
	case card.TypeCloze:
		return card.NewCloze(field(rec, clozeTextKeys...), tags, meta)
	case card.TypeMCQ:
		opts := optionsOf(rec)
		for _, l := range optionLetters {
			if note := strings.TrimSpace(stringOf(rec["Note"+l])); note != "" {
				if meta == nil {
					meta = map[string]any{}
				}
				meta["Note"+l] = note
			}
		}
		return card.NewMCQ(field(rec, mcqQuestionKeys...), opts, field(rec, explanationKeys...), tags, meta)
	}
	return card.Card{}, fmt.Errorf("%w: %q", ErrInvalidCardType, t)
}

// field returns the first non-empty alias value with newlines rendered as
// <br>.
func field(rec Record, keys ...string) string {
	for _, k := range keys {
		if s := stringOf(rec[k]); strings.TrimSpace(s) != "" {
			return brNewlines(s)
		}
	}
	return ""
}

func brNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "<br>")
}

func stringOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case bool, float64, int:
		return fmt.Sprint(x)
	}
	return ""
}

// optionsOf reads OptionA..OptionF with the Answer letters, or failing
// that an Options array of {text, is_correct} objects or plain strings
// (the first string is the correct one).
func optionsOf(rec Record) []card.Option {
	answer := strings.ToUpper(strings.TrimSpace(stringOf(rec["Answer"])))
	var opts []card.Option
	for _, l := range optionLetters {
		text := strings.TrimSpace(stringOf(rec["Option"+l]))
		if text == "" {
			continue
		}
		opts = append(opts, card.Option{Text: brNewlines(text), Correct: strings.Contains(answer, l)})
	}
	if len(opts) > 0 {
		return opts
	}

	for _, k := range optionsKeys {
		items, ok := rec[k].([]any)
		if !ok || len(items) == 0 {
			continue
		}
		for _, it := range items {
			switch o := it.(type) {
			case map[string]any:
				correct, _ := o["is_correct"].(bool)
				opts = append(opts, card.Option{Text: brNewlines(stringOf(o["text"])), Correct: correct})
			case string:
				opts = append(opts, card.Option{Text: brNewlines(o), Correct: len(opts) == 0})
			}
		}
		break
	}
	return opts
}

// tagsOf accepts a list of strings or one string of whitespace or comma
// separated tags.
func tagsOf(rec Record) []string {
	for _, k := range tagsKeys {
		switch v := rec[k].(type) {
		case []any:
			var out []string
			for _, it := range v {
				if s := strings.TrimSpace(stringOf(it)); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			if f := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' }); len(f) > 0 {
				return f
			}
		}
	}
	return nil
}

func metadataOf(rec Record) map[string]any {
	m, ok := rec["metadata"].(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}
