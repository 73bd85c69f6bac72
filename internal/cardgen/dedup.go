package cardgen

import (
	"strings"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
)

// Dedup drops cards whose front repeats an earlier one, ignoring case and
// surrounding whitespace. The first occurrence wins.
func Dedup(cards []card.Card) []card.Card {
	seen := make(map[string]struct{}, len(cards))
	out := make([]card.Card, 0, len(cards))
	for _, c := range cards {
		key := strings.ToLower(strings.TrimSpace(c.Front))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
