package cardgen

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
)

// Validator checks an assembled card.
// Implementations should be stateless and safe for concurrent use.
type Validator interface {
	// Name returns a short identifier for logging, e.g. "structural".
	Name() string

	// Validate returns nil if the card passes.
	Validate(c card.Card) *ValidationError
}

// ValidationError describes why a card was filtered out.
type ValidationError struct {
	Validator string // Name of the validator that failed
	Message   string // Human-readable description of the failure
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// StructuralValidator re-checks the per-type card invariants.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(c card.Card) *ValidationError {
	if err := c.Validate(); err != nil {
		return &ValidationError{Validator: v.Name(), Message: err.Error()}
	}
	return nil
}

// SingleAnswerValidator requires exactly one correct option on choice
// cards. Other card types pass.
type SingleAnswerValidator struct{}

func (v *SingleAnswerValidator) Name() string { return "single-answer" }

func (v *SingleAnswerValidator) Validate(c card.Card) *ValidationError {
	if c.Type != card.TypeMCQ {
		return nil
	}
	if n := c.CorrectCount(); n != 1 {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("expected exactly one correct option, got %d", n),
		}
	}
	return nil
}

// DefaultValidators is the chain used when quality filtering is on.
func DefaultValidators(singleAnswer bool) []Validator {
	vs := []Validator{&StructuralValidator{}}
	if singleAnswer {
		vs = append(vs, &SingleAnswerValidator{})
	}
	return vs
}

// Filter keeps the cards that pass every validator. The first failure
// drops the card.
func Filter(cards []card.Card, validators []Validator, log *zap.Logger) []card.Card {
	if len(validators) == 0 {
		return cards
	}
	out := cards[:0:0]
	for _, c := range cards {
		ok := true
		for _, v := range validators {
			if verr := v.Validate(c); verr != nil {
				log.Debug("card filtered", zap.String("front", truncate(c.Front, 60)), zap.Error(verr))
				ok = false
				break
			}
		}
		if ok {
			out = append(out, c)
		}
	}
	return out
}

// NormalizeTags restricts c's tags to required ∪ optional and adds any
// missing required tags. With both lists empty, c is returned unchanged.
func NormalizeTags(c card.Card, required, optional []string) card.Card {
	if len(required) == 0 && len(optional) == 0 {
		return c
	}
	tags := slices.Clone(required)
	for _, t := range c.Tags {
		if slices.Contains(tags, t) {
			continue
		}
		if slices.Contains(optional, t) {
			tags = append(tags, t)
		}
	}
	return c.WithTags(tags)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
