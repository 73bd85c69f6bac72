// Package card defines the flashcard value types produced by the generation
// pipeline and the invariants every card must satisfy.
package card

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Type is the card kind. The set is closed.
type Type string

const (
	TypeBasic Type = "basic"
	TypeCloze Type = "cloze"
	TypeMCQ   Type = "mcq"
)

// Types lists every supported card type in display order.
var Types = []Type{TypeBasic, TypeCloze, TypeMCQ}

// ParseType normalizes s and returns the matching Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown card type %q (want basic, cloze or mcq)", s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported card types.
func (t Type) Valid() bool {
	switch t {
	case TypeBasic, TypeCloze, TypeMCQ:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

var (
	ErrEmptyFront    = errors.New("card front is empty")
	ErrEmptyBack     = errors.New("card back is empty")
	ErrNoClozeMarker = errors.New("cloze text has no {{cN::...}} marker")
	ErrTooFewOptions = errors.New("choice card needs at least 2 options")
	ErrNoCorrect     = errors.New("choice card has no correct option")
)

// clozeMarker matches the opening of a cloze deletion such as {{c1::.
var clozeMarker = regexp.MustCompile(`\{\{c\d+::`)

// HasClozeMarker reports whether text contains at least one cloze deletion.
func HasClozeMarker(text string) bool {
	return clozeMarker.MatchString(text)
}

// Option is one answer choice of a multiple-choice card.
type Option struct {
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"is_correct" yaml:"is_correct"`
}

// Card is a single flashcard. Type selects which fields are meaningful:
// basic cards use Front and Back, cloze cards keep the marked text in Front
// (Back mirrors it), and choice cards carry the question in Front plus
// ordered Options and an optional Explanation.
type Card struct {
	ID          string         `json:"id" yaml:"id"`
	Type        Type           `json:"type" yaml:"type"`
	Front       string         `json:"front" yaml:"front"`
	Back        string         `json:"back,omitempty" yaml:"back,omitempty"`
	Options     []Option       `json:"options,omitempty" yaml:"options,omitempty"`
	Explanation string         `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewBasic builds a front/back card.
func NewBasic(front, back string, tags []string, metadata map[string]any) (Card, error) {
	c := Card{
		Type:     TypeBasic,
		Front:    strings.TrimSpace(front),
		Back:     strings.TrimSpace(back),
		Tags:     tags,
		Metadata: metadata,
	}
	if err := c.Validate(); err != nil {
		return Card{}, err
	}
	c.ID = contentID(c)
	return c, nil
}

// NewCloze builds a cloze-deletion card from text containing {{cN::...}}.
func NewCloze(text string, tags []string, metadata map[string]any) (Card, error) {
	text = strings.TrimSpace(text)
	c := Card{
		Type:     TypeCloze,
		Front:    text,
		Back:     text,
		Tags:     tags,
		Metadata: metadata,
	}
	if err := c.Validate(); err != nil {
		return Card{}, err
	}
	c.ID = contentID(c)
	return c, nil
}

// NewMCQ builds a multiple-choice card. Options keep their order.
func NewMCQ(question string, options []Option, explanation string, tags []string, metadata map[string]any) (Card, error) {
	c := Card{
		Type:        TypeMCQ,
		Front:       strings.TrimSpace(question),
		Options:     options,
		Explanation: strings.TrimSpace(explanation),
		Tags:        tags,
		Metadata:    metadata,
	}
	if err := c.Validate(); err != nil {
		return Card{}, err
	}
	c.ID = contentID(c)
	return c, nil
}

// Validate checks the structural invariants for the card's type.
func (c Card) Validate() error {
	if strings.TrimSpace(c.Front) == "" {
		return ErrEmptyFront
	}
	switch c.Type {
	case TypeBasic:
		if strings.TrimSpace(c.Back) == "" {
			return ErrEmptyBack
		}
	case TypeCloze:
		if !HasClozeMarker(c.Front) {
			return ErrNoClozeMarker
		}
	case TypeMCQ:
		if len(c.Options) < 2 {
			return ErrTooFewOptions
		}
		if c.CorrectCount() == 0 {
			return ErrNoCorrect
		}
	default:
		return fmt.Errorf("unknown card type %q", c.Type)
	}
	return nil
}

// CorrectCount returns how many options are marked correct.
func (c Card) CorrectCount() int {
	n := 0
	for _, o := range c.Options {
		if o.Correct {
			n++
		}
	}
	return n
}

// Answer returns the letters of the correct options, e.g. "B" or "AC".
// It is empty for non-choice cards.
func (c Card) Answer() string {
	var b strings.Builder
	for i, o := range c.Options {
		if o.Correct {
			b.WriteString(OptionLetter(i))
		}
	}
	return b.String()
}

// OptionLetter maps an option index to its label: 0 → "A", 1 → "B".
func OptionLetter(i int) string {
	return string(rune('A' + i))
}

// idNamespace seeds the deterministic card IDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("ai-anki-cards.card"))

// contentID derives a stable UUID from the card's content. Tags and
// metadata are excluded so retagging a card keeps its identity.
func contentID(c Card) string {
	parts := []string{string(c.Type), c.Front, c.Back, c.Explanation}
	for _, o := range c.Options {
		mark := "0"
		if o.Correct {
			mark = "1"
		}
		parts = append(parts, mark+o.Text)
	}
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x1f"))).String()
}

// WithTags returns a copy of c carrying tags. The ID is unchanged.
func (c Card) WithTags(tags []string) Card {
	c.Tags = tags
	return c
}
