// Package export writes generated cards to disk in the formats Anki and
// other tools import.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
)

// Format names an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
	FormatTXT   Format = "txt"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatJSONL, FormatCSV, FormatTXT, FormatYAML}

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrNoCards       = errors.New("no cards to export")
	ErrMixedTypes    = errors.New("cards of different types cannot share a text export")
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "yml" {
		f = FormatYAML
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", false
	}
	f, err := ParseFormat(ext)
	return f, err == nil
}

// Options tune the text formats.
type Options struct {
	// DeckName is written as the #deck header of txt exports.
	DeckName string
}

// Write encodes cards to w.
func Write(w io.Writer, format Format, cards []card.Card, opts Options) error {
	if len(cards) == 0 {
		return ErrNoCards
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(cards)
	case FormatJSONL:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, c := range cards {
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil
	case FormatCSV:
		return writeCSV(w, cards)
	case FormatTXT:
		return writeTXT(w, cards, opts)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cards); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteFile writes cards to path, creating parent directories.
func WriteFile(path string, format Format, cards []card.Card, opts Options) error {
	if len(cards) == 0 {
		return ErrNoCards
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, format, cards, opts); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeCSV(w io.Writer, cards []card.Card) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Front", "Back", "Tags", "Type"}); err != nil {
		return err
	}
	for _, c := range cards {
		back := c.Back
		if c.Type == card.TypeMCQ {
			back = optionList(c) + "<br>Answer: " + c.Answer()
			if c.Explanation != "" {
				back += "<br>" + c.Explanation
			}
		}
		if err := cw.Write([]string{c.Front, back, strings.Join(c.Tags, " "), string(c.Type)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeTXT writes Anki's plain-text import format with header directives.
// The card ID is the note GUID so re-importing updates notes in place.
func writeTXT(w io.Writer, cards []card.Card, opts Options) error {
	t := cards[0].Type
	for _, c := range cards[1:] {
		if c.Type != t {
			return ErrMixedTypes
		}
	}

	var columns []string
	switch t {
	case card.TypeBasic:
		columns = []string{"GUID", "Front", "Back", "Tags"}
	case card.TypeCloze:
		columns = []string{"GUID", "Text", "Tags"}
	case card.TypeMCQ:
		columns = []string{"GUID", "Question", "Options", "Answer", "Explanation", "Tags"}
	default:
		return fmt.Errorf("unknown card type %q", t)
	}

	var b strings.Builder
	b.WriteString("#separator:tab\n#html:true\n")
	fmt.Fprintf(&b, "#columns:%s\n", strings.Join(columns, "\t"))
	b.WriteString("#guid column:1\n")
	fmt.Fprintf(&b, "#tags column:%d\n", len(columns))
	if opts.DeckName != "" {
		fmt.Fprintf(&b, "#deck:%s\n", opts.DeckName)
	}

	for _, c := range cards {
		var fields []string
		switch t {
		case card.TypeBasic:
			fields = []string{c.ID, c.Front, c.Back}
		case card.TypeCloze:
			fields = []string{c.ID, c.Front}
		case card.TypeMCQ:
			fields = []string{c.ID, c.Front, optionList(c), c.Answer(), c.Explanation}
		}
		fields = append(fields, strings.Join(c.Tags, " "))
		for i, f := range fields {
			fields[i] = txtField(f)
		}
		b.WriteString(strings.Join(fields, "\t"))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// optionList renders choices as "A. text<br>B. text".
func optionList(c card.Card) string {
	parts := make([]string, len(c.Options))
	for i, o := range c.Options {
		parts[i] = card.OptionLetter(i) + ". " + o.Text
	}
	return strings.Join(parts, "<br>")
}

var txtReplacer = strings.NewReplacer("\t", " ", "\r\n", "<br>", "\n", "<br>")

func txtField(s string) string {
	return txtReplacer.Replace(s)
}
