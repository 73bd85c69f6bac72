package cardgen

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Record is one decoded card object as the model wrote it.
type Record = map[string]any

var (
	fencedJSON       = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	fencedCards      = regexp.MustCompile("(?s)```\\s*(\\{.*\"cards\".*?\\})\\s*```")
	leadingFence     = regexp.MustCompile("^```(?:json)?\\s*")
	trailingFence    = regexp.MustCompile("\\s*```$")
	trailingObjComma = regexp.MustCompile(`,\s*}`)
	trailingArrComma = regexp.MustCompile(`,\s*]`)
)

// envelopeSchema describes the response shape the prompts ask for.
const envelopeSchema = `{
	"type": "object",
	"required": ["cards"],
	"properties": {
		"cards": {"type": "array", "items": {"type": "object"}}
	}
}`

var compiledEnvelope = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("parse envelope schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	const url = "schema://cards-envelope.json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	return c.Compile(url)
})

// ParseRecords extracts the card objects from a model response. It never
// fails: an unusable response yields no records.
func ParseRecords(raw string) []Record {
	recs, _ := parseRecords(raw)
	return recs
}

// parseRecords is ParseRecords with the reason for an empty result.
func parseRecords(raw string) ([]Record, error) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return nil, errors.New("no JSON found in response")
	}
	candidate = stripFences(candidate)

	doc, err := decode(candidate)
	if err != nil {
		repaired := trailingArrComma.ReplaceAllString(trailingObjComma.ReplaceAllString(candidate, "}"), "]")
		doc, err = decode(repaired)
		if err != nil {
			salvaged, ok := closeTruncated(candidate)
			if !ok {
				return nil, fmt.Errorf("decode response JSON: %w", err)
			}
			if doc, err = decode(salvaged); err != nil {
				return nil, fmt.Errorf("decode truncated response JSON: %w", err)
			}
		}
	}

	return recordsFrom(doc)
}

// closeTruncated cuts a response that stopped mid-array after its last
// complete card object and closes the array and envelope. It reports false
// when no complete object precedes the cut.
func closeTruncated(s string) (string, bool) {
	s = strings.TrimSpace(s)
	start, arr, closer := 0, 0, "]"
	if !strings.HasPrefix(s, "[") {
		key := strings.Index(s, `"cards"`)
		if key < 0 {
			return "", false
		}
		start = strings.LastIndexByte(s[:key], '{')
		open := strings.IndexByte(s[key:], '[')
		if start < 0 || open < 0 {
			return "", false
		}
		arr, closer = key+open, "]}"
	}

	var (
		depth    int
		inString bool
		escaped  bool
		lastEnd  = -1
	)
scan:
	for i := arr + 1; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
		case ch == '"':
			inString = true
		case ch == '{' || ch == '[':
			depth++
		case ch == '}' || ch == ']':
			depth--
			if depth == 0 && ch == '}' {
				lastEnd = i
			}
			if depth < 0 {
				break scan
			}
		}
	}
	if lastEnd < 0 {
		return "", false
	}
	return s[start:lastEnd+1] + closer, true
}

// extractJSON locates the JSON payload. Heuristics, in order: a fenced
// block labelled json, any fenced block mentioning "cards", a balanced
// object starting at {"cards", and finally the whole response.
func extractJSON(raw string) string {
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := fencedCards.FindStringSubmatch(raw); m != nil {
		return m[1]
	}

	start := strings.Index(raw, `{"cards"`)
	if start < 0 {
		start = strings.Index(raw, `{\"cards\"`)
	}
	if start >= 0 {
		// Strings are only tracked when the quotes are not themselves escaped.
		var (
			depth            int
			inString, escape bool
			quoted           = raw[start+1] == '"'
		)
		for i := start; i < len(raw); i++ {
			ch := raw[i]
			switch {
			case escape:
				escape = false
			case inString:
				escape = ch == '\\'
				inString = ch != '"'
			case quoted && ch == '"':
				inString = true
			case ch == '{':
				depth++
			case ch == '}':
				depth--
				if depth == 0 {
					return raw[start : i+1]
				}
			}
		}
	}

	return strings.TrimSpace(raw)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = leadingFence.ReplaceAllString(s, "")
		s = trailingFence.ReplaceAllString(s, "")
	}
	return s
}

func decode(s string) (any, error) {
	return jsonschema.UnmarshalJSON(strings.NewReader(s))
}

// recordsFrom validates the decoded envelope and returns its card objects.
// Envelopes that don't match the schema still give up whatever object
// elements they hold.
func recordsFrom(doc any) ([]Record, error) {
	schema, err := compiledEnvelope()
	if err != nil {
		return nil, err
	}
	if schema.Validate(doc) == nil {
		items := doc.(map[string]any)["cards"].([]any)
		return objects(items), nil
	}

	switch v := doc.(type) {
	case map[string]any:
		if items, ok := v["cards"].([]any); ok {
			return objects(items), nil
		}
		return nil, errors.New(`response object has no "cards" array`)
	case []any:
		return objects(v), nil
	}
	return nil, fmt.Errorf("unexpected response JSON of type %T", doc)
}

func objects(items []any) []Record {
	out := make([]Record, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
