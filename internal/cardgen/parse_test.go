package cardgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		fronts []string
	}{
		{
			name:   "plain envelope",
			raw:    `{"cards":[{"Front":"a","Back":"1"},{"Front":"b","Back":"2"}]}`,
			fronts: []string{"a", "b"},
		},
		{
			name:   "fenced json block",
			raw:    "Here you go:\n```json\n{\"cards\":[{\"Front\":\"a\",\"Back\":\"1\"}]}\n```\nEnjoy!",
			fronts: []string{"a"},
		},
		{
			name:   "unlabelled fence",
			raw:    "```\n{\"cards\":[{\"Front\":\"a\",\"Back\":\"1\"}]}\n```",
			fronts: []string{"a"},
		},
		{
			name:   "prose around envelope",
			raw:    `Sure! {"cards":[{"Front":"x","Back":"y"}]} Let me know.`,
			fronts: []string{"x"},
		},
		{
			name:   "trailing commas repaired",
			raw:    `{"cards":[{"Front":"a","Back":"1",},{"Front":"b","Back":"2"},]}`,
			fronts: []string{"a", "b"},
		},
		{
			name:   "bare array",
			raw:    `[{"Front":"a","Back":"1"}]`,
			fronts: []string{"a"},
		},
		{
			name:   "non-object elements dropped",
			raw:    `{"cards":[{"Front":"a","Back":"1"},"junk",42,null]}`,
			fronts: []string{"a"},
		},
		{
			name:   "truncated envelope keeps complete cards",
			raw:    `{"cards":[{"Front":"Q1","Back":"A1"},{"Front":"Q2","Back":"A2"},{"Front":"Q3","Ba`,
			fronts: []string{"Q1", "Q2"},
		},
		{
			name:   "truncated after braces inside strings",
			raw:    "```json\n{\"cards\":[{\"Front\":\"set {a}\",\"Back\":\"say \\\"}\\\"\"},{\"Front\":\"b",
			fronts: []string{"set {a}"},
		},
		{
			name:   "truncated bare array",
			raw:    `[{"Front":"a","Back":"1"},{"Front":"b"`,
			fronts: []string{"a"},
		},
		{
			name:   "truncated after preamble",
			raw:    `Sure: {"cards":[{"Front":"x","Back":"y"},`,
			fronts: []string{"x"},
		},
		{
			name: "gibberish",
			raw:  "I could not produce any cards, sorry.",
		},
		{
			name: "empty",
			raw:  "",
		},
		{
			name: "object without cards",
			raw:  `{"result":"none"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := ParseRecords(tt.raw)
			var fronts []string
			for _, r := range recs {
				fronts = append(fronts, r["Front"].(string))
			}
			assert.Equal(t, tt.fronts, fronts)
		})
	}
}

func TestParseRecordsReportsReason(t *testing.T) {
	_, err := parseRecords("   ")
	require.Error(t, err)

	_, err = parseRecords(`{"cards": [`)
	assert.ErrorContains(t, err, "decode")
}

func TestCloseTruncated(t *testing.T) {
	got, ok := closeTruncated(`{"cards":[{"Front":"a","Back":"1"},{"Front":"b"`)
	require.True(t, ok)
	assert.Equal(t, `{"cards":[{"Front":"a","Back":"1"}]}`, got)

	_, ok = closeTruncated(`{"cards":[{"Front":"a"`)
	assert.False(t, ok, "no complete object to keep")

	_, ok = closeTruncated(`{"result":[{"a":1}`)
	assert.False(t, ok)
}

func TestExtractJSONBalancesBraces(t *testing.T) {
	raw := `noise {"cards":[{"Front":"{nested}","Back":"b"}]} trailing {"other":1}`
	got := extractJSON(raw)
	assert.Equal(t, `{"cards":[{"Front":"{nested}","Back":"b"}]}`, got)
}

func TestParseRecordsKeepsNumbers(t *testing.T) {
	recs := ParseRecords(`{"cards":[{"Front":"2+2","Back":4}]}`)
	require.Len(t, recs, 1)
	assert.Equal(t, "4", stringOf(recs[0]["Back"]))
}
