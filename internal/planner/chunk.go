package planner

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// CharsPerCard is the amount of source text one card is drawn from.
	CharsPerCard = 500
	// Slack lets a chunk overshoot its budget before a new one is started.
	Slack = 1.1
	// DefaultTerminators end a sentence in the fallback split.
	DefaultTerminators = "。！？.!?\n"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

// Chunker cuts text into ordered pieces sized for one request each.
type Chunker struct {
	CharsPerCard int
	Slack        float64
	Terminators  string
}

// DefaultChunker returns a Chunker with the stock sizing.
func DefaultChunker() Chunker {
	return Chunker{CharsPerCard: CharsPerCard, Slack: Slack, Terminators: DefaultTerminators}
}

// Chunk splits text with the default chunker.
func Chunk(text string, target, maxCardsPerChunk int) []string {
	return DefaultChunker().Chunk(text, target, maxCardsPerChunk)
}

// Chunk splits text so that target cards can be drawn at most
// maxCardsPerChunk at a time. Paragraph boundaries are preferred; when they
// yield too few pieces the text is split at sentence ends instead. The
// result is never empty and keeps every non-whitespace character in order.
func (c Chunker) Chunk(text string, target, maxCardsPerChunk int) []string {
	if maxCardsPerChunk <= 0 || target <= maxCardsPerChunk {
		return []string{text}
	}
	desired := ceilDiv(target, maxCardsPerChunk)

	paras := paragraphBreak.Split(text, -1)
	for i := range paras {
		paras[i] = strings.TrimSpace(paras[i])
	}
	perCard := c.CharsPerCard
	if perCard <= 0 {
		perCard = CharsPerCard
	}
	chunks := c.accumulate(paras, perCard*maxCardsPerChunk, "\n\n")

	if len(chunks) < desired {
		budget := max(1, utf8.RuneCountInString(text)/desired)
		chunks = c.accumulate(c.sentences(text), budget, "")
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// accumulate greedily packs pieces into chunks. A chunk is closed when the
// next piece would push it past budget*Slack runes.
func (c Chunker) accumulate(pieces []string, budget int, sep string) []string {
	limit := int(float64(budget) * c.slack())
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	sepLen := utf8.RuneCountInString(sep)
	for _, p := range pieces {
		if strings.TrimSpace(p) == "" {
			continue
		}
		n := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+sepLen+n > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += sepLen
		}
		cur.WriteString(p)
		curLen += n
	}
	flush()
	return chunks
}

// sentences splits text after each terminator rune, keeping the terminator
// with its sentence.
func (c Chunker) sentences(text string) []string {
	terms := c.Terminators
	if terms == "" {
		terms = DefaultTerminators
	}
	var out []string
	start := 0
	for i, r := range text {
		if strings.ContainsRune(terms, r) {
			end := i + utf8.RuneLen(r)
			out = append(out, text[start:end])
			start = end
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func (c Chunker) slack() float64 {
	if c.Slack <= 0 {
		return Slack
	}
	return c.Slack
}
