// Package cardgen turns source text into flashcards: it plans how many
// model calls a request needs, fans the chunks out under a concurrency
// cap, and parses, assembles, filters and deduplicates what comes back.
package cardgen

import (
	"errors"
	"time"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/planner"
)

var (
	// ErrTemplate wraps prompt rendering failures.
	ErrTemplate = errors.New("prompt template error")

	// ErrInvalidCardType is returned for a card type outside basic, cloze and mcq.
	ErrInvalidCardType = errors.New("invalid card type")

	// ErrEmptyContent is returned when the source text is blank.
	ErrEmptyContent = errors.New("source content is empty")
)

// Difficulty levels understood by the prompt templates.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Request describes one generation job. It is not modified by the
// generator.
type Request struct {
	Content  string
	CardType card.Type

	// Count is the number of cards wanted. Zero derives a target from the
	// content length.
	Count int

	Difficulty   string
	CustomPrompt string
	RequiredTags []string
	OptionalTags []string

	// MaxCardsPerChunk caps the cards requested from one model call.
	MaxCardsPerChunk int

	// MaxConcurrency caps in-flight model calls.
	MaxConcurrency int
}

// Target returns the number of cards the request aims for.
func (r Request) Target() int {
	if r.Count > 0 {
		return r.Count
	}
	return max(5, len([]rune(r.Content))/500)
}

// Stats accumulates token usage and timing. Each chunk task owns its own
// Stats; the generator merges them once every task has finished.
type Stats struct {
	InputTokens    int           `json:"input_tokens"`
	OutputTokens   int           `json:"output_tokens"`
	CacheHitTokens int           `json:"input_cache_hit_tokens"`
	Duration       time.Duration `json:"duration_ns"`
	Chunks         int           `json:"chunks"`
	FailedChunks   int           `json:"failed_chunks"`
	Responses      []string      `json:"api_responses,omitempty"`
	Prompts        []string      `json:"prompts,omitempty"`
}

// Merge adds o into s field by field.
func (s *Stats) Merge(o Stats) {
	s.InputTokens += o.InputTokens
	s.OutputTokens += o.OutputTokens
	s.CacheHitTokens += o.CacheHitTokens
	s.Duration += o.Duration
	s.Chunks += o.Chunks
	s.FailedChunks += o.FailedChunks
	s.Responses = append(s.Responses, o.Responses...)
	s.Prompts = append(s.Prompts, o.Prompts...)
}

func (s Stats) TotalTokens() int { return s.InputTokens + s.OutputTokens }

// CacheMissTokens is the input not served from the provider's prompt cache.
func (s Stats) CacheMissTokens() int { return max(s.InputTokens-s.CacheHitTokens, 0) }

// TokensPerSecond is the output rate over the summed call time.
func (s Stats) TokensPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.OutputTokens) / s.Duration.Seconds()
}

// AvgTimePerToken is the summed call time divided by all tokens.
func (s Stats) AvgTimePerToken() time.Duration {
	if s.TotalTokens() == 0 {
		return 0
	}
	return s.Duration / time.Duration(s.TotalTokens())
}

// Compact drops the raw prompts and responses.
func (s Stats) Compact() Stats {
	s.Responses = nil
	s.Prompts = nil
	return s
}

// Result is the outcome of a generation job.
type Result struct {
	Cards     []card.Card
	Stats     Stats
	Plan      planner.Plan
	Target    int
	FromCache bool

	// Elapsed is the wall-clock time of the whole job.
	Elapsed time.Duration
}

// Renderer produces the prompt for one chunk. Errors should wrap
// ErrTemplate.
type Renderer interface {
	Render(cardType card.Type, content string, cardCount int, difficulty, customPrompt string, requiredTags, optionalTags []string) (string, error)
}

// Reporter receives progress from running chunk tasks. Implementations
// must be safe for concurrent use.
type Reporter interface {
	Start(task, total, quota int)
	Update(task, tokens int)
	Done(task, cards int, err error)
}

type nopReporter struct{}

func (nopReporter) Start(int, int, int) {}
func (nopReporter) Update(int, int) {}
func (nopReporter) Done(int, int, error) {}
