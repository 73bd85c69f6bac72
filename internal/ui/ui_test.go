package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/cardgen"
	"github.com/houhuawei23/ai-anki-cards/internal/planner"
)

var _ cardgen.Reporter = (*Progress)(nil)

func TestProgressLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, true)

	p.Start(0, 2, 8)
	p.Start(1, 2, 4)
	p.Update(0, 120)
	p.Done(0, 8, nil)
	p.Done(1, 0, errors.New("provider unavailable"))

	out := buf.String()
	assert.Contains(t, out, "chunk 1/2 ✓ 8/8 cards · 120 tokens")
	assert.Contains(t, out, "chunk 2/2 ✗ provider unavailable")
	assert.Contains(t, out, "100%")
	assert.Equal(t, 8, p.Cards())
}

func TestProgressSingleChunkHasNoBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, true)
	p.Start(0, 1, 5)
	p.Done(0, 5, nil)
	assert.NotContains(t, buf.String(), "%")
}

func TestProgressConcurrent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, true)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Start(i, 20, 1)
			p.Update(i, 10)
			p.Done(i, 1, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, p.Cards())
	assert.Equal(t, 40, strings.Count(buf.String(), "\n"))
}

func TestRenderResult(t *testing.T) {
	res := &cardgen.Result{
		Cards:  make([]card.Card, 3),
		Target: 5,
		Stats: cardgen.Stats{
			InputTokens:    1000,
			CacheHitTokens: 200,
			OutputTokens:   500,
			Duration:       5 * time.Second,
			Chunks:         2,
			FailedChunks:   1,
		},
		Elapsed: 3 * time.Second,
	}
	out := RenderResult(res, Cost{USD: 0.0012, Known: true}, true)
	assert.Contains(t, out, "3 / 5")
	assert.Contains(t, out, "2 (1 failed)")
	assert.Contains(t, out, "1000 (200 cached)")
	assert.Contains(t, out, "100.0 tokens/s")
	assert.Contains(t, out, "$0.0012")

	res.FromCache = true
	out = RenderResult(res, Cost{}, true)
	assert.Contains(t, out, "cache")
	assert.Contains(t, out, "n/a")
}

func TestRenderEstimate(t *testing.T) {
	e := planner.Estimate{
		Target:        100,
		Plan:          planner.Plan{NumChunks: 13, CardsPerChunk: 8, MaxTokensPerRequest: 4000},
		OutputTokens:  50000,
		InputTokens:   12000,
		Seconds:       1500,
		ParallelSecs:  345,
		CostUSD:       0.5,
		CostAvailable: true,
	}
	out := RenderEstimate("deepseek-chat", card.TypeMCQ, e, true)
	assert.Contains(t, out, "13 × 8 cards")
	assert.Contains(t, out, "~25m0s sequential")
	assert.Contains(t, out, "$0.5000")
}

func TestRenderCards(t *testing.T) {
	b, err := card.NewBasic("Q<br>two", "A", []string{"go"}, nil)
	require.NoError(t, err)
	m, err := card.NewMCQ("Pick", []card.Option{{Text: "x"}, {Text: "y", Correct: true}}, "", nil, nil)
	require.NoError(t, err)

	out := RenderCards([]card.Card{b, m, b}, 2, true)
	assert.Contains(t, out, "1. Q two")
	assert.Contains(t, out, "✓ B. y")
	assert.Contains(t, out, "… 1 more")
}
