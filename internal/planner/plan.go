// Package planner decides how a card-generation job is split into model
// requests and cuts source text into the matching chunks.
package planner

import (
	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/modelinfo"
)

// MaxRequestBudget caps the output tokens requested per call regardless
// of what the model allows.
const MaxRequestBudget = 4000

// Plan is the chunking decision for one generation job.
type Plan struct {
	NumChunks           int
	CardsPerChunk       int
	MaxTokensPerRequest int
}

// Capacity is the number of cards the plan can produce.
func (p Plan) Capacity() int {
	return p.NumChunks * p.CardsPerChunk
}

// New computes a Plan for target cards of type t on the given model.
// maxCardsPerChunk <= 0 disables the single-request shortcut.
func New(target int, t card.Type, profile modelinfo.Profile, maxCardsPerChunk int) Plan {
	if target <= 0 {
		target = 1
	}
	budget := RequestBudget(profile)

	if maxCardsPerChunk > 0 && target <= maxCardsPerChunk {
		return Plan{NumChunks: 1, CardsPerChunk: target, MaxTokensPerRequest: budget}
	}

	total := target * profile.AvgTokensPerCard(t)
	numChunks := max(1, ceilDiv(total, budget))
	return Plan{
		NumChunks:           numChunks,
		CardsPerChunk:       ceilDiv(target, numChunks),
		MaxTokensPerRequest: budget,
	}
}

// RequestBudget is the output-token budget for a single request.
func RequestBudget(profile modelinfo.Profile) int {
	budget := min(profile.MaxOutput.Default, profile.MaxOutput.Maximum)
	if budget <= 0 {
		budget = MaxRequestBudget
	}
	return min(budget, MaxRequestBudget)
}

// Quotas splits target across the plan's chunks. Every chunk gets
// CardsPerChunk except the last, which gets the remainder clamped to
// [0, CardsPerChunk].
func (p Plan) Quotas(target int) []int {
	if p.NumChunks <= 1 {
		return []int{min(target, p.CardsPerChunk)}
	}
	return QuotasFor(p.NumChunks, p.CardsPerChunk, target)
}

// QuotasFor splits target across n chunks of up to perChunk cards.
func QuotasFor(n, perChunk, target int) []int {
	out := make([]int, n)
	for i := range n {
		if i < n-1 {
			out[i] = perChunk
			continue
		}
		rem := target - (n-1)*perChunk
		out[i] = min(max(rem, 0), perChunk)
	}
	return out
}

// Estimate is a rough resource forecast for a job.
type Estimate struct {
	Target        int
	Plan          Plan
	OutputTokens  int
	InputTokens   int
	Seconds       float64
	ParallelSecs  float64
	CostUSD       float64
	CostAvailable bool
}

// EstimateJob forecasts tokens, time and cost for target cards produced
// from content of inputTokens tokens at the given concurrency.
func EstimateJob(target int, t card.Type, profile modelinfo.Profile, maxCardsPerChunk, inputTokens, concurrency int) Estimate {
	p := New(target, t, profile, maxCardsPerChunk)
	out := target * profile.AvgTokensPerCard(t)
	secs := float64(target) * profile.AvgTimePerCard(t)

	waves := p.NumChunks
	if concurrency > 0 {
		waves = ceilDiv(p.NumChunks, concurrency)
	}
	e := Estimate{
		Target:       target,
		Plan:         p,
		OutputTokens: out,
		InputTokens:  inputTokens,
		Seconds:      secs,
		ParallelSecs: secs / float64(p.NumChunks) * float64(waves),
	}
	if !profile.Pricing.IsZero() {
		e.CostUSD = profile.Pricing.Cost(inputTokens, 0, out)
		e.CostAvailable = true
	}
	return e
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
