package cardgen

import (
	"github.com/houhuawei23/ai-anki-cards/internal/llm"
	"github.com/houhuawei23/ai-anki-cards/internal/modelinfo"
	"github.com/houhuawei23/ai-anki-cards/internal/planner"
)

// Preview is what a request would send, computed without calling the
// model.
type Preview struct {
	Target   int
	Plan     planner.Plan
	Prompts  []string
	Estimate planner.Estimate
}

// Preview plans req, renders every chunk prompt and forecasts tokens, time
// and cost. Input tokens are estimated from the rendered prompts.
func (g *Generator) Preview(req Request) (*Preview, error) {
	req, err := normalize(req)
	if err != nil {
		return nil, err
	}
	profile := g.Profile()
	target := req.Target()
	plan := planner.New(target, req.CardType, profile, req.MaxCardsPerChunk)
	tasks, err := g.buildTasks(req, target, plan)
	if err != nil {
		return nil, err
	}

	est := profile.Estimator()
	p := &Preview{Target: target, Plan: plan}
	input := 0
	for _, t := range tasks {
		p.Prompts = append(p.Prompts, t.prompt)
		input += est.Estimate(t.prompt)
	}
	p.Estimate = planner.EstimateJob(target, req.CardType, profile, req.MaxCardsPerChunk, input, req.MaxConcurrency)
	if !p.Estimate.CostAvailable {
		if c := llm.LookupCost(profile.Name); c != nil {
			p.Estimate.CostUSD = c.Cost(input, p.Estimate.OutputTokens)
			p.Estimate.CostAvailable = true
		}
	}
	return p, nil
}

// Cost prices s with the model's catalog pricing, falling back to the
// client pricing table. ok is false when neither knows the model.
func (g *Generator) Cost(s Stats) (usd float64, ok bool) {
	return StatsCost(g.Profile(), s)
}

// StatsCost prices s for profile.
func StatsCost(profile modelinfo.Profile, s Stats) (float64, bool) {
	if !profile.Pricing.IsZero() {
		return profile.Pricing.Cost(s.InputTokens, s.CacheHitTokens, s.OutputTokens), true
	}
	if c := llm.LookupCost(profile.Name); c != nil {
		return c.Cost(s.InputTokens, s.OutputTokens), true
	}
	return 0, false
}
