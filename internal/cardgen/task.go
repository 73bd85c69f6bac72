package cardgen

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/llm"
)

// chunkTask is one model call: a chunk of content, its rendered prompt and
// the number of cards it should yield.
type chunkTask struct {
	index     int
	total     int
	content   string
	prompt    string
	quota     int
	maxTokens int
}

type taskResult struct {
	cards []card.Card
	stats Stats
}

// runTask performs one chunk task. It never returns an error: failures are
// logged, reported and counted in the stats.
func (g *Generator) runTask(ctx context.Context, req Request, t chunkTask) taskResult {
	ctx, span := g.tracer.Start(ctx, "cardgen.chunk", trace.WithAttributes(
		attribute.Int("chunk.index", t.index+1),
		attribute.Int("chunk.quota", t.quota),
	))
	defer span.End()

	log := g.log.With(zap.Int("chunk", t.index+1), zap.Int("of", t.total))
	g.progress.Start(t.index, t.total, t.quota)

	start := time.Now()
	res := taskResult{stats: Stats{Chunks: 1, Prompts: []string{t.prompt}}}

	llmReq := g.config.Sampling.BaseRequest(t.prompt)
	llmReq.JSON = true
	if t.maxTokens > 0 {
		llmReq.MaxTokens = t.maxTokens
	}

	text, usage, err := g.call(ctx, t.index, llmReq, log)
	res.stats.Duration = time.Since(start)
	if err != nil {
		res.stats.FailedChunks = 1
		log.Error("chunk request failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.progress.Done(t.index, 0, err)
		return res
	}

	est := g.Profile().Estimator()
	if usage.InputTokens == 0 {
		usage.InputTokens = est.Estimate(t.prompt)
	}
	if usage.OutputTokens == 0 {
		usage.OutputTokens = est.Estimate(text)
	}
	res.stats.InputTokens = usage.InputTokens
	res.stats.OutputTokens = usage.OutputTokens
	res.stats.CacheHitTokens = usage.CacheHitTokens
	res.stats.Responses = []string{text}

	res.cards = g.cardsFrom(text, req, t.quota, log)
	span.SetAttributes(attribute.Int("chunk.cards", len(res.cards)))
	log.Debug("chunk finished",
		zap.Int("cards", len(res.cards)),
		zap.Int("quota", t.quota),
		zap.Duration("duration", res.stats.Duration),
	)
	g.progress.Done(t.index, len(res.cards), nil)
	return res
}

// call streams the response when streaming is on. A stream that fails or
// yields nothing is replaced by a plain request.
func (g *Generator) call(ctx context.Context, index int, req llm.Request, log *zap.Logger) (string, llm.Usage, error) {
	if g.config.Stream {
		var (
			b         strings.Builder
			outTokens int
			streamErr error
		)
		for chunk, err := range g.provider.Stream(ctx, req) {
			if err != nil {
				streamErr = err
				break
			}
			b.WriteString(chunk.Text)
			outTokens = chunk.Tokens
			g.progress.Update(index, outTokens)
		}
		switch {
		case streamErr == nil && strings.TrimSpace(b.String()) != "":
			return b.String(), llm.Usage{OutputTokens: outTokens}, nil
		case streamErr != nil && (errors.Is(streamErr, context.Canceled) || ctx.Err() != nil):
			return "", llm.Usage{}, streamErr
		case streamErr != nil:
			log.Warn("stream failed, retrying without streaming", zap.Error(streamErr))
		default:
			log.Warn("stream returned no content, retrying without streaming")
		}
	}

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		var mte *llm.ErrMaxTokensExceeded
		if errors.As(err, &mte) && mte.Content != "" {
			log.Warn("response truncated at max tokens, parsing partial output",
				zap.Int("max_tokens", req.MaxTokens))
			g.progress.Update(index, mte.Usage.OutputTokens)
			return mte.Content, mte.Usage, nil
		}
		return "", llm.Usage{}, err
	}
	g.progress.Update(index, resp.Usage.OutputTokens)
	return resp.Content, resp.Usage, nil
}

// cardsFrom turns a response into at most quota cards.
func (g *Generator) cardsFrom(text string, req Request, quota int, log *zap.Logger) []card.Card {
	recs, err := parseRecords(text)
	if err != nil {
		log.Warn("could not parse response", zap.Error(err), zap.String("response", truncate(text, 200)))
		return nil
	}

	cards := make([]card.Card, 0, len(recs))
	for i, rec := range recs {
		c, err := Assemble(rec, req.CardType)
		if err != nil {
			log.Warn("skipping card", zap.Int("record", i), zap.Error(err))
			continue
		}
		cards = append(cards, NormalizeTags(c, req.RequiredTags, req.OptionalTags))
	}

	cards = Filter(cards, g.config.Validators, log)
	if g.config.Dedup {
		cards = Dedup(cards)
	}
	if len(cards) > quota {
		cards = cards[:quota]
	}
	return cards
}
