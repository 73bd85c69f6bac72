package cardgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/houhuawei23/ai-anki-cards/internal/cache"
	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/llm"
	"github.com/houhuawei23/ai-anki-cards/internal/modelinfo"
	"github.com/houhuawei23/ai-anki-cards/internal/planner"
)

const (
	// DefaultMaxCardsPerChunk caps the cards asked of one model call.
	DefaultMaxCardsPerChunk = 20

	// DefaultMaxConcurrency caps in-flight model calls.
	DefaultMaxConcurrency = 5

	cacheNamespace = "cards"
	tracerName     = "github.com/houhuawei23/ai-anki-cards/internal/cardgen"
)

// Config controls the behavior of the Generator.
type Config struct {
	// Sampling supplies temperature, top_p and penalties for every call.
	Sampling llm.Config

	// Model selects the resource profile. Empty uses the provider's model.
	Model   string
	Catalog *modelinfo.Catalog

	// Validators run on every card when non-empty.
	Validators []Validator

	// Dedup removes repeated fronts within each chunk and across the batch.
	Dedup bool

	// Stream prefers streaming calls, falling back to Generate on failure.
	Stream bool

	// Cache may be nil.
	Cache cache.Store

	Progress Reporter
	Logger   *zap.Logger
	Tracer   trace.Tracer
}

// DefaultConfig returns a Config with the standard validator chain and
// deduplication on.
func DefaultConfig() Config {
	return Config{
		Sampling:   llm.DefaultConfig(),
		Validators: DefaultValidators(false),
		Dedup:      true,
		Stream:     true,
	}
}

// Generator runs generation jobs against one provider. It is safe for
// concurrent use.
type Generator struct {
	provider llm.Provider
	renderer Renderer
	config   Config
	log      *zap.Logger
	tracer   trace.Tracer
	progress Reporter
}

// New creates a Generator.
func New(provider llm.Provider, renderer Renderer, cfg Config) *Generator {
	g := &Generator{
		provider: provider,
		renderer: renderer,
		config:   cfg,
		log:      cfg.Logger,
		tracer:   cfg.Tracer,
		progress: cfg.Progress,
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer(tracerName)
	}
	if g.progress == nil {
		g.progress = nopReporter{}
	}
	return g
}

// Profile returns the resource profile used to plan requests.
func (g *Generator) Profile() modelinfo.Profile {
	model := g.config.Model
	if model == "" {
		model = g.provider.ModelID()
	}
	if g.config.Catalog != nil {
		if p, ok := g.config.Catalog.Lookup(model); ok {
			return p
		}
	}
	p := modelinfo.DefaultProfile()
	p.Name = model
	return p
}

// Fingerprint identifies a request for caching: card type, requested count
// and the first 100 characters of the content.
func Fingerprint(req Request) string {
	head := []rune(req.Content)
	if len(head) > 100 {
		head = head[:100]
	}
	return fmt.Sprintf("%s:%d:%s", req.CardType, req.Count, string(head))
}

// cacheEntry is the cached form of a result.
type cacheEntry struct {
	Cards []card.Card `json:"cards"`
	Stats Stats       `json:"stats"`
}

// Generate runs the whole pipeline for req. Producing no cards is not an
// error; the returned stats still carry whatever responses came back.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	req, err := normalize(req)
	if err != nil {
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, "cardgen.Generate", trace.WithAttributes(
		attribute.String("card.type", string(req.CardType)),
		attribute.Int("card.count", req.Count),
		attribute.String("llm.model", g.provider.ModelID()),
	))
	defer span.End()

	if llm.RunFrom(ctx) == "" {
		ctx = llm.WithRun(ctx, uuid.NewString())
	}
	ctx = llm.WithPurpose(ctx, "card-gen")

	key := cache.Key(cacheNamespace, Fingerprint(req))
	if res, ok := g.fromCache(ctx, key); ok {
		res.Elapsed = time.Since(start)
		span.SetAttributes(attribute.Bool("cache.hit", true), attribute.Int("cards.produced", len(res.Cards)))
		return res, nil
	}

	target := req.Target()
	plan := planner.New(target, req.CardType, g.Profile(), req.MaxCardsPerChunk)
	span.SetAttributes(
		attribute.Int("plan.target", target),
		attribute.Int("plan.chunks", plan.NumChunks),
		attribute.Int("plan.cards_per_chunk", plan.CardsPerChunk),
	)
	g.log.Info("generation planned",
		zap.String("card_type", string(req.CardType)),
		zap.Int("target", target),
		zap.Int("chunks", plan.NumChunks),
		zap.Int("cards_per_chunk", plan.CardsPerChunk),
		zap.Int("max_tokens", plan.MaxTokensPerRequest),
	)

	tasks, err := g.buildTasks(req, target, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := g.dispatch(ctx, req, tasks)

	var (
		cards []card.Card
		stats Stats
	)
	for _, r := range results {
		cards = append(cards, r.cards...)
		stats.Merge(r.stats)
	}
	if len(cards) > target {
		cards = cards[:target]
	}
	if g.config.Dedup {
		cards = Dedup(cards)
	}

	res := &Result{Cards: cards, Stats: stats, Plan: plan, Target: target, Elapsed: time.Since(start)}
	span.SetAttributes(
		attribute.Int("cards.produced", len(cards)),
		attribute.Int("tokens.input", stats.InputTokens),
		attribute.Int("tokens.output", stats.OutputTokens),
		attribute.Int("chunks.failed", stats.FailedChunks),
	)

	if len(cards) == 0 {
		g.log.Warn("no cards produced",
			zap.Int("chunks", len(tasks)),
			zap.Int("failed_chunks", stats.FailedChunks),
			zap.Int("responses", len(stats.Responses)),
		)
	} else {
		g.log.Info("generation finished",
			zap.Int("cards", len(cards)),
			zap.Int("target", target),
			zap.Int("input_tokens", stats.InputTokens),
			zap.Int("output_tokens", stats.OutputTokens),
			zap.Duration("elapsed", res.Elapsed),
		)
	}

	// A run where no request got an answer is left uncached so it can be
	// retried.
	if stats.FailedChunks < stats.Chunks {
		g.toCache(ctx, key, res)
	}
	return res, nil
}

// normalize rejects unusable requests and fills in defaults.
func normalize(req Request) (Request, error) {
	if !req.CardType.Valid() {
		return req, fmt.Errorf("%w: %q", ErrInvalidCardType, req.CardType)
	}
	if strings.TrimSpace(req.Content) == "" {
		return req, ErrEmptyContent
	}
	if req.MaxCardsPerChunk <= 0 {
		req.MaxCardsPerChunk = DefaultMaxCardsPerChunk
	}
	if req.MaxConcurrency <= 0 {
		req.MaxConcurrency = DefaultMaxConcurrency
	}
	if req.Difficulty == "" {
		req.Difficulty = DifficultyMedium
	}
	return req, nil
}

// buildTasks chunks the content and renders every prompt up front so
// template errors surface before any model call.
func (g *Generator) buildTasks(req Request, target int, plan planner.Plan) ([]chunkTask, error) {
	chunks := []string{req.Content}
	if plan.NumChunks > 1 {
		chunks = planner.Chunk(req.Content, target, plan.CardsPerChunk)
	}
	quotas := planner.QuotasFor(len(chunks), plan.CardsPerChunk, target)
	if len(chunks) == 1 {
		quotas = []int{min(target, plan.CardsPerChunk)}
	}

	var tasks []chunkTask
	for i, content := range chunks {
		if quotas[i] <= 0 {
			continue
		}
		prompt, err := g.renderer.Render(req.CardType, content, quotas[i], req.Difficulty,
			req.CustomPrompt, req.RequiredTags, req.OptionalTags)
		if err != nil {
			return nil, fmt.Errorf("render prompt for chunk %d: %w", i+1, err)
		}
		tasks = append(tasks, chunkTask{
			index:     len(tasks),
			content:   content,
			prompt:    prompt,
			quota:     quotas[i],
			maxTokens: plan.MaxTokensPerRequest,
		})
	}
	for i := range tasks {
		tasks[i].total = len(tasks)
	}
	return tasks, nil
}

// dispatch runs the tasks under the concurrency cap. A failed task leaves
// its slot with zero cards; siblings keep running.
func (g *Generator) dispatch(ctx context.Context, req Request, tasks []chunkTask) []taskResult {
	results := make([]taskResult, len(tasks))
	if len(tasks) == 1 {
		results[0] = g.runTask(ctx, req, tasks[0])
		return results
	}

	var eg errgroup.Group
	eg.SetLimit(req.MaxConcurrency)
	for i, t := range tasks {
		eg.Go(func() error {
			results[i] = g.runTask(ctx, req, t)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (g *Generator) fromCache(ctx context.Context, key string) (*Result, bool) {
	if g.config.Cache == nil {
		return nil, false
	}
	raw, ok, err := g.config.Cache.Get(ctx, key)
	if err != nil {
		g.log.Warn("cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry cacheEntry
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		// Older entries hold only the card list.
		err = json.Unmarshal(raw, &entry.Cards)
	} else {
		err = json.Unmarshal(raw, &entry)
	}
	if err != nil {
		g.log.Warn("ignoring unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	g.log.Info("loaded cards from cache", zap.Int("cards", len(entry.Cards)))
	return &Result{Cards: entry.Cards, Stats: entry.Stats, Target: len(entry.Cards), FromCache: true}, true
}

func (g *Generator) toCache(ctx context.Context, key string, res *Result) {
	if g.config.Cache == nil {
		return
	}
	raw, err := json.Marshal(cacheEntry{Cards: res.Cards, Stats: res.Stats.Compact()})
	if err != nil {
		g.log.Warn("encode cache entry", zap.Error(err))
		return
	}
	if err := g.config.Cache.Set(ctx, key, raw); err != nil {
		g.log.Warn("cache write failed", zap.Error(err))
	}
}
