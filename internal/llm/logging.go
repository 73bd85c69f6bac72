package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/houhuawei23/ai-anki-cards/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an
// event and a structured log line.
type LoggingProvider struct {
	inner     Provider
	backend   string
	eventRepo store.EventRepo
	log       *zap.Logger
}

// WithLogging wraps a Provider with event logging. repo may be nil.
func WithLogging(p Provider, backend string, repo store.EventRepo, log *zap.Logger) Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingProvider{inner: p, backend: backend, eventRepo: repo, log: log}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := l.inner.Generate(ctx, req)

	data := l.eventData(ctx, req, start, err)
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.CacheHitTokens = resp.Usage.CacheHitTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = resp.Content
	}
	var mte *ErrMaxTokensExceeded
	if errors.As(err, &mte) {
		data.InputTokens = mte.Usage.InputTokens
		data.OutputTokens = mte.Usage.OutputTokens
		data.CacheHitTokens = mte.Usage.CacheHitTokens
		data.ResponseBody = mte.Content
	}
	l.record(ctx, data)

	return resp, err
}

func (l *LoggingProvider) Stream(ctx context.Context, req Request) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		start := time.Now()
		var (
			body    strings.Builder
			outTok  int
			lastErr error
		)
		defer func() {
			data := l.eventData(ctx, req, start, lastErr)
			data.Streamed = true
			data.OutputTokens = outTok
			data.ResponseBody = body.String()
			l.record(ctx, data)
		}()

		for chunk, err := range l.inner.Stream(ctx, req) {
			if err != nil {
				lastErr = err
			} else {
				body.WriteString(chunk.Text)
				outTok = chunk.Tokens
			}
			if !yield(chunk, err) {
				return
			}
		}
	}
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func (l *LoggingProvider) eventData(ctx context.Context, req Request, start time.Time, err error) store.LLMRequestEventData {
	data := store.LLMRequestEventData{
		RunID:       RunFrom(ctx),
		Provider:    l.backend,
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	return data
}

func (l *LoggingProvider) record(ctx context.Context, data store.LLMRequestEventData) {
	fields := []zap.Field{
		zap.String("provider", data.Provider),
		zap.String("model", data.Model),
		zap.String("purpose", data.Purpose),
		zap.Int("input_tokens", data.InputTokens),
		zap.Int("output_tokens", data.OutputTokens),
		zap.Int64("latency_ms", data.LatencyMs),
		zap.Bool("streamed", data.Streamed),
	}
	if data.Success {
		l.log.Debug("llm request", fields...)
	} else {
		l.log.Warn("llm request failed", append(fields, zap.String("error", data.ErrorMessage))...)
	}

	if l.eventRepo == nil {
		return
	}
	// Log the event but don't fail the request if logging fails.
	if err := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); err != nil {
		l.log.Warn("failed to record LLM request event", zap.Error(err))
	}
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "[params] max_tokens=%d temperature=%.2f top_p=%.2f json=%t\n",
		req.MaxTokens, req.Temperature, req.TopP, req.JSON)

	return b.String()
}
