package llm

import (
	"context"
	"iter"

	"golang.org/x/time/rate"
)

// RateLimitProvider is a decorator that spaces out calls with a token
// bucket shared by every goroutine using it.
type RateLimitProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p so that at most rps calls start per second, with
// bursts of up to burst calls. rps <= 0 returns p unchanged.
func WithRateLimit(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitProvider{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimitProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Generate(ctx, req)
}

func (r *RateLimitProvider) Stream(ctx context.Context, req Request) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		if err := r.limiter.Wait(ctx); err != nil {
			yield(StreamChunk{}, err)
			return
		}
		for chunk, err := range r.inner.Stream(ctx, req) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

func (r *RateLimitProvider) ModelID() string {
	return r.inner.ModelID()
}
