package runnable

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited decorates a unit with a token-bucket limiter. Every Invoke
// (and therefore every Batch fan-out arm) waits for a token before
// delegating; waits honor context cancellation.
type RateLimited struct {
	inner   Runnable
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with the given limiter.
func NewRateLimited(inner Runnable, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{inner: inner, limiter: limiter}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

func (r *RateLimited) Invoke(ctx context.Context, input any, opts ...Option) (any, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Invoke(ctx, input, opts...)
}

func (r *RateLimited) Batch(ctx context.Context, inputs []any, opts ...Option) ([]any, error) {
	return BatchInvoke(ctx, r, inputs, opts)
}

func (r *RateLimited) Stream(ctx context.Context, input any, opts ...Option) (*StreamReader, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Stream(ctx, input, opts...)
}

func (r *RateLimited) Pipe(next Runnable) Runnable {
	return NewSequence(r, next)
}
