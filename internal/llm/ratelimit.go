package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to the wrapped provider. Callers block until a
// token is free or their context ends.
type RateLimited struct {
	inner Provider
	lim   *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with a burst of the same size.
func NewRateLimited(inner Provider, perMinute int) *RateLimited {
	return &RateLimited{
		inner: inner,
		lim:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (r *RateLimited) Complete(ctx context.Context, req *Request) (string, error) {
	if err := r.lim.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.inner.Complete(ctx, req)
}

func (r *RateLimited) Name() string {
	return r.inner.Name()
}
