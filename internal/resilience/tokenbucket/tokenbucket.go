// Package tokenbucket wraps golang.org/x/time/rate into a per-key registry,
// one bucket per (provider, endpoint_class), the way §4.1 and §5 require:
// mutated concurrently but serialized behind a single owner, never touched
// directly by callers.
package tokenbucket

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limits configures the refill rate (tokens/sec) and burst for one key.
type Limits struct {
	RefillPerSecond float64
	Burst           int
}

// Registry owns one rate.Limiter per key, created lazily from Limits
// supplied at registration time (or a fallback default).
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	fallback Limits
}

// NewRegistry builds a registry with the given fallback limits, used for any
// key that was never explicitly configured via Configure.
func NewRegistry(fallback Limits) *Registry {
	if fallback.RefillPerSecond <= 0 {
		fallback.RefillPerSecond = 5
	}
	if fallback.Burst <= 0 {
		fallback.Burst = 5
	}
	return &Registry{
		limiters: make(map[string]*rate.Limiter),
		fallback: fallback,
	}
}

// Configure sets explicit limits for key, used for per-provider tuning.
func (r *Registry) Configure(key string, limits Limits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[key] = rate.NewLimiter(rate.Limit(limits.RefillPerSecond), limits.Burst)
}

func (r *Registry) limiterFor(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.fallback.RefillPerSecond), r.fallback.Burst)
		r.limiters[key] = l
	}
	return l
}

// Wait blocks cooperatively until a token for key is available or ctx is
// done, matching §4.1's "blocks cooperatively up to budgetMs" contract (the
// caller is expected to derive ctx with the call's budgetMs deadline).
func (r *Registry) Wait(ctx context.Context, key string) error {
	return r.limiterFor(key).Wait(ctx)
}

// Allow reports whether a token is immediately available for key, without
// blocking or consuming budget on a wait.
func (r *Registry) Allow(key string) bool {
	return r.limiterFor(key).Allow()
}
