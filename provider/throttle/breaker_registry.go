package throttle

import (
	"sync"

	"github.com/clarioclaims/engine/internal/resilience/circuitbreaker"
)

// breakerRegistry owns one circuit breaker per (provider, endpoint_class)
// key, lazily created, so no caller ever touches breaker state directly.
type breakerRegistry struct {
	mu       sync.Mutex
	cfg      circuitbreaker.Config
	breakers map[string]*circuitbreaker.CircuitBreaker
}

func newBreakerRegistry(cfg circuitbreaker.Config) *breakerRegistry {
	return &breakerRegistry{cfg: cfg, breakers: make(map[string]*circuitbreaker.CircuitBreaker)}
}

func (r *breakerRegistry) get(key string) *circuitbreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = circuitbreaker.New(r.cfg)
		r.breakers[key] = b
	}
	return b
}
