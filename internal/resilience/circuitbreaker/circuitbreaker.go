// Package circuitbreaker is a trimmed version of the teacher's sliding
// window circuit breaker: enough state (closed/open/half-open, a
// consecutive-failure threshold, a count of half-open successes needed to
// close) for the throttled client to stop hammering a provider that is
// down, without the full metrics/listener surface the teacher's agent
// framework needs. There is no rolling failure-ratio window, and HalfOpen
// admits every call rather than a single probe.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/clarioclaims/engine/internal/platformerr"
)

// State is the circuit breaker's current disposition.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Config controls the window and thresholds.
type Config struct {
	FailureThreshold int           // consecutive failures to trip from Closed
	OpenDuration     time.Duration // how long to stay Open before probing
	HalfOpenProbes   int           // successes required in HalfOpen to close
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		OpenDuration:      30 * time.Second,
		HalfOpenProbes:    1,
	}
}

// CircuitBreaker gates calls to a single (provider, endpoint_class) pair.
// Safe for concurrent use; all mutable state lives behind one mutex, so the
// breaker is effectively its own owner task rather than shared mutable
// fields touched directly by callers.
type CircuitBreaker struct {
	cfg Config

	mu              sync.Mutex
	state           State
	consecutiveFail int
	halfOpenOK      int
	openedAt        time.Time
}

func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	return &CircuitBreaker{cfg: cfg, state: Closed}
}

// Allow reports whether a call may proceed, transitioning Open -> HalfOpen
// once the open duration has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return true
	case Open:
		if time.Since(cb.openedAt) >= cb.cfg.OpenDuration {
			cb.state = HalfOpen
			cb.halfOpenOK = 0
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		return true
	}
}

// RecordSuccess reports a successful call outcome.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case HalfOpen:
		cb.halfOpenOK++
		if cb.halfOpenOK >= cb.cfg.HalfOpenProbes {
			cb.state = Closed
			cb.consecutiveFail = 0
		}
	default:
		cb.consecutiveFail = 0
	}
}

// RecordFailure reports a failed call outcome, tripping the breaker when the
// consecutive failure threshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == HalfOpen {
		cb.state = Open
		cb.openedAt = time.Now()
		return
	}

	cb.consecutiveFail++
	if cb.consecutiveFail >= cb.cfg.FailureThreshold {
		cb.state = Open
		cb.openedAt = time.Now()
	}
}

// State returns the current breaker state, for diagnostics/tests.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn if the breaker allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return platformerr.Wrap("circuitbreaker.Execute", platformerr.Transient, platformerr.ErrCircuitOpen)
	}
	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}
