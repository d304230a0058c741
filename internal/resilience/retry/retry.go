// Package retry implements the jittered exponential backoff used by the
// throttled client and the sync orchestrator's job-level retry, grounded on
// the teacher's resilience.Retry.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/clarioclaims/engine/internal/platformerr"
)

// Config controls attempt count and backoff shape.
type Config struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	Multiplier    float64
	MaxDelay      time.Duration
	JitterFrac    float64 // +/- fraction applied to each delay
	RetryAfter    time.Duration // not read by Do; per-attempt Retry-After delays come from Do's retryAfter callback
}

// DefaultConfig matches §4.1: base 2s, multiplier 2, jitter +/-25%, ceiling 30s, 3 attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
		JitterFrac:  0.25,
	}
}

// Classifier decides whether an error returned by fn should be retried.
type Classifier func(error) bool

// DefaultClassifier retries platformerr.RateLimited and platformerr.Transient.
func DefaultClassifier(err error) bool {
	return platformerr.IsRetryable(err)
}

// Do executes fn up to cfg.MaxAttempts times, sleeping between attempts with
// jittered exponential backoff, honoring ctx cancellation at every boundary.
// retryAfter, when non-nil, is consulted after each failed attempt: if it
// returns a positive duration that value is used verbatim for the next
// sleep (§4.1's Retry-After handling), overriding the computed backoff.
func Do(ctx context.Context, cfg Config, classify Classifier, retryAfter func(error) time.Duration, fn func(attempt int) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if classify == nil {
		classify = DefaultClassifier
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !classify(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := jitter(delay, cfg.JitterFrac)
		if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}
		if retryAfter != nil {
			if ra := retryAfter(err); ra > 0 {
				wait = ra
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	// Exhaustion keeps the last error's kind: three 429s must surface as
	// RateLimited so the owning task fails without aborting the whole job.
	return &platformerr.Error{
		Op:   "retry.Do",
		Kind: platformerr.KindOf(lastErr),
		Err:  fmt.Errorf("%w: last error: %w", platformerr.ErrMaxRetries, lastErr),
	}
}

// jitter applies a uniform +/- frac jitter to d.
func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	delta := float64(d) * frac
	offset := (rand.Float64()*2 - 1) * delta
	return time.Duration(float64(d) + offset)
}
