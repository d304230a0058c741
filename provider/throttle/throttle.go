// Package throttle implements the Throttled Client (§4.1): the single
// mediator every external call from a provider adapter passes through, so
// rate limiting, retry-with-backoff, 401 refresh-once, and attempt
// telemetry are applied uniformly regardless of which provider is calling.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clarioclaims/engine/internal/platformerr"
	"github.com/clarioclaims/engine/internal/platformlog"
	"github.com/clarioclaims/engine/internal/resilience/circuitbreaker"
	"github.com/clarioclaims/engine/internal/resilience/retry"
	"github.com/clarioclaims/engine/internal/resilience/tokenbucket"
)

var tracer = otel.Tracer("github.com/clarioclaims/engine/provider/throttle")

// Response is the minimal shape every call result needs to expose for the
// client's retry/401 decisions: an HTTP-shaped status plus a carrier for the
// caller's actual decoded payload (left untyped here since it's generic over
// every provider operation).
type Response struct {
	Status     int
	RetryAfter time.Duration // parsed from a Retry-After header, if present
	Payload    interface{}
	Err        error // transport-level error (connection reset, timeout, DNS...), nil on a completed HTTP round trip
}

// Op is one external call. It must itself respect ctx cancellation/deadline;
// the client does not kill a goroutine mid-flight, matching §5's "an
// in-flight external call is allowed to complete or time out per its
// budget".
type Op func(ctx context.Context) (Response, error)

// RefreshFunc exchanges stale credentials for fresh ones on a single 401.
type RefreshFunc func(ctx context.Context) error

// AttemptEvent is the structured per-attempt observability record §4.1
// requires.
type AttemptEvent struct {
	Provider      string
	EndpointClass string
	Status        int
	Latency       time.Duration
	Attempt       int
	Retryable     bool
}

// Config tunes one Client.
type Config struct {
	RetryConfig    retry.Config
	DefaultBudget  time.Duration // 30s for metadata calls
	ParsingBudget  time.Duration // 90s for ML/parsing calls
	Bucket         tokenbucket.Limits
	CircuitBreaker circuitbreaker.Config
	Logger         platformlog.Logger
	OnAttempt      func(AttemptEvent)
}

func DefaultConfig() Config {
	return Config{
		RetryConfig:    retry.DefaultConfig(),
		DefaultBudget:  30 * time.Second,
		ParsingBudget:  90 * time.Second,
		Bucket:         tokenbucket.Limits{RefillPerSecond: 5, Burst: 5},
		CircuitBreaker: circuitbreaker.DefaultConfig(),
		Logger:         platformlog.Noop(),
	}
}

// Client mediates every external call. One Client instance is shared across
// all provider adapters; it owns its own token-bucket registry and a
// per-(provider, endpoint_class) circuit breaker map so state is never
// touched directly by callers (§9 "class-based services with shared mutable
// fields must be re-architected as owner tasks").
type Client struct {
	cfg      Config
	buckets  *tokenbucket.Registry
	breakers *breakerRegistry
}

func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = platformlog.Noop()
	}
	if cfg.DefaultBudget <= 0 {
		cfg.DefaultBudget = 30 * time.Second
	}
	if cfg.ParsingBudget <= 0 {
		cfg.ParsingBudget = 90 * time.Second
	}
	return &Client{
		cfg:      cfg,
		buckets:  tokenbucket.NewRegistry(cfg.Bucket),
		breakers: newBreakerRegistry(cfg.CircuitBreaker),
	}
}

// ConfigureProvider sets explicit token-bucket limits for a
// (provider, endpoint_class) key, used to tune per-provider burst/refill.
func (c *Client) ConfigureProvider(provider, endpointClass string, limits tokenbucket.Limits) {
	c.buckets.Configure(bucketKey(provider, endpointClass), limits)
}

// Execute mediates a single call: token bucket wait, retry with jittered
// backoff on retryable statuses/errors, a single 401-refresh-then-retry,
// and a per-attempt span + OnAttempt callback. budgetMs is the wall-clock
// deadline for the entire call (all attempts combined).
func (c *Client) Execute(ctx context.Context, provider, endpointClass string, budgetMs int64, refresh RefreshFunc, op Op) (Response, error) {
	budget := time.Duration(budgetMs) * time.Millisecond
	if budget <= 0 {
		budget = c.cfg.DefaultBudget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	key := bucketKey(provider, endpointClass)
	breaker := c.breakers.get(key)

	refreshedOnce := false
	var finalResp Response

	err := retry.Do(ctx, c.cfg.RetryConfig, func(err error) bool {
		return platformerr.IsRetryable(err)
	}, func(err error) time.Duration {
		var te *platformerr.Error
		if errors.As(err, &te) {
			if ra, ok := te.Context["retry_after"].(time.Duration); ok {
				return ra
			}
		}
		return 0
	}, func(attempt int) error {
		if !breaker.Allow() {
			return platformerr.New("throttle.Execute", platformerr.Transient, "circuit open for "+key)
		}
		if err := c.buckets.Wait(ctx, key); err != nil {
			return platformerr.Wrap("throttle.Execute", platformerr.Transient, err)
		}

		attemptCtx, span := tracer.Start(ctx, "throttle.attempt",
			trace.WithAttributes(
				attribute.String("provider", provider),
				attribute.String("endpoint_class", endpointClass),
				attribute.Int("attempt", attempt),
			))
		start := time.Now()
		resp, callErr := op(attemptCtx)
		latency := time.Since(start)
		span.SetAttributes(attribute.Int("status", resp.Status), attribute.Int64("latency_ms", latency.Milliseconds()))

		classified := classify(resp, callErr)
		retryable := platformerr.IsRetryable(classified)

		if classified != nil {
			span.SetStatus(codes.Error, classified.Error())
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
		span.End()

		if c.cfg.OnAttempt != nil {
			c.cfg.OnAttempt(AttemptEvent{
				Provider: provider, EndpointClass: endpointClass,
				Status: resp.Status, Latency: latency, Attempt: attempt, Retryable: retryable,
			})
		}
		c.cfg.Logger.Info("throttle attempt", map[string]interface{}{
			"provider": provider, "endpoint_class": endpointClass, "status": resp.Status,
			"latency_ms": latency.Milliseconds(), "attempt": attempt, "retryable": retryable,
		})

		if classified != nil && platformerr.KindOf(classified) == platformerr.Auth && !refreshedOnce && refresh != nil {
			refreshedOnce = true
			if rerr := refresh(ctx); rerr != nil {
				return platformerr.Wrap("throttle.Execute", platformerr.Auth, platformerr.ErrAuthExhausted)
			}
			// One more attempt is granted by returning a retryable error;
			// the retry loop's classifier only retries RateLimited/Transient,
			// so surface this specific case as Transient to get exactly one
			// more try, then Auth definitively on a second failure.
			return platformerr.New("throttle.Execute", platformerr.Transient, "retrying after credential refresh")
		}

		if classified == nil {
			finalResp = resp
			return nil
		}
		if te, ok := classified.(*platformerr.Error); ok && resp.RetryAfter > 0 {
			finalResp = resp
			return te.WithContext(map[string]interface{}{"retry_after": resp.RetryAfter})
		}
		finalResp = resp
		return classified
	})

	if err != nil {
		return finalResp, err
	}
	return finalResp, nil
}

// classify turns a raw Response/transport error into a *platformerr.Error,
// or nil when the call succeeded. Mirrors §4.1's retry policy: 408/429/
// 502/503/504 or transport errors {reset, timeout, refused, DNS} are
// retryable; everything else surfaces immediately.
func classify(resp Response, err error) error {
	if err != nil {
		// An adapter that already classified its own failure keeps its kind;
		// re-wrapping a RateLimited as Fatal would defeat the retry policy.
		var pe *platformerr.Error
		if errors.As(err, &pe) {
			return err
		}
		if isTransportRetryable(err) {
			return platformerr.Wrap("throttle.classify", platformerr.Transient, err)
		}
		return platformerr.Wrap("throttle.classify", platformerr.Fatal, err)
	}

	switch resp.Status {
	case 0, 200, 201, 202, 204:
		return nil
	case 401:
		return platformerr.New("throttle.classify", platformerr.Auth, "401 unauthorized")
	case 404:
		return platformerr.New("throttle.classify", platformerr.NotFound, "404 not found")
	case 408, 429:
		return platformerr.New("throttle.classify", platformerr.RateLimited, fmt.Sprintf("status %d", resp.Status))
	case 502, 503, 504:
		return platformerr.New("throttle.classify", platformerr.Transient, fmt.Sprintf("status %d", resp.Status))
	case 400, 422:
		return platformerr.New("throttle.classify", platformerr.Validation, fmt.Sprintf("status %d", resp.Status))
	default:
		if resp.Status >= 200 && resp.Status < 300 {
			return nil
		}
		return platformerr.New("throttle.classify", platformerr.Fatal, fmt.Sprintf("status %d", resp.Status))
	}
}

func isTransportRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, http.ErrHandlerTimeout) {
		return true
	}
	return false
}

// ParseRetryAfter converts an HTTP Retry-After header value (seconds, per
// §4.1) into a duration. Non-numeric values return 0.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func bucketKey(provider, endpointClass string) string {
	return provider + "|" + endpointClass
}
