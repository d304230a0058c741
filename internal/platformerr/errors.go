// Package platformerr defines the error taxonomy shared by every component
// of the claims engine. Every fallible operation in this module returns one
// of these kinds (or wraps stdlib/driver errors behind one), so callers can
// branch on Kind instead of matching strings.
package platformerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way the pipeline needs to react to it.
type Kind string

const (
	Validation  Kind = "validation"
	Auth        Kind = "auth"
	RateLimited Kind = "rate_limited"
	Transient   Kind = "transient"
	NotFound    Kind = "not_found"
	Conflict    Kind = "conflict"
	Fatal       Kind = "fatal"
)

// Sentinel errors for errors.Is comparisons where no extra context is needed.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("idempotency key collision")
	ErrMaxRetries     = errors.New("maximum retry attempts exceeded")
	ErrAuthExhausted  = errors.New("credential refresh did not resolve authentication failure")
	ErrCircuitOpen    = errors.New("circuit breaker open")
	ErrBudgetExceeded = errors.New("call budget exceeded")
)

// Error is the structured error carried across package boundaries. Op names
// the failing operation (e.g. "throttle.Execute"), Context carries
// identifying fields (seller, report_type, provider...) for log correlation.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Context map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" {
		if e.Message != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error with the given op/kind and a plain message (no cause).
func New(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap attaches kind/op to an underlying cause, preserving the chain.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithContext returns a shallow copy of e with ctx merged into Context.
func (e *Error) WithContext(ctx map[string]interface{}) *Error {
	cp := *e
	cp.Context = make(map[string]interface{}, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	for k, v := range ctx {
		cp.Context[k] = v
	}
	return &cp
}

// KindOf extracts the Kind carried by err, defaulting to Fatal when err does
// not wrap an *Error (an unclassified error is treated as non-retryable).
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Fatal
}

// IsRetryable reports whether the throttled client or orchestrator should
// retry the operation that produced err.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case RateLimited, Transient:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err should abort the owning job rather than be
// logged and skipped.
func IsFatal(err error) bool {
	return KindOf(err) == Fatal
}

// IsNotFound reports whether err represents an absent resource.
func IsNotFound(err error) bool {
	return KindOf(err) == NotFound || errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is an idempotency-key collision, which
// callers should treat as success with a skipped count rather than a failure.
func IsConflict(err error) bool {
	return KindOf(err) == Conflict || errors.Is(err, ErrConflict)
}

// AsConflict reports whether err unwraps to a Conflict-kind *Error and
// returns it for context inspection.
func AsConflict(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) && pe.Kind == Conflict {
		return pe, true
	}
	return nil, false
}
