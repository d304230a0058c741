package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarioclaims/engine/internal/platformerr"
)

func fastConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1, MaxDelay: 5 * time.Millisecond, JitterFrac: 0}
}

func TestDoReturnsNilOnFirstSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), DefaultClassifier, nil, func(attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesRetryableErrorUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), DefaultClassifier, nil, func(attempt int) error {
		calls++
		if calls < 3 {
			return platformerr.New("test", platformerr.Transient, "retry me")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	wantErr := platformerr.New("test", platformerr.Validation, "bad input")
	err := Do(context.Background(), fastConfig(), DefaultClassifier, nil, func(attempt int) error {
		calls++
		return wantErr
	})
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttemptsAndWrapsErrMaxRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), DefaultClassifier, nil, func(attempt int) error {
		calls++
		return platformerr.New("test", platformerr.Transient, "always fails")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, platformerr.ErrMaxRetries))
	assert.Equal(t, 3, calls)
	// Exhaustion preserves the last error's kind so a task that burned its
	// attempts on 429s still reports RateLimited/Transient, not Fatal.
	assert.Equal(t, platformerr.Transient, platformerr.KindOf(err))
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), DefaultClassifier, nil, func(attempt int) error {
		t.Fatal("fn should not run once ctx is already cancelled")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoUsesRetryAfterOverrideForNextDelay(t *testing.T) {
	calls := 0
	start := time.Now()
	cfg := Config{MaxAttempts: 2, BaseDelay: 50 * time.Millisecond, Multiplier: 1, JitterFrac: 0}
	err := Do(context.Background(), cfg, DefaultClassifier, func(error) time.Duration {
		return time.Millisecond
	}, func(attempt int) error {
		calls++
		if calls < 2 {
			return platformerr.New("test", platformerr.RateLimited, "slow down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 40*time.Millisecond, "retryAfter override should shortcut the 50ms base delay")
}
