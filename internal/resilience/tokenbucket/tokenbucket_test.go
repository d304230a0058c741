package tokenbucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitConsumesBurstThenBlocks(t *testing.T) {
	reg := NewRegistry(Limits{RefillPerSecond: 1, Burst: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, reg.Wait(ctx, "k"))
	require.NoError(t, reg.Wait(ctx, "k"))

	err := reg.Wait(ctx, "k")
	assert.Error(t, err, "a third call within the burst window should block past the short deadline")
}

func TestConfigureOverridesFallbackForKey(t *testing.T) {
	reg := NewRegistry(Limits{RefillPerSecond: 1, Burst: 1})
	reg.Configure("fast", Limits{RefillPerSecond: 1000, Burst: 1000})

	for i := 0; i < 10; i++ {
		assert.True(t, reg.Allow("fast"))
	}
}

func TestDifferentKeysHaveIndependentBuckets(t *testing.T) {
	reg := NewRegistry(Limits{RefillPerSecond: 1, Burst: 1})
	assert.True(t, reg.Allow("a"))
	assert.False(t, reg.Allow("a"))
	assert.True(t, reg.Allow("b"), "a separate key must have its own untouched bucket")
}
