package venue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllowsBurstUpToCapacity(t *testing.T) {
	tb := NewTokenBucket(10, 10)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, tb.Wait(ctx))
	}
}

func TestTokenBucketBlocksBeyondCapacityThenRefills(t *testing.T) {
	tb := NewTokenBucket(1, 100) // refill fast so the test stays quick
	ctx := context.Background()
	require.NoError(t, tb.Wait(ctx))

	start := time.Now()
	require.NoError(t, tb.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestTokenBucketRespectsContextCancellation(t *testing.T) {
	tb := NewTokenBucket(1, 0.001) // effectively never refills within test
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, tb.Wait(ctx)) // consumes the initial burst token
	err := tb.Wait(ctx)
	require.Error(t, err)
}
