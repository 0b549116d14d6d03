package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterBurstThenThrottle(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerMinute: 600, Burst: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		waited, err := l.Wait(ctx, "https://example.com")
		require.NoError(t, err)
		require.Less(t, waited, 50*time.Millisecond)
	}

	// 600/min is one token every 100ms.
	waited, err := l.Wait(ctx, "https://example.com")
	require.NoError(t, err)
	require.GreaterOrEqual(t, waited, 60*time.Millisecond)
}

func TestLimiterDefaultsBurstToRate(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerMinute: DefaultRequestsPerMinute})
	for i := 0; i < DefaultRequestsPerMinute; i++ {
		require.True(t, l.Allow(), "submission %d should fit in the burst", i+1)
	}
	require.False(t, l.Allow())
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow())
	}
}

func TestLimiterContextCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerMinute: 1, Burst: 1})
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Wait(ctx, "https://example.com")
	require.Error(t, err)
}
