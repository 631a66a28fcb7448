package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsWithinBurst(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(), "request %d should fit in burst", i)
	}
	assert.False(t, l.Allow(), "burst exhausted")
}

func TestLimiter_WaitPacesRequests(t *testing.T) {
	l := New(50, 1)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := New(0.1, 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_UnlimitedWhenDisabled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
}
