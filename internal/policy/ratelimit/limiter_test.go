package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()

	// 10 RPS, burst 1: the second call waits for the next token (~100ms).
	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://test.example/a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://test.example/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_DifferentHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond, "host b blocked by host a")
}

func TestLimiter_Disabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	require.False(t, l.Enabled())
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://a.example/1"))
	}

	var nilLimiter *Limiter
	require.NoError(t, nilLimiter.Wait(context.Background(), "https://a.example/1"))
}

func TestLimiter_CanceledContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.01, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.example/"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Wait(ctx, "https://slow.example/"))
}
