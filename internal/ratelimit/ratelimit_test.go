package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, capacity int, refillRate float64) (*Limiter, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	l := New(rdb, "creditors", capacity, refillRate)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowDrainsBucket(t *testing.T) {
	l, _ := newTestLimiter(t, 3, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := l.Allow(ctx, 42)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}
	allowed, remaining, err := l.Allow(ctx, 42)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestBucketRefillsOverTime(t *testing.T) {
	l, now := newTestLimiter(t, 2, 1)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := l.Allow(ctx, 42)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, _, err := l.Allow(ctx, 42)
	require.NoError(t, err)
	require.False(t, allowed)

	*now = now.Add(1500 * time.Millisecond)
	allowed, _, err = l.Allow(ctx, 42)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCreditorsHaveSeparateBuckets(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 1)
	ctx := context.Background()

	allowed, _, err := l.Allow(ctx, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, _, err = l.Allow(ctx, 1)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, _, err = l.Allow(ctx, 2)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestZeroCapacityDisablesLimiting(t *testing.T) {
	l, _ := newTestLimiter(t, 0, 1)

	allowed, _, err := l.Allow(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, allowed)
}
