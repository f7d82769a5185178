package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T) (*WindowLimiter, *clock) {
	c := &clock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	l := NewWindowLimiter(time.Hour)
	l.now = c.Now
	t.Cleanup(l.Stop)
	return l, c
}

func TestFixedWindowAllow(t *testing.T) {
	l, c := newTestLimiter(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		ok, count, err := l.FixedWindowAllow(ctx, "login:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, count)
	}

	ok, count, err := l.FixedWindowAllow(ctx, "login:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(4), count)

	// other keys are counted separately
	ok, _, _ = l.FixedWindowAllow(ctx, "login:10.0.0.2", 3, time.Minute)
	assert.True(t, ok)

	c.Advance(time.Minute)
	ok, count, _ = l.FixedWindowAllow(ctx, "login:10.0.0.1", 3, time.Minute)
	assert.True(t, ok)
	assert.Equal(t, int64(1), count)
}

func TestEvictExpired(t *testing.T) {
	l, c := newTestLimiter(t)
	ctx := context.Background()

	_, _, _ = l.FixedWindowAllow(ctx, "a", 1, time.Minute)
	_, _, _ = l.FixedWindowAllow(ctx, "b", 1, time.Hour)
	require.Equal(t, 2, l.Len())

	c.Advance(2 * time.Minute)
	l.evictExpired()
	assert.Equal(t, 1, l.Len())
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewWindowLimiter(time.Millisecond)
	l.Stop()
	assert.NotPanics(t, l.Stop)
}
