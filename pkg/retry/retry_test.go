package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     attempts,
		BackoffStrategy: &ConstantBackoff{Interval: time.Millisecond},
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, fastConfig(3))

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := fastConfig(5)
	cfg.RetryableErrors = []error{errTransient}

	calls := 0
	err := Retry(context.Background(), func(context.Context) error {
		calls++
		return permanent
	}, cfg)

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryPredicateWins(t *testing.T) {
	cfg := fastConfig(5)
	cfg.RetryableErrors = []error{errTransient}
	cfg.IsRetryable = func(error) bool { return false }

	calls := 0
	_ = Retry(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, cfg)

	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, func(context.Context) error { return nil }, fastConfig(3))
	require.ErrorIs(t, err, context.Canceled)
}

func TestExponentialBackoffCapped(t *testing.T) {
	b := &ExponentialBackoff{InitialInterval: time.Second, MaxInterval: 3 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, b.NextBackoff(1))
	assert.Equal(t, 2*time.Second, b.NextBackoff(2))
	assert.Equal(t, 3*time.Second, b.NextBackoff(3))
}
