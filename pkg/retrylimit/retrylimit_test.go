package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return "status" }
func (s statusErr) StatusCode() int { return int(s) }

func fastConfig(attempts int) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.RateLimitDelay = time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, nil, fastConfig(5))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnFatal(t *testing.T) {
	root := errors.New("gone")
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return Fatal(root)
	}, nil, fastConfig(5))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, 1, calls)
}

func TestRetryWrapsLastError(t *testing.T) {
	root := errors.New("still broken")
	err := WithRetryConfig(context.Background(), func() error { return root }, nil, fastConfig(2))
	assert.ErrorIs(t, err, root)
	assert.Contains(t, err.Error(), "max attempts (2)")
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetryConfig(ctx, func() error { return nil }, nil, fastConfig(2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiterAdapts(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 8, 1, 0.5)
	lim.RateLimited()
	assert.Equal(t, 2.0, lim.CurrentLimit())
	lim.RateLimited()
	lim.RateLimited()
	assert.Equal(t, 1.0, lim.CurrentLimit())

	lim.Success() // suppressed right after a failure
	assert.Equal(t, 1.0, lim.CurrentLimit())
}

func TestClassifier(t *testing.T) {
	assert.True(t, DefaultClassifier(statusErr(429)))
	assert.True(t, DefaultClassifier(statusErr(503)))
	assert.False(t, DefaultClassifier(statusErr(404)))
	assert.False(t, DefaultClassifier(errors.New("plain")))
}
