package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "chainblock/pkg/errors"
	"chainblock/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(attempts int) *Config {
	return &Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Logger:      logger.NewNopLogger(),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{9, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testConfig(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeServerError, 503, "unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testConfig(2), func(ctx context.Context) error {
		calls++
		return errs.New(errs.ErrorTypeNetwork, 0, "reset")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
}

func TestDoDoesNotRetryRateLimits(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testConfig(5), func(ctx context.Context) error {
		calls++
		return errs.NewRateLimit("/followers/list", nil)
	})
	assert.True(t, errs.IsRateLimit(err))
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnForeignErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), testConfig(5), func(ctx context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testConfig(0)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := Do(ctx, cfg, func(ctx context.Context) error {
		return errs.New(errs.ErrorTypeServerError, 500, "oops")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), testConfig(3), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.ErrorTypeNetwork, 0, "timeout")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
