package retry_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/pkg/retry"
)

func fastConfig(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return io.ErrUnexpectedEOF
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsNonRetryableImmediately(t *testing.T) {
	fatal := errors.New("schema mismatch")
	calls := 0
	err := retry.Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry.DoWithRetryable(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return errors.New("still down")
	}, retry.Always)

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.EqualError(t, exhausted.LastError, "still down")
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := retry.DoWithRetryable(ctx, retry.Config{
		MaxAttempts:  10,
		InitialDelay: time.Minute,
	}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	}, retry.Always)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoRejectsBadConfig(t *testing.T) {
	err := retry.Do(context.Background(), retry.Config{MaxAttempts: 0, InitialDelay: time.Millisecond},
		func(ctx context.Context) error { return nil })
	assert.Error(t, err)

	err = retry.Do(context.Background(), retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 0.5},
		func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestDoOnRetryObservesAttempts(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, nextDelay time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = retry.DoWithRetryable(context.Background(), cfg, func(ctx context.Context) error {
		return errors.New("down")
	}, retry.Always)

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestTransient(t *testing.T) {
	assert.False(t, retry.Transient(nil))
	assert.False(t, retry.Transient(context.Canceled))
	assert.False(t, retry.Transient(errors.New("constraint violation")))
	assert.True(t, retry.Transient(context.DeadlineExceeded))
	assert.True(t, retry.Transient(io.ErrUnexpectedEOF))
	assert.True(t, retry.Transient(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.True(t, retry.Transient(&net.DNSError{IsTemporary: true}))
	assert.False(t, retry.Transient(&net.DNSError{}))
}
