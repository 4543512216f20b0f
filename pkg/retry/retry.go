// Package retry runs an operation repeatedly with exponential backoff and
// jitter until it succeeds, the attempt budget runs out, or the context is
// done. It backs the startup waits and other non-HTTP dependencies; HTTP
// calls go through internal/platform/httpclient, which understands status
// codes and Retry-After.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/url"
	"time"
)

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps exponential growth.
	MaxDelay time.Duration
	// Multiplier scales the delay after each attempt (default 2).
	Multiplier float64
	// Jitter randomizes each delay within ±25% to avoid thundering herds.
	Jitter bool
	// OnRetry is called before each wait, for logging.
	OnRetry func(attempt int, err error, nextDelay time.Duration)
}

// DefaultConfig returns the default retry behavior.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (c *Config) normalize() error {
	if c.MaxAttempts <= 0 {
		return errors.New("retry: MaxAttempts must be positive")
	}
	if c.InitialDelay <= 0 {
		return errors.New("retry: InitialDelay must be positive")
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}
	return nil
}

// Func is the operation under retry.
type Func func(ctx context.Context) error

// RetryableFunc decides whether an error is worth another attempt.
type RetryableFunc func(err error) bool

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	LastError error
	Attempts  int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts: %v", e.Attempts, e.LastError)
}

func (e *ExhaustedError) Unwrap() error { return e.LastError }

// Transient reports whether the error looks like a temporary network
// condition. Context cancellation is final; a deadline on a single attempt
// is not.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return Transient(ue.Err)
	}
	return false
}

// Always retries every error until the attempt budget runs out. For
// startup waits where the dependency is simply not up yet.
func Always(error) bool { return true }

// Do runs fn with the Transient retryable check.
func Do(ctx context.Context, cfg Config, fn Func) error {
	return DoWithRetryable(ctx, cfg, fn, Transient)
}

// DoWithRetryable runs fn until it succeeds or the budget runs out. A
// non-retryable error is returned as-is; exhausting the attempts returns an
// *ExhaustedError wrapping the last one.
func DoWithRetryable(ctx context.Context, cfg Config, fn Func, retryable RetryableFunc) error {
	if err := cfg.normalize(); err != nil {
		return err
	}

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if !retryable(lastErr) {
			return lastErr
		}

		wait := delay
		if cfg.Jitter {
			spread := wait / 4
			wait += time.Duration(rand.Int64N(int64(2*spread+1))) - spread
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return &ExhaustedError{LastError: lastErr, Attempts: cfg.MaxAttempts}
}
