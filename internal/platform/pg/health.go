package pg

import (
	"context"
	"fmt"
	"time"

	"remindbot/pkg/retry"
)

// HealthCheckOptions tunes the startup wait for database availability.
type HealthCheckOptions struct {
	// MaxRetries bounds the attempts (<=0 uses the default).
	MaxRetries int
	// InitialInterval is the delay before the second attempt.
	InitialInterval time.Duration
	// MaxInterval caps the exponential backoff growth.
	MaxInterval time.Duration
	// PingTimeout bounds each individual attempt.
	PingTimeout time.Duration
	// OnRetry is called before each wait, for logging.
	OnRetry func(attempt int, err error, nextDelay time.Duration)
}

// DefaultHealthCheckOptions returns the default startup wait behavior.
func DefaultHealthCheckOptions() HealthCheckOptions {
	return HealthCheckOptions{
		MaxRetries:      10,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		PingTimeout:     5 * time.Second,
	}
}

// WaitForDB waits until the database accepts connections, backing off
// exponentially between attempts. Every connect error counts as "not up
// yet": at boot the database container may still be starting.
func WaitForDB(ctx context.Context, dsn string, opts HealthCheckOptions) error {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultHealthCheckOptions().MaxRetries
	}

	cfg := retry.Config{
		MaxAttempts:  opts.MaxRetries,
		InitialDelay: opts.InitialInterval,
		MaxDelay:     opts.MaxInterval,
		Multiplier:   2.0,
		Jitter:       true,
		OnRetry:      opts.OnRetry,
	}

	err := retry.DoWithRetryable(ctx, cfg, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()

		pool, err := NewPoolWithOptions(pingCtx, dsn, PoolOptions{
			MaxConns: 1, MinConns: 0,
			HealthCheckPeriod: time.Minute,
			MaxConnLifetime:   time.Minute,
			MaxConnIdleTime:   time.Minute,
			PingTimeout:       opts.PingTimeout,
		})
		if err != nil {
			return err
		}
		pool.Close()
		return nil
	}, retry.Always)
	if err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}
