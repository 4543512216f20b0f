// Package work provides a small background executor for fire-and-forget
// side effects. Submitted jobs run with independent failure isolation so a
// failed outbound send never aborts a state transition that already
// committed.
package work

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Pool runs submitted jobs on a bounded set of goroutines.
type Pool struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool that runs at most size jobs concurrently. Each job
// gets its own context with the given timeout (0 means no timeout).
func NewPool(size int, timeout time.Duration, log *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		sem:     make(chan struct{}, size),
		log:     log,
		timeout: timeout,
	}
}

// Submit schedules fn to run in the background. The job runs detached from
// the caller's context: the caller's transition has already committed and
// must not be tied to the job's lifetime. Returns false if the pool is
// already shut down.
func (p *Pool) Submit(name string, fn func(ctx context.Context) error) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		defer func() {
			if r := recover(); r != nil {
				p.log.Error("background job panicked", "job", name, "panic", fmt.Sprint(r))
			}
		}()

		ctx := context.Background()
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		start := time.Now()
		if err := fn(ctx); err != nil {
			p.log.Error("background job failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		p.log.Debug("background job done", "job", name, "duration", time.Since(start))
	}()
	return true
}

// Shutdown stops accepting jobs and waits for in-flight ones, honoring the
// context deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
