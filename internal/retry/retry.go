// Package retry runs an operation until it succeeds, backing off exponentially
// between transient failures.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"influencemap/internal/graph"
)

// SleepFunc waits for d or until ctx is done, reporting whether the full
// duration elapsed.
type SleepFunc func(ctx context.Context, d time.Duration) bool

// Retrier retries operations whose errors are transient. With MaxAttempts
// zero there is no attempt cap: the loop ends on success, on a non-transient
// error or when ctx is done.
type Retrier struct {
	BaseDelay   time.Duration
	MaxAttempts int
	Retryable   func(error) bool
	Sleep       SleepFunc
	OnRetry     func(attempt int, delay time.Duration, err error)

	logger *zap.Logger
}

// New builds a Retrier with the given base delay that retries errors wrapping
// graph.ErrTransientFetch.
func New(baseDelay time.Duration, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{
		BaseDelay: baseDelay,
		Retryable: graph.IsTransient,
		Sleep:     waitOrCancel,
		logger:    logger,
	}
}

// Bounded returns a copy of r that gives up after attempts calls.
func (r *Retrier) Bounded(attempts int) *Retrier {
	b := *r
	if attempts < 1 {
		attempts = 1
	}
	b.MaxAttempts = attempts
	return &b
}

// Backoff returns the delay before retry number attempt: base * e^attempt.
func (r *Retrier) Backoff(attempt int) time.Duration {
	return time.Duration(float64(r.BaseDelay) * math.Pow(math.E, float64(attempt)))
}

// Do calls fn until it returns nil, a non-retryable error or the attempt cap
// is reached. A cancelled context ends the loop with ctx.Err().
func (r *Retrier) Do(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !r.Retryable(err) {
			return err
		}
		if r.MaxAttempts > 0 && attempt >= r.MaxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := r.Backoff(attempt)
		r.logger.Warn("being throttled, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if r.OnRetry != nil {
			r.OnRetry(attempt, delay, err)
		}
		if !r.Sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

func waitOrCancel(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
