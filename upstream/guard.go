package upstream

import (
	"context"
	"time"
)

// GuardConfig configures a Guard.
type GuardConfig struct {
	// Timeout bounds each individual attempt. Zero disables it.
	Timeout time.Duration

	// Retry configures backoff across attempts.
	Retry RetryConfig

	// Breaker configures the circuit breaker.
	Breaker BreakerConfig

	// MaxConcurrent bounds in-flight calls. Default: 10
	MaxConcurrent int

	// MaxWait is how long to wait for a concurrency slot.
	// Default: 0 (fail immediately)
	MaxWait time.Duration
}

// Guard composes the upstream protections around one logical call:
// concurrency limit outermost, then retry, with the breaker checked and a
// timeout applied per attempt. A guarded call has the same shape as a cache
// generator.
type Guard struct {
	timeout time.Duration
	retry   *Retry
	breaker *Breaker
	limiter *Limiter
}

// NewGuard creates a Guard with defaults applied to each layer.
func NewGuard(config GuardConfig) *Guard {
	return &Guard{
		timeout: config.Timeout,
		retry:   NewRetry(config.Retry),
		breaker: NewBreaker(config.Breaker),
		limiter: NewLimiter(config.MaxConcurrent, config.MaxWait),
	}
}

// Do runs the call through the limiter, breaker, retry, and timeout layers.
func (g *Guard) Do(ctx context.Context, call Call) (string, error) {
	if err := g.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	defer g.limiter.Release()

	return g.retry.Do(ctx, func(ctx context.Context) (string, error) {
		if err := g.breaker.Allow(); err != nil {
			return "", err
		}

		attemptCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		s, err := call(attemptCtx)
		g.breaker.Record(err)
		return s, err
	})
}

// Wrap binds the guard to a call, yielding a function usable directly as a
// cache generator.
func (g *Guard) Wrap(call Call) Call {
	return func(ctx context.Context) (string, error) {
		return g.Do(ctx, call)
	}
}

// Breaker exposes the guard's circuit breaker, mainly for health checks.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}
