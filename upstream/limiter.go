package upstream

import (
	"context"
	"time"
)

// Limiter bounds the number of concurrent upstream calls.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Every successful Acquire must be paired with exactly one Release.
type Limiter struct {
	sem     chan struct{}
	maxWait time.Duration
}

// NewLimiter creates a limiter allowing maxConcurrent in-flight calls.
// A non-positive maxConcurrent defaults to 10. maxWait is how long Acquire
// waits for a slot; zero means fail immediately.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Limiter{
		sem:     make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the configured maxWait.
// Returns ErrLimited when no slot frees up in time, or the context's error
// when it is done first.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	default:
	}

	if l.maxWait <= 0 {
		return ErrLimited
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLimited
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
	default:
		// Release without a matching Acquire; ignore.
	}
}

// Do runs the call inside a slot.
func (l *Limiter) Do(ctx context.Context, call Call) (string, error) {
	if err := l.Acquire(ctx); err != nil {
		return "", err
	}
	defer l.Release()
	return call(ctx)
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int {
	return len(l.sem)
}
