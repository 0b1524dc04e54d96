package upstream

import (
	"context"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// StateClosed allows calls through.
	StateClosed BreakerState = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen allows a limited number of probe calls.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker. Default: 5
	FailureThreshold int

	// Cooldown is how long the breaker stays open before allowing probes.
	// Default: 30s
	Cooldown time.Duration

	// HalfOpenMax is how many probe calls may run concurrently while
	// half-open. Default: 1
	HalfOpenMax int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenMax <= 0 {
		c.HalfOpenMax = 1
	}
	return c
}

// Breaker is a three-state circuit breaker for upstream calls.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - A success in half-open closes the breaker; a failure reopens it.
type Breaker struct {
	config BreakerConfig

	mu               sync.Mutex
	state            BreakerState
	failures         int
	openedAt         time.Time
	halfOpenInFlight int
}

// NewBreaker creates a circuit breaker with defaults applied.
func NewBreaker(config BreakerConfig) *Breaker {
	return &Breaker{config: config.withDefaults()}
}

// Allow reports whether a call may proceed now.
// Returns ErrBreakerOpen when the breaker is rejecting calls.
// A successful Allow must be paired with exactly one Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.openedAt) < b.config.Cooldown {
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.halfOpenInFlight = 1
		return nil

	case StateHalfOpen:
		if b.halfOpenInFlight >= b.config.HalfOpenMax {
			return ErrBreakerOpen
		}
		b.halfOpenInFlight++
		return nil
	}

	return nil
}

// Record reports the outcome of a call allowed by Allow.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if err != nil {
			b.failures++
			if b.failures >= b.config.FailureThreshold {
				b.state = StateOpen
				b.openedAt = time.Now()
			}
		} else {
			b.failures = 0
		}

	case StateHalfOpen:
		b.halfOpenInFlight--
		if err != nil {
			b.state = StateOpen
			b.openedAt = time.Now()
			b.halfOpenInFlight = 0
		} else {
			b.state = StateClosed
			b.failures = 0
			b.halfOpenInFlight = 0
		}
	}
}

// Do runs the call through the breaker.
func (b *Breaker) Do(ctx context.Context, call Call) (string, error) {
	if err := b.Allow(); err != nil {
		return "", err
	}
	s, err := call(ctx)
	b.Record(err)
	return s, err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
