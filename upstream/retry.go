package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Call performs one upstream generation attempt.
type Call func(ctx context.Context) (string, error)

// RetryConfig configures retry behavior for upstream calls.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// Default: 3
	MaxAttempts uint

	// InitialDelay is the delay before the first retry.
	// Default: 200ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 10s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	// Default: 2.0
	Multiplier float64

	// RandomizationFactor jitters delays to avoid synchronized retries.
	// Default: 0.5
	RandomizationFactor float64

	// RetryIf decides whether an error is worth retrying.
	// Default: every non-nil error except ErrBreakerOpen.
	RetryIf func(err error) bool

	// OnRetry is called before each retry with the error and the delay.
	OnRetry func(err error, delay time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.RandomizationFactor < 0 {
		c.RandomizationFactor = 0.5
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	return c
}

// DefaultRetryIf retries every error except an open circuit breaker:
// retrying into an open breaker only burns the backoff budget.
func DefaultRetryIf(err error) bool {
	return err != nil && !errors.Is(err, ErrBreakerOpen)
}

// Retry wraps a Call with exponential backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retry handler with defaults applied.
func NewRetry(config RetryConfig) *Retry {
	return &Retry{config: config.withDefaults()}
}

// Do runs the call, retrying per the configuration. Context cancellation
// aborts the wait between attempts.
func (r *Retry) Do(ctx context.Context, call Call) (string, error) {
	op := func() (string, error) {
		s, err := call(ctx)
		if err != nil && !r.config.RetryIf(err) {
			return "", backoff.Permanent(err)
		}
		return s, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.config.InitialDelay
	bo.MaxInterval = r.config.MaxDelay
	bo.Multiplier = r.config.Multiplier
	bo.RandomizationFactor = r.config.RandomizationFactor

	opts := []backoff.RetryOption{
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(r.config.MaxAttempts),
	}
	if r.config.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(r.config.OnRetry)))
	}

	return backoff.Retry(ctx, op, opts...)
}

// Config returns the effective retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
