package upstream

import "errors"

// Sentinel errors for guarded calls. From the cache's point of view these
// are generation failures like any other.
var (
	// ErrBreakerOpen indicates the circuit breaker is rejecting calls.
	ErrBreakerOpen = errors.New("upstream: circuit breaker is open")

	// ErrLimited indicates the concurrent-call limit was reached and no
	// slot freed up within the configured wait.
	ErrLimited = errors.New("upstream: concurrent call limit reached")
)
