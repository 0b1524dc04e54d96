// Package upstream guards the expensive generation call behind the cache:
// per-attempt timeouts, retry with exponential backoff, a circuit breaker,
// and a bound on concurrent in-flight calls. A Guard-wrapped call has the
// same shape as a cache generator, so call sites compose the two directly.
package upstream
