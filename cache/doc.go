// Package cache provides a bounded in-memory store for AI-generated
// responses and a read-through fetcher around expensive generation calls.
//
// Lookups are non-destructive: an expired entry stays resident until a
// capacity sweep, an explicit removal, or a successful refresh replaces it,
// so it remains available as a degraded fallback when the upstream fails.
package cache
