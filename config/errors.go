package config

import "errors"

var (
	// ErrInvalidMaxSize indicates a non-positive cache capacity.
	ErrInvalidMaxSize = errors.New("config: cache max_size must be positive")

	// ErrInvalidTTL indicates a non-positive cache TTL.
	ErrInvalidTTL = errors.New("config: cache ttl must be positive")

	// ErrInvalidFreshWindow indicates a fresh window outside (0, ttl].
	ErrInvalidFreshWindow = errors.New("config: cache fresh_window must be positive and not exceed ttl")

	// ErrInvalidBatchSize indicates a non-positive batch size.
	ErrInvalidBatchSize = errors.New("config: batch size must be positive")

	// ErrInvalidBatchTimeout indicates a non-positive batch timeout.
	ErrInvalidBatchTimeout = errors.New("config: batch timeout must be positive")

	// ErrInvalidMaxConcurrent indicates a non-positive upstream concurrency bound.
	ErrInvalidMaxConcurrent = errors.New("config: upstream max_concurrent must be positive")
)
