package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNilStore indicates a nil Store was provided.
	ErrNilStore = errors.New("cache: store is nil")

	// ErrNilGenerator indicates Fetch was called without a generator.
	ErrNilGenerator = errors.New("cache: generator is nil")
)
