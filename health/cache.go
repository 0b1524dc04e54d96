package health

import (
	"context"
	"fmt"

	"github.com/safetyiq/aicache/cache"
)

// CacheCheckerConfig configures the cache health checker.
type CacheCheckerConfig struct {
	// MinHitRate is the hit-rate percentage below which the cache is
	// reported degraded. Default: 20
	MinHitRate float64

	// MinSamples is how many lookups must have been recorded before the
	// hit rate is judged at all. Default: 50
	MinSamples uint64
}

// CacheChecker reports on the effectiveness and occupancy of a cache store.
// A low hit rate means most requests are paying for upstream generations;
// a full store means older entries are being swept aggressively.
type CacheChecker struct {
	store  *cache.Store
	config CacheCheckerConfig
}

// NewCacheChecker creates a cache health checker over the given store.
func NewCacheChecker(store *cache.Store, config CacheCheckerConfig) *CacheChecker {
	if config.MinHitRate <= 0 {
		config.MinHitRate = 20
	}
	if config.MinSamples == 0 {
		config.MinSamples = 50
	}
	return &CacheChecker{store: store, config: config}
}

// Name returns the name of this checker.
func (c *CacheChecker) Name() string {
	return "cache"
}

// Check performs the cache health check.
func (c *CacheChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled")
	default:
	}

	if c.store == nil {
		return Unhealthy("cache store not configured")
	}

	stats := c.store.Stats()
	details := map[string]any{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"evictions":   stats.Evictions,
		"calls_saved": stats.CallsSaved,
		"size":        stats.Size,
		"max_size":    c.store.MaxSize(),
		"hit_rate":    stats.HitRate,
	}

	if stats.Size >= c.store.MaxSize() {
		return Degraded("cache at capacity, eviction sweeps active").WithDetails(details)
	}

	if stats.TotalRequests >= c.config.MinSamples && stats.HitRate < c.config.MinHitRate {
		return Degraded(
			fmt.Sprintf("hit rate %.2f%% below threshold %.2f%%", stats.HitRate, c.config.MinHitRate),
		).WithDetails(details)
	}

	return Healthy(fmt.Sprintf("hit rate %.2f%%", stats.HitRate)).WithDetails(details)
}

// Ensure CacheChecker implements Checker
var _ Checker = (*CacheChecker)(nil)
