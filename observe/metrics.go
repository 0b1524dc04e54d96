package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels the result of a cache lookup.
type Outcome string

const (
	// OutcomeHit means a servable entry was found.
	OutcomeHit Outcome = "hit"
	// OutcomeMiss means no entry existed for the key.
	OutcomeMiss Outcome = "miss"
	// OutcomeExpired means an entry existed but its TTL had elapsed.
	OutcomeExpired Outcome = "expired"
	// OutcomeBypass means the payload could not be fingerprinted and the
	// cache was skipped entirely.
	OutcomeBypass Outcome = "bypass"
)

// Freshness labels how current a cache hit was.
type Freshness string

const (
	// FreshnessFresh means the hit was inside the fresh window.
	FreshnessFresh Freshness = "fresh"
	// FreshnessAging means the hit was past the fresh window but inside the TTL.
	FreshnessAging Freshness = "aging"
	// FreshnessNone applies to non-hit outcomes.
	FreshnessNone Freshness = ""
)

// Metrics records cache and batcher telemetry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; recording never blocks the caller.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records one cache lookup and its outcome.
	RecordLookup(ctx context.Context, category string, outcome Outcome, freshness Freshness)

	// RecordGeneration records one upstream generation with duration and error status.
	RecordGeneration(ctx context.Context, category string, duration time.Duration, err error)

	// RecordEvictions records n entries removed by a capacity sweep.
	RecordEvictions(ctx context.Context, n int64)

	// RecordStaleServed records an expired entry served as a degraded fallback.
	RecordStaleServed(ctx context.Context, category string)

	// RecordBatchFlush records one batch flush releasing items entries.
	RecordBatchFlush(ctx context.Context, category string, items int)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	lookups      metric.Int64Counter
	generations  metric.Int64Counter
	genErrors    metric.Int64Counter
	genDuration  metric.Float64Histogram
	evictions    metric.Int64Counter
	staleServed  metric.Int64Counter
	batchFlushes metric.Int64Counter
	batchItems   metric.Int64Counter
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(
		"cache.lookups.total",
		metric.WithDescription("Total number of cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	generations, err := meter.Int64Counter(
		"cache.generations.total",
		metric.WithDescription("Total number of upstream generation calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	genErrors, err := meter.Int64Counter(
		"cache.generation.errors",
		metric.WithDescription("Total number of failed upstream generation calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	genDuration, err := meter.Float64Histogram(
		"cache.generation.duration_ms",
		metric.WithDescription("Upstream generation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"cache.evictions.total",
		metric.WithDescription("Total number of entries removed by capacity sweeps"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	staleServed, err := meter.Int64Counter(
		"cache.stale_served.total",
		metric.WithDescription("Total number of expired entries served as degraded fallbacks"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	batchFlushes, err := meter.Int64Counter(
		"batch.flushes.total",
		metric.WithDescription("Total number of batch flushes"),
		metric.WithUnit("{flush}"),
	)
	if err != nil {
		return nil, err
	}

	batchItems, err := meter.Int64Counter(
		"batch.items.total",
		metric.WithDescription("Total number of batched items released"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		generations:  generations,
		genErrors:    genErrors,
		genDuration:  genDuration,
		evictions:    evictions,
		staleServed:  staleServed,
		batchFlushes: batchFlushes,
		batchItems:   batchItems,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, category string, outcome Outcome, freshness Freshness) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.category", category),
		attribute.String("cache.outcome", string(outcome)),
	}
	if freshness != FreshnessNone {
		attrs = append(attrs, attribute.String("cache.freshness", string(freshness)))
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordGeneration(ctx context.Context, category string, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("cache.category", category))

	m.generations.Add(ctx, 1, opt)
	if err != nil {
		m.genErrors.Add(ctx, 1, opt)
	}
	m.genDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordEvictions(ctx context.Context, n int64) {
	if n <= 0 {
		return
	}
	m.evictions.Add(ctx, n)
}

func (m *metricsImpl) RecordStaleServed(ctx context.Context, category string) {
	m.staleServed.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.category", category)))
}

func (m *metricsImpl) RecordBatchFlush(ctx context.Context, category string, items int) {
	opt := metric.WithAttributes(attribute.String("batch.category", category))
	m.batchFlushes.Add(ctx, 1, opt)
	m.batchItems.Add(ctx, int64(items), opt)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (noopMetrics) RecordLookup(context.Context, string, Outcome, Freshness)      {}
func (noopMetrics) RecordGeneration(context.Context, string, time.Duration, error) {}
func (noopMetrics) RecordEvictions(context.Context, int64)                         {}
func (noopMetrics) RecordStaleServed(context.Context, string)                      {}
func (noopMetrics) RecordBatchFlush(context.Context, string, int)                  {}

// NewNoopMetrics returns a Metrics that discards everything.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

// Ensure implementations satisfy Metrics
var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = noopMetrics{}
)
