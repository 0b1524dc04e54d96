package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name in ResourceMetrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// TestMetrics_LookupCounterIncrements verifies cache.lookups.total is incremented.
func TestMetrics_LookupCounterIncrements(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordLookup(context.Background(), "incident_summary", OutcomeHit, FreshnessFresh)

	rm := collect(t, reader)
	found := findMetric(rm, "cache.lookups.total")
	if found == nil {
		t.Fatal("cache.lookups.total metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("expected count 1, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_LookupLabels verifies outcome and freshness attributes are applied.
func TestMetrics_LookupLabels(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordLookup(context.Background(), "risk_assessment", OutcomeHit, FreshnessAging)

	rm := collect(t, reader)
	found := findMetric(rm, "cache.lookups.total")
	if found == nil {
		t.Fatal("cache.lookups.total metric not found")
	}

	sum := found.Data.(metricdata.Sum[int64])
	attrs := sum.DataPoints[0].Attributes

	var foundCategory, foundOutcome, foundFreshness bool
	for iter := attrs.Iter(); iter.Next(); {
		kv := iter.Attribute()
		switch string(kv.Key) {
		case "cache.category":
			foundCategory = true
			if kv.Value.AsString() != "risk_assessment" {
				t.Errorf("expected cache.category='risk_assessment', got %q", kv.Value.AsString())
			}
		case "cache.outcome":
			foundOutcome = true
			if kv.Value.AsString() != "hit" {
				t.Errorf("expected cache.outcome='hit', got %q", kv.Value.AsString())
			}
		case "cache.freshness":
			foundFreshness = true
			if kv.Value.AsString() != "aging" {
				t.Errorf("expected cache.freshness='aging', got %q", kv.Value.AsString())
			}
		}
	}

	if !foundCategory {
		t.Error("cache.category attribute not found")
	}
	if !foundOutcome {
		t.Error("cache.outcome attribute not found")
	}
	if !foundFreshness {
		t.Error("cache.freshness attribute not found")
	}
}

// TestMetrics_MissOmitsFreshness verifies non-hit outcomes carry no freshness label.
func TestMetrics_MissOmitsFreshness(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordLookup(context.Background(), "incident_summary", OutcomeMiss, FreshnessNone)

	rm := collect(t, reader)
	found := findMetric(rm, "cache.lookups.total")
	if found == nil {
		t.Fatal("cache.lookups.total metric not found")
	}

	sum := found.Data.(metricdata.Sum[int64])
	for iter := sum.DataPoints[0].Attributes.Iter(); iter.Next(); {
		if string(iter.Attribute().Key) == "cache.freshness" {
			t.Error("miss should not carry a cache.freshness attribute")
		}
	}
}

// TestMetrics_GenerationErrorCounter verifies error counter tracks failures only.
func TestMetrics_GenerationErrorCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGeneration(ctx, "incident_summary", 50*time.Millisecond, nil)
	m.RecordGeneration(ctx, "incident_summary", 20*time.Millisecond, errors.New("upstream down"))

	rm := collect(t, reader)

	total := findMetric(rm, "cache.generations.total")
	if total == nil {
		t.Fatal("cache.generations.total metric not found")
	}
	if sum := total.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 2 {
		t.Errorf("expected generations count 2, got %d", sum.DataPoints[0].Value)
	}

	errs := findMetric(rm, "cache.generation.errors")
	if errs == nil {
		t.Fatal("cache.generation.errors metric not found")
	}
	if sum := errs.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 1 {
		t.Errorf("expected error count 1, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_DurationHistogramRecords verifies duration is recorded.
func TestMetrics_DurationHistogramRecords(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordGeneration(context.Background(), "incident_summary", 50*time.Millisecond, nil)

	rm := collect(t, reader)
	found := findMetric(rm, "cache.generation.duration_ms")
	if found == nil {
		t.Fatal("cache.generation.duration_ms metric not found")
	}

	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if dp := hist.DataPoints[0]; dp.Sum < 40 || dp.Sum > 60 {
		t.Errorf("expected duration ~50ms, got %f", dp.Sum)
	}
}

// TestMetrics_EvictionsIgnoreZero verifies zero-entry sweeps are not recorded.
func TestMetrics_EvictionsIgnoreZero(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEvictions(ctx, 0)
	m.RecordEvictions(ctx, 3)

	rm := collect(t, reader)
	found := findMetric(rm, "cache.evictions.total")
	if found == nil {
		t.Fatal("cache.evictions.total metric not found")
	}
	if sum := found.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 3 {
		t.Errorf("expected evictions count 3, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_BatchFlushRecordsItems verifies flush and item counters.
func TestMetrics_BatchFlushRecordsItems(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordBatchFlush(context.Background(), "incident_summary", 5)

	rm := collect(t, reader)

	flushes := findMetric(rm, "batch.flushes.total")
	if flushes == nil {
		t.Fatal("batch.flushes.total metric not found")
	}
	if sum := flushes.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 1 {
		t.Errorf("expected flush count 1, got %d", sum.DataPoints[0].Value)
	}

	items := findMetric(rm, "batch.items.total")
	if items == nil {
		t.Fatal("batch.items.total metric not found")
	}
	if sum := items.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 5 {
		t.Errorf("expected item count 5, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_ConcurrentRecording verifies thread safety.
func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader := newTestMetrics(t)

	const numGoroutines = 100
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			m.RecordLookup(context.Background(), "incident_summary", OutcomeHit, FreshnessFresh)
		}()
	}
	wg.Wait()

	rm := collect(t, reader)
	found := findMetric(rm, "cache.lookups.total")
	if found == nil {
		t.Fatal("cache.lookups.total metric not found")
	}
	if sum := found.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != numGoroutines {
		t.Errorf("expected count %d, got %d", numGoroutines, sum.DataPoints[0].Value)
	}
}

// TestNoopMetrics verifies the noop implementation never panics.
func TestNoopMetrics(t *testing.T) {
	m := NewNoopMetrics()
	ctx := context.Background()

	m.RecordLookup(ctx, "c", OutcomeHit, FreshnessFresh)
	m.RecordGeneration(ctx, "c", time.Millisecond, errors.New("x"))
	m.RecordEvictions(ctx, 10)
	m.RecordStaleServed(ctx, "c")
	m.RecordBatchFlush(ctx, "c", 5)
}
