package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/safetyiq/aicache/fingerprint"
)

func testKey(t testing.TB, s string) fingerprint.Digest {
	t.Helper()
	k, err := fingerprint.Payload(s)
	if err != nil {
		t.Fatalf("fingerprint.Payload(%q) failed: %v", s, err)
	}
	return k
}

func TestStore_LookupStates(t *testing.T) {
	store := NewStore(10)
	key := testKey(t, "k1")

	// Absent
	state := store.Lookup(key)
	if state.Kind != StateAbsent {
		t.Errorf("Lookup on empty store = %v, want absent", state.Kind)
	}

	// Fresh
	store.Insert(key, "incident", Entry{
		Response:  "R",
		CreatedAt: time.Now(),
		TTL:       time.Hour,
	})
	state = store.Lookup(key)
	if state.Kind != StateFresh {
		t.Errorf("Lookup after insert = %v, want fresh", state.Kind)
	}
	if state.Entry.Response != "R" {
		t.Errorf("Lookup returned response %q, want %q", state.Entry.Response, "R")
	}

	// Expired
	store.Insert(key, "incident", Entry{
		Response:  "R",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		TTL:       time.Hour,
	})
	state = store.Lookup(key)
	if state.Kind != StateExpired {
		t.Errorf("Lookup of aged entry = %v, want expired", state.Kind)
	}
	if state.Entry.Response != "R" {
		t.Error("expired lookup should still carry the resident entry")
	}
}

func TestStore_LookupNonDestructive(t *testing.T) {
	store := NewStore(10)
	key := testKey(t, "k1")

	store.Insert(key, "incident", Entry{
		Response:  "stale",
		CreatedAt: time.Now().Add(-2 * time.Hour),
		TTL:       time.Hour,
	})

	// Repeated lookups of an expired entry must not remove it.
	for i := 0; i < 3; i++ {
		state := store.Lookup(key)
		if state.Kind != StateExpired {
			t.Fatalf("lookup %d = %v, want expired", i, state.Kind)
		}
	}
	if store.Len() != 1 {
		t.Errorf("size = %d after expired lookups, want 1", store.Len())
	}
}

func TestStore_CapacityEviction(t *testing.T) {
	store := NewStore(10)
	base := time.Now().Add(-time.Minute)

	// 10 entries with strictly increasing CreatedAt.
	keys := make([]fingerprint.Digest, 10)
	for i := 0; i < 10; i++ {
		keys[i] = testKey(t, fmt.Sprintf("k%d", i))
		store.Insert(keys[i], "incident", Entry{
			Response:  fmt.Sprintf("R%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			TTL:       time.Hour,
		})
	}
	if store.Len() != 10 {
		t.Fatalf("size = %d, want 10", store.Len())
	}

	// The 11th insert evicts exactly ceil(10*0.1) = 1 entry: the oldest.
	k11 := testKey(t, "k10")
	evicted := store.Insert(k11, "incident", Entry{
		Response:  "R10",
		CreatedAt: time.Now(),
		TTL:       time.Hour,
	})

	if evicted != 1 {
		t.Errorf("Insert evicted %d entries, want 1", evicted)
	}
	if got := store.Stats().Evictions; got != 1 {
		t.Errorf("evictions counter = %d, want 1", got)
	}
	if store.Len() != 10 {
		t.Errorf("size = %d after eviction+insert, want 10", store.Len())
	}
	if state := store.Lookup(keys[0]); state.Kind != StateAbsent {
		t.Errorf("oldest entry state = %v, want absent", state.Kind)
	}
	if state := store.Lookup(keys[1]); state.Kind == StateAbsent {
		t.Error("second-oldest entry should survive a single eviction")
	}
}

func TestStore_EvictionSweepTenPercent(t *testing.T) {
	store := NewStore(100)
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 100; i++ {
		store.Insert(testKey(t, fmt.Sprintf("k%d", i)), "training", Entry{
			Response:  "R",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			TTL:       24 * time.Hour,
		})
	}

	evicted := store.Insert(testKey(t, "overflow"), "training", Entry{
		Response:  "R",
		CreatedAt: time.Now(),
		TTL:       24 * time.Hour,
	})

	if evicted != 10 {
		t.Errorf("sweep evicted %d entries, want ceil(100*0.1) = 10", evicted)
	}
	if store.Len() != 91 {
		t.Errorf("size = %d, want 91", store.Len())
	}
}

func TestStore_ReplaceDoesNotSweep(t *testing.T) {
	store := NewStore(2)
	k1 := testKey(t, "k1")
	k2 := testKey(t, "k2")

	store.Insert(k1, "incident", Entry{Response: "a", CreatedAt: time.Now(), TTL: time.Hour})
	store.Insert(k2, "incident", Entry{Response: "b", CreatedAt: time.Now(), TTL: time.Hour})

	// Refreshing an existing key while at capacity replaces in place.
	evicted := store.Insert(k1, "incident", Entry{Response: "a2", CreatedAt: time.Now(), TTL: time.Hour})
	if evicted != 0 {
		t.Errorf("replacement evicted %d entries, want 0", evicted)
	}
	if store.Len() != 2 {
		t.Errorf("size = %d, want 2", store.Len())
	}
	if state := store.Lookup(k1); state.Entry.Response != "a2" {
		t.Errorf("response = %q, want replacement %q", state.Entry.Response, "a2")
	}
}

func TestStore_Remove(t *testing.T) {
	store := NewStore(10)
	key := testKey(t, "k1")

	store.Insert(key, "incident", Entry{Response: "R", CreatedAt: time.Now(), TTL: time.Hour})

	if !store.Remove(key) {
		t.Error("Remove of existing entry should return true")
	}
	if store.Remove(key) {
		t.Error("Remove of absent entry should return false")
	}
	if state := store.Lookup(key); state.Kind != StateAbsent {
		t.Errorf("state after remove = %v, want absent", state.Kind)
	}
}

func TestStore_InvalidateCategory(t *testing.T) {
	store := NewStore(10)
	now := time.Now()

	categories := []string{"incident", "training", "incident_trend"}
	for i, cat := range categories {
		store.Insert(testKey(t, fmt.Sprintf("k%d", i)), cat, Entry{
			Response:  "R",
			CreatedAt: now,
			TTL:       time.Hour,
		})
	}

	// Exact category match only: "incident_trend" must survive.
	removed := store.InvalidateCategory("incident")
	if removed != 1 {
		t.Errorf("InvalidateCategory removed %d, want 1", removed)
	}
	if store.Len() != 2 {
		t.Errorf("size = %d, want 2", store.Len())
	}
	if state := store.Lookup(testKey(t, "k0")); state.Kind != StateAbsent {
		t.Error("incident entry should be gone")
	}
	if state := store.Lookup(testKey(t, "k2")); state.Kind == StateAbsent {
		t.Error("incident_trend entry should survive invalidation of incident")
	}

	// Idempotent on absent category.
	if removed := store.InvalidateCategory("incident"); removed != 0 {
		t.Errorf("second invalidation removed %d, want 0", removed)
	}
}

func TestStore_RecordHit(t *testing.T) {
	store := NewStore(10)
	key := testKey(t, "k1")

	store.Insert(key, "incident", Entry{Response: "R", CreatedAt: time.Now(), TTL: time.Hour})

	if !store.RecordHit(key) {
		t.Error("RecordHit on resident entry should return true")
	}
	if store.RecordHit(testKey(t, "missing")) {
		t.Error("RecordHit on absent entry should return false")
	}

	state := store.Lookup(key)
	if state.Entry.HitCount != 1 {
		t.Errorf("hit count = %d, want 1", state.Entry.HitCount)
	}

	stats := store.Stats()
	if stats.Hits != 1 {
		t.Errorf("hits = %d, want 1", stats.Hits)
	}
	if stats.CallsSaved != 1 {
		t.Errorf("calls saved = %d, want 1", stats.CallsSaved)
	}
}

func TestStore_StatsAccuracy(t *testing.T) {
	tests := []struct {
		hits, misses uint64
		wantRate     float64
	}{
		{0, 0, 0},
		{1, 0, 100},
		{0, 1, 0},
		{1, 1, 50},
		{2, 1, 66.67},
		{1, 2, 33.33},
		{7, 3, 70},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dh%dm", tt.hits, tt.misses), func(t *testing.T) {
			store := NewStore(10)
			key := testKey(t, "k1")
			store.Insert(key, "incident", Entry{Response: "R", CreatedAt: time.Now(), TTL: time.Hour})

			for i := uint64(0); i < tt.hits; i++ {
				store.RecordHit(key)
			}
			for i := uint64(0); i < tt.misses; i++ {
				store.RecordMiss()
			}

			stats := store.Stats()
			if stats.Hits != tt.hits {
				t.Errorf("hits = %d, want %d", stats.Hits, tt.hits)
			}
			if stats.Misses != tt.misses {
				t.Errorf("misses = %d, want %d", stats.Misses, tt.misses)
			}
			if stats.TotalRequests != tt.hits+tt.misses {
				t.Errorf("total = %d, want %d", stats.TotalRequests, tt.hits+tt.misses)
			}
			if stats.HitRate != tt.wantRate {
				t.Errorf("hit rate = %v, want %v", stats.HitRate, tt.wantRate)
			}
		})
	}
}

func TestStore_ClearPreservesCounters(t *testing.T) {
	store := NewStore(10)
	key := testKey(t, "k1")

	store.Insert(key, "incident", Entry{Response: "R", CreatedAt: time.Now(), TTL: time.Hour})
	store.RecordHit(key)
	store.RecordMiss()

	store.Clear()

	if store.Len() != 0 {
		t.Errorf("size after clear = %d, want 0", store.Len())
	}
	stats := store.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("counters after clear = %d/%d, want 1/1 (process-lifetime)", stats.Hits, stats.Misses)
	}

	// Category index must be rebuilt too.
	if removed := store.InvalidateCategory("incident"); removed != 0 {
		t.Errorf("invalidation after clear removed %d, want 0", removed)
	}
}

func TestStore_ResetStats(t *testing.T) {
	store := NewStore(10)
	key := testKey(t, "k1")

	store.Insert(key, "incident", Entry{Response: "R", CreatedAt: time.Now(), TTL: time.Hour})
	store.RecordHit(key)
	store.RecordMiss()

	store.ResetStats()

	stats := store.Stats()
	if stats.Hits != 0 || stats.Misses != 0 || stats.Evictions != 0 || stats.CallsSaved != 0 {
		t.Errorf("counters after reset = %+v, want all zero", stats)
	}
	if store.Len() != 1 {
		t.Error("ResetStats should not touch stored entries")
	}
}

func TestStore_DefaultMaxSize(t *testing.T) {
	store := NewStore(0)
	if store.MaxSize() != DefaultMaxSize {
		t.Errorf("max size = %d, want %d", store.MaxSize(), DefaultMaxSize)
	}
	store = NewStore(-5)
	if store.MaxSize() != DefaultMaxSize {
		t.Errorf("max size = %d, want %d", store.MaxSize(), DefaultMaxSize)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore(50)

	const numGoroutines = 50
	const opsPerGoroutine = 200

	keys := make([]fingerprint.Digest, 20)
	for i := range keys {
		keys[i] = testKey(t, fmt.Sprintf("k%d", i))
	}

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := keys[j%20]
				switch j % 5 {
				case 0:
					store.Insert(key, "incident", Entry{
						Response:  "R",
						CreatedAt: time.Now(),
						TTL:       time.Hour,
					})
				case 1:
					store.Lookup(key)
				case 2:
					store.RecordHit(key)
				case 3:
					store.Stats()
				case 4:
					store.RecordMiss()
				}
			}
		}(i)
	}

	wg.Wait()

	if store.Len() > store.MaxSize() {
		t.Errorf("size %d exceeds max %d after concurrent use", store.Len(), store.MaxSize())
	}
}
