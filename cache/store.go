package cache

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/safetyiq/aicache/fingerprint"
)

// DefaultMaxSize is the entry capacity used when none is configured.
const DefaultMaxSize = 1000

// Stats is a point-in-time snapshot of store counters.
// Counters cover the process lifetime; Clear does not reset them.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	CallsSaved    uint64
	TotalRequests uint64
	Size          int
	// HitRate is hits/(hits+misses) as a percentage rounded to 2 decimals,
	// 0 when no lookups have been recorded yet.
	HitRate float64
}

// entryRecord pairs an entry with the category its key was derived from.
// The category is kept as a side index so invalidation can target a
// category exactly; the digest itself bears no relation to its inputs.
type entryRecord struct {
	entry    Entry
	category string
}

// Store is a bounded key→entry map with category-indexed invalidation and
// process-lifetime counters.
//
// Contract:
// - Concurrency: safe for concurrent use; a single mutex guards all state.
// - Lookup is a non-destructive peek: reading never removes an entry.
// - Capacity: after any Insert, size <= max size.
type Store struct {
	mu         sync.RWMutex
	maxSize    int
	entries    map[fingerprint.Digest]*entryRecord
	categories map[string]map[fingerprint.Digest]struct{}

	hits       uint64
	misses     uint64
	evictions  uint64
	callsSaved uint64
}

// NewStore creates a Store with the given entry capacity.
// A non-positive maxSize falls back to DefaultMaxSize.
func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{
		maxSize:    maxSize,
		entries:    make(map[fingerprint.Digest]*entryRecord),
		categories: make(map[string]map[fingerprint.Digest]struct{}),
	}
}

// Lookup returns the tagged state of the entry under key at the current
// time. It never removes anything, expired entries included; removal
// happens only through Insert sweeps, Remove, or InvalidateCategory.
func (s *Store) Lookup(key fingerprint.Digest) State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entries[key]
	if !ok {
		return State{Kind: StateAbsent}
	}

	kind := StateFresh
	if rec.entry.Expired(time.Now()) {
		kind = StateExpired
	}
	return State{Kind: kind, Entry: rec.entry}
}

// Insert stores an entry under key, replacing any existing entry.
// When the store is at capacity and key is new, the oldest
// max(1, ceil(size*0.1)) entries by CreatedAt are evicted first.
// Replacing an existing key never triggers a sweep.
// Returns the number of entries evicted.
func (s *Store) Insert(key fingerprint.Digest, category string, e Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	if old, ok := s.entries[key]; ok {
		if old.category != category {
			s.dropFromCategoryLocked(old.category, key)
		}
	} else if len(s.entries) >= s.maxSize {
		evicted = s.evictOldestLocked()
	}

	s.entries[key] = &entryRecord{entry: e, category: category}
	keys, ok := s.categories[category]
	if !ok {
		keys = make(map[fingerprint.Digest]struct{})
		s.categories[category] = keys
	}
	keys[key] = struct{}{}

	return evicted
}

// evictOldestLocked removes the oldest 10% of entries (at least one),
// ordered by CreatedAt ascending. Caller holds s.mu.
func (s *Store) evictOldestLocked() int {
	size := len(s.entries)
	if size == 0 {
		return 0
	}

	n := int(math.Ceil(float64(size) * 0.1))
	if n < 1 {
		n = 1
	}

	type aged struct {
		key       fingerprint.Digest
		createdAt time.Time
	}
	all := make([]aged, 0, size)
	for k, rec := range s.entries {
		all = append(all, aged{key: k, createdAt: rec.entry.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].createdAt.Before(all[j].createdAt)
	})

	for i := 0; i < n; i++ {
		s.removeLocked(all[i].key)
	}
	s.evictions += uint64(n)

	return n
}

// Remove deletes the entry under key unconditionally.
// Returns true if an entry was removed. Idempotent.
func (s *Store) Remove(key fingerprint.Digest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	s.removeLocked(key)
	return true
}

// removeLocked deletes key from both the entry map and the category index.
// Caller holds s.mu.
func (s *Store) removeLocked(key fingerprint.Digest) {
	rec, ok := s.entries[key]
	if !ok {
		return
	}
	delete(s.entries, key)
	s.dropFromCategoryLocked(rec.category, key)
}

func (s *Store) dropFromCategoryLocked(category string, key fingerprint.Digest) {
	keys, ok := s.categories[category]
	if !ok {
		return
	}
	delete(keys, key)
	if len(keys) == 0 {
		delete(s.categories, category)
	}
}

// InvalidateCategory removes every entry whose key was derived from
// exactly the given category. Returns the number of entries removed.
func (s *Store) InvalidateCategory(category string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.categories[category]
	if !ok {
		return 0
	}

	removed := 0
	for key := range keys {
		delete(s.entries, key)
		removed++
	}
	delete(s.categories, category)

	return removed
}

// RecordHit increments the entry's hit count along with the store's hits
// and calls-saved counters. Returns false if the entry no longer exists
// (removed between the caller's lookup and this call).
func (s *Store) RecordHit(key fingerprint.Digest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries[key]
	if !ok {
		return false
	}
	rec.entry.HitCount++
	s.hits++
	s.callsSaved++
	return true
}

// RecordMiss increments the store's miss counter.
func (s *Store) RecordMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

// Stats returns a snapshot of the store's counters and current size.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.hits + s.misses
	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(s.hits)/float64(total)*100*100) / 100
	}

	return Stats{
		Hits:          s.hits,
		Misses:        s.misses,
		Evictions:     s.evictions,
		CallsSaved:    s.callsSaved,
		TotalRequests: total,
		Size:          len(s.entries),
		HitRate:       rate,
	}
}

// Clear empties the store and its category index. Counters are preserved:
// they cover the process lifetime, not the life of any one population of
// entries. Use ResetStats to zero them.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[fingerprint.Digest]*entryRecord)
	s.categories = make(map[string]map[fingerprint.Digest]struct{})
	s.mu.Unlock()
}

// ResetStats zeroes all counters without touching stored entries.
func (s *Store) ResetStats() {
	s.mu.Lock()
	s.hits = 0
	s.misses = 0
	s.evictions = 0
	s.callsSaved = 0
	s.mu.Unlock()
}

// Len returns the current number of resident entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// MaxSize returns the configured entry capacity.
func (s *Store) MaxSize() int {
	return s.maxSize
}
