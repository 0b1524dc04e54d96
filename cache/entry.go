package cache

import (
	"time"

	"github.com/safetyiq/aicache/fingerprint"
)

// Entry is one cached AI response with its metadata. Entries are owned by
// the Store; callers receive snapshot copies and never mutate them directly.
type Entry struct {
	// Response is the cached payload, opaque to the cache.
	Response string

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time

	// Fingerprint is the digest of the source payload at creation time.
	// Informational: because keys are derived from the full payload, a key
	// match implies a fingerprint match. It is surfaced for telemetry only.
	Fingerprint fingerprint.Digest

	// HitCount is how many times the entry has been served. Monotonically
	// non-decreasing; incremented only via Store.RecordHit.
	HitCount int64

	// TTL is the hard expiry window.
	TTL time.Duration
}

// Expired reports whether the entry's TTL has elapsed at now.
// Pure: the entry is never mutated by expiry checks.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Fresh reports whether the entry is inside the fresh window at now.
// The fresh window is a shorter, informational threshold inside the TTL
// separating "definitely current" from "acceptable staleness".
func (e Entry) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(e.CreatedAt) < window
}

// StateKind tags the outcome of a Store lookup.
type StateKind int

const (
	// StateAbsent means no entry exists for the key.
	StateAbsent StateKind = iota
	// StateFresh means a servable entry exists (within its TTL).
	StateFresh
	// StateExpired means an entry exists but its TTL has elapsed.
	// The entry stays resident and usable as a degraded fallback.
	StateExpired
)

// String returns the string representation of the state kind.
func (k StateKind) String() string {
	switch k {
	case StateAbsent:
		return "absent"
	case StateFresh:
		return "fresh"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// State is the tagged result of a Store lookup. Entry is a snapshot copy
// and is the zero value when Kind == StateAbsent.
type State struct {
	Kind  StateKind
	Entry Entry
}
