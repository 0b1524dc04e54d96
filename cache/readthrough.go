package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/safetyiq/aicache/fingerprint"
	"github.com/safetyiq/aicache/observe"
)

// Generator produces the expensive response on a cache miss, typically by
// calling the upstream model. It may block on network I/O and always runs
// outside the store's lock.
type Generator func(ctx context.Context) (string, error)

// Policy configures read-through defaults.
type Policy struct {
	// DefaultTTL is the TTL used when a request does not specify one.
	DefaultTTL time.Duration

	// MaxTTL caps request TTLs. Zero means no cap.
	MaxTTL time.Duration

	// FreshWindow is the default informational freshness threshold.
	// Hits past it but inside the TTL are still served, labeled "aging".
	FreshWindow time.Duration
}

// DefaultPolicy returns the default read-through policy.
// DefaultTTL: 1 hour, MaxTTL: 24 hours, FreshWindow: 5 minutes.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL:  time.Hour,
		MaxTTL:      24 * time.Hour,
		FreshWindow: 5 * time.Minute,
	}
}

// EffectiveTTL returns the TTL to use, applying the default and the cap.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}

// EffectiveFreshWindow returns the fresh window to use.
func (p Policy) EffectiveFreshWindow(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return p.FreshWindow
}

// Request describes one cacheable operation.
type Request struct {
	// Category groups logically related payloads (the prompt type).
	Category string

	// Payload is the structured data the response is derived from.
	Payload any

	// Params are extra key-affecting parameters (tone, length, model).
	Params any

	// TTL overrides the policy default when positive.
	TTL time.Duration

	// FreshWindow overrides the policy default when positive.
	FreshWindow time.Duration
}

// Fetcher orchestrates ask-cache, generate-on-miss, store, and
// fall-back-to-stale for any expensive cacheable operation.
//
// Contract:
// - Concurrency: safe for concurrent use. Concurrent fetches of the same
//   cold key share one in-flight generation (singleflight).
// - Errors: internal cache failures degrade to calling the generator
//   directly; only generator errors propagate, and only when no stale
//   fallback is resident.
// - Side effects: at most one entry write per successful generation;
//   no write on failure.
type Fetcher struct {
	store   *Store
	policy  Policy
	group   singleflight.Group
	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLogger attaches a structured logger.
func WithLogger(l observe.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m observe.Metrics) FetcherOption {
	return func(f *Fetcher) {
		if m != nil {
			f.metrics = m
		}
	}
}

// WithTracer attaches a tracer for generation spans.
func WithTracer(t observe.Tracer) FetcherOption {
	return func(f *Fetcher) {
		if t != nil {
			f.tracer = t
		}
	}
}

// NewFetcher creates a Fetcher over the given store.
// Telemetry defaults to no-ops until overridden by options.
func NewFetcher(store *Store, policy Policy, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		store:   store,
		policy:  policy,
		logger:  observe.NewNoopLogger(),
		metrics: observe.NewNoopMetrics(),
		tracer:  observe.NewNoopTracer(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Store returns the underlying store, for stats and invalidation.
func (f *Fetcher) Store() *Store {
	return f.store
}

// Fetch returns the cached response for the request if a servable entry
// exists, otherwise generates, stores, and returns a new one.
//
// When the payload cannot be fingerprinted the cache is bypassed entirely
// and the generator's result is returned as-is; the store's hit/miss
// counters are untouched (the bypass is visible only in telemetry).
// When generation fails and an expired entry is still resident, that stale
// response is returned as a degraded fallback; otherwise the generator's
// error propagates unchanged.
func (f *Fetcher) Fetch(ctx context.Context, req Request, gen Generator) (string, error) {
	if gen == nil {
		return "", ErrNilGenerator
	}

	meta := observe.CallMeta{Category: req.Category}

	if f.store == nil {
		// Fail-open: a missing store must not fail the caller's request.
		return f.generate(ctx, meta, gen)
	}

	key, err := fingerprint.Key(req.Category, req.Payload, req.Params)
	if err != nil {
		f.metrics.RecordLookup(ctx, req.Category, observe.OutcomeBypass, observe.FreshnessNone)
		f.logger.Warn(ctx, "payload not canonicalizable, bypassing cache",
			observe.Field{Key: "category", Value: req.Category},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return f.generate(ctx, meta, gen)
	}
	meta.Key = key.String()

	window := f.policy.EffectiveFreshWindow(req.FreshWindow)

	state := f.store.Lookup(key)
	switch state.Kind {
	case StateFresh:
		f.store.RecordHit(key)
		freshness := observe.FreshnessAging
		if state.Entry.Fresh(time.Now(), window) {
			freshness = observe.FreshnessFresh
		}
		f.metrics.RecordLookup(ctx, req.Category, observe.OutcomeHit, freshness)
		return state.Entry.Response, nil

	case StateAbsent:
		f.store.RecordMiss()
		f.metrics.RecordLookup(ctx, req.Category, observe.OutcomeMiss, observe.FreshnessNone)

	case StateExpired:
		meta.Stale = true
		f.metrics.RecordLookup(ctx, req.Category, observe.OutcomeExpired, observe.FreshnessNone)
	}

	ttl := f.policy.EffectiveTTL(req.TTL)

	v, err, _ := f.group.Do(key.String(), func() (any, error) {
		// A flight we joined late may already have refreshed the entry.
		if st := f.store.Lookup(key); st.Kind == StateFresh {
			return st.Entry.Response, nil
		}

		resp, genErr := f.generate(ctx, meta, gen)
		if genErr != nil {
			return nil, genErr
		}

		// Key derivation succeeded above, so the payload canonicalizes.
		fp, _ := fingerprint.Payload(req.Payload)

		evicted := f.store.Insert(key, req.Category, Entry{
			Response:    resp,
			CreatedAt:   time.Now(),
			Fingerprint: fp,
			TTL:         ttl,
		})
		f.metrics.RecordEvictions(ctx, int64(evicted))
		return resp, nil
	})
	if err != nil {
		if state.Kind == StateExpired {
			f.metrics.RecordStaleServed(ctx, req.Category)
			f.logger.Warn(ctx, "generation failed, serving stale cached response",
				observe.Field{Key: "category", Value: req.Category},
				observe.Field{Key: "age", Value: time.Since(state.Entry.CreatedAt).String()},
				observe.Field{Key: "error", Value: err.Error()},
			)
			return state.Entry.Response, nil
		}
		return "", err
	}

	return v.(string), nil
}

// generate runs the generator outside any lock, wrapped in a span and
// duration metrics.
func (f *Fetcher) generate(ctx context.Context, meta observe.CallMeta, gen Generator) (string, error) {
	ctx, span := f.tracer.StartSpan(ctx, meta)
	start := time.Now()

	resp, err := gen(ctx)

	duration := time.Since(start)
	f.tracer.EndSpan(span, err)
	f.metrics.RecordGeneration(ctx, meta.Category, duration, err)

	if err != nil {
		f.logger.Error(ctx, "generation failed",
			observe.Field{Key: "category", Value: meta.Category},
			observe.Field{Key: "duration_ms", Value: float64(duration.Milliseconds())},
			observe.Field{Key: "error", Value: err.Error()},
		)
	} else {
		f.logger.Debug(ctx, "generation completed",
			observe.Field{Key: "category", Value: meta.Category},
			observe.Field{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		)
	}

	return resp, err
}
