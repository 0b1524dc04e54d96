package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/safetyiq/aicache/observe"
)

// Default thresholds, matching the configuration surface defaults.
const (
	DefaultBatchSize    = 5
	DefaultBatchTimeout = 2 * time.Second
)

// ErrNilHandler indicates Enqueue was called without a handler.
var ErrNilHandler = errors.New("batch: handler is nil")

// Handler processes one batched payload when its batch is released.
// A handler error (or panic) is logged and delivered on the item's result
// channel; it never aborts the remaining items in the batch.
type Handler func(payload any) error

type item struct {
	payload    any
	handler    Handler
	enqueuedAt time.Time
	done       chan error
}

type pendingBatch struct {
	items     []item
	startedAt time.Time
}

// Batcher accumulates requests per category and flushes a category when it
// reaches the batch size or its oldest item exceeds the batch timeout.
// Triggers are checked after every enqueue; there is no background timer,
// so a lone item sits until the next enqueue or an explicit Flush.
//
// Contract:
// - Concurrency: safe for concurrent use; one mutex guards the pending map.
// - Ordering: handlers run in enqueue order within a batch.
// - Handlers run outside the lock; a batch is detached before its handlers
//   run, so a handler may safely enqueue into the same category.
type Batcher struct {
	mu        sync.Mutex
	batchSize int
	timeout   time.Duration
	pending   map[string]*pendingBatch
	logger    observe.Logger
	metrics   observe.Metrics
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithLogger attaches a structured logger.
func WithLogger(l observe.Logger) Option {
	return func(b *Batcher) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(b *Batcher) {
		if m != nil {
			b.metrics = m
		}
	}
}

// New creates a Batcher. Non-positive thresholds fall back to the defaults.
func New(batchSize int, timeout time.Duration, opts ...Option) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}

	b := &Batcher{
		batchSize: batchSize,
		timeout:   timeout,
		pending:   make(map[string]*pendingBatch),
		logger:    observe.NewNoopLogger(),
		metrics:   observe.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enqueue appends the payload to the category's pending batch and returns a
// channel that receives the handler's result (nil on success) once the
// batch is released. The channel is buffered; the caller may await it or
// drop it.
//
// After appending, the batch is flushed immediately when it has reached the
// batch size or its first item has waited at least the batch timeout.
func (b *Batcher) Enqueue(ctx context.Context, category string, payload any, h Handler) <-chan error {
	done := make(chan error, 1)
	if h == nil {
		done <- ErrNilHandler
		close(done)
		return done
	}

	now := time.Now()

	b.mu.Lock()
	pb, ok := b.pending[category]
	if !ok {
		pb = &pendingBatch{startedAt: now}
		b.pending[category] = pb
	}
	pb.items = append(pb.items, item{
		payload:    payload,
		handler:    h,
		enqueuedAt: now,
		done:       done,
	})

	var detached []item
	if len(pb.items) >= b.batchSize || now.Sub(pb.startedAt) >= b.timeout {
		detached = pb.items
		delete(b.pending, category)
	}
	b.mu.Unlock()

	if detached != nil {
		b.process(ctx, category, detached)
	}

	return done
}

// Flush releases the category's pending batch regardless of thresholds.
// Returns the number of items released.
func (b *Batcher) Flush(ctx context.Context, category string) int {
	b.mu.Lock()
	pb, ok := b.pending[category]
	if ok {
		delete(b.pending, category)
	}
	b.mu.Unlock()

	if !ok {
		return 0
	}
	b.process(ctx, category, pb.items)
	return len(pb.items)
}

// FlushAll releases every pending batch. Returns the total items released.
func (b *Batcher) FlushAll(ctx context.Context) int {
	b.mu.Lock()
	detached := b.pending
	b.pending = make(map[string]*pendingBatch)
	b.mu.Unlock()

	total := 0
	for category, pb := range detached {
		b.process(ctx, category, pb.items)
		total += len(pb.items)
	}
	return total
}

// Pending returns the number of items currently waiting in the category.
func (b *Batcher) Pending(category string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pb, ok := b.pending[category]; ok {
		return len(pb.items)
	}
	return 0
}

// process invokes each item's handler in enqueue order, outside the lock.
func (b *Batcher) process(ctx context.Context, category string, items []item) {
	b.metrics.RecordBatchFlush(ctx, category, len(items))
	b.logger.Info(ctx, "processing batch",
		observe.Field{Key: "category", Value: category},
		observe.Field{Key: "items", Value: len(items)},
	)

	for _, it := range items {
		err := b.invoke(it)
		if err != nil {
			b.logger.Error(ctx, "batched handler failed",
				observe.Field{Key: "category", Value: category},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
		it.done <- err
		close(it.done)
	}
}

// invoke runs a single handler, converting a panic into an error so one bad
// handler cannot abort the rest of the batch.
func (b *Batcher) invoke(it item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch: handler panicked: %v", r)
		}
	}()
	return it.handler(it.payload)
}
