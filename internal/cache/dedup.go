package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/restroommap/internal/observability"
)

// DefaultDedupTTL is the TTL used when callers do not pick one.
const DefaultDedupTTL = 5 * time.Second

// dedupEntry is one shared call. value and err are written once before
// done is closed and only read after.
type dedupEntry struct {
	done  chan struct{}
	value any
	err   error
	timer *time.Timer
}

// Dedup collapses concurrent identical requests into a single call.
//
// The first caller for a normalized key starts the operation and stores
// the pending entry immediately, so every caller arriving before the TTL
// expires shares that call's result or error. Entries are evicted TTL
// after the call started, whether it succeeded or failed, unless
// WithEvictOnError is set.
type Dedup struct {
	policy       KeyPolicy
	logger       observability.Logger
	metrics      *observability.Metrics
	tracer       *observability.Tracer
	evictOnError bool

	mu      sync.Mutex
	entries map[string]*dedupEntry
	closed  bool

	hits      atomic.Int64
	misses    atomic.Int64
	bypasses  atomic.Int64
	evictions atomic.Int64
}

// DedupStats contains deduplication statistics.
type DedupStats struct {
	Hits      int64
	Misses    int64
	Bypasses  int64
	Evictions int64
	Entries   int
}

// DedupOption is a functional option for configuring a Dedup.
type DedupOption func(*Dedup)

// WithDedupLogger sets the logger.
func WithDedupLogger(logger observability.Logger) DedupOption {
	return func(d *Dedup) {
		d.logger = logger
	}
}

// WithDedupMetrics sets the metrics recorder.
func WithDedupMetrics(metrics *observability.Metrics) DedupOption {
	return func(d *Dedup) {
		d.metrics = metrics
	}
}

// WithDedupTracer sets the tracer used for lookup spans.
func WithDedupTracer(tracer *observability.Tracer) DedupOption {
	return func(d *Dedup) {
		d.tracer = tracer
	}
}

// WithEvictOnError removes an entry as soon as its call fails instead of
// replaying the error to later callers until the TTL expires.
func WithEvictOnError(enabled bool) DedupOption {
	return func(d *Dedup) {
		d.evictOnError = enabled
	}
}

// NewDedup creates a new request deduplication cache.
func NewDedup(policy KeyPolicy, opts ...DedupOption) *Dedup {
	d := &Dedup{
		policy:  policy,
		logger:  observability.NopLogger(),
		entries: make(map[string]*dedupEntry),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Policy returns the key policy.
func (d *Dedup) Policy() KeyPolicy {
	return d.policy
}

// Execute runs op at most once per normalized key and TTL window and
// returns its result to every caller sharing the key.
//
// Keys matching the bypass policy call op directly every time. The shared
// call runs detached from any caller's cancellation; a caller whose ctx is
// done stops waiting and gets ctx.Err() while the call keeps running for
// the others.
func Execute[T any](
	ctx context.Context,
	d *Dedup,
	key RequestKey,
	ttl time.Duration,
	op func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	if ttl <= 0 {
		return zero, ErrInvalidTTL
	}

	if d.policy.Bypass(key) {
		d.bypasses.Add(1)
		d.metrics.RecordDedupLookup(observability.LookupBypass)
		d.logger.Debug("dedup bypassed",
			observability.String("key", key.String()))
		return op(ctx)
	}

	normalized := d.policy.Normalize(key)

	ctx, span := d.tracer.StartSpan(ctx, "dedup.Execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("dedup.key", normalized)),
	)
	defer span.End()

	e, hit, err := d.lookup(ctx, normalized, ttl, func(opCtx context.Context) (any, error) {
		return op(opCtx)
	})
	if err != nil {
		return zero, err
	}
	span.SetAttributes(attribute.Bool("dedup.hit", hit))

	select {
	case <-e.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	if e.err != nil {
		return zero, e.err
	}
	if e.value == nil {
		return zero, nil
	}
	v, ok := e.value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrTypeMismatch, e.value, zero)
	}
	return v, nil
}

// lookup returns the live entry for key, starting op and inserting a new
// entry when there is none. Lookup and insert happen under one lock.
func (d *Dedup) lookup(
	ctx context.Context,
	key string,
	ttl time.Duration,
	op func(ctx context.Context) (any, error),
) (*dedupEntry, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, false, ErrClosed
	}

	if e, ok := d.entries[key]; ok {
		d.hits.Add(1)
		d.metrics.RecordDedupLookup(observability.LookupHit)
		d.logger.Debug("dedup hit", observability.String("key", key))
		return e, true, nil
	}

	e := &dedupEntry{done: make(chan struct{})}
	d.entries[key] = e
	e.timer = time.AfterFunc(ttl, func() {
		d.expire(key, e)
	})

	d.misses.Add(1)
	d.metrics.RecordDedupLookup(observability.LookupMiss)
	d.metrics.SetDedupEntries(len(d.entries))
	d.logger.Debug("dedup miss",
		observability.String("key", key),
		observability.Duration("ttl", ttl))

	go d.run(context.WithoutCancel(ctx), key, e, op)

	return e, false, nil
}

// run executes op and publishes its outcome on e.
func (d *Dedup) run(
	ctx context.Context,
	key string,
	e *dedupEntry,
	op func(ctx context.Context) (any, error),
) {
	defer func() {
		if r := recover(); r != nil {
			e.value = nil
			e.err = fmt.Errorf("%w: %v", ErrOperationPanicked, r)
			d.logger.Error("deduplicated operation panicked",
				observability.String("key", key),
				observability.Any("panic", r))
		}
		close(e.done)

		if e.err != nil && d.evictOnError {
			d.remove(key, e)
		}
	}()

	e.value, e.err = op(ctx)
}

// expire evicts e when its TTL elapses, unless key was already replaced.
func (d *Dedup) expire(key string, e *dedupEntry) {
	if d.remove(key, e) {
		d.evictions.Add(1)
		d.metrics.RecordDedupEviction()
	}
}

// remove deletes key if it still maps to e.
func (d *Dedup) remove(key string, e *dedupEntry) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.entries[key] != e {
		return false
	}
	e.timer.Stop()
	delete(d.entries, key)
	d.metrics.SetDedupEntries(len(d.entries))
	return true
}

// Remove evicts the entry for key, if any. Callers already waiting on it
// still receive its result.
func (d *Dedup) Remove(key RequestKey) {
	normalized := d.policy.Normalize(key)

	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[normalized]; ok {
		e.timer.Stop()
		delete(d.entries, normalized)
		d.metrics.SetDedupEntries(len(d.entries))
	}
}

// Clear evicts all entries.
func (d *Dedup) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.clearLocked()
}

func (d *Dedup) clearLocked() {
	for _, e := range d.entries {
		e.timer.Stop()
	}
	d.entries = make(map[string]*dedupEntry)
	d.metrics.SetDedupEntries(0)
}

// Len returns the number of live entries.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.entries)
}

// Stats returns deduplication statistics.
func (d *Dedup) Stats() DedupStats {
	return DedupStats{
		Hits:      d.hits.Load(),
		Misses:    d.misses.Load(),
		Bypasses:  d.bypasses.Load(),
		Evictions: d.evictions.Load(),
		Entries:   d.Len(),
	}
}

// Close stops all eviction timers and rejects further calls with
// ErrClosed. Calls already in flight run to completion.
func (d *Dedup) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.clearLocked()

	return nil
}
