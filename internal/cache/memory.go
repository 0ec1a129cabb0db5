package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/restroommap/internal/config"
	"github.com/vyrodovalexey/restroommap/internal/observability"
)

const (
	backendMemory = "memory"

	defaultMaxEntries = 1000
	cleanupInterval   = time.Minute
)

// cacheTracerName is the OpenTelemetry tracer name for store operations.
const cacheTracerName = "restroommap/cache"

// memoryStore implements an in-memory LRU store.
type memoryStore struct {
	logger     observability.Logger
	metrics    *observability.Metrics
	maxEntries int
	defaultTTL time.Duration

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List

	hits   atomic.Int64
	misses atomic.Int64

	stopCh    chan struct{}
	closeOnce sync.Once
}

// memoryEntry represents an entry in the memory store.
type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// newMemoryStore creates a new in-memory store and starts its cleanup loop.
func newMemoryStore(
	cfg *config.StoreConfig,
	logger observability.Logger,
	metrics *observability.Metrics,
) *memoryStore {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	s := &memoryStore{
		logger:     logger,
		metrics:    metrics,
		maxEntries: maxEntries,
		defaultTTL: cfg.TTL.Duration(),
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
		stopCh:     make(chan struct{}),
	}

	go s.cleanupLoop()

	logger.Debug("memory store initialized",
		observability.Int("maxEntries", maxEntries),
		observability.Duration("defaultTTL", s.defaultTTL))

	return s
}

// Get retrieves a value from the store.
func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "store.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("cache.backend", backendMemory)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, exists := s.items[key]
	if exists {
		entry := elem.Value.(*memoryEntry)
		if !entry.expired(time.Now()) {
			s.eviction.MoveToFront(elem)
			s.hits.Add(1)
			s.metrics.RecordStoreOperation(backendMemory, "get", resultHit)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return entry.value, nil
		}
		s.removeElement(elem)
	}

	s.misses.Add(1)
	s.metrics.RecordStoreOperation(backendMemory, "get", resultMiss)
	span.SetAttributes(attribute.Bool("cache.hit", false))
	return nil, ErrCacheMiss
}

// Set stores a value in the store.
func (s *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "store.Set",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", backendMemory),
			attribute.Int("cache.value_size", len(value)),
		),
	)
	defer span.End()

	if ttl == 0 {
		ttl = s.defaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	entry := &memoryEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, exists := s.items[key]; exists {
		s.eviction.MoveToFront(elem)
		elem.Value = entry
	} else {
		s.items[key] = s.eviction.PushFront(entry)
		for s.eviction.Len() > s.maxEntries {
			s.evictOldest()
		}
	}

	s.metrics.RecordStoreOperation(backendMemory, "set", resultOK)
	return nil
}

// Delete removes a value from the store.
func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, exists := s.items[key]; exists {
		s.removeElement(elem)
	}
	s.metrics.RecordStoreOperation(backendMemory, "delete", resultOK)
	return nil
}

// Close stops the cleanup loop and drops all entries.
func (s *memoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)

		s.mu.Lock()
		defer s.mu.Unlock()

		s.items = make(map[string]*list.Element)
		s.eviction.Init()
	})
	return nil
}

// Stats returns store statistics.
func (s *memoryStore) Stats() StoreStats {
	s.mu.Lock()
	size := int64(s.eviction.Len())
	s.mu.Unlock()

	return StoreStats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Size:   size,
	}
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (s *memoryStore) evictOldest() {
	if elem := s.eviction.Back(); elem != nil {
		s.removeElement(elem)
		s.metrics.RecordStoreOperation(backendMemory, "evict", resultOK)
	}
}

// removeElement removes an element from the store.
// Must be called with lock held.
func (s *memoryStore) removeElement(elem *list.Element) {
	s.eviction.Remove(elem)
	delete(s.items, elem.Value.(*memoryEntry).key)
}

// cleanupLoop periodically removes expired entries.
func (s *memoryStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup removes expired entries.
func (s *memoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var removed int

	for elem := s.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).expired(now) {
			s.removeElement(elem)
			removed++
		}
		elem = prev
	}

	if removed > 0 {
		s.logger.Debug("store cleanup completed",
			observability.Int("removed", removed))
	}
}
