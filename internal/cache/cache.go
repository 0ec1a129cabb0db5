package cache

import (
	"context"
	"errors"
	"time"

	"github.com/vyrodovalexey/restroommap/internal/config"
	"github.com/vyrodovalexey/restroommap/internal/observability"
)

// Common cache errors.
var (
	// ErrCacheMiss indicates that the key was not found in the store.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidConfig indicates that the store configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrClosed is returned by a Dedup after Close.
	ErrClosed = errors.New("cache closed")

	// ErrInvalidTTL is returned when a non-positive TTL is given to Execute.
	ErrInvalidTTL = errors.New("ttl must be positive")

	// ErrTypeMismatch is returned when callers sharing a key expect
	// different result types.
	ErrTypeMismatch = errors.New("cached result has unexpected type")

	// ErrOperationPanicked wraps a panic raised by a deduplicated operation.
	ErrOperationPanicked = errors.New("operation panicked")
)

// Store is a byte-oriented key/value store with per-entry TTL.
type Store interface {
	// Get retrieves a value from the store.
	// Returns ErrCacheMiss if the key is not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	// A TTL of 0 means the store's default TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the store.
	Delete(ctx context.Context, key string) error

	// Close releases the store's resources.
	Close() error
}

// StoreWithStats extends Store with statistics.
type StoreWithStats interface {
	Store

	// Stats returns store statistics.
	Stats() StoreStats
}

// StoreStats contains store statistics.
type StoreStats struct {
	Hits   int64
	Misses int64
	Size   int64
}

// HitRate returns the hit rate as a percentage.
func (s StoreStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// NewStore creates a snapshot store based on the configuration.
func NewStore(
	cfg *config.StoreConfig,
	logger observability.Logger,
	metrics *observability.Metrics,
) (Store, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.StoreTypeMemory, "":
		return newMemoryStore(cfg, logger, metrics), nil
	case config.StoreTypeRedis:
		return newRedisStore(cfg, logger, metrics)
	default:
		return nil, errors.New("unknown store type: " + cfg.Type)
	}
}

// store operation results recorded in metrics.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultOK    = "ok"
	resultError = "error"
)
