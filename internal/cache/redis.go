package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/restroommap/internal/config"
	"github.com/vyrodovalexey/restroommap/internal/observability"
	"github.com/vyrodovalexey/restroommap/internal/retry"
)

const (
	backendRedis = "redis"

	defaultKeyPrefix = "restroommap:"
	pingTimeout      = 5 * time.Second
)

// redisRetryProfile returns the retry profile for Redis operations.
func redisRetryProfile(operation string, logger observability.Logger) retry.Profile {
	return retry.DefaultProfile().
		WithOperation(operation).
		WithMaxRetries(3).
		WithInitialDelay(100 * time.Millisecond).
		WithMaxDelay(2 * time.Second).
		WithRetryable(isRetryableRedisError).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Debug("retrying redis operation",
				observability.String("operation", operation),
				observability.Int("attempt", attempt),
				observability.Duration("delay", delay),
				observability.Error(err))
		})
}

// isRetryableRedisError checks if the error is retryable (network/connection errors).
func isRetryableRedisError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// redisStore implements a Redis-backed store.
type redisStore struct {
	logger     observability.Logger
	metrics    *observability.Metrics
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// newRedisStore creates a Redis store and verifies the connection.
func newRedisStore(
	cfg *config.StoreConfig,
	logger observability.Logger,
	metrics *observability.Metrics,
) (*redisStore, error) {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		return nil, fmt.Errorf("%w: redis url is required", ErrInvalidConfig)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	applyRedisPoolOptions(opts, cfg.Redis)

	client := redis.NewClient(opts)

	if err := pingRedis(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	keyPrefix := cfg.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}

	s := &redisStore{
		logger:     logger,
		metrics:    metrics,
		client:     client,
		keyPrefix:  keyPrefix,
		defaultTTL: cfg.TTL.Duration(),
	}

	logger.Debug("redis store initialized",
		observability.String("keyPrefix", keyPrefix),
		observability.Duration("defaultTTL", s.defaultTTL))

	return s, nil
}

// applyRedisPoolOptions applies pool and timeout configuration overrides to Redis options.
func applyRedisPoolOptions(opts *redis.Options, redisCfg *config.RedisStoreConfig) {
	if redisCfg.PoolSize > 0 {
		opts.PoolSize = redisCfg.PoolSize
	}
	if redisCfg.ConnTimeout > 0 {
		opts.DialTimeout = redisCfg.ConnTimeout.Duration()
	}
	if redisCfg.ReadTimeout > 0 {
		opts.ReadTimeout = redisCfg.ReadTimeout.Duration()
	}
	if redisCfg.WriteTimeout > 0 {
		opts.WriteTimeout = redisCfg.WriteTimeout.Duration()
	}
}

// pingRedis tests the Redis connection with a timeout.
func pingRedis(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

// resolveKey prefixes the hashed key so arbitrary request keys stay bounded.
func (s *redisStore) resolveKey(key string) string {
	return s.keyPrefix + HashKey(key)
}

// Get retrieves a value from Redis with exponential backoff retry.
func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "store.Get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("cache.backend", backendRedis)),
	)
	defer span.End()

	fullKey := s.resolveKey(key)

	result, err := retry.Do(ctx, redisRetryProfile("redis.get", s.logger), func(ctx context.Context) ([]byte, error) {
		return s.client.Get(ctx, fullKey).Bytes()
	})

	switch {
	case err == nil:
		s.hits.Add(1)
		s.metrics.RecordStoreOperation(backendRedis, "get", resultHit)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return result, nil
	case errors.Is(err, redis.Nil):
		s.misses.Add(1)
		s.metrics.RecordStoreOperation(backendRedis, "get", resultMiss)
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	default:
		s.metrics.RecordStoreOperation(backendRedis, "get", resultError)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.logger.Error("redis get failed", observability.Error(err))
		return nil, err
	}
}

// Set stores a value in Redis with exponential backoff retry.
func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "store.Set",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", backendRedis),
			attribute.Int("cache.value_size", len(value)),
		),
	)
	defer span.End()

	if ttl == 0 {
		ttl = s.defaultTTL
	}

	fullKey := s.resolveKey(key)

	_, err := retry.Do(ctx, redisRetryProfile("redis.set", s.logger), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.client.Set(ctx, fullKey, value, ttl).Err()
	})
	if err != nil {
		s.metrics.RecordStoreOperation(backendRedis, "set", resultError)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		s.logger.Error("redis set failed", observability.Error(err))
		return err
	}

	s.metrics.RecordStoreOperation(backendRedis, "set", resultOK)
	return nil
}

// Delete removes a value from Redis with exponential backoff retry.
func (s *redisStore) Delete(ctx context.Context, key string) error {
	fullKey := s.resolveKey(key)

	_, err := retry.Do(ctx, redisRetryProfile("redis.delete", s.logger), func(ctx context.Context) (int64, error) {
		return s.client.Del(ctx, fullKey).Result()
	})
	if err != nil {
		s.metrics.RecordStoreOperation(backendRedis, "delete", resultError)
		s.logger.Error("redis delete failed", observability.Error(err))
		return err
	}

	s.metrics.RecordStoreOperation(backendRedis, "delete", resultOK)
	return nil
}

// Close closes the Redis client.
func (s *redisStore) Close() error {
	return s.client.Close()
}

// Stats returns store statistics. Size is not tracked for Redis.
func (s *redisStore) Stats() StoreStats {
	return StoreStats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
}
