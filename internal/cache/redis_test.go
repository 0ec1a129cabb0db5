package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/restroommap/internal/config"
	"github.com/vyrodovalexey/restroommap/internal/observability"
)

func newTestRedisStore(t *testing.T) (*redisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := newRedisStore(&config.StoreConfig{
		Type: config.StoreTypeRedis,
		TTL:  config.Duration(time.Hour),
		Redis: &config.RedisStoreConfig{
			URL:       "redis://" + mr.Addr(),
			KeyPrefix: "test:",
			PoolSize:  2,
		},
	}, observability.NopLogger(), observability.NewMetrics("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

func TestRedisStore_SetGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	_, err := s.Get(ctx, "GET|/bathrooms|limit=100")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, s.Set(ctx, "GET|/bathrooms|limit=100", []byte(`[{"id":1}]`), 0))

	got, err := s.Get(ctx, "GET|/bathrooms|limit=100")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(got))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "test:"))
	assert.NotContains(t, keys[0], "bathrooms")
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestRedisStore_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	assert.Empty(t, mr.Keys())
}

func TestNewStore_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	s, err := NewStore(&config.StoreConfig{
		Type:  config.StoreTypeRedis,
		Redis: &config.RedisStoreConfig{URL: "redis://" + mr.Addr()},
	}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), "k", []byte("v"), time.Minute))
	assert.True(t, strings.HasPrefix(mr.Keys()[0], defaultKeyPrefix))
}

func TestNewRedisStore_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{name: "invalid url", url: "://nope"},
		{name: "unreachable", url: "redis://127.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := newRedisStore(&config.StoreConfig{
				Type:  config.StoreTypeRedis,
				Redis: &config.RedisStoreConfig{URL: tt.url},
			}, observability.NopLogger(), nil)
			assert.Error(t, err)
		})
	}
}

func TestIsRetryableRedisError(t *testing.T) {
	t.Parallel()

	assert.False(t, isRetryableRedisError(nil))
	assert.False(t, isRetryableRedisError(context.Canceled))
	assert.False(t, isRetryableRedisError(context.DeadlineExceeded))
	assert.True(t, isRetryableRedisError(assert.AnError))
}
