package api

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/restroommap/internal/cache"
	"github.com/vyrodovalexey/restroommap/internal/config"
	"github.com/vyrodovalexey/restroommap/internal/observability"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c, err := New(nil)
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.pool)
	assert.NotNil(t, c.Dedup())
	assert.Nil(t, c.snapshots)
	assert.Nil(t, c.transport.limiter)
	assert.Nil(t, c.transport.breaker)

	assert.Equal(t, 5, c.readProfile.MaxRetries)
	assert.Equal(t, time.Second, c.readProfile.InitialDelay)
	assert.Equal(t, 2, c.mutationProfile.MaxRetries)
	assert.Equal(t, 2*time.Second, c.mutationProfile.InitialDelay)
	assert.Equal(t, "_t", c.Dedup().Policy().BucketParam)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "not a url"
	cfg.Retry.Read.MaxRetries = -1

	_, err := New(cfg)
	require.Error(t, err)

	var verrs config.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestNew_RedisSnapshotStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig()
	cfg.Fallback.Enabled = true
	cfg.Fallback.Store = config.StoreConfig{
		Type: config.StoreTypeRedis,
		TTL:  config.Duration(time.Hour),
		Redis: &config.RedisStoreConfig{
			URL: "redis://" + mr.Addr(),
		},
	}

	c, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, c.snapshots)
	c.Close()
	c.Close()
}

func TestNew_UnreachableRedisFails(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Fallback.Enabled = true
	cfg.Fallback.Store = config.StoreConfig{
		Type: config.StoreTypeRedis,
		Redis: &config.RedisStoreConfig{
			URL:         "redis://127.0.0.1:1",
			ConnTimeout: config.Duration(50 * time.Millisecond),
		},
	}

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestClient_SharedDedupIsNotClosed(t *testing.T) {
	t.Parallel()

	d := cache.NewDedup(cache.DefaultKeyPolicy())
	defer func() { _ = d.Close() }()

	c, err := New(nil, WithDedup(d))
	require.NoError(t, err)
	c.Close()

	_, err = cache.Execute(context.Background(), d, cache.RequestKey{Method: "GET", Path: "/x"}, time.Second,
		func(context.Context) (int, error) { return 1, nil })
	assert.NoError(t, err)
}

func TestClient_RetryHookObservesRetries(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	backend.api.POST("/reviews/", serveJSON(http.StatusBadGateway, `{}`))

	var mu sync.Mutex
	var attempts []int
	profile := fastProfile(2).WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, attempt)
	})

	metrics := observability.NewMetrics("test")
	client, _ := newTestClient(t, backend, nil, WithMutationProfile(profile), WithMetrics(metrics))

	assert.Nil(t, client.CreateReview(context.Background(), ReviewInput{BathroomID: 1, Rating: 5}))

	mu.Lock()
	assert.Equal(t, []int{1, 2}, attempts)
	mu.Unlock()

	assert.Positive(t, testutil.CollectAndCount(metrics.Registry(), "test_retry_attempts_total"))
}

func TestClient_MetricsRecordRequests(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	backend.api.GET("/bathrooms/:id/", serveJSON(http.StatusOK, bathroomJSON))

	metrics := observability.NewMetrics("test")
	client, _ := newTestClient(t, backend, nil, WithMetrics(metrics))

	require.NotNil(t, client.GetBathroom(context.Background(), 7))
	require.NotNil(t, client.GetBathroom(context.Background(), 7))

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.Registry(), "test_client_requests_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Registry(), "test_dedup_lookups_total"))
}

func TestClient_LogsFailures(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	backend.api.GET("/bathrooms/:id/", serveJSON(http.StatusNotFound, `{}`))

	var buf syncBuffer
	logger, err := observability.NewLoggerWithWriter(observability.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	client, _ := newTestClient(t, backend, nil, WithLogger(logger))
	ctx := observability.ContextWithRequestID(context.Background(), "req-log")

	assert.Nil(t, client.GetBathroom(ctx, 9))

	out := buf.String()
	assert.Contains(t, out, `"message":"api request failed"`)
	assert.Contains(t, out, `"operation":"GetBathroom"`)
	assert.Contains(t, out, `"request_id":"req-log"`)
}

// syncBuffer is a bytes.Buffer safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
