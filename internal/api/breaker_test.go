package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/restroommap/internal/config"
	"github.com/vyrodovalexey/restroommap/internal/retry"
)

func TestIsBreakerSuccess(t *testing.T) {
	t.Parallel()

	assert.True(t, isBreakerSuccess(nil))
	assert.True(t, isBreakerSuccess(newStatusError("GET", "/", http.StatusNotFound, nil)))
	assert.True(t, isBreakerSuccess(newStatusError("GET", "/", http.StatusTooManyRequests, nil)))
	assert.False(t, isBreakerSuccess(newStatusError("GET", "/", http.StatusBadGateway, nil)))
	assert.False(t, isBreakerSuccess(errors.New("connection refused")))
}

func TestSafeIntToUint32(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), safeIntToUint32(-5))
	assert.Equal(t, uint32(7), safeIntToUint32(7))
	assert.Equal(t, ^uint32(0), safeIntToUint32(int(^uint32(0))+1))
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var states []int
	cb := NewCircuitBreaker("test", 2, time.Minute, 1,
		WithCircuitBreakerStateCallback(func(name string, state int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, "test", name)
			states = append(states, state)
		}))

	fail := func() (interface{}, error) {
		return nil, newStatusError("GET", "/", http.StatusInternalServerError, nil)
	}

	_, _ = cb.Execute(fail)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	_, _ = cb.Execute(fail)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(fail)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{int(gobreaker.StateOpen)}, states)
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("test", 1, time.Minute, 0)
	for i := 0; i < 5; i++ {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, newStatusError("GET", "/", http.StatusNotFound, nil)
		})
		assert.True(t, IsStatus(err, http.StatusNotFound))
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestClient_CircuitOpenStopsRetries(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(t)
	backend.api.GET("/bathrooms/:id/", serveJSON(http.StatusInternalServerError, `{}`))

	client, failures := newTestClientWithConfig(t, backend, nil, func(cfg *config.Config) {
		cfg.API.CircuitBreaker = &config.CircuitBreakerConfig{
			Enabled:   true,
			Threshold: 2,
			Timeout:   config.Duration(time.Minute),
		}
	})

	assert.Nil(t, client.GetBathroom(context.Background(), 1))
	assert.Equal(t, 2, backend.Calls(http.MethodGet, "/api/bathrooms/1/"))

	reported := failures.All()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0].Err, ErrCircuitOpen)
	assert.ErrorIs(t, reported[0].Err, gobreaker.ErrOpenState)
	assert.True(t, retry.IsPermanent(reported[0].Err))

	// other requests fail fast while open
	assert.Nil(t, client.GetBathroom(context.Background(), 2))
	assert.Equal(t, 0, backend.Calls(http.MethodGet, "/api/bathrooms/2/"))
}
