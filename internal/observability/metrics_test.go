package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	m.RecordDedupLookup(LookupHit)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "restroommap_dedup_lookups_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")
	m.RecordRequest(http.MethodGet, "/api/bathrooms", http.StatusOK, 10*time.Millisecond)
	m.RecordRequest(http.MethodGet, "/api/bathrooms", 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.requestsTotal.WithLabelValues(http.MethodGet, "/api/bathrooms", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.requestsTotal.WithLabelValues(http.MethodGet, "/api/bathrooms", statusError)))
}

func TestMetrics_RetryAndDedup(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")
	m.RecordRetryAttempt("getBathrooms")
	m.RecordRetryAttempt("getBathrooms")
	m.RecordRetryOutcome("getBathrooms", nil)
	m.RecordRetryOutcome("getBathrooms", errors.New("failed"))
	m.RecordDedupLookup(LookupMiss)
	m.RecordDedupEviction()
	m.SetDedupEntries(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.retryAttempts.WithLabelValues("getBathrooms")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retryOutcomes.WithLabelValues("getBathrooms", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retryOutcomes.WithLabelValues("getBathrooms", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dedupLookups.WithLabelValues(LookupMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dedupEvictions))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.dedupEntries))
}

func TestMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest(http.MethodGet, "/", 200, time.Second)
		m.RecordRetryAttempt("op")
		m.RecordRetryOutcome("op", nil)
		m.RecordDedupLookup(LookupBypass)
		m.RecordDedupEviction()
		m.SetDedupEntries(1)
		m.RecordStoreOperation("memory", "get", "hit")
		m.SetCircuitBreakerState("api", 2)
		m.RecordRateLimitWait(time.Millisecond)
		m.RecordFallback("getBathrooms", "snapshot")
		m.SetBuildInfo("v", "c", "t")
	})
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")
	m.SetBuildInfo("1.0.0", "abc", "now")
	m.RecordFallback("getBathrooms", "empty")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_build_info")
	assert.Contains(t, rec.Body.String(), "test_client_fallback_responses_total")
}
