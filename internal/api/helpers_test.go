package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/restroommap/internal/config"
	"github.com/vyrodovalexey/restroommap/internal/retry"
)

// recordedRequest is a request seen by the fake backend.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// fakeBackend is a gin server standing in for the REST API under /api.
type fakeBackend struct {
	server *httptest.Server
	router *gin.Engine
	api    *gin.RouterGroup

	mu       sync.Mutex
	requests []recordedRequest
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &fakeBackend{router: gin.New()}
	b.router.Use(b.record)
	b.api = b.router.Group("/api")
	b.server = httptest.NewServer(b.router)
	t.Cleanup(b.server.Close)

	return b
}

func (b *fakeBackend) record(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	b.mu.Lock()
	b.requests = append(b.requests, recordedRequest{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.Query(),
		Header: c.Request.Header.Clone(),
		Body:   body,
	})
	b.mu.Unlock()

	c.Next()
}

// URL returns the API base URL.
func (b *fakeBackend) URL() string {
	return b.server.URL + "/api"
}

// Calls counts the requests with the given method and path.
func (b *fakeBackend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, r := range b.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent request with the given method and path.
func (b *fakeBackend) Last(t *testing.T, method, path string) recordedRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.requests) - 1; i >= 0; i-- {
		if r := b.requests[i]; r.Method == method && r.Path == path {
			return r
		}
	}
	t.Fatalf("no %s %s request recorded", method, path)
	return recordedRequest{}
}

// Total returns the number of recorded requests.
func (b *fakeBackend) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fastProfile retries quickly and deterministically.
func fastProfile(maxRetries int) retry.Profile {
	return retry.DefaultProfile().
		WithMaxRetries(maxRetries).
		WithInitialDelay(time.Millisecond).
		WithMaxDelay(time.Millisecond).
		WithJitter(false)
}

// failure is an error reported through the client's ErrorHandler.
type failure struct {
	Operation string
	Err       error
}

// failureRecorder collects reported failures.
type failureRecorder struct {
	mu       sync.Mutex
	failures []failure
}

func (r *failureRecorder) Handle(operation string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, failure{Operation: operation, Err: err})
}

func (r *failureRecorder) All() []failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]failure(nil), r.failures...)
}

// newTestClient builds a client against b with fast retry profiles and a
// fixed clock. Extra options are applied last.
func newTestClient(t *testing.T, b *fakeBackend, clock *testClock, opts ...Option) (*Client, *failureRecorder) {
	t.Helper()
	return newTestClientWithConfig(t, b, clock, nil, opts...)
}

func newTestClientWithConfig(
	t *testing.T,
	b *fakeBackend,
	clock *testClock,
	mutate func(*config.Config),
	opts ...Option,
) (*Client, *failureRecorder) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = b.URL()
	if mutate != nil {
		mutate(cfg)
	}

	if clock == nil {
		clock = newTestClock()
	}
	recorder := &failureRecorder{}

	base := []Option{
		WithReadProfile(fastProfile(5)),
		WithMutationProfile(fastProfile(2)),
		WithClock(clock.Now),
		WithErrorHandler(recorder.Handle),
	}

	c, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return c, recorder
}
