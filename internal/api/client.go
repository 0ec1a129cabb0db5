package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/restroommap/internal/cache"
	"github.com/vyrodovalexey/restroommap/internal/config"
	"github.com/vyrodovalexey/restroommap/internal/observability"
	"github.com/vyrodovalexey/restroommap/internal/retry"
)

// circuitBreakerName labels the backend circuit breaker in logs and metrics.
const circuitBreakerName = "restroommap-api"

// Fallback sources recorded in metrics.
const (
	fallbackSentinel = "sentinel"
	fallbackSnapshot = "snapshot"
)

// ErrorHandler receives every terminal failure the client swallows.
type ErrorHandler func(operation string, err error)

// Client is the restroom map API client.
//
// Reads are deduplicated and retried with the read profile. Mutations are
// retried with the mutation profile and never deduplicated. Public methods
// never return errors: failures are logged, passed to the ErrorHandler and
// replaced by an empty result.
type Client struct {
	cfg *config.Config

	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	httpClient *http.Client
	pool       *ConnectionPool
	transport  *transport

	dedup         *cache.Dedup
	ownsDedup     bool
	snapshots     cache.Store
	ownsSnapshots bool

	readProfile     retry.Profile
	mutationProfile retry.Profile

	onError ErrorHandler
	now     func() time.Time

	closeOnce sync.Once
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *observability.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithHTTPClient sets the HTTP client used instead of the built-in pool.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithDedup sets a shared deduplication cache. The client does not close it.
func WithDedup(d *cache.Dedup) Option {
	return func(c *Client) {
		c.dedup = d
	}
}

// WithSnapshotStore enables the list snapshot fallback with the given
// store. The client does not close it.
func WithSnapshotStore(store cache.Store) Option {
	return func(c *Client) {
		c.snapshots = store
	}
}

// WithReadProfile overrides the retry profile for reads.
func WithReadProfile(p retry.Profile) Option {
	return func(c *Client) {
		c.readProfile = p
	}
}

// WithMutationProfile overrides the retry profile for mutations.
func WithMutationProfile(p retry.Profile) Option {
	return func(c *Client) {
		c.mutationProfile = p
	}
}

// WithErrorHandler sets the handler for swallowed failures.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(c *Client) {
		c.onError = fn
	}
}

// WithClock sets the time source used for bucket values.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a new API client. A nil cfg uses DefaultConfig.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	baseURL, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	c := &Client{
		cfg:             cfg,
		logger:          observability.NopLogger(),
		readProfile:     profileFromConfig(cfg.Retry.Read),
		mutationProfile: profileFromConfig(cfg.Retry.Mutation),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	httpClient := c.httpClient
	if httpClient == nil {
		c.pool = NewConnectionPool(poolConfigFromAPI(&cfg.API))
		httpClient = c.pool.Client()
	}

	c.transport = &transport{
		baseURL:   baseURL,
		client:    httpClient,
		timeout:   cfg.API.Timeout.Duration(),
		userAgent: cfg.API.UserAgent,
		logger:    c.logger,
		metrics:   c.metrics,
		tracer:    c.tracer,
	}

	if rl := cfg.API.RateLimit; rl != nil && rl.Enabled {
		c.transport.limiter = rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst)
	}

	if cb := cfg.API.CircuitBreaker; cb != nil && cb.Enabled {
		c.transport.breaker = NewCircuitBreaker(
			circuitBreakerName,
			cb.Threshold,
			cb.Timeout.Duration(),
			cb.HalfOpenRequests,
			WithCircuitBreakerLogger(c.logger),
			WithCircuitBreakerStateCallback(c.metrics.SetCircuitBreakerState),
		)
	}

	if c.dedup == nil {
		c.dedup = cache.NewDedup(policyFromConfig(&cfg.Dedup),
			cache.WithDedupLogger(c.logger),
			cache.WithDedupMetrics(c.metrics),
			cache.WithDedupTracer(c.tracer),
			cache.WithEvictOnError(cfg.Dedup.EvictOnError),
		)
		c.ownsDedup = true
	}

	if c.snapshots == nil && cfg.Fallback.Enabled {
		store, err := cache.NewStore(&cfg.Fallback.Store, c.logger, c.metrics)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create snapshot store: %w", err)
		}
		c.snapshots = store
		c.ownsSnapshots = true
	}

	c.logger.Debug("api client created",
		observability.String("baseURL", cfg.API.BaseURL),
		observability.Bool("fallback", c.snapshots != nil),
	)

	return c, nil
}

// profileFromConfig converts a configured retry profile.
func profileFromConfig(p config.RetryProfileConfig) retry.Profile {
	return retry.DefaultProfile().
		WithMaxRetries(p.MaxRetries).
		WithInitialDelay(p.InitialDelay.Duration()).
		WithMaxDelay(p.MaxDelay.Duration()).
		WithJitter(p.Jitter)
}

// policyFromConfig converts the configured key policy.
func policyFromConfig(d *config.DedupConfig) cache.KeyPolicy {
	return cache.KeyPolicy{
		BucketParam:  d.BucketParam,
		BucketWindow: d.BucketWindow.Duration(),
		Placeholder:  d.Placeholder,
		BypassParams: append([]string(nil), d.BypassParams...),
	}
}

// Close releases the resources the client owns.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.ownsDedup && c.dedup != nil {
			_ = c.dedup.Close()
		}
		if c.ownsSnapshots && c.snapshots != nil {
			if err := c.snapshots.Close(); err != nil {
				c.logger.Warn("failed to close snapshot store", observability.Error(err))
			}
		}
		if c.pool != nil {
			c.pool.Close()
		}
	})
}

// Dedup returns the client's deduplication cache.
func (c *Client) Dedup() *cache.Dedup {
	return c.dedup
}

// withRequestID returns ctx carrying a request ID, generating one if needed.
func withRequestID(ctx context.Context) context.Context {
	if observability.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	return observability.ContextWithRequestID(ctx, uuid.New().String())
}

// profileFor labels base with the operation and hooks retry logging and
// metrics in front of any observer already set on it.
func (c *Client) profileFor(ctx context.Context, base retry.Profile, op string) retry.Profile {
	logger := c.logger.WithContext(ctx)
	observer := base.OnRetry

	return base.WithOperation(op).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Warn("retrying api request",
			observability.String("operation", op),
			observability.Int("attempt", attempt),
			observability.Duration("delay", delay),
			observability.Error(err),
		)
		c.metrics.RecordRetryAttempt(op)
		if observer != nil {
			observer(attempt, err, delay)
		}
	})
}

// read performs a deduplicated, retried GET and returns the raw body.
// Deduplicated callers share the body and must not modify it.
func (c *Client) read(ctx context.Context, op string, req *request) ([]byte, error) {
	if req.issued.IsZero() {
		req.issued = c.now()
	}

	key := cache.RequestKey{
		Method: req.method,
		Path:   req.path,
		Query:  req.query,
		Issued: req.issued,
	}
	profile := c.profileFor(ctx, c.readProfile, op)

	return cache.Execute(ctx, c.dedup, key, c.cfg.Dedup.TTL.Duration(),
		func(ctx context.Context) ([]byte, error) {
			resp, err := retry.Do(ctx, profile, func(ctx context.Context) (*response, error) {
				return c.transport.do(ctx, req)
			})
			c.metrics.RecordRetryOutcome(op, err)
			if err != nil {
				return nil, err
			}
			return resp.body, nil
		})
}

// mutate performs a retried, non-deduplicated request with a JSON payload.
func (c *Client) mutate(ctx context.Context, op string, req *request, payload any) (*response, error) {
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		req.body = body
	}

	resp, err := retry.Do(ctx, c.profileFor(ctx, c.mutationProfile, op),
		func(ctx context.Context) (*response, error) {
			return c.transport.do(ctx, req)
		})
	c.metrics.RecordRetryOutcome(op, err)
	return resp, err
}

// forget evicts the cached read for method and path in the current window.
func (c *Client) forget(path string) {
	c.dedup.Remove(cache.RequestKey{
		Method: http.MethodGet,
		Path:   path,
		Issued: c.now(),
	})
}

// report records a swallowed failure.
func (c *Client) report(ctx context.Context, op string, err error) {
	c.logger.WithContext(ctx).Error("api request failed",
		observability.String("operation", op),
		observability.Error(err),
	)
	c.metrics.RecordFallback(op, fallbackSentinel)
	if c.onError != nil {
		c.onError(op, err)
	}
}

// readList reads a list endpoint, saving each good response as a snapshot
// and serving the snapshot when the read fails.
func readList[T any](
	ctx context.Context,
	c *Client,
	op string,
	req *request,
	decode func([]byte) ([]T, error),
) ([]T, error) {
	body, err := c.read(ctx, op, req)
	if err == nil {
		items, decodeErr := decode(body)
		if decodeErr == nil {
			c.saveSnapshot(ctx, req, body)
			return items, nil
		}
		err = decodeErr
	}

	if c.snapshots == nil {
		return nil, err
	}

	snapshot, snapErr := c.snapshots.Get(ctx, c.snapshotKey(req))
	if snapErr != nil {
		if !errors.Is(snapErr, cache.ErrCacheMiss) {
			c.logger.WithContext(ctx).Warn("snapshot lookup failed",
				observability.String("operation", op),
				observability.Error(snapErr))
		}
		return nil, err
	}

	items, decodeErr := decode(snapshot)
	if decodeErr != nil {
		return nil, err
	}

	c.logger.WithContext(ctx).Warn("serving list snapshot",
		observability.String("operation", op),
		observability.Error(err))
	c.metrics.RecordFallback(op, fallbackSnapshot)

	return items, nil
}

// snapshotKey is the request's normalized key without a time window.
func (c *Client) snapshotKey(req *request) string {
	return c.dedup.Policy().Normalize(cache.RequestKey{
		Method: req.method,
		Path:   req.path,
		Query:  req.query,
	})
}

func (c *Client) saveSnapshot(ctx context.Context, req *request, body []byte) {
	if c.snapshots == nil || ctx.Err() != nil {
		return
	}
	if err := c.snapshots.Set(ctx, c.snapshotKey(req), body, 0); err != nil {
		c.logger.WithContext(ctx).Warn("failed to save list snapshot", observability.Error(err))
	}
}
