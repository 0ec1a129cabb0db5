package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/restroommap/internal/observability"
	"github.com/vyrodovalexey/restroommap/internal/retry"
)

// maxResponseBody bounds how much of a response body is read.
const maxResponseBody = 10 << 20

// Request headers.
const (
	HeaderRequestID   = "X-Request-ID"
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
	HeaderUserAgent   = "User-Agent"

	contentTypeJSON = "application/json"
)

// request is a single backend call.
type request struct {
	method string
	// route is the path template used for span names and metric labels.
	route  string
	path   string
	query  url.Values
	body   []byte
	issued time.Time
}

// response is a successful backend response.
type response struct {
	status int
	body   []byte
}

// transport performs single HTTP attempts against the backend.
type transport struct {
	baseURL   *url.URL
	client    *http.Client
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter
	breaker   *CircuitBreaker

	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// do performs one attempt and records it in a client span and metrics.
func (t *transport) do(ctx context.Context, req *request) (*response, error) {
	start := time.Now()

	ctx, span := t.tracer.StartClientSpan(ctx, req.method, req.route)

	resp, err := t.execute(ctx, req)

	status := 0
	if resp != nil {
		status = resp.status
	} else if code, ok := retry.StatusCodeOf(err); ok {
		status = code
	}

	duration := time.Since(start)
	t.metrics.RecordRequest(req.method, req.route, status, duration)
	observability.EndClientSpan(span, status, err)

	t.logger.WithContext(ctx).Debug("api request completed",
		observability.String("method", req.method),
		observability.String("path", req.path),
		observability.Int("status", status),
		observability.Duration("duration", duration),
	)

	return resp, err
}

// execute routes the attempt through the circuit breaker when one is set.
func (t *transport) execute(ctx context.Context, req *request) (*response, error) {
	if t.breaker == nil {
		return t.roundTrip(ctx, req)
	}

	result, err := t.breaker.Execute(func() (interface{}, error) {
		return t.roundTrip(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, retry.Permanent(fmt.Errorf("%w: %w", ErrCircuitOpen, err))
	}
	if err != nil {
		return nil, err
	}
	return result.(*response), nil
}

// roundTrip sends the request and reads the response.
func (t *transport) roundTrip(ctx context.Context, req *request) (*response, error) {
	if t.limiter != nil {
		waitStart := time.Now()
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		t.metrics.RecordRateLimitWait(time.Since(waitStart))
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.body) > 0 {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, t.url(req), body)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}

	if body != nil {
		httpReq.Header.Set(HeaderContentType, contentTypeJSON)
	}
	httpReq.Header.Set(HeaderAccept, contentTypeJSON)
	if t.userAgent != "" {
		httpReq.Header.Set(HeaderUserAgent, t.userAgent)
	}

	requestID := observability.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	httpReq.Header.Set(HeaderRequestID, requestID)

	observability.InjectTraceContext(ctx, httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", req.method, req.path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newStatusError(req.method, req.path, resp.StatusCode, data)
	}

	return &response{status: resp.StatusCode, body: data}, nil
}

// url joins the base URL with the request path and query.
func (t *transport) url(req *request) string {
	u := *t.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + req.path
	u.RawPath = ""
	u.RawQuery = req.query.Encode()
	return u.String()
}
