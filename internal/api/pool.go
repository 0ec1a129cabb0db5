package api

import (
	"net"
	"net/http"
	"time"

	"github.com/vyrodovalexey/restroommap/internal/config"
)

// PoolConfig contains connection pool configuration.
type PoolConfig struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	ResponseHeaderTimeout time.Duration
	ExpectContinueTimeout time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// poolConfigFromAPI overlays the API configuration on the pool defaults.
func poolConfigFromAPI(cfg *config.APIConfig) PoolConfig {
	pc := DefaultPoolConfig()
	if cfg.MaxIdleConns > 0 {
		pc.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxConnsPerHost > 0 {
		pc.MaxConnsPerHost = cfg.MaxConnsPerHost
		pc.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout > 0 {
		pc.IdleConnTimeout = cfg.IdleConnTimeout.Duration()
	}
	return pc
}

// ConnectionPool manages HTTP connections to the backend.
type ConnectionPool struct {
	transport *http.Transport
	client    *http.Client
}

// NewConnectionPool creates a new connection pool.
func NewConnectionPool(pc PoolConfig) *ConnectionPool {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          pc.MaxIdleConns,
		MaxIdleConnsPerHost:   pc.MaxIdleConnsPerHost,
		MaxConnsPerHost:       pc.MaxConnsPerHost,
		IdleConnTimeout:       pc.IdleConnTimeout,
		ResponseHeaderTimeout: pc.ResponseHeaderTimeout,
		ExpectContinueTimeout: pc.ExpectContinueTimeout,
	}

	return &ConnectionPool{
		transport: transport,
		// per-attempt timeouts come from the request context
		client: &http.Client{Transport: transport},
	}
}

// Client returns the HTTP client.
func (p *ConnectionPool) Client() *http.Client {
	return p.client
}

// Close closes idle connections.
func (p *ConnectionPool) Close() {
	p.transport.CloseIdleConnections()
}
