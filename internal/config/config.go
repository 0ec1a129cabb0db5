package config

import "time"

// Store types for the snapshot fallback.
const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
)

// Config holds all configuration settings for the API client.
type Config struct {
	API      APIConfig      `yaml:"api" json:"api"`
	Retry    RetryConfig    `yaml:"retry" json:"retry"`
	Dedup    DedupConfig    `yaml:"dedup" json:"dedup"`
	Fallback FallbackConfig `yaml:"fallback" json:"fallback"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing" json:"tracing"`
}

// APIConfig configures the REST backend and the HTTP transport.
type APIConfig struct {
	BaseURL         string   `yaml:"baseURL" json:"baseURL"`
	Timeout         Duration `yaml:"timeout" json:"timeout"`
	UserAgent       string   `yaml:"userAgent,omitempty" json:"userAgent,omitempty"`
	DefaultRadius   float64  `yaml:"defaultRadius" json:"defaultRadius"`
	ListLimit       int      `yaml:"listLimit" json:"listLimit"`
	ReviewsLimit    int      `yaml:"reviewsLimit" json:"reviewsLimit"`
	MaxIdleConns    int      `yaml:"maxIdleConns,omitempty" json:"maxIdleConns,omitempty"`
	MaxConnsPerHost int      `yaml:"maxConnsPerHost,omitempty" json:"maxConnsPerHost,omitempty"`
	IdleConnTimeout Duration `yaml:"idleConnTimeout,omitempty" json:"idleConnTimeout,omitempty"`

	RateLimit      *RateLimitConfig      `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// RateLimitConfig configures the client-side request rate limiter.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// CircuitBreakerConfig configures the circuit breaker around the backend.
type CircuitBreakerConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	Threshold        int      `yaml:"threshold" json:"threshold"`
	Timeout          Duration `yaml:"timeout" json:"timeout"`
	HalfOpenRequests int      `yaml:"halfOpenRequests,omitempty" json:"halfOpenRequests,omitempty"`
}

// RetryConfig holds the retry profiles used by the API client.
type RetryConfig struct {
	Read     RetryProfileConfig `yaml:"read" json:"read"`
	Mutation RetryProfileConfig `yaml:"mutation" json:"mutation"`
}

// RetryProfileConfig is the serializable form of a retry profile.
type RetryProfileConfig struct {
	MaxRetries   int      `yaml:"maxRetries" json:"maxRetries"`
	InitialDelay Duration `yaml:"initialDelay" json:"initialDelay"`
	MaxDelay     Duration `yaml:"maxDelay" json:"maxDelay"`
	Jitter       bool     `yaml:"jitter" json:"jitter"`
}

// DedupConfig configures the request deduplication cache.
type DedupConfig struct {
	TTL          Duration `yaml:"ttl" json:"ttl"`
	BucketParam  string   `yaml:"bucketParam" json:"bucketParam"`
	BucketWindow Duration `yaml:"bucketWindow" json:"bucketWindow"`
	Placeholder  string   `yaml:"placeholder" json:"placeholder"`
	BypassParams []string `yaml:"bypassParams" json:"bypassParams"`
	EvictOnError bool     `yaml:"evictOnError" json:"evictOnError"`
}

// FallbackConfig configures serving the last good list response when a
// list read fails.
type FallbackConfig struct {
	Enabled bool        `yaml:"enabled" json:"enabled"`
	Store   StoreConfig `yaml:"store" json:"store"`
}

// StoreConfig configures the snapshot store.
type StoreConfig struct {
	Type       string            `yaml:"type" json:"type"`
	TTL        Duration          `yaml:"ttl" json:"ttl"`
	MaxEntries int               `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`
	Redis      *RedisStoreConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisStoreConfig configures the Redis snapshot store.
type RedisStoreConfig struct {
	URL          string   `yaml:"url" json:"url"`
	KeyPrefix    string   `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
	PoolSize     int      `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	ConnTimeout  Duration `yaml:"connectTimeout,omitempty" json:"connectTimeout,omitempty"`
	ReadTimeout  Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Address   string `yaml:"address,omitempty" json:"address,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:         "http://localhost:8000/api",
			Timeout:         Duration(10 * time.Second),
			UserAgent:       "restroommap-client",
			DefaultRadius:   5,
			ListLimit:       100,
			ReviewsLimit:    10,
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: Duration(90 * time.Second),
		},
		Retry: RetryConfig{
			Read: RetryProfileConfig{
				MaxRetries:   5,
				InitialDelay: Duration(time.Second),
				MaxDelay:     Duration(30 * time.Second),
				Jitter:       true,
			},
			Mutation: RetryProfileConfig{
				MaxRetries:   2,
				InitialDelay: Duration(2 * time.Second),
				MaxDelay:     Duration(30 * time.Second),
				Jitter:       true,
			},
		},
		Dedup: DedupConfig{
			TTL:          Duration(30 * time.Second),
			BucketParam:  "_t",
			BucketWindow: Duration(30 * time.Second),
			Placeholder:  "TIMESTAMP",
			BypassParams: []string{"is_unisex", "is_accessible", "has_changing_table"},
		},
		Fallback: FallbackConfig{
			Enabled: false,
			Store: StoreConfig{
				Type:       StoreTypeMemory,
				TTL:        Duration(24 * time.Hour),
				MaxEntries: 1000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "restroommap",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "restroommap-client",
			SamplingRate: 1.0,
		},
	}
}
