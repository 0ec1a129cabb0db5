package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates client configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a client configuration.
func ValidateConfig(config *Config) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateAPI(&config.API)
	v.validateRetryProfile(&config.Retry.Read, "retry.read")
	v.validateRetryProfile(&config.Retry.Mutation, "retry.mutation")
	v.validateDedup(&config.Dedup)
	if config.Fallback.Enabled {
		v.validateStore(&config.Fallback.Store, "fallback.store")
	}
	v.validateLogging(&config.Logging)
	v.validateTracing(&config.Tracing)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateAPI(api *APIConfig) {
	if api.BaseURL == "" {
		v.addError("api.baseURL", "baseURL is required")
	} else if u, err := url.Parse(api.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		v.addError("api.baseURL", "baseURL must be an absolute URL")
	}

	if api.Timeout < 0 {
		v.addError("api.timeout", "timeout cannot be negative")
	}
	if api.DefaultRadius <= 0 {
		v.addError("api.defaultRadius", "defaultRadius must be positive")
	}
	if api.ListLimit <= 0 {
		v.addError("api.listLimit", "listLimit must be positive")
	}
	if api.ReviewsLimit <= 0 {
		v.addError("api.reviewsLimit", "reviewsLimit must be positive")
	}

	if rl := api.RateLimit; rl != nil && rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			v.addError("api.rateLimit.requestsPerSecond", "requestsPerSecond must be positive")
		}
		if rl.Burst <= 0 {
			v.addError("api.rateLimit.burst", "burst must be positive")
		}
	}

	if cb := api.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.Threshold <= 0 {
			v.addError("api.circuitBreaker.threshold", "threshold must be positive")
		}
		if cb.Timeout <= 0 {
			v.addError("api.circuitBreaker.timeout", "timeout must be positive")
		}
	}
}

// validateRetryProfile checks the executor's preconditions: retries are
// non-negative, the initial delay is positive and the delay cap is not
// below it.
func (v *Validator) validateRetryProfile(p *RetryProfileConfig, path string) {
	if p.MaxRetries < 0 {
		v.addError(path+".maxRetries", "maxRetries cannot be negative")
	}
	if p.InitialDelay <= 0 {
		v.addError(path+".initialDelay", "initialDelay must be positive")
	}
	if p.MaxDelay < p.InitialDelay {
		v.addError(path+".maxDelay", "maxDelay must be greater than or equal to initialDelay")
	}
}

func (v *Validator) validateDedup(d *DedupConfig) {
	if d.TTL <= 0 {
		v.addError("dedup.ttl", "ttl must be positive")
	}
	if d.BucketParam == "" {
		v.addError("dedup.bucketParam", "bucketParam is required")
	}
	if d.BucketWindow <= 0 {
		v.addError("dedup.bucketWindow", "bucketWindow must be positive")
	}
	if d.Placeholder == "" {
		v.addError("dedup.placeholder", "placeholder is required")
	}
}

func (v *Validator) validateStore(s *StoreConfig, path string) {
	switch s.Type {
	case StoreTypeMemory, "":
		if s.MaxEntries < 0 {
			v.addError(path+".maxEntries", "maxEntries cannot be negative")
		}
	case StoreTypeRedis:
		if s.Redis == nil || s.Redis.URL == "" {
			v.addError(path+".redis.url", "redis url is required for redis store")
		}
	default:
		v.addError(path+".type", fmt.Sprintf("unknown store type %q", s.Type))
	}
	if s.TTL < 0 {
		v.addError(path+".ttl", "ttl cannot be negative")
	}
}

func (v *Validator) validateLogging(l *LoggingConfig) {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		v.addError("logging.level", "level must be one of debug, info, warn, error")
	}
	switch l.Format {
	case "", "json", "console":
	default:
		v.addError("logging.format", "format must be json or console")
	}
}

func (v *Validator) validateTracing(t *TracingConfig) {
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		v.addError("tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{
		Path:    path,
		Message: message,
	})
}
