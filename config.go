package deta

import (
	"os"
	"strings"
	"time"
)

// EnvProjectKey is the environment variable DefaultConfig reads the
// project key from. It is read once at client construction, never per call.
const EnvProjectKey = "DETA_PROJECT_KEY"

// defaultBaseURL is the Deta Base HTTP API endpoint. The project id
// segment is appended at client construction.
const defaultBaseURL = "https://database.deta.sh/v1"

// Config holds the configuration for the Deta client.
// All fields except the project key are optional and have sensible defaults.
//
// Configuration is built with the fluent builder pattern:
//
//	config := deta.DefaultConfig().
//	    WithProjectKey("a0abcyxz_aSecretValue").
//	    WithTimeout(10 * time.Second).
//	    WithRetries(5)
//
//	client, err := deta.NewClient(config)
type Config struct {
	// ProjectKey is the credential authorizing access to the project's
	// bases. DefaultConfig reads it from the DETA_PROJECT_KEY environment
	// variable. Required.
	ProjectKey string

	// BaseURL is the base URL of the Deta Base API.
	// Default: "https://database.deta.sh/v1"
	BaseURL string

	// Timeout is the HTTP request timeout, covering connection time,
	// redirects, and reading the response body.
	// Default: 30s
	Timeout time.Duration

	// RetryConfig configures automatic retry of transient failures.
	RetryConfig RetryConfig

	// TransportConfig holds HTTP connection pool settings.
	TransportConfig TransportConfig

	// Headers are custom headers to include in all requests.
	Headers map[string]string

	// CircuitBreakerConfig holds circuit breaker settings.
	// If nil, circuit breaking is disabled.
	CircuitBreakerConfig *CircuitBreakerConfig

	// RetryStrategy defines the retry strategy to use.
	// If nil, exponential backoff built from RetryConfig is used.
	RetryStrategy RetryStrategy

	// Observer receives hooks for requests, retries, and circuit state
	// changes. If nil, NoopObserver is used.
	Observer Observer

	// EnablePerEndpointCircuitBreaker gives each endpoint its own circuit
	// breaker state instead of sharing one across all endpoints.
	EnablePerEndpointCircuitBreaker bool
}

// RetryConfig holds retry-related configuration. Retries apply only to
// transient failures (network errors, timeouts, 5xx, 429); this is a
// design choice of the SDK, not documented service behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// Set to 0 to disable retries.
	// Default: 2
	MaxRetries int

	// InitialInterval is the initial retry interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the retry interval.
	// Default: 5s
	MaxInterval time.Duration

	// Multiplier is the exponential backoff multiplier.
	// Default: 2.0
	Multiplier float64
}

// TransportConfig holds HTTP connection pool settings. Connection reuse
// is whatever net/http provides; the SDK adds no pooling of its own.
type TransportConfig struct {
	// MaxIdleConns controls the maximum idle connections across all hosts.
	// Default: 100
	MaxIdleConns int

	// MaxConnsPerHost controls the maximum connections per host.
	// Default: 10
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection is kept open.
	// Default: 90s
	IdleConnTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults. The project key
// is read from the DETA_PROJECT_KEY environment variable.
//
// Example:
//
//	client, err := deta.NewClient(deta.DefaultConfig())
func DefaultConfig() *Config {
	return &Config{
		ProjectKey: os.Getenv(EnvProjectKey),
		BaseURL:    defaultBaseURL,
		Timeout:    30 * time.Second,
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2.0,
		},
		TransportConfig: TransportConfig{
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
		},
		Headers:  make(map[string]string),
		Observer: &NoopObserver{},
	}
}

// WithProjectKey sets the project key explicitly instead of reading it
// from the environment.
func (c *Config) WithProjectKey(key string) *Config {
	c.ProjectKey = key
	return c
}

// WithBaseURL sets the base URL for the Deta Base API. Useful for
// testing against a mock server.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the request timeout for all operations.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRetries sets the maximum number of retry attempts for transient
// failures. Set to 0 to disable automatic retries.
func (c *Config) WithRetries(maxRetries int) *Config {
	c.RetryConfig.MaxRetries = maxRetries
	return c
}

// WithHeader adds a custom header to be sent with all requests.
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

// WithCircuitBreaker enables and configures circuit breaker protection.
func (c *Config) WithCircuitBreaker(config CircuitBreakerConfig) *Config {
	c.CircuitBreakerConfig = &config
	return c
}

// WithRetryStrategy sets a custom retry strategy. By default exponential
// backoff with jitter is used.
func (c *Config) WithRetryStrategy(strategy RetryStrategy) *Config {
	c.RetryStrategy = strategy
	return c
}

// WithObserver sets an observer for monitoring SDK operations.
func (c *Config) WithObserver(observer Observer) *Config {
	c.Observer = observer
	return c
}

// WithPerEndpointCircuitBreaker enables per-endpoint circuit breakers so
// issues with one endpoint do not trip the circuit for others.
func (c *Config) WithPerEndpointCircuitBreaker() *Config {
	c.EnablePerEndpointCircuitBreaker = true
	return c
}

// Validate validates the configuration and fills defaults for missing
// values. Called automatically by NewClient.
func (c *Config) Validate() error {
	if c.ProjectKey == "" {
		return NewError(ErrorTypeValidation, "project key not configured; set "+EnvProjectKey, ErrMissingProjectKey)
	}
	if !validProjectKey(c.ProjectKey) {
		return NewError(ErrorTypeValidation, "project key contains invalid characters", ErrInvalidProjectKey)
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryConfig.MaxRetries < 0 {
		c.RetryConfig.MaxRetries = 0
	}
	if c.RetryConfig.InitialInterval <= 0 {
		c.RetryConfig.InitialInterval = 100 * time.Millisecond
	}
	if c.RetryConfig.MaxInterval <= 0 {
		c.RetryConfig.MaxInterval = 5 * time.Second
	}
	if c.RetryConfig.Multiplier <= 1 {
		c.RetryConfig.Multiplier = 2.0
	}
	if c.Observer == nil {
		c.Observer = &NoopObserver{}
	}
	if c.CircuitBreakerConfig != nil {
		if c.CircuitBreakerConfig.FailureThreshold <= 0 {
			c.CircuitBreakerConfig.FailureThreshold = 5
		}
		if c.CircuitBreakerConfig.SuccessThreshold <= 0 {
			c.CircuitBreakerConfig.SuccessThreshold = 2
		}
		if c.CircuitBreakerConfig.Timeout <= 0 {
			c.CircuitBreakerConfig.Timeout = 30 * time.Second
		}
		if c.CircuitBreakerConfig.HalfOpenRequests <= 0 {
			c.CircuitBreakerConfig.HalfOpenRequests = 3
		}
	}
	return nil
}

// validProjectKey reports whether the key uses only the characters the
// service issues keys with: ASCII alphanumerics plus _ . - ~
func validProjectKey(key string) bool {
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '.' || c == '-' || c == '~':
		default:
			return false
		}
	}
	return true
}

// projectID extracts the project id from a project key. Keys have the
// form "<project_id>_<secret>".
func projectID(key string) (string, error) {
	id, _, found := strings.Cut(key, "_")
	if !found || id == "" {
		return "", NewError(ErrorTypeValidation, "project key has no project id prefix", ErrInvalidProjectKey)
	}
	return id, nil
}
