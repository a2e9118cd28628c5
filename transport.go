package deta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "deta-go/1.0.0"

// httpTransport handles HTTP communication with the Deta Base API.
// It injects the project key header into every request and wires retry,
// circuit breaking, and observer hooks around the underlying http.Client.
type httpTransport struct {
	client  *http.Client
	config  *Config
	baseURL *url.URL
	// circuitBreaker provides fault tolerance
	circuitBreaker CircuitBreaker
	// perEndpointCircuitBreaker provides per-endpoint circuit breaking
	perEndpointCircuitBreaker *perEndpointCircuitBreaker
	// retryExecutor handles retry of transient failures
	retryExecutor *retryExecutor
	observer      Observer
}

func newHTTPTransport(config *Config) (*httpTransport, error) {
	if config.BaseURL == "" {
		return nil, NewError(ErrorTypeValidation, "base URL cannot be empty", ErrInvalidConfig)
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, NewError(ErrorTypeValidation, fmt.Sprintf("invalid base URL: %v", err), ErrInvalidConfig)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, NewError(ErrorTypeValidation, "base URL must have a scheme and host", ErrInvalidConfig)
	}

	transport := &http.Transport{
		MaxIdleConns:        config.TransportConfig.MaxIdleConns,
		MaxConnsPerHost:     config.TransportConfig.MaxConnsPerHost,
		IdleConnTimeout:     config.TransportConfig.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	var circuitBreaker CircuitBreaker
	var perEndpointCB *perEndpointCircuitBreaker
	if config.CircuitBreakerConfig != nil {
		if config.EnablePerEndpointCircuitBreaker {
			perEndpointCB = NewPerEndpointCircuitBreaker(*config.CircuitBreakerConfig)
			circuitBreaker = NewNoopCircuitBreaker()
		} else {
			cb := NewCircuitBreaker(*config.CircuitBreakerConfig)
			if config.Observer != nil {
				circuitBreaker = newObservedCircuitBreaker(cb, "default", config.Observer)
			} else {
				circuitBreaker = cb
			}
		}
	} else {
		circuitBreaker = NewNoopCircuitBreaker()
	}

	var retryStrategy RetryStrategy
	if config.RetryStrategy != nil {
		retryStrategy = config.RetryStrategy
	} else {
		retryStrategy = &ExponentialBackoffStrategy{
			InitialInterval: config.RetryConfig.InitialInterval,
			MaxInterval:     config.RetryConfig.MaxInterval,
			Multiplier:      config.RetryConfig.Multiplier,
			Jitter:          0.3,
			Budget: RetryBudget{
				MaxAttempts: config.RetryConfig.MaxRetries + 1, // +1 for initial attempt
			},
		}
	}

	return &httpTransport{
		client:                    client,
		config:                    config,
		baseURL:                   baseURL,
		circuitBreaker:            circuitBreaker,
		perEndpointCircuitBreaker: perEndpointCB,
		retryExecutor:             newRetryExecutor(retryStrategy),
		observer:                  config.Observer,
	}, nil
}

// do executes an HTTP request with circuit breaking and retry logic
func (t *httpTransport) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	if t.observer != nil {
		t.observer.OnRequestStart(method, path)
	}

	start := time.Now()
	endpoint := method + " " + path

	executeFn := func() error {
		return t.retryExecutor.Execute(ctx, func() error {
			return t.performHTTPRequest(ctx, method, path, body, result)
		}, func(attempt int, delay time.Duration, err error) {
			if t.observer != nil {
				t.observer.OnRetryAttempt(method, path, attempt, delay, err)
			}
		})
	}

	var finalErr error
	if t.perEndpointCircuitBreaker != nil {
		finalErr = t.perEndpointCircuitBreaker.Execute(endpoint, executeFn)
	} else {
		finalErr = t.circuitBreaker.Execute(executeFn)
	}

	if t.observer != nil {
		t.observer.OnRequestEnd(method, path, time.Since(start), finalErr)
	}

	return finalErr
}

// performHTTPRequest performs a single HTTP request
func (t *httpTransport) performHTTPRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return NewError(ErrorTypeValidation, fmt.Sprintf("failed to marshal request body: %v", err), err)
		}
		bodyReader = bytes.NewReader(data)
	}

	// path is already escaped by buildPath; join on the string form so the
	// escaping survives untouched.
	fullURL := strings.TrimRight(t.baseURL.String(), "/") + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return NewError(ErrorTypeValidation, fmt.Sprintf("failed to create request: %v", err), err)
	}

	req.Header.Set("X-API-Key", t.config.ProjectKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for key, value := range t.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		netErr := &NetworkError{Op: method + " " + path, Err: err}
		return netErr.ToError()
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		netErr := &NetworkError{Op: "reading response", Err: err}
		return netErr.ToError()
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				decErr := NewError(ErrorTypeDecode, fmt.Sprintf("failed to decode response: %v", err), ErrInvalidResponse)
				decErr.WithContext(&ErrorContext{URL: fullURL, Method: method})
				return decErr
			}
		}
		return nil
	}

	apiErr := parseAPIError(resp.StatusCode, respBody)
	enhancedErr := apiErr.ToError()
	enhancedErr.WithContext(&ErrorContext{
		URL:    fullURL,
		Method: method,
	})
	if reqID := resp.Header.Get("X-Request-ID"); reqID != "" {
		enhancedErr.RequestID = reqID
	}
	return enhancedErr
}

func (t *httpTransport) get(ctx context.Context, path string, result interface{}) error {
	return t.do(ctx, http.MethodGet, path, nil, result)
}

func (t *httpTransport) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return t.do(ctx, http.MethodPost, path, body, result)
}

func (t *httpTransport) put(ctx context.Context, path string, body interface{}, result interface{}) error {
	return t.do(ctx, http.MethodPut, path, body, result)
}

func (t *httpTransport) patch(ctx context.Context, path string, body interface{}, result interface{}) error {
	return t.do(ctx, http.MethodPatch, path, body, result)
}

func (t *httpTransport) delete(ctx context.Context, path string, result interface{}) error {
	return t.do(ctx, http.MethodDelete, path, nil, result)
}

func (t *httpTransport) close() error {
	t.client.CloseIdleConnections()
	return nil
}

// parseAPIError parses an API error response body into an APIError.
// The service reports errors as {"errors": ["..."]}; anything else is
// kept verbatim as the message.
func parseAPIError(statusCode int, body []byte) *APIError {
	if len(body) == 0 {
		return &APIError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("HTTP %d error", statusCode),
		}
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || len(apiErr.Errors) == 0 {
		return &APIError{
			StatusCode: statusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	apiErr.StatusCode = statusCode
	return &apiErr
}

// buildPath builds a URL path with proper escaping for path parameters.
// Placeholders {0}, {1}, ... are replaced with the escaped arguments.
// Record keys may contain characters like spaces or slashes, so escaping
// uses QueryEscape with '+' rewritten to '%20' for path segments.
//
// Example:
//
//	buildPath("/{0}/{1}/items/{2}", pid, "my base", "a/b")
//	// "/pid/my%20base/items/a%2Fb"
func buildPath(pattern string, args ...string) string {
	path := pattern
	for i, arg := range args {
		placeholder := fmt.Sprintf("{%d}", i)
		escaped := url.QueryEscape(arg)
		escaped = strings.ReplaceAll(escaped, "+", "%20")
		path = strings.Replace(path, placeholder, escaped, 1)
	}
	return path
}
