package deta

import (
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit breaker.
//
// State transitions:
//   - Closed -> Open: when the failure threshold is reached
//   - Open -> Half-Open: after the timeout expires
//   - Half-Open -> Closed: when the success threshold is reached
//   - Half-Open -> Open: on any failure
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects all requests immediately.
	CircuitOpen
	// CircuitHalfOpen allows limited requests to test recovery.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker prevents hammering the service while it is failing.
// It is disabled by default; enable it with Config.WithCircuitBreaker.
//
//	config := deta.DefaultConfig().
//	    WithCircuitBreaker(deta.DefaultCircuitBreakerConfig())
//
//	client, _ := deta.NewClient(config)
//	_, err := client.Base("main").Get(ctx, "k")
//	if errors.Is(err, deta.ErrCircuitOpen) {
//	    // service is unavailable, fail fast
//	}
type CircuitBreaker interface {
	// Execute runs the given function if the circuit allows it.
	// Returns ErrCircuitOpen if the circuit is open.
	Execute(fn func() error) error

	// State returns the current state of the circuit breaker.
	State() CircuitState

	// Reset manually resets the circuit to closed state.
	Reset()
}

// CircuitBreakerConfig holds configuration for circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes required in
	// half-open state before the circuit closes. Default: 2
	SuccessThreshold int

	// Timeout is how long the circuit stays open before transitioning to
	// half-open. Default: 30s
	Timeout time.Duration

	// HalfOpenRequests is the maximum number of requests allowed in
	// half-open state. Default: 3
	HalfOpenRequests int
}

// DefaultCircuitBreakerConfig returns a configuration with sensible
// defaults: open after 5 failures, close after 2 successes, 30s timeout,
// 3 half-open probes.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 3,
	}
}

type circuitBreaker struct {
	config CircuitBreakerConfig

	mu               sync.Mutex
	state            CircuitState
	failures         int
	successes        int
	halfOpenRequests int
	lastFailureTime  time.Time
	lastStateChange  time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given
// configuration, starting in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) CircuitBreaker {
	return &circuitBreaker{
		config:          config,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
	}
}

func (cb *circuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	cb.checkStateTransition()
	state := cb.state

	if state == CircuitOpen {
		cb.mu.Unlock()
		return NewError(ErrorTypeCircuitOpen, "circuit breaker is open", ErrCircuitOpen)
	}

	if state == CircuitHalfOpen {
		if cb.halfOpenRequests >= cb.config.HalfOpenRequests {
			cb.mu.Unlock()
			return NewError(ErrorTypeCircuitOpen, "circuit breaker half-open limit reached", ErrCircuitOpen)
		}
		cb.halfOpenRequests++
	}

	cb.mu.Unlock()

	err := fn()
	cb.recordResult(err)
	return err
}

func (cb *circuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.checkStateTransition()
	return cb.state
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenRequests = 0
	cb.lastStateChange = time.Now()
}

// checkStateTransition must be called with the lock held.
func (cb *circuitBreaker) checkStateTransition() {
	if cb.state == CircuitOpen && time.Since(cb.lastFailureTime) >= cb.config.Timeout {
		cb.transitionTo(CircuitHalfOpen)
	}
}

func (cb *circuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *circuitBreaker) onSuccess() {
	switch cb.state {
	case CircuitClosed:
		cb.failures = 0

	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(CircuitClosed)
		}
	}
}

func (cb *circuitBreaker) onFailure() {
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}

	case CircuitHalfOpen:
		// any failure in half-open goes back to open
		cb.transitionTo(CircuitOpen)
	}
}

func (cb *circuitBreaker) transitionTo(newState CircuitState) {
	if cb.state == newState {
		return
	}

	cb.state = newState
	cb.lastStateChange = time.Now()
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenRequests = 0
}

// perEndpointCircuitBreaker keeps an individual circuit breaker per
// endpoint so a failing /query does not block /items requests.
type perEndpointCircuitBreaker struct {
	mu       sync.RWMutex
	breakers map[string]CircuitBreaker
	config   CircuitBreakerConfig
}

// NewPerEndpointCircuitBreaker creates a manager for per-endpoint circuit
// breakers. Each endpoint gets its own breaker with the same configuration.
func NewPerEndpointCircuitBreaker(config CircuitBreakerConfig) *perEndpointCircuitBreaker {
	return &perEndpointCircuitBreaker{
		breakers: make(map[string]CircuitBreaker),
		config:   config,
	}
}

// Execute runs a function under the endpoint's circuit breaker, creating
// one if necessary.
func (pecb *perEndpointCircuitBreaker) Execute(endpoint string, fn func() error) error {
	return pecb.getOrCreate(endpoint).Execute(fn)
}

// State returns the state of a specific endpoint's circuit breaker.
// Returns CircuitClosed if no breaker exists for the endpoint.
func (pecb *perEndpointCircuitBreaker) State(endpoint string) CircuitState {
	pecb.mu.RLock()
	cb, exists := pecb.breakers[endpoint]
	pecb.mu.RUnlock()

	if !exists {
		return CircuitClosed
	}
	return cb.State()
}

// Reset resets a specific endpoint's circuit breaker to closed state.
func (pecb *perEndpointCircuitBreaker) Reset(endpoint string) {
	pecb.mu.RLock()
	cb, exists := pecb.breakers[endpoint]
	pecb.mu.RUnlock()

	if exists {
		cb.Reset()
	}
}

// ResetAll resets all circuit breakers to closed state.
func (pecb *perEndpointCircuitBreaker) ResetAll() {
	pecb.mu.RLock()
	defer pecb.mu.RUnlock()

	for _, cb := range pecb.breakers {
		cb.Reset()
	}
}

func (pecb *perEndpointCircuitBreaker) getOrCreate(endpoint string) CircuitBreaker {
	pecb.mu.RLock()
	cb, exists := pecb.breakers[endpoint]
	pecb.mu.RUnlock()

	if exists {
		return cb
	}

	pecb.mu.Lock()
	defer pecb.mu.Unlock()

	if cb, exists := pecb.breakers[endpoint]; exists {
		return cb
	}

	cb = NewCircuitBreaker(pecb.config)
	pecb.breakers[endpoint] = cb
	return cb
}

type noopCircuitBreaker struct{}

func (noopCircuitBreaker) Execute(fn func() error) error { return fn() }
func (noopCircuitBreaker) State() CircuitState           { return CircuitClosed }
func (noopCircuitBreaker) Reset()                        {}

// NewNoopCircuitBreaker creates a circuit breaker that never blocks.
// Used when circuit breaking is not configured.
func NewNoopCircuitBreaker() CircuitBreaker {
	return noopCircuitBreaker{}
}
