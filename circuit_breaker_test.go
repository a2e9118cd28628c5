package deta

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failingCalls(cb CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(func() error { return errBoom })
	}
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		HalfOpenRequests: 1,
	})

	assert.Equal(t, CircuitClosed, cb.State())

	failingCalls(cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())

	failingCalls(cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())

	// open circuit rejects without invoking the function
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		HalfOpenRequests: 1,
	})

	failingCalls(cb, 2)
	require.NoError(t, cb.Execute(func() error { return nil }))

	// counter reset, two more failures keep it closed
	failingCalls(cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
		HalfOpenRequests: 5,
	})

	failingCalls(cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
		HalfOpenRequests: 5,
	})

	failingCalls(cb, 1)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, CircuitHalfOpen, cb.State())

	failingCalls(cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreakerHalfOpenRequestLimit(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 10,
		Timeout:          10 * time.Millisecond,
		HalfOpenRequests: 2,
	})

	failingCalls(cb, 1)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, CircuitHalfOpen, cb.State())

	// two probes allowed, the third is rejected
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.NoError(t, cb.Execute(func() error { return nil }))

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		HalfOpenRequests: 1,
	})

	failingCalls(cb, 1)
	require.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestCircuitBreakerConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cb.Execute(func() error {
					if (n+j)%3 == 0 {
						return errBoom
					}
					return nil
				})
				cb.State()
			}
		}(i)
	}
	wg.Wait()
}

func TestPerEndpointCircuitBreaker(t *testing.T) {
	pecb := NewPerEndpointCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		HalfOpenRequests: 1,
	})

	// trip the breaker for one endpoint only
	pecb.Execute("POST /query", func() error { return errBoom })
	assert.Equal(t, CircuitOpen, pecb.State("POST /query"))
	assert.Equal(t, CircuitClosed, pecb.State("GET /items"))

	// the other endpoint still works
	err := pecb.Execute("GET /items", func() error { return nil })
	assert.NoError(t, err)

	err = pecb.Execute("POST /query", func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	pecb.Reset("POST /query")
	assert.Equal(t, CircuitClosed, pecb.State("POST /query"))
}

func TestPerEndpointCircuitBreakerResetAll(t *testing.T) {
	pecb := NewPerEndpointCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		HalfOpenRequests: 1,
	})

	pecb.Execute("a", func() error { return errBoom })
	pecb.Execute("b", func() error { return errBoom })
	require.Equal(t, CircuitOpen, pecb.State("a"))
	require.Equal(t, CircuitOpen, pecb.State("b"))

	pecb.ResetAll()
	assert.Equal(t, CircuitClosed, pecb.State("a"))
	assert.Equal(t, CircuitClosed, pecb.State("b"))
}

func TestNoopCircuitBreaker(t *testing.T) {
	cb := NewNoopCircuitBreaker()

	for i := 0; i < 100; i++ {
		err := cb.Execute(func() error { return errBoom })
		assert.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, CircuitClosed, cb.State())
	cb.Reset()
}
