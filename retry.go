package deta

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryStrategy defines how transient failures are retried.
//
// Built-in strategies:
//   - ExponentialBackoffStrategy: exponentially increasing delays with jitter
//   - LinearBackoffStrategy: fixed delay with jitter
//   - ConstantBackoffStrategy: fixed delay, no jitter
//   - NoRetryStrategy: disables retries entirely
//
// Custom strategies implement the two methods:
//
//	type aggressive struct{}
//
//	func (aggressive) NextInterval(attempt int) time.Duration {
//	    return time.Duration(attempt) * 50 * time.Millisecond
//	}
//
//	func (aggressive) ShouldRetry(err error, attempt int) bool {
//	    return deta.IsRetryable(err) && attempt < 10
//	}
type RetryStrategy interface {
	// NextInterval returns the delay before the next retry attempt.
	// The attempt parameter starts at 1 for the first retry.
	// Return 0 to indicate no more retries should be attempted.
	NextInterval(attempt int) time.Duration

	// ShouldRetry determines if the error is retryable for the given attempt.
	ShouldRetry(err error, attempt int) bool
}

// RetryBudget limits retry attempts by count and duration. The SDK never
// retries semantic errors; the budget additionally bounds how long
// transient failures are retried.
type RetryBudget struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// Set to 0 for no attempt limit.
	MaxAttempts int

	// MaxDuration is the maximum total time for all retries, including
	// delays. Set to 0 for no time limit.
	MaxDuration time.Duration

	// RetryableErrors restricts retries to specific error types.
	// If empty, all retryable errors are allowed.
	RetryableErrors []ErrorType
}

// DefaultRetryBudget returns a retry budget with sensible defaults:
// 3 attempts, 30 seconds total.
func DefaultRetryBudget() RetryBudget {
	return RetryBudget{
		MaxAttempts: 3,
		MaxDuration: 30 * time.Second,
	}
}

// IsExhausted checks if the retry budget is exhausted
func (rb *RetryBudget) IsExhausted(attempt int, elapsed time.Duration) bool {
	if rb.MaxAttempts > 0 && attempt >= rb.MaxAttempts {
		return true
	}
	if rb.MaxDuration > 0 && elapsed >= rb.MaxDuration {
		return true
	}
	return false
}

// IsRetryable checks if an error is allowed by the budget
func (rb *RetryBudget) IsRetryable(err error) bool {
	if !IsRetryable(err) {
		return false
	}

	if len(rb.RetryableErrors) == 0 {
		return true
	}

	var enhancedErr *Error
	if errors.As(err, &enhancedErr) {
		for _, allowed := range rb.RetryableErrors {
			if enhancedErr.Type == allowed {
				return true
			}
		}
	}

	return false
}

// budgeted is implemented by strategies that carry a retry budget.
type budgeted interface {
	budget() RetryBudget
}

// ExponentialBackoffStrategy implements exponential backoff with jitter.
// This is the default strategy. The delay calculation is:
//
//	base = InitialInterval * (Multiplier ^ (attempt-1))
//	delay = min(base, MaxInterval) ± jitter
type ExponentialBackoffStrategy struct {
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the delay.
	MaxInterval time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64

	// Jitter is the randomization factor (0.0 to 1.0);
	// 0.3 means ±30% of the calculated interval.
	Jitter float64

	// Budget limits retry attempts by count and duration.
	Budget RetryBudget
}

// DefaultExponentialBackoff returns an exponential backoff strategy with
// sensible defaults: 100ms initial, 5s cap, 2.0 multiplier, ±30% jitter,
// default budget.
func DefaultExponentialBackoff() *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.3,
		Budget:          DefaultRetryBudget(),
	}
}

// NextInterval calculates the next retry interval
func (s *ExponentialBackoffStrategy) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := float64(s.InitialInterval) * math.Pow(s.Multiplier, float64(attempt-1))
	if interval > float64(s.MaxInterval) {
		interval = float64(s.MaxInterval)
	}
	interval = applyJitter(interval, s.Jitter)

	return time.Duration(interval)
}

// ShouldRetry determines if the error is retryable
func (s *ExponentialBackoffStrategy) ShouldRetry(err error, attempt int) bool {
	return s.Budget.IsRetryable(err)
}

func (s *ExponentialBackoffStrategy) budget() RetryBudget { return s.Budget }

// LinearBackoffStrategy retries with a fixed interval and optional jitter.
type LinearBackoffStrategy struct {
	// Interval is the fixed interval between retries.
	Interval time.Duration

	// Jitter is the randomization factor (0.0 to 1.0).
	Jitter float64

	// Budget limits retry attempts.
	Budget RetryBudget
}

// DefaultLinearBackoff returns a linear backoff strategy with sensible
// defaults: 1s interval, ±10% jitter, default budget.
func DefaultLinearBackoff() *LinearBackoffStrategy {
	return &LinearBackoffStrategy{
		Interval: 1 * time.Second,
		Jitter:   0.1,
		Budget:   DefaultRetryBudget(),
	}
}

// NextInterval returns the next retry interval
func (s *LinearBackoffStrategy) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(applyJitter(float64(s.Interval), s.Jitter))
}

// ShouldRetry determines if the error is retryable
func (s *LinearBackoffStrategy) ShouldRetry(err error, attempt int) bool {
	return s.Budget.IsRetryable(err)
}

func (s *LinearBackoffStrategy) budget() RetryBudget { return s.Budget }

// ConstantBackoffStrategy retries with exactly the same delay every time.
type ConstantBackoffStrategy struct {
	// Interval is the fixed interval between retries.
	Interval time.Duration

	// Budget limits retry attempts.
	Budget RetryBudget
}

// DefaultConstantBackoff returns a constant backoff strategy with
// sensible defaults: 500ms interval, default budget.
func DefaultConstantBackoff() *ConstantBackoffStrategy {
	return &ConstantBackoffStrategy{
		Interval: 500 * time.Millisecond,
		Budget:   DefaultRetryBudget(),
	}
}

// NextInterval returns the next retry interval
func (s *ConstantBackoffStrategy) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return s.Interval
}

// ShouldRetry determines if the error is retryable
func (s *ConstantBackoffStrategy) ShouldRetry(err error, attempt int) bool {
	return s.Budget.IsRetryable(err)
}

func (s *ConstantBackoffStrategy) budget() RetryBudget { return s.Budget }

// NoRetryStrategy disables retries entirely.
//
//	config := deta.DefaultConfig().
//	    WithRetryStrategy(&deta.NoRetryStrategy{})
type NoRetryStrategy struct{}

// NextInterval always returns 0
func (s *NoRetryStrategy) NextInterval(attempt int) time.Duration {
	return 0
}

// ShouldRetry always returns false
func (s *NoRetryStrategy) ShouldRetry(err error, attempt int) bool {
	return false
}

// applyJitter randomizes an interval by ±(jitter * interval).
func applyJitter(interval, jitter float64) float64 {
	if jitter > 0 {
		jitterRange := interval * jitter
		interval += jitterRange * (2*rand.Float64() - 1)
	}
	if interval < 0 {
		interval = 0
	}
	return interval
}

// retryExecutor runs operations under a retry strategy
type retryExecutor struct {
	strategy RetryStrategy
}

func newRetryExecutor(strategy RetryStrategy) *retryExecutor {
	if strategy == nil {
		strategy = DefaultExponentialBackoff()
	}
	return &retryExecutor{strategy: strategy}
}

// Execute runs fn with retry logic. onRetry, if non-nil, is invoked
// before each retry attempt with the attempt number, the delay about to
// be applied, and the error that triggered the retry.
func (re *retryExecutor) Execute(ctx context.Context, fn func() error, onRetry func(attempt int, delay time.Duration, err error)) error {
	var lastErr error
	startTime := time.Now()

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !re.strategy.ShouldRetry(err, attempt+1) {
			break
		}

		if ctx.Err() != nil {
			return WrapError(ctx.Err(), ErrorTypeTimeout, "context canceled during retry")
		}

		if b, ok := re.strategy.(budgeted); ok {
			if budget := b.budget(); budget.IsExhausted(attempt+1, time.Since(startTime)) {
				return lastErr
			}
		}

		interval := re.strategy.NextInterval(attempt + 1)
		if interval <= 0 {
			break
		}

		if onRetry != nil {
			onRetry(attempt+1, interval, err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return WrapError(ctx.Err(), ErrorTypeTimeout, "context canceled during retry wait")
		case <-timer.C:
		}
	}

	return lastErr
}
