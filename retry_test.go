package deta

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transientErr() error {
	return NewError(ErrorTypeServer, "boom", ErrServerError)
}

func TestExponentialBackoffIntervals(t *testing.T) {
	strategy := &ExponentialBackoffStrategy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		Multiplier:      2.0,
		Jitter:          0, // deterministic
	}

	assert.Equal(t, 100*time.Millisecond, strategy.NextInterval(1))
	assert.Equal(t, 200*time.Millisecond, strategy.NextInterval(2))
	assert.Equal(t, 400*time.Millisecond, strategy.NextInterval(3))
	assert.Equal(t, 800*time.Millisecond, strategy.NextInterval(4))
	// capped at MaxInterval
	assert.Equal(t, 1*time.Second, strategy.NextInterval(5))
	assert.Equal(t, 1*time.Second, strategy.NextInterval(10))
	// attempt 0 is the initial request, no delay
	assert.Equal(t, time.Duration(0), strategy.NextInterval(0))
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	strategy := &ExponentialBackoffStrategy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.3,
	}

	for i := 0; i < 100; i++ {
		interval := strategy.NextInterval(1)
		assert.GreaterOrEqual(t, interval, 70*time.Millisecond)
		assert.LessOrEqual(t, interval, 130*time.Millisecond)
	}
}

func TestLinearBackoffInterval(t *testing.T) {
	strategy := &LinearBackoffStrategy{Interval: 500 * time.Millisecond}

	assert.Equal(t, 500*time.Millisecond, strategy.NextInterval(1))
	assert.Equal(t, 500*time.Millisecond, strategy.NextInterval(7))
	assert.Equal(t, time.Duration(0), strategy.NextInterval(0))
}

func TestConstantBackoffInterval(t *testing.T) {
	strategy := &ConstantBackoffStrategy{Interval: 250 * time.Millisecond}

	assert.Equal(t, 250*time.Millisecond, strategy.NextInterval(1))
	assert.Equal(t, 250*time.Millisecond, strategy.NextInterval(99))
}

func TestNoRetryStrategy(t *testing.T) {
	strategy := &NoRetryStrategy{}

	assert.Equal(t, time.Duration(0), strategy.NextInterval(1))
	assert.False(t, strategy.ShouldRetry(transientErr(), 1))
}

func TestRetryBudgetIsExhausted(t *testing.T) {
	budget := RetryBudget{MaxAttempts: 3, MaxDuration: time.Second}

	assert.False(t, budget.IsExhausted(1, 0))
	assert.False(t, budget.IsExhausted(2, 500*time.Millisecond))
	assert.True(t, budget.IsExhausted(3, 0))
	assert.True(t, budget.IsExhausted(1, 2*time.Second))

	unlimited := RetryBudget{}
	assert.False(t, unlimited.IsExhausted(1000, time.Hour))
}

func TestRetryBudgetErrorTypeFilter(t *testing.T) {
	budget := RetryBudget{
		RetryableErrors: []ErrorType{ErrorTypeNetwork},
	}

	netErr := NewError(ErrorTypeNetwork, "refused", nil)
	serverErr := NewError(ErrorTypeServer, "boom", nil)

	assert.True(t, budget.IsRetryable(netErr))
	// retryable type, but filtered out by the budget
	assert.False(t, budget.IsRetryable(serverErr))
	// semantic errors never retry regardless of filter
	assert.False(t, budget.IsRetryable(NewError(ErrorTypeNotFound, "gone", nil)))

	open := RetryBudget{}
	assert.True(t, open.IsRetryable(serverErr))
}

func TestRetryExecutorSucceedsAfterFailures(t *testing.T) {
	executor := newRetryExecutor(&ConstantBackoffStrategy{
		Interval: time.Millisecond,
		Budget:   RetryBudget{MaxAttempts: 5},
	})

	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExecutorStopsOnNonRetryable(t *testing.T) {
	executor := newRetryExecutor(&ConstantBackoffStrategy{
		Interval: time.Millisecond,
		Budget:   RetryBudget{MaxAttempts: 5},
	})

	calls := 0
	semantic := NewError(ErrorTypeConflict, "exists", ErrConflict)
	err := executor.Execute(context.Background(), func() error {
		calls++
		return semantic
	}, nil)

	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, calls)
}

func TestRetryExecutorHonorsBudget(t *testing.T) {
	executor := newRetryExecutor(&ConstantBackoffStrategy{
		Interval: time.Millisecond,
		Budget:   RetryBudget{MaxAttempts: 3},
	})

	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		return transientErr()
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExecutorContextCancellation(t *testing.T) {
	executor := newRetryExecutor(&ConstantBackoffStrategy{
		Interval: 10 * time.Second, // would block without cancellation
		Budget:   RetryBudget{MaxAttempts: 5},
	})

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- executor.Execute(ctx, func() error {
			calls++
			return transientErr()
		}, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("executor did not return after cancellation")
	}
}

func TestRetryExecutorNotifiesOnRetry(t *testing.T) {
	executor := newRetryExecutor(&ConstantBackoffStrategy{
		Interval: time.Millisecond,
		Budget:   RetryBudget{MaxAttempts: 4},
	})

	var attempts []int
	var lastErr error
	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
		lastErr = err
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
	assert.ErrorIs(t, lastErr, ErrServerError)
}

func TestRetryExecutorNilStrategyDefaults(t *testing.T) {
	executor := newRetryExecutor(nil)
	require.NotNil(t, executor.strategy)

	err := executor.Execute(context.Background(), func() error { return nil }, nil)
	assert.NoError(t, err)
}

func TestApplyJitterNeverNegative(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := applyJitter(10, 1.0)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 20.0)
	}
	assert.Equal(t, 10.0, applyJitter(10, 0))
}

func TestDefaultStrategies(t *testing.T) {
	exp := DefaultExponentialBackoff()
	assert.Equal(t, 100*time.Millisecond, exp.InitialInterval)
	assert.True(t, exp.ShouldRetry(transientErr(), 1))
	assert.False(t, exp.ShouldRetry(errors.New("plain"), 1))

	lin := DefaultLinearBackoff()
	assert.Equal(t, time.Second, lin.Interval)

	con := DefaultConstantBackoff()
	assert.Equal(t, 500*time.Millisecond, con.Interval)

	budget := DefaultRetryBudget()
	assert.Equal(t, 3, budget.MaxAttempts)
	assert.Equal(t, 30*time.Second, budget.MaxDuration)
}
