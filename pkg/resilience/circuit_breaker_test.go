package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/richxcame/driver-verification/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAndReturnsOpenError(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-breaker",
		Timeout:          50 * time.Millisecond,
		Interval:         50 * time.Millisecond,
		FailureThreshold: 2,
		SuccessThreshold: 1,
	})

	ctx := context.Background()
	failingOp := func(context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	}

	for i := 0; i < 2; i++ {
		_, err := breaker.Execute(ctx, failingOp)
		require.Error(t, err, "iteration %d", i)
	}

	assert.False(t, breaker.Allow())
	assert.Equal(t, float64(1), testutil.ToFloat64(breakerStateGauge.WithLabelValues("test-breaker")))

	_, err := breaker.Execute(ctx, func(context.Context) (interface{}, error) {
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerPassesThroughOnSuccess(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{Name: "success-breaker", Timeout: time.Second, Interval: time.Second})

	result, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return "response", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "response", result)
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{Name: "cancel-breaker", FailureThreshold: 1, Timeout: time.Second})

	for i := 0; i < 3; i++ {
		_, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
			return nil, context.Canceled
		})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.True(t, breaker.Allow())
}

func TestCircuitBreakerCustomSuccessClassifier(t *testing.T) {
	errMissing := errors.New("object missing")
	breaker := NewCircuitBreaker(Settings{
		Name:             "classifier-breaker",
		FailureThreshold: 1,
		Timeout:          time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errMissing)
		},
	})

	_, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return nil, errMissing
	})
	assert.ErrorIs(t, err, errMissing)
	assert.True(t, breaker.Allow())
}

func TestNilBreakerRunsOperation(t *testing.T) {
	var breaker *CircuitBreaker
	result, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.True(t, breaker.Allow())
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig("object-storage", config.CircuitBreakerSettings{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		TimeoutSeconds:   10,
		IntervalSeconds:  60,
	})

	assert.Equal(t, "object-storage", s.Name)
	assert.Equal(t, uint32(3), s.FailureThreshold)
	assert.Equal(t, 10*time.Second, s.Timeout)
	assert.Equal(t, time.Minute, s.Interval)
}
