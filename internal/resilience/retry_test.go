package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmjudge/evalengine/internal/domain"
)

func newTestRetryEngine() *RetryEngine {
	return NewRetryEngine(3, time.Millisecond, 10*time.Millisecond, 2.0, true, nil, nil)
}

func TestRetryEngineSucceedsOnFirstAttempt(t *testing.T) {
	e := newTestRetryEngine()
	b := NewCircuitBreaker(domain.BackendMock, 100, time.Second, 1, nil, nil)
	classifier := NewClassifier()

	calls := 0
	v, err := e.Execute(context.Background(), domain.BackendMock, b, classifier.Classify, func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

func TestRetryEngineRetriesTransientThenSucceeds(t *testing.T) {
	e := newTestRetryEngine()
	b := NewCircuitBreaker(domain.BackendMock, 100, time.Second, 1, nil, nil)
	classifier := NewClassifier()

	calls := 0
	v, err := e.Execute(context.Background(), domain.BackendMock, b, classifier.Classify, func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestRetryEngineDoesNotRetryUserErrors(t *testing.T) {
	e := newTestRetryEngine()
	b := NewCircuitBreaker(domain.BackendMock, 100, time.Second, 1, nil, nil)
	classifier := NewClassifier()

	calls := 0
	_, err := e.Execute(context.Background(), domain.BackendMock, b, classifier.Classify, func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("400 bad request: invalid input")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "user-category errors must not be retried")
}

func TestRetryEngineStopsWhenBreakerOpens(t *testing.T) {
	e := newTestRetryEngine()
	b := NewCircuitBreaker(domain.BackendMock, 2, time.Hour, 1, nil, nil)
	classifier := NewClassifier()

	calls := 0
	_, err := e.Execute(context.Background(), domain.BackendMock, b, classifier.Classify, func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("503 service unavailable")
	})

	require.Error(t, err)
	assert.True(t, calls <= e.PolicyFor(domain.CategorySystem).MaxAttempts)
	assert.Equal(t, domain.BreakerOpen, b.State().State)
}

func TestCalculateDelayRespectsCapAndJitter(t *testing.T) {
	e := newTestRetryEngine()
	policy := RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: 15 * time.Millisecond, Multiplier: 10, JitterEnabled: true}

	for attempt := 1; attempt <= 5; attempt++ {
		d := e.CalculateDelay(policy, attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, policy.MaxDelay)
	}
}

func TestCalculateDelayNoJitterIsDeterministic(t *testing.T) {
	e := newTestRetryEngine()
	policy := RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, JitterEnabled: false}
	assert.Equal(t, 10*time.Millisecond, e.CalculateDelay(policy, 1))
	assert.Equal(t, 20*time.Millisecond, e.CalculateDelay(policy, 2))
	assert.Equal(t, 40*time.Millisecond, e.CalculateDelay(policy, 3))
}

func TestAuthenticationAndUserCategoriesAreDisabled(t *testing.T) {
	e := newTestRetryEngine()
	assert.False(t, e.PolicyFor(domain.CategoryAuthentication).Enabled)
	assert.False(t, e.PolicyFor(domain.CategoryUser).Enabled)
	assert.False(t, e.PolicyFor(domain.CategoryPermanent).Enabled)
}
