package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmjudge/evalengine/internal/domain"
)

func newTestBreaker() *CircuitBreaker {
	return NewCircuitBreaker(domain.BackendMock, 3, 50*time.Millisecond, 2, nil, nil)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newTestBreaker()
	require.True(t, b.Allow())

	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	assert.Equal(t, domain.BreakerClosed, b.State().State)

	b.RecordFailure(domain.CategorySystem)
	assert.Equal(t, domain.BreakerOpen, b.State().State)
	assert.False(t, b.Allow())
}

func TestBreakerClosedSuccessDecrementsFailureCount(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	require.Equal(t, 2, b.State().FailureCount)

	b.RecordSuccess()
	assert.Equal(t, 1, b.State().FailureCount)

	// floor at 0
	b.RecordSuccess()
	b.RecordSuccess()
	assert.Equal(t, 0, b.State().FailureCount)
}

func TestBreakerRateLimitDecrementsInsteadOfOpening(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	require.Equal(t, 2, b.State().FailureCount)

	// A rate-limit failure must not count toward opening; it decrements.
	b.RecordFailure(domain.CategoryRateLimit)
	assert.Equal(t, 1, b.State().FailureCount)
	assert.Equal(t, domain.BreakerClosed, b.State().State)
}

func TestBreakerExactlyOneHalfOpenProbe(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	require.Equal(t, domain.BreakerOpen, b.State().State)

	time.Sleep(60 * time.Millisecond)

	// First Allow() after recovery timeout flips to halfOpen and admits
	// exactly one probe.
	assert.True(t, b.Allow())
	assert.Equal(t, domain.BreakerHalfOpen, b.State().State)

	// A second concurrent Allow() while the probe is outstanding is rejected.
	assert.False(t, b.Allow())

	// Recording the probe's failure sends the breaker straight back to open.
	b.RecordFailure(domain.CategorySystem)
	assert.Equal(t, domain.BreakerOpen, b.State().State)
}

func TestBreakerHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	time.Sleep(60 * time.Millisecond)

	require.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, domain.BreakerHalfOpen, b.State().State)

	require.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, domain.BreakerClosed, b.State().State)
	assert.Equal(t, 0, b.State().FailureCount)
}

func TestBreakerHalfOpenFailureReturnsToOpen(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	time.Sleep(60 * time.Millisecond)

	require.True(t, b.Allow())
	b.RecordFailure(domain.CategoryTimeout)
	assert.Equal(t, domain.BreakerOpen, b.State().State)
}

func TestBreakerReset(t *testing.T) {
	b := newTestBreaker()
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	b.RecordFailure(domain.CategorySystem)
	require.Equal(t, domain.BreakerOpen, b.State().State)

	b.Reset()
	snap := b.State()
	assert.Equal(t, domain.BreakerClosed, snap.State)
	assert.Equal(t, 0, snap.FailureCount)
	assert.True(t, b.Allow())
}
