package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/llmjudge/evalengine/internal/domain"
	"github.com/llmjudge/evalengine/internal/observability"
)

// CircuitBreaker is a per-backend state machine {closed, open, halfOpen}.
// Grounded on the teacher's internal/observability/circuit_breaker.go shape
// (successThreshold-gated half-open closing), corrected against
// original_source/.../retry_strategies.py::CircuitBreakerState for the
// closed-state-decrement and rate-limit-decrement rules spec.md section 4.D
// specifies and neither teacher file implements.
type CircuitBreaker struct {
	backend domain.BackendName
	logger  *slog.Logger
	metrics *observability.Metrics

	failureThreshold int
	recoveryTimeout  time.Duration
	successThreshold int

	mu              sync.Mutex
	state           domain.BreakerState
	failureCount    int
	halfOpenSuccess int
	probing         bool
	lastFailureTime time.Time
}

// NewCircuitBreaker constructs a breaker for one backend.
func NewCircuitBreaker(backend domain.BackendName, failureThreshold int, recoveryTimeout time.Duration, successThreshold int, logger *slog.Logger, metrics *observability.Metrics) *CircuitBreaker {
	if successThreshold < 1 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		backend:          backend,
		logger:           logger,
		metrics:          metrics,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		successThreshold: successThreshold,
		state:            domain.BreakerClosed,
	}
}

// Allow reports whether a call may proceed. In open state it lazily flips to
// halfOpen once the recovery timeout has elapsed, admitting exactly one
// probe call (spec.md section 8, testable property #2): a second concurrent
// Allow while a probe is outstanding is rejected until that probe's outcome
// is recorded via RecordSuccess/RecordFailure.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.BreakerClosed:
		return true
	case domain.BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	case domain.BreakerOpen:
		if time.Since(b.lastFailureTime) >= b.recoveryTimeout {
			b.transitionLocked(domain.BreakerHalfOpen)
			b.probing = true
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess implements spec.md section 4.D's RecordSuccess rule: in
// halfOpen, count toward successThreshold and close once reached; in
// closed, decrement failureCount by 1 (floor at 0) to reward sustained
// success.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case domain.BreakerHalfOpen:
		b.halfOpenSuccess++
		b.probing = false
		if b.halfOpenSuccess >= b.successThreshold {
			b.failureCount = 0
			b.transitionLocked(domain.BreakerClosed)
		}
	case domain.BreakerClosed:
		if b.failureCount > 0 {
			b.failureCount--
		}
	}
}

// RecordFailure implements spec.md section 4.D's RecordFailure rule.
// Rate-limit failures never open the breaker; instead they decrement
// failureCount (floored at 0) to avoid penalizing throttling. Any failure in
// halfOpen returns immediately to open. System, timeout and transient
// failures increment failureCount and open the breaker once failureThreshold
// is reached; other categories leave failureCount unchanged.
func (b *CircuitBreaker) RecordFailure(category domain.ErrorCategory) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = time.Now()

	if b.state == domain.BreakerHalfOpen {
		b.halfOpenSuccess = 0
		b.probing = false
		b.failureCount = b.failureThreshold
		b.transitionLocked(domain.BreakerOpen)
		return
	}

	if category == domain.CategoryRateLimit {
		if b.failureCount > 0 {
			b.failureCount--
		}
		return
	}

	opensBreaker := category == domain.CategorySystem || category == domain.CategoryTimeout || category == domain.CategoryTransient
	if !opensBreaker {
		return
	}

	b.failureCount++
	if b.state == domain.BreakerClosed && b.failureCount >= b.failureThreshold {
		b.transitionLocked(domain.BreakerOpen)
	}
}

// transitionLocked must be called with b.mu held.
func (b *CircuitBreaker) transitionLocked(to domain.BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == domain.BreakerHalfOpen {
		b.halfOpenSuccess = 0
	}
	if to == domain.BreakerClosed || to == domain.BreakerOpen {
		b.probing = false
	}

	if b.metrics != nil {
		b.metrics.BreakerState.WithLabelValues(string(b.backend)).Set(breakerStateValue(to))
		if to == domain.BreakerOpen {
			b.metrics.BreakerTrips.WithLabelValues(string(b.backend)).Inc()
		}
	}
	if b.logger != nil {
		b.logger.Warn("circuit breaker transition",
			slog.String("backend", string(b.backend)),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
	}
}

func breakerStateValue(s domain.BreakerState) float64 {
	switch s {
	case domain.BreakerHalfOpen:
		return 1
	case domain.BreakerOpen:
		return 2
	default:
		return 0
	}
}

// State returns a copyable snapshot of current breaker state.
func (b *CircuitBreaker) State() domain.CircuitBreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.CircuitBreakerSnapshot{
		Backend:          b.backend,
		State:            b.state,
		FailureCount:     b.failureCount,
		LastFailureTime:  b.lastFailureTime,
		FailureThreshold: b.failureThreshold,
		RecoveryTimeout:  b.recoveryTimeout,
		SuccessThreshold: b.successThreshold,
	}
}

// Reset forces the breaker back to closed. Used by tests and by
// SetMaintenanceMode(false) when resuming normal operation.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.halfOpenSuccess = 0
	b.probing = false
	b.transitionLocked(domain.BreakerClosed)
}
