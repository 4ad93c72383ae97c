package domain

import "time"

// BreakerState is the circuit breaker's state machine position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "halfOpen"
)

// CircuitBreakerSnapshot is a point-in-time, copyable view of a breaker's
// state (the live state lives behind a mutex in
// internal/resilience.CircuitBreaker).
type CircuitBreakerSnapshot struct {
	Backend           BackendName
	State             BreakerState
	FailureCount      int
	LastFailureTime   time.Time
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	SuccessThreshold  int
}
