// Package domain defines the core entities, ports, and domain errors shared
// by every other package in this module.
package domain

import (
	"context"
	"errors"
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// Error taxonomy (sentinels). These are the errors the rest of the module
// wraps with fmt.Errorf("%w: ...", ...); the Classifier maps arbitrary
// upstream errors onto a fixed ErrorCategory, but code within this module
// that wants to signal a specific condition uses these.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrBreakerOpen     = errors.New("circuit breaker open")
	ErrAllBackendsDown = errors.New("all backends exhausted")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrTimeout         = errors.New("operation timed out")
	ErrParseFailed     = errors.New("judge response could not be parsed")
	ErrMaintenanceMode = errors.New("service in maintenance mode")
)

// OperationType names the kind of judge call being made. It participates in
// the cache fingerprint and in provider-specific timeout selection.
type OperationType string

const (
	OperationEvaluate    OperationType = "evaluate"
	OperationCompare     OperationType = "compare"
	OperationMultiCriteria OperationType = "multi_criteria"
)

// BackendName identifies a concrete judge backend.
type BackendName string

const (
	BackendAnthropic BackendName = "anthropic"
	BackendOpenAI    BackendName = "openai"
	BackendBedrock   BackendName = "bedrock"
	BackendMock      BackendName = "mock"
)

// ServiceMode summarizes how degraded the Orchestrator currently is.
type ServiceMode string

const (
	ServiceModeFull        ServiceMode = "full"
	ServiceModeDegraded    ServiceMode = "degraded"
	ServiceModeFallback    ServiceMode = "fallback"
	ServiceModeMaintenance ServiceMode = "maintenance"
)
