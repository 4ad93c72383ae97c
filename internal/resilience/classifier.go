// Package resilience implements the six core resilience components:
// classifier, timeout manager, retry engine, circuit breaker, health
// monitor, and response cache. Each is a small, independently testable
// state machine or pure function, composed by internal/orchestrator.
package resilience

import (
	"context"
	"regexp"

	"github.com/google/uuid"

	"github.com/llmjudge/evalengine/internal/domain"
)

// Classifier maps raw errors to the fixed ErrorCategory taxonomy. It is
// pure and stateless; Classify performs no I/O. Grounded on spec.md section
// 4.A and the literal boundary strings exercised by
// original_source/tests/unit/infrastructure/test_error_classification.py.
type Classifier struct{}

// NewClassifier constructs a Classifier. It holds no state, but is still an
// explicitly constructed object (never a package-level singleton) so the
// Orchestrator can own exactly one shared instance per spec.md section 3.
func NewClassifier() *Classifier { return &Classifier{} }

var (
	authPattern = regexp.MustCompile(`(?i)401|403|unauthorized|forbidden|authentication failed|invalid api key`)
	rateLimitPattern = regexp.MustCompile(`(?i)429|rate limit|too many requests|quota exceeded`)
	timeoutPattern = regexp.MustCompile(`(?i)timed out|timeout|deadline exceeded|read timed out`)
	networkPattern = regexp.MustCompile(`(?i)connection (refused|failed|reset)|network error|host unreachable|dns resolution failed|no such host`)
	userPattern = regexp.MustCompile(`(?i)\b400\b|bad request|invalid input|validation failed|malformed request`)
	systemPattern = regexp.MustCompile(`(?i)\b50[0-9]\b|internal server error|service unavailable|bad gateway`)
)

// Classify derives an ErrorClassification from err. ctx is used only to pull
// a request id for CorrelationID, not for cancellation.
func (c *Classifier) Classify(ctx context.Context, err error) domain.ErrorClassification {
	if err == nil {
		return domain.ErrorClassification{Category: domain.CategoryUnknown, Severity: SeverityForCategory(domain.CategoryUnknown), IsRetryable: isRetryableCategory(domain.CategoryUnknown)}
	}

	msg := err.Error()
	category := classifyMessage(msg)

	correlationID := ""
	if ctx != nil {
		if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
			correlationID = id
		}
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	return domain.ErrorClassification{
		Category:         category,
		Severity:         SeverityForCategory(category),
		IsRetryable:      isRetryableCategory(category),
		UserMessage:      userMessageFor(category),
		SuggestedAction:  suggestedActionFor(category),
		TechnicalDetails: map[string]any{"context": msg},
		CorrelationID:    correlationID,
	}
}

// classifyMessage applies the classification order from spec.md section 4.A:
// concrete error type would be checked first by a caller that has one (see
// ClassifyTyped); here we pattern-match the message against category-specific
// regular expressions, in the priority order that resolves overlapping
// matches (e.g. "401 Unauthorized" before a generic "user" 4xx match).
func classifyMessage(msg string) domain.ErrorCategory {
	switch {
	case authPattern.MatchString(msg):
		return domain.CategoryAuthentication
	case rateLimitPattern.MatchString(msg):
		return domain.CategoryRateLimit
	case systemPattern.MatchString(msg):
		return domain.CategorySystem
	case timeoutPattern.MatchString(msg):
		return domain.CategoryTimeout
	case networkPattern.MatchString(msg):
		return domain.CategoryNetwork
	case userPattern.MatchString(msg):
		return domain.CategoryUser
	default:
		return domain.CategoryUnknown
	}
}

// ClassifyTyped lets a backend hand the classifier a pre-typed signal (e.g.
// an HTTP status code) when it has one, bypassing message pattern matching.
// statusCode of 0 means "unknown, fall back to message classification".
func (c *Classifier) ClassifyTyped(ctx context.Context, err error, statusCode int) domain.ErrorClassification {
	if statusCode == 0 {
		return c.Classify(ctx, err)
	}
	var category domain.ErrorCategory
	switch {
	case statusCode == 401 || statusCode == 403:
		category = domain.CategoryAuthentication
	case statusCode == 429:
		category = domain.CategoryRateLimit
	case statusCode >= 500:
		category = domain.CategorySystem
	case statusCode >= 400:
		category = domain.CategoryUser
	default:
		return c.Classify(ctx, err)
	}

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	correlationID := ""
	if ctx != nil {
		if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
			correlationID = id
		}
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return domain.ErrorClassification{
		Category:         category,
		Severity:         SeverityForCategory(category),
		IsRetryable:      isRetryableCategory(category),
		UserMessage:      userMessageFor(category),
		SuggestedAction:  suggestedActionFor(category),
		TechnicalDetails: map[string]any{"context": msg, "statusCode": statusCode},
		CorrelationID:    correlationID,
	}
}

func isRetryableCategory(cat domain.ErrorCategory) bool {
	switch cat {
	case domain.CategoryRateLimit, domain.CategoryNetwork, domain.CategoryTimeout, domain.CategorySystem, domain.CategoryTransient:
		return true
	default:
		return false
	}
}

// SeverityForCategory implements spec.md section 4.A's severity table.
func SeverityForCategory(cat domain.ErrorCategory) domain.Severity {
	switch cat {
	case domain.CategoryAuthentication:
		return domain.SeverityCritical
	case domain.CategorySystem:
		return domain.SeverityHigh
	case domain.CategoryRateLimit, domain.CategoryTimeout:
		return domain.SeverityMedium
	case domain.CategoryNetwork, domain.CategoryUser:
		return domain.SeverityLow
	default:
		return domain.SeverityMedium
	}
}

func userMessageFor(cat domain.ErrorCategory) string {
	switch cat {
	case domain.CategoryAuthentication:
		return "Authentication failed. Please check your API keys."
	case domain.CategoryRateLimit:
		return "The service is rate limited. Please reduce request frequency and retry later."
	case domain.CategoryNetwork:
		return "A network error occurred. Please check your internet connection."
	case domain.CategoryTimeout:
		return "The request timed out. Please try again."
	case domain.CategoryUser:
		return "The request could not be processed. Please check your input parameters."
	case domain.CategorySystem:
		return "The service is experiencing issues. Please try again shortly."
	default:
		return "An unexpected error occurred."
	}
}

func suggestedActionFor(cat domain.ErrorCategory) string {
	switch cat {
	case domain.CategoryAuthentication:
		return "verify API keys and permissions"
	case domain.CategoryRateLimit:
		return "reduce request frequency and retry later"
	case domain.CategoryNetwork:
		return "check connectivity and retry"
	case domain.CategoryTimeout:
		return "retry with a longer timeout or smaller payload"
	case domain.CategoryUser:
		return "fix the request and resubmit"
	case domain.CategorySystem:
		return "retry with backoff; escalate if persistent"
	default:
		return "retry with backoff"
	}
}

type correlationIDKey struct{}

// ContextWithCorrelationID attaches a correlation id the Classifier will pick
// up in Classify/ClassifyTyped.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}
