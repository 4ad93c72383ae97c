package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llmjudge/evalengine/internal/domain"
)

// TimeoutType distinguishes why an operation failed to complete in time.
type TimeoutType string

const (
	TimeoutRequest TimeoutType = "request"
	TimeoutConnect TimeoutType = "connect"
	TimeoutRead    TimeoutType = "read"
)

// TimeoutConfig configures one ExecuteWithTimeout call. Grounded on
// original_source/.../timeout_manager.py's TimeoutConfig dataclass.
type TimeoutConfig struct {
	RequestTimeout          time.Duration
	ConnectTimeout          time.Duration
	CancellationGracePeriod time.Duration
}

// TimeoutResult is the outcome shape from spec.md section 4.B.
type TimeoutResult struct {
	Success      bool
	Value        any
	Err          error
	TimeoutType  TimeoutType
	Duration     time.Duration
	WasCancelled bool
}

// partialResponder is implemented by errors that can surface a partial
// response at timeout (spec.md section 4.B "Partial response handling").
type partialResponder interface {
	PartialResponse() (content string, ok bool)
}

// TimeoutManager runs operations under a deadline and reaps them on expiry.
// Go has no asyncio.Task.cancel() equivalent, so the Python original's
// task-cancel-then-await-grace-period idiom
// (original_source/.../timeout_manager.py::TimeoutManager) is translated
// here into context.WithTimeout plus a supervisor goroutine that waits up to
// CancellationGracePeriod for the operation's own goroutine to observe
// ctx.Done() and return.
type TimeoutManager struct {
	provider string
	logger   *slog.Logger

	counter atomic.Int64

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewTimeoutManager constructs a manager for one backend.
func NewTimeoutManager(provider string, logger *slog.Logger) *TimeoutManager {
	return &TimeoutManager{provider: provider, logger: logger, active: make(map[string]context.CancelFunc)}
}

type opResult struct {
	value any
	err   error
}

// ExecuteWithTimeout runs op under ctx bounded by config.RequestTimeout. op
// must itself observe ctx cancellation and return promptly; operations that
// do not cooperate are reaped after CancellationGracePeriod but their
// goroutine is allowed to leak (Go provides no harder cancellation
// primitive, matching the Python original's own "force cancel" fallback
// which likewise cannot guarantee the underlying task actually stops).
func (m *TimeoutManager) ExecuteWithTimeout(ctx context.Context, op func(context.Context) (any, error), config TimeoutConfig, name string) TimeoutResult {
	opID := fmt.Sprintf("%s_%d", name, m.counter.Add(1))

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, config.RequestTimeout)

	m.mu.Lock()
	m.active[opID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.active, opID)
		m.mu.Unlock()
		cancel()
	}()

	resultCh := make(chan opResult, 1)
	go func() {
		v, err := op(callCtx)
		resultCh <- opResult{value: v, err: err}
	}()

	select {
	case res := <-resultCh:
		duration := time.Since(start)
		if res.err != nil {
			return TimeoutResult{Success: false, Err: res.err, Duration: duration}
		}
		return TimeoutResult{Success: true, Value: res.value, Duration: duration}

	case <-callCtx.Done():
		duration := time.Since(start)
		if m.logger != nil {
			m.logger.Warn("operation timed out", slog.String("provider", m.provider), slog.String("op", opID), slog.Duration("after", duration))
		}

		grace := config.CancellationGracePeriod
		if grace <= 0 {
			grace = 2 * time.Second
		}
		cancelled := false
		select {
		case res := <-resultCh:
			cancelled = true
			if pr, ok := res.err.(partialResponder); ok {
				if content, has := pr.PartialResponse(); has {
					return TimeoutResult{
						Success:      false,
						Value:        map[string]any{"content": content, "partial": true, "timeoutDuration": duration},
						Err:          fmt.Errorf("%w: %s timed out after %s", domain.ErrTimeout, name, duration),
						TimeoutType:  TimeoutRequest,
						Duration:     duration,
						WasCancelled: cancelled,
					}
				}
			}
		case <-time.After(grace):
			if m.logger != nil {
				m.logger.Warn("operation did not cancel gracefully", slog.String("provider", m.provider), slog.String("op", opID))
			}
		}

		return TimeoutResult{
			Success:      false,
			Err:          fmt.Errorf("%w: %s timed out after %s", domain.ErrTimeout, name, duration),
			TimeoutType:  TimeoutRequest,
			Duration:     duration,
			WasCancelled: cancelled,
		}
	}
}

// CancelAll cancels every live operation. Used by Close() on shutdown.
func (m *TimeoutManager) CancelAll() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.active))
	for _, c := range m.active {
		cancels = append(cancels, c)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range cancels {
		wg.Add(1)
		go func(cancel context.CancelFunc) {
			defer wg.Done()
			cancel()
		}(c)
	}
	wg.Wait()
}

// ActiveCount reports the number of in-flight operations.
func (m *TimeoutManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// GetActiveOperations reports the IDs of currently in-flight operations
// (SPEC_FULL.md section 4 supplemented feature). Grounded on
// original_source/.../timeout_manager.py::TimeoutManager.get_active_operations,
// narrowed to IDs only since Go's context.CancelFunc carries none of the
// task introspection (name/done/cancelled) the Python asyncio.Task exposes.
func (m *TimeoutManager) GetActiveOperations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}

// TimeoutStats reports timeout-manager introspection for monitoring
// (SPEC_FULL.md section 4 supplemented feature). Grounded on
// original_source/.../timeout_manager.py::ProviderTimeoutManager.get_timeout_stats.
type TimeoutStats struct {
	Provider         string
	ActiveOperations int
}

// GetTimeoutStats reports the current active-operation count for monitoring.
func (m *TimeoutManager) GetTimeoutStats() TimeoutStats {
	return TimeoutStats{Provider: m.provider, ActiveOperations: m.ActiveCount()}
}
