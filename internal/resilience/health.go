package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/llmjudge/evalengine/internal/domain"
	"github.com/llmjudge/evalengine/internal/observability"
)

// HealthMonitor tracks one ProviderHealth record per backend, updated
// synchronously on every call outcome and swept in the background on an
// interval. Grounded on
// original_source/.../fallback_manager.py::HealthMonitor
// (_update_provider_status thresholds match spec.md section 4.E exactly).
type HealthMonitor struct {
	logger  *slog.Logger
	metrics *observability.Metrics

	idleTimeout time.Duration

	mu      sync.RWMutex
	records map[domain.BackendName]*healthRecord
}

type healthRecord struct {
	status              domain.HealthStatus
	totalRequests       int64
	failedRequests      int64
	consecutiveFailures int
	lastSuccess         time.Time
	lastFailure         time.Time
	avgResponseTime     time.Duration
	haveLatencySample   bool
}

// NewHealthMonitor constructs a monitor for the given backends, all starting
// healthy.
func NewHealthMonitor(backends []domain.BackendName, idleTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *HealthMonitor {
	m := &HealthMonitor{
		logger:      logger,
		metrics:     metrics,
		idleTimeout: idleTimeout,
		records:     make(map[domain.BackendName]*healthRecord, len(backends)),
	}
	for _, b := range backends {
		m.records[b] = &healthRecord{status: domain.HealthHealthy}
	}
	return m
}

// RecordSuccess implements spec.md section 4.E's RecordSuccess rule.
func (m *HealthMonitor) RecordSuccess(backend domain.BackendName, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.recordLocked(backend)
	r.lastSuccess = time.Now()
	r.consecutiveFailures = 0
	r.totalRequests++
	if r.haveLatencySample {
		r.avgResponseTime = time.Duration(0.8*float64(r.avgResponseTime) + 0.2*float64(latency))
	} else {
		r.avgResponseTime = latency
		r.haveLatencySample = true
	}
	m.deriveStatusLocked(backend, r)
}

// RecordFailure implements spec.md section 4.E's RecordFailure rule.
func (m *HealthMonitor) RecordFailure(backend domain.BackendName) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.recordLocked(backend)
	r.lastFailure = time.Now()
	r.consecutiveFailures++
	r.failedRequests++
	r.totalRequests++
	m.deriveStatusLocked(backend, r)
}

func (m *HealthMonitor) recordLocked(backend domain.BackendName) *healthRecord {
	r, ok := m.records[backend]
	if !ok {
		r = &healthRecord{status: domain.HealthHealthy}
		m.records[backend] = r
	}
	return r
}

func successRate(r *healthRecord) float64 {
	if r.totalRequests == 0 {
		return 1
	}
	return float64(r.totalRequests-r.failedRequests) / float64(r.totalRequests)
}

// deriveStatusLocked implements spec.md section 4.E's status derivation,
// called after every update. Must be called with m.mu held.
func (m *HealthMonitor) deriveStatusLocked(backend domain.BackendName, r *healthRecord) {
	if r.status == domain.HealthMaintenance {
		return
	}
	prev := r.status
	rate := successRate(r)

	switch {
	case r.consecutiveFailures >= 5:
		r.status = domain.HealthUnavailable
	case r.consecutiveFailures >= 3 || rate < 0.5:
		r.status = domain.HealthDegraded
	case rate >= 0.9 && r.consecutiveFailures == 0:
		r.status = domain.HealthHealthy
	default:
		// Otherwise the previous status is retained.
	}

	if r.status != prev {
		m.logTransition(backend, prev, r.status)
	}
	if m.metrics != nil {
		m.metrics.HealthStatus.WithLabelValues(string(backend)).Set(
			observability.HealthStatusValue(r.status == domain.HealthHealthy, r.status == domain.HealthDegraded))
	}
}

func (m *HealthMonitor) logTransition(backend domain.BackendName, from, to domain.HealthStatus) {
	if m.logger == nil {
		return
	}
	m.logger.Info("provider health transition",
		slog.String("backend", string(backend)),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

// Get returns a copyable snapshot of one backend's health.
func (m *HealthMonitor) Get(backend domain.BackendName) domain.ProviderHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[backend]
	if !ok {
		return domain.ProviderHealth{Backend: backend, Status: domain.HealthHealthy, SuccessRate: 1}
	}
	return domain.ProviderHealth{
		Backend:             backend,
		Status:              r.status,
		TotalRequests:       r.totalRequests,
		FailedRequests:      r.failedRequests,
		ConsecutiveFailures: r.consecutiveFailures,
		LastSuccess:         r.lastSuccess,
		LastFailure:         r.lastFailure,
		SuccessRate:         successRate(r),
		AvgResponseTime:     r.avgResponseTime,
	}
}

// GetAvailable returns backends whose status is healthy or degraded.
func (m *HealthMonitor) GetAvailable(all []domain.BackendName) []domain.BackendName {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.BackendName
	for _, b := range all {
		r, ok := m.records[b]
		if !ok || r.status == domain.HealthHealthy || r.status == domain.HealthDegraded {
			out = append(out, b)
		}
	}
	return out
}

// GetHealthy returns only healthy backends.
func (m *HealthMonitor) GetHealthy(all []domain.BackendName) []domain.BackendName {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.BackendName
	for _, b := range all {
		if r, ok := m.records[b]; ok && r.status == domain.HealthHealthy {
			out = append(out, b)
		}
	}
	return out
}

// SetMaintenance forces or clears maintenance mode for a single backend.
func (m *HealthMonitor) SetMaintenance(backend domain.BackendName, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recordLocked(backend)
	if enabled {
		r.status = domain.HealthMaintenance
		return
	}
	if r.status == domain.HealthMaintenance {
		r.status = domain.HealthHealthy
		m.deriveStatusLocked(backend, r)
	}
}

// RunSweep runs the background sweep loop until ctx is cancelled, marking
// idle backends unavailable per spec.md section 4.E. It must not block
// request handling; each tick holds the monitor's single lock only for the
// duration of one sweep pass (see sweepOnce).
func (m *HealthMonitor) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

// sweepOnce holds the single per-monitor lock for the duration of one pass
// over all backends (spec.md section 5: "it may hold the per-backend lock
// only for the duration of the update"). Because RecordSuccess/RecordFailure
// take the same lock and always re-derive status from the freshest counters,
// a call that completes concurrently with a sweep tick is strictly
// serialized with it: whichever runs last wins, and a success that lands
// after this sweep already flips status back via its own deriveStatusLocked
// call (spec.md section 9's advisory-sweep open question).
func (m *HealthMonitor) sweepOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for backend, r := range m.records {
		if r.status == domain.HealthMaintenance || r.status == domain.HealthUnavailable {
			continue
		}
		lastActivity := r.lastSuccess
		if r.lastFailure.After(lastActivity) {
			lastActivity = r.lastFailure
		}
		if lastActivity.IsZero() || now.Sub(lastActivity) <= m.idleTimeout {
			continue
		}
		prev := r.status
		r.status = domain.HealthUnavailable
		m.logTransition(backend, prev, r.status)
	}
}
