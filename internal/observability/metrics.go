package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a single explicitly constructed Prometheus registry wrapper,
// owned by the Orchestrator and passed down to every resilience component --
// never a package-level global (spec.md section 9's "no hidden globals"
// design note applies to observability counters too).
type Metrics struct {
	Registry *prometheus.Registry

	BackendCalls      *prometheus.CounterVec
	BackendLatency    *prometheus.HistogramVec
	ErrorsByCategory  *prometheus.CounterVec
	BreakerState      *prometheus.GaugeVec
	BreakerTrips      *prometheus.CounterVec
	HealthStatus      *prometheus.GaugeVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	CacheEvictions    prometheus.Counter
	RetryAttempts     *prometheus.CounterVec
	FallbackMode      *prometheus.GaugeVec

	once sync.Once
}

// NewMetrics builds and registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		BackendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalengine_backend_calls_total",
			Help: "Total backend calls by backend and outcome.",
		}, []string{"backend", "operation", "outcome"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evalengine_backend_latency_seconds",
			Help:    "Backend call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		ErrorsByCategory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalengine_errors_total",
			Help: "Classified errors by category.",
		}, []string{"backend", "category"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evalengine_breaker_state",
			Help: "Circuit breaker state (0=closed,1=halfOpen,2=open) per backend.",
		}, []string{"backend"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalengine_breaker_trips_total",
			Help: "Number of closed->open transitions per backend.",
		}, []string{"backend"}),
		HealthStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evalengine_health_status",
			Help: "Provider health status (0=unavailable,1=degraded,2=healthy) per backend.",
		}, []string{"backend"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evalengine_cache_hits_total",
			Help: "Response cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evalengine_cache_misses_total",
			Help: "Response cache misses.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evalengine_cache_evictions_total",
			Help: "Response cache LRU evictions.",
		}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalengine_retry_attempts_total",
			Help: "Retry attempts by backend and category.",
		}, []string{"backend", "category"}),
		FallbackMode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evalengine_fallback_mode",
			Help: "Current orchestrator mode (0=full,1=degraded,2=fallback,3=maintenance).",
		}, []string{}),
	}

	reg.MustRegister(
		m.BackendCalls, m.BackendLatency, m.ErrorsByCategory,
		m.BreakerState, m.BreakerTrips, m.HealthStatus,
		m.CacheHits, m.CacheMisses, m.CacheEvictions,
		m.RetryAttempts, m.FallbackMode,
	)

	return m
}

// HealthStatusValue maps a backend's health (healthy, degraded, or neither)
// to the gauge encoding used by HealthStatus above.
func HealthStatusValue(healthy, degraded bool) float64 {
	switch {
	case healthy:
		return 2
	case degraded:
		return 1
	default:
		return 0
	}
}
