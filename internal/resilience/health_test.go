package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmjudge/evalengine/internal/domain"
)

func newTestHealthMonitor() *HealthMonitor {
	return NewHealthMonitor([]domain.BackendName{domain.BackendMock}, time.Hour, nil, nil)
}

func TestHealthMonitorStartsHealthy(t *testing.T) {
	m := newTestHealthMonitor()
	h := m.Get(domain.BackendMock)
	assert.Equal(t, domain.HealthHealthy, h.Status)
	assert.Equal(t, float64(1), h.SuccessRate)
}

func TestHealthMonitorDegradesAtThreeConsecutiveFailures(t *testing.T) {
	m := newTestHealthMonitor()
	// Three earlier successes keep the success rate at or above 0.5 through
	// the first two failures (3 of 5), so only the consecutive-failure rule
	// can degrade the backend.
	for i := 0; i < 3; i++ {
		m.RecordSuccess(domain.BackendMock, time.Millisecond)
	}
	m.RecordFailure(domain.BackendMock)
	m.RecordFailure(domain.BackendMock)
	require.Equal(t, domain.HealthHealthy, m.Get(domain.BackendMock).Status)
	m.RecordFailure(domain.BackendMock)
	assert.Equal(t, domain.HealthDegraded, m.Get(domain.BackendMock).Status)
}

func TestHealthMonitorUnavailableAtFiveConsecutiveFailures(t *testing.T) {
	m := newTestHealthMonitor()
	for i := 0; i < 5; i++ {
		m.RecordFailure(domain.BackendMock)
	}
	assert.Equal(t, domain.HealthUnavailable, m.Get(domain.BackendMock).Status)
}

func TestHealthMonitorRecoversToHealthyOnSuccess(t *testing.T) {
	m := newTestHealthMonitor()
	m.RecordFailure(domain.BackendMock)
	m.RecordFailure(domain.BackendMock)
	m.RecordFailure(domain.BackendMock)
	require.Equal(t, domain.HealthDegraded, m.Get(domain.BackendMock).Status)

	// A success resets consecutiveFailures to 0, but success rate is still
	// low (1 success out of 4 total), so it should not jump straight to
	// healthy; it is reported as degraded (rate 0.25 < 0.5) rather than
	// regressing to unavailable.
	m.RecordSuccess(domain.BackendMock, 10*time.Millisecond)
	h := m.Get(domain.BackendMock)
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.NotEqual(t, domain.HealthUnavailable, h.Status)

	// 27 successes against 3 failures bring the success rate to 0.9, which
	// restores healthy.
	for i := 0; i < 26; i++ {
		m.RecordSuccess(domain.BackendMock, 10*time.Millisecond)
	}
	assert.Equal(t, domain.HealthHealthy, m.Get(domain.BackendMock).Status)
}

func TestHealthMonitorEMALatency(t *testing.T) {
	m := newTestHealthMonitor()
	m.RecordSuccess(domain.BackendMock, 100*time.Millisecond)
	h := m.Get(domain.BackendMock)
	assert.Equal(t, 100*time.Millisecond, h.AvgResponseTime)

	m.RecordSuccess(domain.BackendMock, 200*time.Millisecond)
	h = m.Get(domain.BackendMock)
	// 0.8*100ms + 0.2*200ms = 120ms
	assert.Equal(t, 120*time.Millisecond, h.AvgResponseTime)
}

func TestHealthMonitorMaintenanceModeIsSticky(t *testing.T) {
	m := newTestHealthMonitor()
	m.SetMaintenance(domain.BackendMock, true)
	m.RecordSuccess(domain.BackendMock, time.Millisecond)
	assert.Equal(t, domain.HealthMaintenance, m.Get(domain.BackendMock).Status)

	m.SetMaintenance(domain.BackendMock, false)
	assert.Equal(t, domain.HealthHealthy, m.Get(domain.BackendMock).Status)
}

func TestHealthMonitorGetAvailableExcludesUnavailable(t *testing.T) {
	m := NewHealthMonitor([]domain.BackendName{domain.BackendMock, domain.BackendOpenAI}, time.Hour, nil, nil)
	for i := 0; i < 5; i++ {
		m.RecordFailure(domain.BackendOpenAI)
	}
	available := m.GetAvailable([]domain.BackendName{domain.BackendMock, domain.BackendOpenAI})
	assert.Contains(t, available, domain.BackendMock)
	assert.NotContains(t, available, domain.BackendOpenAI)
}

func TestHealthMonitorSweepMarksIdleUnavailable(t *testing.T) {
	m := NewHealthMonitor([]domain.BackendName{domain.BackendMock}, time.Millisecond, nil, nil)
	m.RecordSuccess(domain.BackendMock, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.sweepOnce()
	assert.Equal(t, domain.HealthUnavailable, m.Get(domain.BackendMock).Status)
}

func TestHealthMonitorRunSweepStopsOnContextCancel(t *testing.T) {
	m := newTestHealthMonitor()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunSweep(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunSweep did not exit after context cancellation")
	}
}
