package health

import (
	"sync"
	"testing"

	"cheshire/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConservationLaw(t *testing.T) {
	m := NewMetrics()

	check := func() {
		assert.Equal(t, m.Total(), m.Successful()+m.Failed()+m.InProgress())
	}

	check()
	t1 := m.StartRequest()
	check()
	t2 := m.StartRequest()
	check()

	t1.Success()
	t1.Close()
	check()

	t2.Failure(core.StatusBadRequest)
	t2.Close()
	check()

	assert.Equal(t, int64(2), m.Total())
	assert.Equal(t, int64(1), m.Successful())
	assert.Equal(t, int64(1), m.Failed())
	assert.Equal(t, int64(0), m.InProgress())
	assert.Equal(t, int64(1), m.CountForCategory(core.StatusBadRequest))
}

func TestConservationLawConcurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			timer := m.StartRequest()
			if i%3 == 0 {
				timer.Failure(core.StatusExecutionFailed)
			} else {
				timer.Success()
			}
			timer.Close()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(100), m.Total())
	assert.Equal(t, int64(0), m.InProgress())
	assert.Equal(t, m.Total(), m.Successful()+m.Failed())
	assert.Equal(t, int64(34), m.Failed())
}

func TestTimerDefaultsToSuccess(t *testing.T) {
	m := NewMetrics()

	timer := m.StartRequest()
	timer.Close()

	assert.Equal(t, int64(1), m.Successful())
	assert.Equal(t, int64(0), m.Failed())
	assert.Equal(t, int64(0), m.InProgress())
}

func TestTimerFirstReportWinsAndCloseIsIdempotent(t *testing.T) {
	m := NewMetrics()

	timer := m.StartRequest()
	timer.Failure(core.StatusForbidden)
	timer.Success()
	timer.Close()
	timer.Close()

	assert.Equal(t, int64(1), m.Failed())
	assert.Equal(t, int64(0), m.Successful())
	assert.Equal(t, int64(0), m.InProgress())
	assert.Equal(t, int64(1), m.CountForCategory(core.StatusForbidden))
}

func TestDurationStats(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 3; i++ {
		timer := m.StartRequest()
		timer.Success()
		timer.Close()
	}

	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.MaxDurationMs, snap.MinDurationMs)
	assert.GreaterOrEqual(t, snap.AvgDurationMs, 0.0)
}

func TestComponentCounters(t *testing.T) {
	m := NewMetrics()

	m.IncComponent("source.db-a")
	m.IncComponent("source.db-a")
	m.IncComponent("engine.eng-1")

	assert.Equal(t, int64(2), m.CountForComponent("source.db-a"))
	assert.Equal(t, int64(1), m.CountForComponent("engine.eng-1"))
	assert.Equal(t, int64(0), m.CountForComponent("ghost"))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Components["source.db-a"])
}

func TestStartStopMarks(t *testing.T) {
	m := NewMetrics()
	assert.True(t, m.StartTime().IsZero())

	m.MarkStart()
	m.MarkStop()

	require.False(t, m.StartTime().IsZero())
	require.False(t, m.StopTime().IsZero())
	assert.False(t, m.StopTime().Before(m.StartTime()))
}

func TestSnapshotMemoryView(t *testing.T) {
	snap := NewMetrics().Snapshot()
	assert.Greater(t, snap.Memory.AllocBytes, uint64(0))
	assert.Greater(t, snap.Memory.Goroutines, 0)
}

func TestPrometheusCollector(t *testing.T) {
	metrics := NewMetrics()
	monitor := runningMonitor(t)

	timer := metrics.StartRequest()
	timer.Failure(core.StatusBadRequest)
	timer.Close()

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(NewCollector(metrics, monitor)))

	families, err := registry.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64)
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				byName[fam.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				byName[fam.GetName()] += metric.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 1.0, byName["cheshire_requests_total"])
	assert.Equal(t, 1.0, byName["cheshire_requests_failed_total"])
	assert.Equal(t, 1.0, byName["cheshire_request_failures_total"])
	assert.Equal(t, 1.0, byName["cheshire_healthy"])
	assert.Equal(t, 0.0, byName["cheshire_requests_in_progress"])
}
