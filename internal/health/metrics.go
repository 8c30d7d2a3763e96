package health

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"cheshire/internal/core"
)

// Metrics holds the lock-free request counters. The conservation law
// total = successful + failed + inProgress holds at every instant: total and
// inProgress move together on entry, inProgress converts to exactly one of
// successful or failed on close.
type Metrics struct {
	total      atomic.Int64
	successful atomic.Int64
	failed     atomic.Int64
	inProgress atomic.Int64

	durationSum atomic.Int64 // nanoseconds
	durationMin atomic.Int64 // nanoseconds, 0 = unset
	durationMax atomic.Int64 // nanoseconds

	startTime atomic.Int64 // unix nanos
	stopTime  atomic.Int64 // unix nanos

	mu           sync.Mutex
	byCategory   map[core.StatusCategory]*atomic.Int64
	byComponent  map[string]*atomic.Int64
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		byCategory:  make(map[core.StatusCategory]*atomic.Int64),
		byComponent: make(map[string]*atomic.Int64),
	}
}

// MarkStart records the process start time.
func (m *Metrics) MarkStart() { m.startTime.Store(time.Now().UnixNano()) }

// MarkStop records the process stop time.
func (m *Metrics) MarkStop() { m.stopTime.Store(time.Now().UnixNano()) }

// StartTime returns the recorded start time, zero if never marked.
func (m *Metrics) StartTime() time.Time { return nanosToTime(m.startTime.Load()) }

// StopTime returns the recorded stop time, zero if never marked.
func (m *Metrics) StopTime() time.Time { return nanosToTime(m.stopTime.Load()) }

func nanosToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Total returns the total request count.
func (m *Metrics) Total() int64 { return m.total.Load() }

// Successful returns the successful request count.
func (m *Metrics) Successful() int64 { return m.successful.Load() }

// Failed returns the failed request count.
func (m *Metrics) Failed() int64 { return m.failed.Load() }

// InProgress returns the in-flight request count.
func (m *Metrics) InProgress() int64 { return m.inProgress.Load() }

// CountForCategory returns the failure count recorded under category.
func (m *Metrics) CountForCategory(category core.StatusCategory) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byCategory[category]; ok {
		return c.Load()
	}
	return 0
}

// IncComponent bumps a named per-component counter.
func (m *Metrics) IncComponent(component string) {
	m.componentCounter(component).Add(1)
}

// CountForComponent returns a per-component counter value.
func (m *Metrics) CountForComponent(component string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byComponent[component]; ok {
		return c.Load()
	}
	return 0
}

func (m *Metrics) categoryCounter(category core.StatusCategory) *atomic.Int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byCategory[category]
	if !ok {
		c = &atomic.Int64{}
		m.byCategory[category] = c
	}
	return c
}

func (m *Metrics) componentCounter(component string) *atomic.Int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byComponent[component]
	if !ok {
		c = &atomic.Int64{}
		m.byComponent[component] = c
	}
	return c
}

func (m *Metrics) recordDuration(d time.Duration) {
	nanos := d.Nanoseconds()
	m.durationSum.Add(nanos)

	for {
		min := m.durationMin.Load()
		if min != 0 && min <= nanos {
			break
		}
		if m.durationMin.CompareAndSwap(min, nanos) {
			break
		}
	}
	for {
		max := m.durationMax.Load()
		if max >= nanos {
			break
		}
		if m.durationMax.CompareAndSwap(max, nanos) {
			break
		}
	}
}

// RequestTimer scopes one request through the counters. Obtain one on
// request entry; report Success or Failure; Close releases the in-progress
// slot. A timer closed without a reported outcome counts as a success so the
// in-progress counter cannot leak.
type RequestTimer struct {
	metrics  *Metrics
	start    time.Time
	reported atomic.Bool
	closed   atomic.Bool
	failed   atomic.Bool
	category core.StatusCategory
}

// StartRequest enters a request into the counters and returns its timer.
func (m *Metrics) StartRequest() *RequestTimer {
	m.total.Add(1)
	m.inProgress.Add(1)
	return &RequestTimer{metrics: m, start: time.Now()}
}

// Success reports a successful outcome. The first report wins.
func (t *RequestTimer) Success() {
	t.reported.CompareAndSwap(false, true)
}

// Failure reports a failed outcome under the given category. The first
// report wins.
func (t *RequestTimer) Failure(category core.StatusCategory) {
	if t.reported.CompareAndSwap(false, true) {
		t.failed.Store(true)
		t.category = category
	}
}

// Close finalizes the request: decrements in-progress, records the duration,
// and settles the outcome counters. Closing twice is a no-op.
func (t *RequestTimer) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}

	m := t.metrics
	m.inProgress.Add(-1)
	m.recordDuration(time.Since(t.start))

	if t.failed.Load() {
		m.failed.Add(1)
		m.categoryCounter(t.category).Add(1)
		return
	}
	m.successful.Add(1)
}

// MemoryView is a point-in-time view of runtime memory usage.
type MemoryView struct {
	AllocBytes      uint64 `json:"allocBytes"`
	TotalAllocBytes uint64 `json:"totalAllocBytes"`
	SysBytes        uint64 `json:"sysBytes"`
	NumGC           uint32 `json:"numGC"`
	Goroutines      int    `json:"goroutines"`
}

// MetricsSnapshot is the JSON-serializable counter export.
type MetricsSnapshot struct {
	Total           int64            `json:"total"`
	Successful      int64            `json:"successful"`
	Failed          int64            `json:"failed"`
	InProgress      int64            `json:"inProgress"`
	AvgDurationMs   float64          `json:"avgDurationMs"`
	MinDurationMs   float64          `json:"minDurationMs"`
	MaxDurationMs   float64          `json:"maxDurationMs"`
	ErrorCategories map[string]int64 `json:"errorCategories,omitempty"`
	Components      map[string]int64 `json:"components,omitempty"`
	Memory          MemoryView       `json:"memory"`
}

// Snapshot returns a consistent view of the counters plus the runtime memory
// view.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Total:      m.total.Load(),
		Successful: m.successful.Load(),
		Failed:     m.failed.Load(),
		InProgress: m.inProgress.Load(),
	}

	completed := snap.Successful + snap.Failed
	if completed > 0 {
		snap.AvgDurationMs = float64(m.durationSum.Load()) / float64(completed) / 1e6
	}
	snap.MinDurationMs = float64(m.durationMin.Load()) / 1e6
	snap.MaxDurationMs = float64(m.durationMax.Load()) / 1e6

	m.mu.Lock()
	snap.ErrorCategories = make(map[string]int64, len(m.byCategory))
	for category, c := range m.byCategory {
		snap.ErrorCategories[string(category)] = c.Load()
	}
	snap.Components = make(map[string]int64, len(m.byComponent))
	for component, c := range m.byComponent {
		snap.Components[component] = c.Load()
	}
	m.mu.Unlock()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap.Memory = MemoryView{
		AllocBytes:      ms.Alloc,
		TotalAllocBytes: ms.TotalAlloc,
		SysBytes:        ms.Sys,
		NumGC:           ms.NumGC,
		Goroutines:      runtime.NumGoroutine(),
	}
	return snap
}
