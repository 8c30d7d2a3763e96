// Package health tracks the process health state machine, a bounded event
// journal, and the request metrics counters.
package health

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"cheshire/internal/core"
	"cheshire/pkg/logging"
)

// Status is the health state machine's state.
type Status string

const (
	StatusStopped  Status = "STOPPED"
	StatusStarting Status = "STARTING"
	StatusRunning  Status = "RUNNING"
	StatusDegraded Status = "DEGRADED"
	StatusStopping Status = "STOPPING"
	StatusFailed   Status = "FAILED"
)

// Severity classifies recorded events.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one recorded health event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Cause     string    `json:"cause,omitempty"`
}

// maxEvents bounds the event journal; eviction is oldest-first.
const maxEvents = 1000

var validTransitions = map[Status][]Status{
	StatusStopped:  {StatusStarting},
	StatusStarting: {StatusRunning, StatusStopping},
	StatusRunning:  {StatusDegraded, StatusStopping},
	StatusDegraded: {StatusRunning, StatusStopping},
	StatusStopping: {StatusStopped},
	StatusFailed:   {},
}

// Monitor is the process health tracker. Transitions run under the write
// lock; snapshots under the read lock.
type Monitor struct {
	mu             sync.RWMutex
	status         Status
	message        string
	lastTransition time.Time
	startedAt      time.Time
	events         []Event
}

// NewMonitor creates a monitor in the STOPPED state.
func NewMonitor() *Monitor {
	now := time.Now()
	return &Monitor{
		status:         StatusStopped,
		lastTransition: now,
		startedAt:      now,
	}
}

// Status returns the current state.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Transition moves the state machine to the target state. FAILED is
// reachable from any state. A late transition to RUNNING arriving after the
// monitor already began stopping is silently ignored, tolerating stragglers
// that report readiness during teardown. Every other invalid transition is a
// lifecycle error and leaves the state unchanged.
func (m *Monitor) Transition(to Status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if to == StatusFailed {
		m.apply(StatusFailed, message)
		return nil
	}

	if to == StatusRunning && (m.status == StatusStopping || m.status == StatusStopped) {
		logging.Debug("Health", "ignoring late transition to RUNNING in state %s", m.status)
		return nil
	}

	for _, allowed := range validTransitions[m.status] {
		if allowed == to {
			m.apply(to, message)
			return nil
		}
	}
	return core.NewLifecycleError("health", "transition",
		fmt.Sprintf("invalid transition %s -> %s", m.status, to))
}

func (m *Monitor) apply(to Status, message string) {
	logging.Debug("Health", "transition %s -> %s", m.status, to)
	m.status = to
	m.message = message
	m.lastTransition = time.Now()
}

// Record stores an event in the journal and applies severity side-effects:
// CRITICAL fails the process, ERROR while RUNNING degrades it. A cause that
// is a runtime error escalates the severity to CRITICAL regardless of what
// the caller asked for.
func (m *Monitor) Record(severity Severity, message string, cause error) {
	if _, catastrophic := cause.(runtime.Error); catastrophic {
		severity = SeverityCritical
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	event := Event{Timestamp: time.Now(), Message: message, Severity: severity}
	if cause != nil {
		event.Cause = cause.Error()
	}
	m.events = append(m.events, event)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}

	switch severity {
	case SeverityCritical:
		if m.status != StatusFailed {
			m.apply(StatusFailed, message)
		}
	case SeverityError:
		if m.status == StatusRunning {
			m.apply(StatusDegraded, message)
		}
	}
}

// Snapshot is a consistent, JSON-serializable view of the monitor.
type Snapshot struct {
	Status         Status    `json:"status"`
	Message        string    `json:"message,omitempty"`
	Healthy        bool      `json:"healthy"`
	LastTransition time.Time `json:"lastTransition"`
	Timestamp      time.Time `json:"timestamp"`
	UptimeMs       int64     `json:"uptimeMs"`
	Recent         []Event   `json:"recent,omitempty"`
}

// Snapshot returns a consistent view of the current health.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recent := make([]Event, len(m.events))
	copy(recent, m.events)

	return Snapshot{
		Status:         m.status,
		Message:        m.message,
		Healthy:        m.status == StatusRunning,
		LastTransition: m.lastTransition,
		Timestamp:      time.Now(),
		UptimeMs:       time.Since(m.startedAt).Milliseconds(),
		Recent:         recent,
	}
}
