package config

import (
	"sync"
)

// Manager owns the frozen Spec for the lifetime of the process. Get hands
// out deep clones so no consumer can mutate the loaded configuration.
type Manager struct {
	mu   sync.RWMutex
	spec *Spec
}

// NewManager freezes the given spec.
func NewManager(spec *Spec) *Manager {
	return &Manager{spec: spec}
}

// Get returns a deep copy of the frozen spec.
func (m *Manager) Get() *Spec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.spec.Clone()
}

// Capability returns a deep copy of one capability spec.
func (m *Manager) Capability(name string) (CapabilitySpec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	capSpec, ok := m.spec.Capabilities[name]
	if !ok {
		return CapabilitySpec{}, false
	}
	return capSpec.Clone(), true
}
