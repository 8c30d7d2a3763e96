// Package registry provides the typed, name-keyed, insertion-ordered
// registry used by the source, engine, and capability managers. All
// operations are linearizable; Shutdown walks entries in reverse
// registration order.
package registry

import (
	"context"
	"fmt"
	"sync"

	"cheshire/pkg/logging"
)

// ShutdownFunc is invoked for each registered item during Shutdown.
type ShutdownFunc[T any] func(ctx context.Context, name string, item T) error

// Registry is a thread-safe, name-keyed container that remembers
// registration order.
type Registry[T any] struct {
	mu       sync.RWMutex
	kind     string
	order    []string
	items    map[string]T
	shutdown ShutdownFunc[T]
}

// New creates a registry. kind names the element type for log and error
// messages ("source", "engine", "capability"). shutdown may be nil for
// registries whose elements need no teardown.
func New[T any](kind string, shutdown ShutdownFunc[T]) *Registry[T] {
	return &Registry[T]{
		kind:     kind,
		items:    make(map[string]T),
		shutdown: shutdown,
	}
}

// Register binds name to item. It fails when the name is blank or already
// bound.
func (r *Registry[T]) Register(name string, item T) error {
	if name == "" {
		return fmt.Errorf("cannot register %s with empty name", r.kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return fmt.Errorf("%s %s already registered", r.kind, name)
	}

	r.order = append(r.order, name)
	r.items[name] = item
	return nil
}

// Get returns the item bound to name, or a not-registered error.
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[name]
	if !exists {
		var zero T
		return zero, &NotRegisteredError{Kind: r.kind, Name: name}
	}
	return item, nil
}

// Contains reports whether name is bound.
func (r *Registry[T]) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.items[name]
	return exists
}

// All returns a consistent snapshot of the registry keyed by name.
func (r *Registry[T]) All() map[string]T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]T, len(r.items))
	for name, item := range r.items {
		out[name] = item
	}
	return out
}

// Names returns the registered names in registration order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Size returns the number of registered items.
func (r *Registry[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Shutdown invokes the shutdown action for every item in reverse
// registration order, then clears the registry. Per-entry failures are
// logged and swallowed so one broken item cannot block the rest.
func (r *Registry[T]) Shutdown(ctx context.Context) {
	r.mu.Lock()
	order := r.order
	items := r.items
	r.order = nil
	r.items = make(map[string]T)
	r.mu.Unlock()

	if r.shutdown == nil {
		return
	}

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if err := r.shutdown(ctx, name, items[name]); err != nil {
			logging.Error("Registry", err, "failed to shut down %s %s", r.kind, name)
		} else {
			logging.Debug("Registry", "shut down %s %s", r.kind, name)
		}
	}
}

// NotRegisteredError reports a lookup for a name that was never registered.
type NotRegisteredError struct {
	Kind string
	Name string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("%s %s is not registered", e.Kind, e.Name)
}
