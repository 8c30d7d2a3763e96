package plugin

import (
	"fmt"
	"sync"

	"cheshire/internal/core"
)

// StepConfig is the small configuration map passed to step constructors. It
// always contains at least the step name and template.
type StepConfig struct {
	Name     string
	Template string
	Params   map[string]interface{}
}

// StepEntry holds the constructors registered for one step implementation.
// Configured receives the step's configuration map; Default takes no
// arguments. Instantiation tries Configured first and falls back to Default.
type StepEntry[T any] struct {
	Configured func(cfg StepConfig) (T, error)
	Default    func() T
}

func (e StepEntry[T]) instantiate(cfg StepConfig) (T, error) {
	var zero T
	if e.Configured != nil {
		return e.Configured(cfg)
	}
	if e.Default != nil {
		return e.Default(), nil
	}
	return zero, fmt.Errorf("step implementation has no constructor")
}

// Catalog is the process-wide set of factory implementations, keyed by
// identifier. It is populated once at process start; lookups afterwards are
// pure map reads. A Catalog is constructed in main and threaded through the
// managers, never accessed through package globals.
type Catalog struct {
	mu       sync.RWMutex
	sources  map[string]SourceProviderFactory
	engines  map[string]QueryEngineFactory
	servers  map[string]ServerFactory
	preSteps map[string]StepEntry[core.PreProcessor]
	execs    map[string]StepEntry[core.Executor]
	posts    map[string]StepEntry[core.PostProcessor]
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		sources:  make(map[string]SourceProviderFactory),
		engines:  make(map[string]QueryEngineFactory),
		servers:  make(map[string]ServerFactory),
		preSteps: make(map[string]StepEntry[core.PreProcessor]),
		execs:    make(map[string]StepEntry[core.Executor]),
		posts:    make(map[string]StepEntry[core.PostProcessor]),
	}
}

// RegisterSourceFactory publishes a source provider factory under its ID.
func (c *Catalog) RegisterSourceFactory(f SourceProviderFactory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.sources[f.ID()]; exists {
		return fmt.Errorf("source factory %s already registered", f.ID())
	}
	c.sources[f.ID()] = f
	return nil
}

// SourceFactory resolves a source provider factory by ID.
func (c *Catalog) SourceFactory(id string) (SourceProviderFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.sources[id]
	return f, ok
}

// RegisterEngineFactory publishes a query engine factory under its ID.
func (c *Catalog) RegisterEngineFactory(f QueryEngineFactory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.engines[f.ID()]; exists {
		return fmt.Errorf("engine factory %s already registered", f.ID())
	}
	c.engines[f.ID()] = f
	return nil
}

// EngineFactory resolves a query engine factory by ID.
func (c *Catalog) EngineFactory(id string) (QueryEngineFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.engines[id]
	return f, ok
}

// RegisterServerFactory publishes a server factory under its ID.
func (c *Catalog) RegisterServerFactory(f ServerFactory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.servers[f.ID()]; exists {
		return fmt.Errorf("server factory %s already registered", f.ID())
	}
	c.servers[f.ID()] = f
	return nil
}

// ServerFactory resolves a server factory by ID.
func (c *Catalog) ServerFactory(id string) (ServerFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.servers[id]
	return f, ok
}

// RegisterPreStep publishes a pre-processor implementation under id.
func (c *Catalog) RegisterPreStep(id string, entry StepEntry[core.PreProcessor]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.preSteps[id]; exists {
		return fmt.Errorf("pre-step %s already registered", id)
	}
	c.preSteps[id] = entry
	return nil
}

// RegisterExecutor publishes an executor implementation under id.
func (c *Catalog) RegisterExecutor(id string, entry StepEntry[core.Executor]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.execs[id]; exists {
		return fmt.Errorf("executor %s already registered", id)
	}
	c.execs[id] = entry
	return nil
}

// RegisterPostStep publishes a post-processor implementation under id.
func (c *Catalog) RegisterPostStep(id string, entry StepEntry[core.PostProcessor]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.posts[id]; exists {
		return fmt.Errorf("post-step %s already registered", id)
	}
	c.posts[id] = entry
	return nil
}

// NewPreStep instantiates the pre-processor registered under id.
func (c *Catalog) NewPreStep(id string, cfg StepConfig) (core.PreProcessor, error) {
	c.mu.RLock()
	entry, ok := c.preSteps[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown pre-step implementation %s", id)
	}
	return entry.instantiate(cfg)
}

// NewExecutor instantiates the executor registered under id.
func (c *Catalog) NewExecutor(id string, cfg StepConfig) (core.Executor, error) {
	c.mu.RLock()
	entry, ok := c.execs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown executor implementation %s", id)
	}
	return entry.instantiate(cfg)
}

// NewPostStep instantiates the post-processor registered under id.
func (c *Catalog) NewPostStep(id string, cfg StepConfig) (core.PostProcessor, error) {
	c.mu.RLock()
	entry, ok := c.posts[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown post-step implementation %s", id)
	}
	return entry.instantiate(cfg)
}

// HasPreStep reports whether id names a registered pre-processor.
func (c *Catalog) HasPreStep(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.preSteps[id]
	return ok
}

// HasExecutor reports whether id names a registered executor.
func (c *Catalog) HasExecutor(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.execs[id]
	return ok
}

// HasPostStep reports whether id names a registered post-processor.
func (c *Catalog) HasPostStep(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.posts[id]
	return ok
}
