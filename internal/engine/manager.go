package engine

import (
	"context"
	"fmt"
	"sort"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/plugin"
	"cheshire/internal/registry"
	"cheshire/pkg/logging"
)

// Manager owns the lifecycle of every configured query engine. Engines hold
// name-based source lookups through the source manager but never own
// sources; the engine manager closes each engine exactly once during
// shutdown.
type Manager struct {
	catalog  *plugin.Catalog
	cfg      *config.Manager
	resolver plugin.SourceResolver
	registry *registry.Registry[plugin.Engine]
}

// NewManager creates an engine manager. resolver is the source manager.
func NewManager(catalog *plugin.Catalog, cfg *config.Manager, resolver plugin.SourceResolver) *Manager {
	return &Manager{
		catalog:  catalog,
		cfg:      cfg,
		resolver: resolver,
		registry: registry.New[plugin.Engine]("engine", func(ctx context.Context, name string, e plugin.Engine) error {
			return e.Close(ctx)
		}),
	}
}

// Initialize creates and opens every engine declared in configuration, in
// sorted name order for deterministic startup.
func (m *Manager) Initialize(ctx context.Context) error {
	spec := m.cfg.Get()

	names := make([]string, 0, len(spec.Engines))
	for name := range spec.Engines {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.initEngine(ctx, name, spec, spec.Engines[name]); err != nil {
			return err
		}
	}

	logging.Info("Engines", "initialized %d engine(s)", m.registry.Size())
	return nil
}

func (m *Manager) initEngine(ctx context.Context, name string, spec *config.Spec, engSpec config.EngineSpec) error {
	factory, ok := m.catalog.EngineFactory(engSpec.Factory)
	if !ok {
		return &config.ConfigurationError{
			Field:   fmt.Sprintf("engines.%s.factory", name),
			Message: fmt.Sprintf("no query engine factory registered for %s", engSpec.Factory),
		}
	}

	// Enrich the raw config with the resolved specs of the sources the
	// engine references, so the factory sees a self-contained record.
	sourceSpecs := make(map[string]config.SourceSpec, len(engSpec.Sources))
	for _, srcName := range engSpec.Sources {
		srcSpec, ok := spec.Sources[srcName]
		if !ok {
			return &config.ConfigurationError{
				Field:   fmt.Sprintf("engines.%s.sources", name),
				Message: fmt.Sprintf("referenced source %s does not exist", srcName),
			}
		}
		sourceSpecs[srcName] = srcSpec.Clone()
	}

	cfg, err := factory.Adapt(name, engSpec, sourceSpecs)
	if err != nil {
		return &config.ConfigurationError{
			Field:   fmt.Sprintf("engines.%s", name),
			Message: fmt.Sprintf("config adaptation failed: %v", err),
		}
	}
	if cfg.ConfigType() != factory.ConfigType() {
		return core.NewInternalError("engine factory %s adapter produced config type %s, declared %s",
			factory.ID(), cfg.ConfigType(), factory.ConfigType())
	}

	if err := factory.Validate(cfg); err != nil {
		return &config.ConfigurationError{
			Field:   fmt.Sprintf("engines.%s", name),
			Message: fmt.Sprintf("config validation failed: %v", err),
		}
	}

	eng, err := factory.Create(cfg, m.resolver)
	if err != nil {
		return fmt.Errorf("creating engine %s: %w", name, err)
	}

	if eng.Name() != name {
		return &config.ConfigurationError{
			Field:   fmt.Sprintf("engines.%s", name),
			Message: fmt.Sprintf("engine reports name %s, spec key is %s", eng.Name(), name),
		}
	}

	if err := eng.Open(ctx); err != nil {
		return core.NewConnectionError("engine", name, err)
	}

	if err := m.registry.Register(eng.Name(), eng); err != nil {
		_ = eng.Close(ctx)
		return err
	}

	logging.Debug("Engines", "opened engine %s (factory %s)", name, factory.ID())
	return nil
}

// Get returns the engine registered under name.
func (m *Manager) Get(name string) (plugin.Engine, error) {
	return m.registry.Get(name)
}

// Names returns registered engine names in registration order.
func (m *Manager) Names() []string {
	return m.registry.Names()
}

// Shutdown closes every engine in reverse registration order.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.registry.Shutdown(ctx)
	return nil
}
