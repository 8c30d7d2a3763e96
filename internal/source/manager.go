package source

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

// Manager owns the lifecycle of every configured data source. Sources are
// created by their factories, opened during initialization, and closed in
// reverse registration order during shutdown. The manager is the exclusive
// owner; engines and capabilities only borrow sources by name.
type Manager struct {
	catalog  *plugin.Catalog
	cfg      *config.Manager
	registry *registry.Registry[plugin.Source]
}

// NewManager creates a source manager over the given catalog and frozen
// configuration.
func NewManager(catalog *plugin.Catalog, cfg *config.Manager) *Manager {
	return &Manager{
		catalog: catalog,
		cfg:     cfg,
		registry: registry.New[plugin.Source]("source", func(ctx context.Context, name string, s plugin.Source) error {
			return s.Close(ctx)
		}),
	}
}

// Initialize creates and opens every source declared in configuration.
// Source names are processed in sorted order so startup is deterministic.
func (m *Manager) Initialize(ctx context.Context) error {
	spec := m.cfg.Get()

	names := make([]string, 0, len(spec.Sources))
	for name := range spec.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.initSource(ctx, name, spec.Sources[name]); err != nil {
			return err
		}
	}

	logging.Info("Sources", "initialized %d source(s)", m.registry.Size())
	return nil
}

func (m *Manager) initSource(ctx context.Context, name string, srcSpec config.SourceSpec) error {
	factory, ok := m.catalog.SourceFactory(srcSpec.Factory)
	if !ok {
		return &config.ConfigurationError{
			Field:   fmt.Sprintf("sources.%s.factory", name),
			Message: fmt.Sprintf("no source provider factory registered for %s", srcSpec.Factory),
		}
	}

	cfg, err := factory.Adapt(name, srcSpec)
	if err != nil {
		return &config.ConfigurationError{
			Field:   fmt.Sprintf("sources.%s", name),
			Message: fmt.Sprintf("config adaptation failed: %v", err),
		}
	}
	if cfg.ConfigType() != factory.ConfigType() {
		return core.NewInternalError("source factory %s adapter produced config type %s, declared %s",
			factory.ID(), cfg.ConfigType(), factory.ConfigType())
	}

	if err := factory.Validate(cfg); err != nil {
		return &config.ConfigurationError{
			Field:   fmt.Sprintf("sources.%s", name),
			Message: fmt.Sprintf("config validation failed: %v", err),
		}
	}

	src, err := factory.Create(cfg)
	if err != nil {
		return fmt.Errorf("creating source %s: %w", name, err)
	}

	if err := src.Open(ctx); err != nil {
		return core.NewConnectionError("source", name, err)
	}

	if err := m.registry.Register(name, src); err != nil {
		_ = src.Close(ctx)
		return err
	}

	logging.Debug("Sources", "opened source %s (factory %s)", name, factory.ID())
	return nil
}

// Resolve implements plugin.SourceResolver for the engine manager.
func (m *Manager) Resolve(name string) (plugin.Source, error) {
	return m.registry.Get(name)
}

// Get returns the source registered under name.
func (m *Manager) Get(name string) (plugin.Source, error) {
	return m.registry.Get(name)
}

// All returns a snapshot of all registered sources keyed by name.
func (m *Manager) All() map[string]plugin.Source {
	return m.registry.All()
}

// Names returns the registered source names in registration order.
func (m *Manager) Names() []string {
	return m.registry.Names()
}

// Shutdown closes every source in reverse registration order, swallowing
// and logging per-source failures.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.registry.Shutdown(ctx)
	return nil
}
