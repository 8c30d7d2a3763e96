// Package app assembles the framework into one Core value: configuration,
// plugin catalog, managers, lifecycle coordinator, session, and runtime. No
// package-level singletons; everything hangs off the Core built here.
package app

import (
	"context"
	"fmt"
	"io"

	"cheshire/internal/capability"
	"cheshire/internal/config"
	"cheshire/internal/engine"
	"cheshire/internal/health"
	"cheshire/internal/lifecycle"
	"cheshire/internal/plugin"
	"cheshire/internal/runtime"
	"cheshire/internal/server"
	"cheshire/internal/session"
	"cheshire/internal/source"
	"cheshire/pkg/logging"
	"cheshire/pkg/trace"
)

// Options configures a Core build.
type Options struct {
	// ConfigPath is the configuration root directory.
	ConfigPath string
	// ConfigSource overrides ConfigPath with an explicit source, e.g. an
	// embedded fs.FS in tests.
	ConfigSource config.Source
	// Capability restricts serving to a single capability.
	Capability string
	// Debug enables the structured object tracer.
	Debug bool
	// TraceWriter receives tracer output; nil means stderr.
	TraceWriter io.Writer
}

// Core holds every long-lived collaborator of a running server process.
type Core struct {
	Config       *config.Manager
	Catalog      *plugin.Catalog
	Sources      *source.Manager
	Engines      *engine.Manager
	Capabilities *capability.Manager
	Coordinator  *lifecycle.Coordinator
	Session      *session.Session
	Runtime      *runtime.Runtime
	Monitor      *health.Monitor
	Metrics      *health.Metrics
	Tracer       *trace.Tracer

	capability string
	configPath string
}

// component adapts a manager to the lifecycle coordinator.
type component struct {
	name string
	init func(ctx context.Context) error
	stop func(ctx context.Context) error
}

func (c component) Name() string                         { return c.name }
func (c component) Initialize(ctx context.Context) error { return c.init(ctx) }
func (c component) Shutdown(ctx context.Context) error   { return c.stop(ctx) }

// NewCore loads and validates the configuration, registers the builtin
// plugins, and wires the managers into a lifecycle coordinator. Nothing is
// opened yet; Run does that.
func NewCore(opts Options) (*Core, error) {
	src := opts.ConfigSource
	if src == nil {
		if opts.ConfigPath == "" {
			return nil, &config.ConfigurationError{Field: "config-path", Message: "no configuration source given"}
		}
		src = config.NewDirSource(opts.ConfigPath)
	}

	spec, err := config.Load(src)
	if err != nil {
		return nil, fmt.Errorf("loading configuration from %s: %w", src.Describe(), err)
	}

	if opts.Capability != "" {
		if _, ok := spec.Capabilities[opts.Capability]; !ok {
			return nil, &config.ConfigurationError{
				Capability: opts.Capability,
				Message:    "capability not defined in configuration",
			}
		}
	}

	monitor := health.NewMonitor()
	metrics := health.NewMetrics()
	tracer := trace.New(opts.Debug, opts.TraceWriter)

	catalog := plugin.NewCatalog()
	if err := registerBuiltins(catalog, monitor, metrics); err != nil {
		return nil, fmt.Errorf("registering builtin plugins: %w", err)
	}

	cfg := config.NewManager(spec)
	sources := source.NewManager(catalog, cfg)
	engines := engine.NewManager(catalog, cfg, sources)
	capabilities := capability.NewManager(catalog, cfg)

	coordinator := lifecycle.NewCoordinator()
	registrations := []struct {
		phase lifecycle.Phase
		comp  component
	}{
		{lifecycle.PhaseSourceProviders, component{"sources", sources.Initialize, sources.Shutdown}},
		{lifecycle.PhaseQueryEngines, component{"engines", engines.Initialize, engines.Shutdown}},
		{lifecycle.PhaseCapabilities, component{"capabilities", capabilities.Initialize, capabilities.Shutdown}},
	}
	for _, r := range registrations {
		if err := coordinator.Register(r.phase, r.comp); err != nil {
			return nil, err
		}
	}

	sess := session.New(capabilities, engines, sources)
	sess.SetTracer(tracer)

	return &Core{
		Config:       cfg,
		Catalog:      catalog,
		Sources:      sources,
		Engines:      engines,
		Capabilities: capabilities,
		Coordinator:  coordinator,
		Session:      sess,
		Runtime:      runtime.Expose(sess, capabilities, catalog, monitor, metrics).WithTracer(tracer),
		Monitor:      monitor,
		Metrics:      metrics,
		Tracer:       tracer,
		capability:   opts.Capability,
		configPath:   opts.ConfigPath,
	}, nil
}

// registerBuiltins publishes the in-tree source providers, query engines,
// pipeline steps, and transport servers.
func registerBuiltins(catalog *plugin.Catalog, monitor *health.Monitor, metrics *health.Metrics) error {
	sourceFactories := []plugin.SourceProviderFactory{
		source.MemoryFactory{},
		source.PostgresFactory{},
		source.RedisFactory{},
	}
	for _, f := range sourceFactories {
		if err := catalog.RegisterSourceFactory(f); err != nil {
			return err
		}
	}

	engineFactories := []plugin.QueryEngineFactory{
		engine.DirectFactory{},
		engine.SQLFactory{},
	}
	for _, f := range engineFactories {
		if err := catalog.RegisterEngineFactory(f); err != nil {
			return err
		}
	}

	if err := capability.RegisterBuiltinSteps(catalog); err != nil {
		return err
	}
	return server.RegisterBuiltinServers(catalog, monitor, metrics)
}

// Start initializes the managers through the coordinator and brings the
// runtime up. It returns once the process is serving.
func (c *Core) Start(ctx context.Context) error {
	if err := c.Coordinator.Initialize(ctx); err != nil {
		return err
	}

	if c.capability != "" {
		return c.Runtime.StartCapability(ctx, c.capability)
	}
	return c.Runtime.Start(ctx)
}

// Stop tears everything down: runtime first (servers, session), then the
// managers in reverse initialization order.
func (c *Core) Stop(ctx context.Context) error {
	if err := c.Runtime.Stop(ctx); err != nil {
		logging.Error("App", err, "stopping runtime")
	}
	return c.Coordinator.Shutdown(ctx)
}

// Run starts the core and blocks until the context is cancelled or the
// runtime terminates on its own, then shuts down.
func (c *Core) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	c.watchConfig(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Runtime.AwaitTermination(context.Background())
	}()

	select {
	case <-ctx.Done():
		logging.Info("App", "shutdown requested")
	case <-done:
	}
	return c.Stop(context.Background())
}

// watchConfig surfaces configuration change events; the framework does not
// hot-reload, so the events only tell operators a restart is needed.
func (c *Core) watchConfig(ctx context.Context) {
	if c.configPath == "" {
		return
	}

	watcher, err := config.NewWatcher(ctx, c.configPath)
	if err != nil {
		logging.Warn("App", "config watcher unavailable: %v", err)
		return
	}
	go func() {
		for ev := range watcher.Events() {
			logging.Info("App", "configuration document %s changed (%s); restart to apply", ev.Path, ev.Op)
		}
	}()
}
