package engine

import (
	"context"
	"fmt"
	"sync"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/plugin"
)

// DirectConfig is the typed configuration for the direct engine, which
// forwards each logical query unchanged to the named source.
type DirectConfig struct {
	Name          string
	SourceNames   []string
	DefaultSource string
}

// EngineName implements plugin.EngineConfig.
func (c DirectConfig) EngineName() string { return c.Name }

// ConfigType implements plugin.EngineConfig.
func (c DirectConfig) ConfigType() string { return "direct" }

// DirectFactory builds direct engines.
type DirectFactory struct{}

// ID implements plugin.QueryEngineFactory.
func (DirectFactory) ID() string { return "direct" }

// ConfigType implements plugin.QueryEngineFactory.
func (DirectFactory) ConfigType() string { return "direct" }

// Adapt implements plugin.QueryEngineFactory. The first referenced source
// becomes the default target for queries that do not name one.
func (DirectFactory) Adapt(name string, raw config.EngineSpec, sourceSpecs map[string]config.SourceSpec) (plugin.EngineConfig, error) {
	cfg := DirectConfig{Name: name, SourceNames: append([]string(nil), raw.Sources...)}
	if len(cfg.SourceNames) > 0 {
		cfg.DefaultSource = cfg.SourceNames[0]
	}
	for _, srcName := range cfg.SourceNames {
		if _, ok := sourceSpecs[srcName]; !ok {
			return nil, fmt.Errorf("source %s missing from enriched config", srcName)
		}
	}
	return cfg, nil
}

// Validate implements plugin.QueryEngineFactory.
func (DirectFactory) Validate(cfg plugin.EngineConfig) error {
	dc, ok := cfg.(DirectConfig)
	if !ok {
		return fmt.Errorf("expected DirectConfig, got %T", cfg)
	}
	if len(dc.SourceNames) == 0 {
		return fmt.Errorf("direct engine requires at least one source")
	}
	return nil
}

// Create implements plugin.QueryEngineFactory.
func (DirectFactory) Create(cfg plugin.EngineConfig, resolver plugin.SourceResolver) (plugin.Engine, error) {
	dc := cfg.(DirectConfig)
	return &directEngine{cfg: dc, resolver: resolver}, nil
}

type directEngine struct {
	cfg      DirectConfig
	resolver plugin.SourceResolver

	mu   sync.RWMutex
	open bool
}

func (e *directEngine) Name() string { return e.cfg.Name }

func (e *directEngine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = true
	return nil
}

func (e *directEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
	return nil
}

func (e *directEngine) isOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.open
}

func (e *directEngine) target(q plugin.LogicalQuery) (string, error) {
	name := q.Source
	if name == "" {
		name = e.cfg.DefaultSource
	}
	for _, allowed := range e.cfg.SourceNames {
		if allowed == name {
			return name, nil
		}
	}
	return "", core.NewBadRequestError("engine %s does not reference source %s", e.cfg.Name, name)
}

func (e *directEngine) Execute(ctx context.Context, q plugin.LogicalQuery) (*plugin.EngineResult, error) {
	if !e.isOpen() {
		return nil, core.NewConnectionError("engine", e.cfg.Name, fmt.Errorf("engine is closed"))
	}

	target, err := e.target(q)
	if err != nil {
		return nil, err
	}

	src, err := e.resolver.Resolve(target)
	if err != nil {
		return nil, core.NewConnectionError("engine", e.cfg.Name, err)
	}

	res, err := src.Execute(ctx, plugin.Query{Statement: q.Statement, Params: q.Params})
	if err != nil {
		return nil, err
	}

	meta := map[string]interface{}{"engine": e.cfg.Name, "source": target}
	for k, v := range res.Meta {
		meta[k] = v
	}
	return &plugin.EngineResult{Rows: res.Rows, Meta: meta}, nil
}

func (e *directEngine) Validate(q plugin.LogicalQuery) (bool, error) {
	if q.Statement == "" {
		return false, nil
	}
	if _, err := e.target(q); err != nil {
		return false, nil
	}
	return true, nil
}

func (e *directEngine) Explain(q plugin.LogicalQuery) (string, error) {
	target, err := e.target(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("direct: forward %q to source %s", q.Statement, target), nil
}

func (e *directEngine) SupportsStreaming() bool { return false }
