package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/plugin"
)

// SQLConfig is the typed configuration for the relational engine.
type SQLConfig struct {
	Name        string
	SourceNames []string
	ReadOnly    bool
}

// EngineName implements plugin.EngineConfig.
func (c SQLConfig) EngineName() string { return c.Name }

// ConfigType implements plugin.EngineConfig.
func (c SQLConfig) ConfigType() string { return "sql" }

// SQLFactory builds relational engines that route SQL statements to their
// referenced sources with a read-only guard.
type SQLFactory struct{}

// ID implements plugin.QueryEngineFactory.
func (SQLFactory) ID() string { return "sql" }

// ConfigType implements plugin.QueryEngineFactory.
func (SQLFactory) ConfigType() string { return "sql" }

// Adapt implements plugin.QueryEngineFactory.
func (SQLFactory) Adapt(name string, raw config.EngineSpec, sourceSpecs map[string]config.SourceSpec) (plugin.EngineConfig, error) {
	cfg := SQLConfig{Name: name, SourceNames: append([]string(nil), raw.Sources...), ReadOnly: true}
	if v, ok := raw.Extras["readOnly"].(bool); ok {
		cfg.ReadOnly = v
	}
	for _, srcName := range cfg.SourceNames {
		if _, ok := sourceSpecs[srcName]; !ok {
			return nil, fmt.Errorf("source %s missing from enriched config", srcName)
		}
	}
	return cfg, nil
}

// Validate implements plugin.QueryEngineFactory.
func (SQLFactory) Validate(cfg plugin.EngineConfig) error {
	sc, ok := cfg.(SQLConfig)
	if !ok {
		return fmt.Errorf("expected SQLConfig, got %T", cfg)
	}
	if len(sc.SourceNames) == 0 {
		return fmt.Errorf("sql engine requires at least one source")
	}
	return nil
}

// Create implements plugin.QueryEngineFactory.
func (SQLFactory) Create(cfg plugin.EngineConfig, resolver plugin.SourceResolver) (plugin.Engine, error) {
	sc := cfg.(SQLConfig)
	return &sqlEngine{cfg: sc, resolver: resolver}, nil
}

type sqlEngine struct {
	cfg      SQLConfig
	resolver plugin.SourceResolver

	mu   sync.RWMutex
	open bool
}

func (e *sqlEngine) Name() string { return e.cfg.Name }

func (e *sqlEngine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = true
	return nil
}

func (e *sqlEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
	return nil
}

func (e *sqlEngine) isOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.open
}

func (e *sqlEngine) target(q plugin.LogicalQuery) (string, error) {
	name := q.Source
	if name == "" && len(e.cfg.SourceNames) > 0 {
		name = e.cfg.SourceNames[0]
	}
	for _, allowed := range e.cfg.SourceNames {
		if allowed == name {
			return name, nil
		}
	}
	return "", core.NewBadRequestError("engine %s does not reference source %s", e.cfg.Name, name)
}

func statementVerb(statement string) string {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func (e *sqlEngine) checkStatement(q plugin.LogicalQuery) error {
	verb := statementVerb(q.Statement)
	if verb == "" {
		return core.NewBadRequestError("empty statement")
	}
	if e.cfg.ReadOnly && verb != "SELECT" && verb != "WITH" {
		return core.NewForbiddenError(fmt.Sprintf("engine %s is read-only, %s statements are not allowed", e.cfg.Name, verb))
	}
	return nil
}

func (e *sqlEngine) Execute(ctx context.Context, q plugin.LogicalQuery) (*plugin.EngineResult, error) {
	if !e.isOpen() {
		return nil, core.NewConnectionError("engine", e.cfg.Name, fmt.Errorf("engine is closed"))
	}
	if err := e.checkStatement(q); err != nil {
		return nil, err
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

	meta := map[string]interface{}{"engine": e.cfg.Name, "source": target, "columns": res.Columns}
	for k, v := range res.Meta {
		meta[k] = v
	}
	return &plugin.EngineResult{Rows: res.Rows, Meta: meta}, nil
}

func (e *sqlEngine) Validate(q plugin.LogicalQuery) (bool, error) {
	if err := e.checkStatement(q); err != nil {
		return false, nil
	}
	if _, err := e.target(q); err != nil {
		return false, nil
	}
	return true, nil
}

func (e *sqlEngine) Explain(q plugin.LogicalQuery) (string, error) {
	target, err := e.target(q)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sql: route %s statement to source %s (read-only=%t)",
		statementVerb(q.Statement), target, e.cfg.ReadOnly), nil
}

func (e *sqlEngine) SupportsStreaming() bool { return true }
