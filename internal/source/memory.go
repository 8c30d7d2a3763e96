package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/plugin"
)

// MemoryConfig is the typed configuration for the in-memory source provider.
// Fixtures maps table names to row lists; it is mainly used for tests and
// local development.
type MemoryConfig struct {
	Name     string
	Fixtures map[string][]map[string]interface{}
}

// SourceName implements plugin.SourceConfig.
func (c MemoryConfig) SourceName() string { return c.Name }

// ConfigType implements plugin.SourceConfig.
func (c MemoryConfig) ConfigType() string { return "memory" }

// MemoryFactory builds in-memory sources.
type MemoryFactory struct{}

// ID implements plugin.SourceProviderFactory.
func (MemoryFactory) ID() string { return "memory" }

// ConfigType implements plugin.SourceProviderFactory.
func (MemoryFactory) ConfigType() string { return "memory" }

// Adapt implements plugin.SourceProviderFactory. Fixtures are read from the
// spec's extras under the "fixtures" key.
func (MemoryFactory) Adapt(name string, raw config.SourceSpec) (plugin.SourceConfig, error) {
	cfg := MemoryConfig{Name: name, Fixtures: make(map[string][]map[string]interface{})}

	rawFixtures, ok := raw.Extras["fixtures"]
	if !ok {
		return cfg, nil
	}
	tables, ok := rawFixtures.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("fixtures must be a map of table name to row list")
	}
	for table, rawRows := range tables {
		rows, ok := rawRows.([]interface{})
		if !ok {
			return nil, fmt.Errorf("fixtures.%s must be a list of rows", table)
		}
		for i, rawRow := range rows {
			row, ok := rawRow.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("fixtures.%s[%d] must be a map", table, i)
			}
			cfg.Fixtures[table] = append(cfg.Fixtures[table], row)
		}
	}
	return cfg, nil
}

// Validate implements plugin.SourceProviderFactory.
func (MemoryFactory) Validate(cfg plugin.SourceConfig) error {
	if _, ok := cfg.(MemoryConfig); !ok {
		return fmt.Errorf("expected MemoryConfig, got %T", cfg)
	}
	return nil
}

// Create implements plugin.SourceProviderFactory.
func (MemoryFactory) Create(cfg plugin.SourceConfig) (plugin.Source, error) {
	mc := cfg.(MemoryConfig)
	return &memorySource{name: mc.Name, cfg: mc}, nil
}

// memorySource serves fixture rows. The statement names a fixture table;
// query params are matched for equality against row fields.
type memorySource struct {
	name string
	cfg  MemoryConfig

	mu   sync.RWMutex
	open bool
}

func (s *memorySource) Name() string { return s.name }

func (s *memorySource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *memorySource) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *memorySource) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

func (s *memorySource) Config() plugin.SourceConfig { return s.cfg }

func (s *memorySource) Execute(ctx context.Context, q plugin.Query) (*plugin.QueryResult, error) {
	if !s.IsOpen() {
		return nil, core.NewConnectionError("source", s.name, fmt.Errorf("source is closed"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := strings.TrimSpace(q.Statement)
	rows, ok := s.cfg.Fixtures[table]
	if !ok {
		return nil, core.NewBadRequestError("unknown table %s", table)
	}

	var out []map[string]interface{}
	for _, row := range rows {
		if matchesParams(row, q.Params) {
			copied := make(map[string]interface{}, len(row))
			for k, v := range row {
				copied[k] = v
			}
			out = append(out, copied)
		}
	}

	return &plugin.QueryResult{
		Columns: columnsOf(rows),
		Rows:    out,
		Meta:    map[string]interface{}{"source": s.name, "table": table},
	}, nil
}

func matchesParams(row, params map[string]interface{}) bool {
	for k, want := range params {
		if got, ok := row[k]; !ok || got != want {
			return false
		}
	}
	return true
}

func columnsOf(rows []map[string]interface{}) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
