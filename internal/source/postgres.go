package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/plugin"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresConfig is the typed configuration for the Postgres source
// provider. Pool sizing maps directly onto database/sql pool knobs; the
// pool itself lives entirely inside the source.
type PostgresConfig struct {
	Name            string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SourceName implements plugin.SourceConfig.
func (c PostgresConfig) SourceName() string { return c.Name }

// ConfigType implements plugin.SourceConfig.
func (c PostgresConfig) ConfigType() string { return "postgres" }

// PostgresFactory builds Postgres-backed relational sources.
type PostgresFactory struct{}

// ID implements plugin.SourceProviderFactory.
func (PostgresFactory) ID() string { return "postgres" }

// ConfigType implements plugin.SourceProviderFactory.
func (PostgresFactory) ConfigType() string { return "postgres" }

// Adapt implements plugin.SourceProviderFactory.
func (PostgresFactory) Adapt(name string, raw config.SourceSpec) (plugin.SourceConfig, error) {
	cfg := PostgresConfig{
		Name:            name,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}

	if dsn, ok := raw.Connection["dsn"].(string); ok {
		cfg.DSN = dsn
	}
	if v, ok := asInt(raw.Pool["maxOpen"]); ok {
		cfg.MaxOpenConns = v
	}
	if v, ok := asInt(raw.Pool["maxIdle"]); ok {
		cfg.MaxIdleConns = v
	}
	if v, ok := raw.Pool["maxLifetime"].(string); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("pool.maxLifetime: %w", err)
		}
		cfg.ConnMaxLifetime = d
	}
	return cfg, nil
}

// Validate implements plugin.SourceProviderFactory.
func (PostgresFactory) Validate(cfg plugin.SourceConfig) error {
	pc, ok := cfg.(PostgresConfig)
	if !ok {
		return fmt.Errorf("expected PostgresConfig, got %T", cfg)
	}
	if pc.DSN == "" {
		return fmt.Errorf("connection.dsn is required")
	}
	if pc.MaxOpenConns <= 0 {
		return fmt.Errorf("pool.maxOpen must be positive")
	}
	return nil
}

// Create implements plugin.SourceProviderFactory.
func (PostgresFactory) Create(cfg plugin.SourceConfig) (plugin.Source, error) {
	pc := cfg.(PostgresConfig)
	return &postgresSource{name: pc.Name, cfg: pc}, nil
}

// postgresSource owns one sqlx connection pool. Open and Close are
// idempotent; Execute is safe for concurrent use, the pool handles
// connection checkout.
type postgresSource struct {
	name string
	cfg  PostgresConfig

	mu sync.RWMutex
	db *sqlx.DB
}

func (s *postgresSource) Name() string { return s.name }

func (s *postgresSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sqlx.Open("postgres", s.cfg.DSN)
	if err != nil {
		return core.NewConnectionError("source", s.name, err)
	}
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return core.NewConnectionError("source", s.name, err)
	}

	s.db = db
	return nil
}

func (s *postgresSource) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *postgresSource) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *postgresSource) Config() plugin.SourceConfig { return s.cfg }

func (s *postgresSource) Execute(ctx context.Context, q plugin.Query) (*plugin.QueryResult, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()

	if db == nil {
		return nil, core.NewConnectionError("source", s.name, fmt.Errorf("source is closed"))
	}

	rows, err := db.NamedQueryContext(ctx, q.Statement, q.Params)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", s.name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", s.name, err)
	}

	result := &plugin.QueryResult{
		Columns: cols,
		Meta:    map[string]interface{}{"source": s.name},
	}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("source %s: %w", s.name, err)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("source %s: %w", s.name, err)
	}
	return result, nil
}

func asInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}
