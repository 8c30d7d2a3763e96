package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/plugin"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is the typed configuration for the Redis source provider.
type RedisConfig struct {
	Name     string
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// SourceName implements plugin.SourceConfig.
func (c RedisConfig) SourceName() string { return c.Name }

// ConfigType implements plugin.SourceConfig.
func (c RedisConfig) ConfigType() string { return "redis" }

// RedisFactory builds Redis-backed key/value sources.
type RedisFactory struct{}

// ID implements plugin.SourceProviderFactory.
func (RedisFactory) ID() string { return "redis" }

// ConfigType implements plugin.SourceProviderFactory.
func (RedisFactory) ConfigType() string { return "redis" }

// Adapt implements plugin.SourceProviderFactory.
func (RedisFactory) Adapt(name string, raw config.SourceSpec) (plugin.SourceConfig, error) {
	cfg := RedisConfig{Name: name}

	if addr, ok := raw.Connection["addr"].(string); ok {
		cfg.Addr = addr
	}
	if pw, ok := raw.Connection["password"].(string); ok {
		cfg.Password = pw
	}
	if db, ok := asInt(raw.Connection["db"]); ok {
		cfg.DB = db
	}
	if size, ok := asInt(raw.Pool["size"]); ok {
		cfg.PoolSize = size
	}
	return cfg, nil
}

// Validate implements plugin.SourceProviderFactory.
func (RedisFactory) Validate(cfg plugin.SourceConfig) error {
	rc, ok := cfg.(RedisConfig)
	if !ok {
		return fmt.Errorf("expected RedisConfig, got %T", cfg)
	}
	if rc.Addr == "" {
		return fmt.Errorf("connection.addr is required")
	}
	return nil
}

// Create implements plugin.SourceProviderFactory.
func (RedisFactory) Create(cfg plugin.SourceConfig) (plugin.Source, error) {
	rc := cfg.(RedisConfig)
	return &redisSource{name: rc.Name, cfg: rc}, nil
}

// redisSource exposes a small command surface over a go-redis client:
// GET key, SET key, KEYS pattern, HGETALL key.
type redisSource struct {
	name string
	cfg  RedisConfig

	mu     sync.RWMutex
	client *redis.Client
}

func (s *redisSource) Name() string { return s.name }

func (s *redisSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     s.cfg.Addr,
		Password: s.cfg.Password,
		DB:       s.cfg.DB,
		PoolSize: s.cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return core.NewConnectionError("source", s.name, err)
	}

	s.client = client
	return nil
}

func (s *redisSource) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *redisSource) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

func (s *redisSource) Config() plugin.SourceConfig { return s.cfg }

func (s *redisSource) Execute(ctx context.Context, q plugin.Query) (*plugin.QueryResult, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return nil, core.NewConnectionError("source", s.name, fmt.Errorf("source is closed"))
	}

	parts := strings.Fields(q.Statement)
	if len(parts) != 2 {
		return nil, core.NewBadRequestError("redis statement must be '<command> <key>', got %q", q.Statement)
	}
	command, key := strings.ToUpper(parts[0]), parts[1]

	meta := map[string]interface{}{"source": s.name, "command": command}

	switch command {
	case "GET":
		val, err := client.Get(ctx, key).Result()
		if err == redis.Nil {
			return &plugin.QueryResult{Columns: []string{"key", "value"}, Meta: meta}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.name, err)
		}
		return &plugin.QueryResult{
			Columns: []string{"key", "value"},
			Rows:    []map[string]interface{}{{"key": key, "value": val}},
			Meta:    meta,
		}, nil

	case "SET":
		val, ok := q.Params["value"].(string)
		if !ok {
			return nil, core.NewBadRequestError("SET requires a string 'value' parameter")
		}
		if err := client.Set(ctx, key, val, 0).Err(); err != nil {
			return nil, fmt.Errorf("source %s: %w", s.name, err)
		}
		return &plugin.QueryResult{
			Columns: []string{"key", "value"},
			Rows:    []map[string]interface{}{{"key": key, "value": val}},
			Meta:    meta,
		}, nil

	case "KEYS":
		keys, err := client.Keys(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.name, err)
		}
		result := &plugin.QueryResult{Columns: []string{"key"}, Meta: meta}
		for _, k := range keys {
			result.Rows = append(result.Rows, map[string]interface{}{"key": k})
		}
		return result, nil

	case "HGETALL":
		fields, err := client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.name, err)
		}
		row := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			row[k] = v
		}
		return &plugin.QueryResult{
			Rows: []map[string]interface{}{row},
			Meta: meta,
		}, nil

	default:
		return nil, core.NewBadRequestError("unsupported redis command %s", command)
	}
}
