package plugin

import (
	"context"

	"cheshire/internal/config"
	"cheshire/internal/core"
)

// Query is the request a capability hands to a data source.
type Query struct {
	Statement string
	Params    map[string]interface{}
}

// QueryResult is the uniform result a source returns.
type QueryResult struct {
	Columns []string
	Rows    []map[string]interface{}
	Meta    map[string]interface{}
}

// Source is a data-access component owning its connections. Implementations
// must be internally thread-safe: engines and pipeline steps invoke them
// concurrently from many request workers. Open and Close are idempotent.
type Source interface {
	Name() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	IsOpen() bool
	Config() SourceConfig
	Execute(ctx context.Context, q Query) (*QueryResult, error)
}

// SourceConfig is the typed configuration a SourceProviderFactory adapter
// produces from the raw config map. ConfigType identifies the concrete type
// so the source manager can assert the adapter honored the factory's
// declaration.
type SourceConfig interface {
	SourceName() string
	ConfigType() string
}

// SourceProviderFactory creates sources of one kind, located by ID.
type SourceProviderFactory interface {
	// ID is the factory identifier referenced from configuration.
	ID() string

	// ConfigType declares the config type Adapt must produce.
	ConfigType() string

	// Adapt converts the raw per-source config map into the typed config.
	Adapt(name string, raw config.SourceSpec) (SourceConfig, error)

	// Validate checks the typed config before creation.
	Validate(cfg SourceConfig) error

	// Create builds the source. The source is not yet open.
	Create(cfg SourceConfig) (Source, error)
}

// LogicalQuery is the engine-level request, naming the source it should be
// evaluated against.
type LogicalQuery struct {
	Source    string
	Statement string
	Params    map[string]interface{}
}

// EngineResult is the uniform result an engine returns.
type EngineResult struct {
	Rows []map[string]interface{}
	Meta map[string]interface{}
}

// SourceResolver lets engines look sources up by name without owning them.
type SourceResolver interface {
	Resolve(name string) (Source, error)
}

// Engine evaluates logical queries using one or more sources. Engines never
// own sources; they hold name-based lookups through a SourceResolver.
// Implementations must be thread-safe for reads; Close is called exactly
// once by the engine manager.
type Engine interface {
	Name() string
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Execute(ctx context.Context, q LogicalQuery) (*EngineResult, error)
	Validate(q LogicalQuery) (bool, error)
	Explain(q LogicalQuery) (string, error)
	SupportsStreaming() bool
}

// EngineConfig is the typed configuration a QueryEngineFactory adapter
// produces.
type EngineConfig interface {
	EngineName() string
	ConfigType() string
}

// QueryEngineFactory creates engines of one kind, located by ID.
type QueryEngineFactory interface {
	ID() string
	ConfigType() string

	// Adapt converts the raw engine spec into the typed config. sourceSpecs
	// carries the resolved configurations of the sources the engine
	// references, copied in by the engine manager so the config is
	// self-contained.
	Adapt(name string, raw config.EngineSpec, sourceSpecs map[string]config.SourceSpec) (EngineConfig, error)

	Validate(cfg EngineConfig) error

	// Create builds the engine. resolver provides name-based source lookups.
	Create(cfg EngineConfig, resolver SourceResolver) (Engine, error)
}

// Dispatcher converts a request envelope into a session invocation and maps
// the outcome back to a response entity.
type Dispatcher interface {
	Dispatch(ctx context.Context, env *core.RequestEnvelope) core.ResponseEntity
}

// StreamFragment is one element of a streaming response.
type StreamFragment struct {
	Data  map[string]interface{}
	Final bool
	Err   error
}

// StreamingDispatcher returns a publisher of output fragments instead of a
// single response entity.
type StreamingDispatcher interface {
	Dispatcher
	DispatchStream(ctx context.Context, env *core.RequestEnvelope) (<-chan StreamFragment, error)
}

// Server accepts requests on one transport for one capability. Each
// transition is idempotent; Start returns promptly with accept loops running
// in the background; Stop attempts a graceful drain before forcing
// termination.
type Server interface {
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Type() string
	IsRunning() bool
}

// ServerBinding carries everything a ServerFactory needs to stand up a
// server for one capability. Actions lists the capability's action names so
// transports that enumerate operations (JSON-RPC tools) can register them.
type ServerBinding struct {
	Capability string
	Actions    []string
	Exposure   config.ExposureSpec
	Transport  config.TransportSpec
	Dispatcher Dispatcher
}

// ServerFactory creates transport servers, located by ID.
type ServerFactory interface {
	ID() string
	Create(binding ServerBinding) (Server, error)
}
