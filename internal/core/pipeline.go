package core

import (
	"sync"
	"time"
)

// PipelineContext is the mutable bag steps use for cross-step communication.
// The identity fields are fixed at construction; the value bag is
// synchronized because the async pipeline entry point may observe it from
// another goroutine.
type PipelineContext struct {
	SessionID       string
	UserID          string
	TraceID         string
	SecurityContext map[string]interface{}
	ArrivedAt       time.Time
	Deadline        time.Time // zero means no deadline

	mu     sync.Mutex
	values map[string]interface{}
}

// NewPipelineContext derives a pipeline context from a session context.
func NewPipelineContext(sc SessionContext) *PipelineContext {
	return &PipelineContext{
		SessionID:       sc.SessionID,
		UserID:          sc.UserID,
		TraceID:         sc.TraceID,
		SecurityContext: snapshotMap(sc.SecurityContext),
		ArrivedAt:       sc.ArrivedAt,
		Deadline:        sc.Deadline,
		values:          snapshotMap(sc.Attributes),
	}
}

// Set binds key to value in the context bag.
func (c *PipelineContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// SetIfAbsent binds key to value only when no binding exists yet.
func (c *PipelineContext) SetIfAbsent(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		c.values[key] = value
	}
}

// Get returns the value bound to key.
func (c *PipelineContext) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

// Values returns a snapshot of the context bag.
func (c *PipelineContext) Values() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotMap(c.values)
}

// Expired reports whether the request deadline has passed.
func (c *PipelineContext) Expired() bool {
	return !c.Deadline.IsZero() && time.Now().After(c.Deadline)
}

// StepKind is the closed set of pipeline step positions.
type StepKind string

const (
	StepKindPre  StepKind = "pre"
	StepKindExec StepKind = "exec"
	StepKindPost StepKind = "post"
)

// PreProcessor transforms a canonical input into another input of the same
// shape before execution. Implementations are invoked concurrently across
// requests and must be thread-safe.
type PreProcessor interface {
	Name() string
	Apply(ctx *PipelineContext, in *CanonicalInput) (*CanonicalInput, error)
}

// Executor transforms the pipeline's input shape into its output shape. It
// is the only step allowed to talk to the bound engine.
type Executor interface {
	Name() string
	Execute(ctx *PipelineContext, in *CanonicalInput) (*CanonicalOutput, error)
}

// PostProcessor transforms a canonical output into another output of the
// same shape after execution.
type PostProcessor interface {
	Name() string
	Apply(ctx *PipelineContext, out *CanonicalOutput) (*CanonicalOutput, error)
}
