// Package session hosts the central executor that turns a dispatched task
// into a pipeline run and a task result.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cheshire/internal/capability"
	"cheshire/internal/core"
	"cheshire/internal/plugin"
	"cheshire/pkg/logging"
)

// CapabilityResolver resolves capabilities by name. The capability manager
// implements it.
type CapabilityResolver interface {
	Get(name string) (*capability.Capability, error)
}

// EngineResolver resolves engines by name. The engine manager implements it.
type EngineResolver interface {
	Get(name string) (plugin.Engine, error)
}

// Hook runs at session start or stop.
type Hook func(ctx context.Context) error

// ResultTracer receives every task result when debug tracing is on.
type ResultTracer interface {
	Result(requestID string, result core.TaskResult)
}

// Session is the one place where a request becomes an execution. It borrows
// the three managers and never owns them.
type Session struct {
	capabilities CapabilityResolver
	engines      EngineResolver
	sources      plugin.SourceResolver

	started atomic.Bool
	tracer  ResultTracer

	mu         sync.Mutex
	startHooks []Hook
	stopHooks  []Hook
}

// New creates a session over the three managers.
func New(capabilities CapabilityResolver, engines EngineResolver, sources plugin.SourceResolver) *Session {
	return &Session{
		capabilities: capabilities,
		engines:      engines,
		sources:      sources,
	}
}

// SetTracer attaches a tracer that sees every task result. Call before
// Start; a nil tracer disables result tracing.
func (s *Session) SetTracer(tr ResultTracer) {
	s.tracer = tr
}

// OnStart registers a hook to run during Start, in registration order.
func (s *Session) OnStart(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startHooks = append(s.startHooks, h)
}

// OnStop registers a hook to run during Stop. Stop runs hooks in reverse
// registration order.
func (s *Session) OnStop(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopHooks = append(s.stopHooks, h)
}

// IsStarted reports whether the session accepts work.
func (s *Session) IsStarted() bool { return s.started.Load() }

// Start makes the session accept work. It is idempotent; the second call is
// a no-op. A failing start hook aborts the start and leaves the session
// stopped.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	hooks := make([]Hook, len(s.startHooks))
	copy(hooks, s.startHooks)
	s.mu.Unlock()

	for _, h := range hooks {
		if err := h(ctx); err != nil {
			s.started.Store(false)
			return err
		}
	}
	logging.Info("Session", "session started")
	return nil
}

// Stop makes the session refuse further work. It is idempotent; stop hooks
// run in reverse registration order and individual failures are logged and
// swallowed.
func (s *Session) Stop(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	hooks := make([]Hook, len(s.stopHooks))
	copy(hooks, s.stopHooks)
	s.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			logging.Error("Session", err, "stop hook %d failed", i)
		}
	}
	logging.Info("Session", "session stopped")
	return nil
}

// Execute routes a task to its capability's pipeline and translates the
// outcome into a task result variant. It never returns an error; failures
// become TaskFailure with the status category a client should see.
func (s *Session) Execute(task core.SessionTask, sctx core.SessionContext) core.TaskResult {
	result := s.execute(task, sctx)
	if s.tracer != nil {
		requestID, _ := task.Metadata[core.MetaRequestID].(string)
		s.tracer.Result(requestID, result)
	}
	return result
}

func (s *Session) execute(task core.SessionTask, sctx core.SessionContext) core.TaskResult {
	if !s.started.Load() {
		return failure(core.NewLifecycleError("session", "execute", "session is not started"))
	}

	capName, err := task.RequireMetaString(core.MetaCapability)
	if err != nil {
		return failure(err)
	}
	capa, err := s.capabilities.Get(capName)
	if err != nil {
		return failure(err)
	}

	action, err := task.RequireMetaString(core.MetaAction)
	if err != nil {
		return failure(err)
	}
	pipeline, err := capa.Pipeline(action)
	if err != nil {
		return failure(err)
	}

	input, err := s.buildInput(pipeline, capa, task)
	if err != nil {
		return failure(core.NewExecutionError(capName, action, err))
	}

	out, err := pipeline.Execute(core.NewPipelineContext(sctx), input)
	if err != nil {
		return failure(err)
	}
	return core.NewTaskSuccess(out.Data(), out.Metadata())
}

// buildInput assembles the canonical input of the pipeline's declared shape:
// the task's data plus a metadata bundle binding the engine instance, the
// source map, the capability name, and a timing mark.
func (s *Session) buildInput(pipeline *capability.PipelineProcessor, capa *capability.Capability, task core.SessionTask) (*core.CanonicalInput, error) {
	metadata := make(map[string]interface{}, len(task.Metadata)+4)
	for k, v := range task.Metadata {
		metadata[k] = v
	}

	if ref := capa.EngineRef(); ref != "" {
		eng, err := s.engines.Get(ref)
		if err != nil {
			return nil, err
		}
		metadata[core.MetaEngine] = eng
	}

	if refs := capa.SourceRefs(); len(refs) > 0 {
		sources := make(map[string]plugin.Source, len(refs))
		for _, name := range refs {
			src, err := s.sources.Resolve(name)
			if err != nil {
				return nil, err
			}
			sources[name] = src
		}
		metadata[core.MetaSources] = sources
	}

	metadata[core.MetaCapability] = capa.Name()
	if _, ok := metadata[core.MetaTaskStartedAt]; !ok {
		metadata[core.MetaTaskStartedAt] = time.Now()
	}

	return core.NewCanonicalValue(pipeline.InputShape(), task.Data, metadata), nil
}

func failure(err error) core.TaskFailure {
	return core.NewTaskFailure(core.StatusFor(err), err, nil)
}
