// Package runtime supervises the process-level state machine. It owns the
// transport servers, borrows the session, and coordinates startup fan-out and
// bounded shutdown.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cheshire/internal/capability"
	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/dispatch"
	"cheshire/internal/health"
	"cheshire/internal/lifecycle"
	"cheshire/internal/plugin"
	"cheshire/pkg/logging"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultStopTimeout bounds the concurrent server/session stop fan-out.
	DefaultStopTimeout = 30 * time.Second
	// DefaultDrainTimeout bounds the wait for in-flight requests after stop.
	DefaultDrainTimeout = 5 * time.Second
)

// Session is the slice of the session the runtime drives.
type Session interface {
	dispatch.SessionExecutor
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// CapabilityResolver is the slice of the capability manager the runtime
// needs to choose transports.
type CapabilityResolver interface {
	Get(name string) (*capability.Capability, error)
	Names() []string
}

// Runtime owns one server per capability and the process state machine
// NEW, STARTING, RUNNING, STOPPING, STOPPED with FAILED as a terminal trap.
type Runtime struct {
	session      Session
	capabilities CapabilityResolver
	catalog      *plugin.Catalog
	monitor      *health.Monitor
	metrics      *health.Metrics

	stopTimeout  time.Duration
	drainTimeout time.Duration
	tracer       dispatch.Tracer

	mu         sync.Mutex
	state      lifecycle.State
	servers    []plugin.Server
	readyHooks []func()
	done       chan struct{}
	doneOnce   sync.Once
}

// Expose builds a runtime over a started-or-startable session. The runtime
// borrows the capability manager and catalog; it owns the servers it creates.
func Expose(session Session, capabilities CapabilityResolver, catalog *plugin.Catalog, monitor *health.Monitor, metrics *health.Metrics) *Runtime {
	return &Runtime{
		session:      session,
		capabilities: capabilities,
		catalog:      catalog,
		monitor:      monitor,
		metrics:      metrics,
		stopTimeout:  DefaultStopTimeout,
		drainTimeout: DefaultDrainTimeout,
		state:        lifecycle.StateNew,
		done:         make(chan struct{}),
	}
}

// WithTracer attaches a tracer to every dispatcher the runtime builds. Call
// before Start.
func (r *Runtime) WithTracer(tr dispatch.Tracer) *Runtime {
	r.tracer = tr
	return r
}

// State returns the current process state.
func (r *Runtime) State() lifecycle.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Servers returns the servers the runtime currently owns.
func (r *Runtime) Servers() []plugin.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]plugin.Server, len(r.servers))
	copy(out, r.servers)
	return out
}

// OnReady registers a hook that fires exactly once when the runtime reaches
// RUNNING. A hook registered after that point fires immediately.
func (r *Runtime) OnReady(hook func()) {
	r.mu.Lock()
	if r.state == lifecycle.StateRunning {
		r.mu.Unlock()
		hook()
		return
	}
	r.readyHooks = append(r.readyHooks, hook)
	r.mu.Unlock()
}

// Start brings up one server per capability, concurrently and fail-fast,
// then starts the session and transitions to RUNNING. Starting a runtime
// that is already starting or running is a no-op.
func (r *Runtime) Start(ctx context.Context) error {
	return r.start(ctx, r.capabilities.Names())
}

// StartCapability is Start restricted to a single capability.
func (r *Runtime) StartCapability(ctx context.Context, name string) error {
	return r.start(ctx, []string{name})
}

func (r *Runtime) start(ctx context.Context, names []string) error {
	r.mu.Lock()
	switch r.state {
	case lifecycle.StateNew:
		r.state = lifecycle.StateStarting
	case lifecycle.StateStarting, lifecycle.StateRunning:
		r.mu.Unlock()
		return nil
	default:
		state := r.state
		r.mu.Unlock()
		return core.NewLifecycleError("runtime", "start", fmt.Sprintf("invalid in state %s", state))
	}
	r.mu.Unlock()

	if err := r.monitor.Transition(health.StatusStarting, "runtime starting"); err != nil {
		logging.Warn("Runtime", "health transition rejected: %v", err)
	}
	r.metrics.MarkStart()

	if err := r.session.Start(ctx); err != nil {
		return r.fail(fmt.Errorf("starting session: %w", err))
	}

	servers, err := r.buildServers(names)
	if err != nil {
		return r.fail(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			if err := srv.Init(gctx); err != nil {
				return fmt.Errorf("initializing %s server: %w", srv.Type(), err)
			}
			if err := srv.Start(gctx); err != nil {
				return fmt.Errorf("starting %s server: %w", srv.Type(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
		defer cancel()
		for _, srv := range servers {
			if stopErr := srv.Stop(stopCtx); stopErr != nil {
				logging.Error("Runtime", stopErr, "stopping %s server after failed start", srv.Type())
			}
		}
		return r.fail(err)
	}

	r.mu.Lock()
	r.servers = servers
	r.state = lifecycle.StateRunning
	hooks := r.readyHooks
	r.readyHooks = nil
	r.mu.Unlock()

	if err := r.monitor.Transition(health.StatusRunning, "runtime running"); err != nil {
		logging.Warn("Runtime", "health transition rejected: %v", err)
	}
	logging.Info("Runtime", "running with %d server(s)", len(servers))

	for _, hook := range hooks {
		hook()
	}
	return nil
}

// buildServers resolves the transport factory for each capability and binds
// a dispatcher of the matching kind. The streaming kind gets a streaming
// dispatcher so transports can fan rows out as fragments.
func (r *Runtime) buildServers(names []string) ([]plugin.Server, error) {
	servers := make([]plugin.Server, 0, len(names))
	for _, name := range names {
		c, err := r.capabilities.Get(name)
		if err != nil {
			return nil, err
		}

		kind, err := dispatch.ParseTransportKind(c.Exposure().Binding)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", name, err)
		}

		factory, ok := r.catalog.ServerFactory(string(kind))
		if !ok {
			return nil, &config.ConfigurationError{
				Capability: name,
				Field:      "exposure.binding",
				Message:    fmt.Sprintf("no server factory for transport %s", kind),
			}
		}

		var dispatcher plugin.Dispatcher
		if kind == dispatch.KindStreaming {
			sd := dispatch.NewStream(r.session)
			sd.WithTracer(r.tracer)
			dispatcher = sd
		} else {
			dispatcher = dispatch.New(kind, r.session).WithTracer(r.tracer)
		}

		srv, err := factory.Create(plugin.ServerBinding{
			Capability: c.Name(),
			Actions:    c.Actions(),
			Exposure:   c.Exposure(),
			Transport:  c.Transport(),
			Dispatcher: dispatcher,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s server for capability %s: %w", kind, name, err)
		}
		servers = append(servers, srv)
	}
	return servers, nil
}

// Stop tears the process down: servers and session stop concurrently under a
// bounded deadline, in-flight requests get a short drain window, and the
// runtime transitions to STOPPED. Stopping twice is a no-op.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case lifecycle.StateStarting, lifecycle.StateRunning, lifecycle.StateFailed:
		r.state = lifecycle.StateStopping
	case lifecycle.StateStopping, lifecycle.StateStopped:
		r.mu.Unlock()
		return nil
	default:
		state := r.state
		r.mu.Unlock()
		return core.NewLifecycleError("runtime", "stop", fmt.Sprintf("invalid in state %s", state))
	}
	servers := r.servers
	r.mu.Unlock()

	if err := r.monitor.Transition(health.StatusStopping, "runtime stopping"); err != nil {
		logging.Warn("Runtime", "health transition rejected: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, r.stopTimeout)
	defer cancel()

	var g errgroup.Group
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			if err := srv.Stop(stopCtx); err != nil {
				logging.Error("Runtime", err, "stopping %s server", srv.Type())
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := r.session.Stop(stopCtx); err != nil {
			logging.Error("Runtime", err, "stopping session")
		}
		return nil
	})
	_ = g.Wait()

	r.drain()

	r.metrics.MarkStop()
	if err := r.monitor.Transition(health.StatusStopped, "runtime stopped"); err != nil {
		logging.Warn("Runtime", "health transition rejected: %v", err)
	}

	r.mu.Lock()
	r.state = lifecycle.StateStopped
	r.servers = nil
	r.mu.Unlock()
	r.doneOnce.Do(func() { close(r.done) })

	logging.Info("Runtime", "stopped")
	return nil
}

// drain waits for in-flight requests to finish, up to the drain timeout.
func (r *Runtime) drain() {
	deadline := time.Now().Add(r.drainTimeout)
	for r.metrics.InProgress() > 0 {
		if time.Now().After(deadline) {
			logging.Warn("Runtime", "drain timeout with %d request(s) in flight", r.metrics.InProgress())
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// AwaitTermination blocks until the runtime reaches STOPPED or FAILED, or
// the context is cancelled.
func (r *Runtime) AwaitTermination(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fail traps the runtime in FAILED and releases waiters.
func (r *Runtime) fail(err error) error {
	r.mu.Lock()
	r.state = lifecycle.StateFailed
	r.mu.Unlock()

	r.doneOnce.Do(func() { close(r.done) })
	if terr := r.monitor.Transition(health.StatusFailed, err.Error()); terr != nil {
		logging.Warn("Runtime", "health transition rejected: %v", terr)
	}
	logging.Error("Runtime", err, "startup failed")
	return err
}
