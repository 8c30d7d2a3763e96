// Package lifecycle coordinates phased, parallel component initialization
// and reverse-order shutdown.
//
// Components register against a numbered phase. Initialization walks phases
// in ascending order; components inside one phase are forked in parallel and
// the coordinator fails fast on the first error. Shutdown walks every
// component in reverse registration order under a bounded grace period.
package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cheshire/internal/core"
	"cheshire/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// Phase orders component initialization. Lower phases complete before higher
// phases start.
type Phase int

const (
	PhasePreInit         Phase = 0
	PhaseBootstrap       Phase = 10
	PhaseSourceProviders Phase = 20
	PhaseQueryEngines    Phase = 30
	PhaseCapabilities    Phase = 40
	PhasePipelines       Phase = 50
	PhasePostInit        Phase = 100
)

// State is the coordinator's process-level state.
type State string

const (
	StateNew      State = "NEW"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
	StateFailed   State = "FAILED"
)

// Component is anything the coordinator brings up and tears down.
type Component interface {
	Name() string
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// DefaultGracePeriod bounds how long shutdown waits for components.
const DefaultGracePeriod = 5 * time.Second

type registration struct {
	phase     Phase
	component Component
}

// Coordinator runs phased initialization and reverse-order shutdown over its
// registered components.
type Coordinator struct {
	mu            sync.Mutex
	state         State
	registrations []registration
	grace         time.Duration
}

// NewCoordinator creates a coordinator in the NEW state.
func NewCoordinator() *Coordinator {
	return &Coordinator{state: StateNew, grace: DefaultGracePeriod}
}

// SetGracePeriod overrides the shutdown grace period. Only meaningful before
// Shutdown is called.
func (c *Coordinator) SetGracePeriod(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grace = d
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Register binds a component to a phase. Registration is only allowed before
// initialization starts; registration order breaks ties inside a phase and
// defines the reverse order used at shutdown.
func (c *Coordinator) Register(phase Phase, comp Component) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateNew {
		return core.NewLifecycleError("coordinator", "register",
			fmt.Sprintf("cannot register %s in state %s", comp.Name(), c.state))
	}
	c.registrations = append(c.registrations, registration{phase: phase, component: comp})
	return nil
}

func (c *Coordinator) transition(op string, from []State, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range from {
		if c.state == s {
			c.state = to
			return nil
		}
	}
	return core.NewLifecycleError("coordinator", op,
		fmt.Sprintf("invalid transition %s -> %s", c.state, to))
}

func (c *Coordinator) fail() {
	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()
}

// Initialize runs every phase in ascending order, forking the components of
// each phase in parallel and waiting for all of them. The first failure
// transitions the coordinator to FAILED and is returned.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if err := c.transition("initialize", []State{StateNew}, StateStarting); err != nil {
		return err
	}

	for _, phase := range c.phases() {
		comps := c.componentsIn(phase)
		logging.Debug("Lifecycle", "starting phase %d with %d component(s)", phase, len(comps))

		g, gctx := errgroup.WithContext(ctx)
		for _, comp := range comps {
			comp := comp
			g.Go(func() error {
				if err := comp.Initialize(gctx); err != nil {
					return fmt.Errorf("initializing %s: %w", comp.Name(), err)
				}
				logging.Debug("Lifecycle", "component %s initialized", comp.Name())
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			c.fail()
			return err
		}
	}

	if err := c.transition("initialize", []State{StateStarting}, StateRunning); err != nil {
		return err
	}
	logging.Info("Lifecycle", "all phases complete, coordinator running")
	return nil
}

// Shutdown walks components in reverse registration order, invoking Shutdown
// on each under the grace period. Individual failures are logged and
// swallowed; the coordinator always reaches STOPPED.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if err := c.transition("shutdown", []State{StateStarting, StateRunning, StateFailed}, StateStopping); err != nil {
		return err
	}

	c.mu.Lock()
	regs := make([]registration, len(c.registrations))
	copy(regs, c.registrations)
	grace := c.grace
	c.mu.Unlock()

	graceCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	for i := len(regs) - 1; i >= 0; i-- {
		comp := regs[i].component
		if err := comp.Shutdown(graceCtx); err != nil {
			logging.Error("Lifecycle", err, "component %s failed to shut down", comp.Name())
		} else {
			logging.Debug("Lifecycle", "component %s shut down", comp.Name())
		}
	}

	if err := c.transition("shutdown", []State{StateStopping}, StateStopped); err != nil {
		return err
	}
	logging.Info("Lifecycle", "shutdown complete")
	return nil
}

// phases returns the distinct registered phases in ascending order.
func (c *Coordinator) phases() []Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[Phase]struct{})
	var phases []Phase
	for _, reg := range c.registrations {
		if _, ok := seen[reg.phase]; !ok {
			seen[reg.phase] = struct{}{}
			phases = append(phases, reg.phase)
		}
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i] < phases[j] })
	return phases
}

// componentsIn returns the components of one phase in registration order.
func (c *Coordinator) componentsIn(phase Phase) []Component {
	c.mu.Lock()
	defer c.mu.Unlock()

	var comps []Component
	for _, reg := range c.registrations {
		if reg.phase == phase {
			comps = append(comps, reg.component)
		}
	}
	return comps
}
