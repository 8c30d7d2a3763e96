package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/plugin"
	"cheshire/internal/registry"
	"cheshire/pkg/logging"
)

// Manager owns every configured capability. Initialization materializes each
// capability's pipelines through the plugin catalog and aborts on the first
// failure so the lifecycle reports a deterministic error.
type Manager struct {
	catalog  *plugin.Catalog
	cfg      *config.Manager
	registry *registry.Registry[*Capability]
}

// NewManager creates a capability manager.
func NewManager(catalog *plugin.Catalog, cfg *config.Manager) *Manager {
	return &Manager{
		catalog: catalog,
		cfg:     cfg,
		// Capabilities hold no live resources; deregistration is the whole
		// teardown.
		registry: registry.New[*Capability]("capability", nil),
	}
}

// Initialize builds and registers every capability, in sorted name order.
func (m *Manager) Initialize(ctx context.Context) error {
	spec := m.cfg.Get()

	names := make([]string, 0, len(spec.Capabilities))
	for name := range spec.Capabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c, err := m.build(spec, name, spec.Capabilities[name])
		if err != nil {
			return err
		}
		if err := m.registry.Register(c.Name(), c); err != nil {
			return err
		}
		logging.Debug("Capabilities", "registered capability %s with %d action(s)", name, len(c.actions))
	}

	logging.Info("Capabilities", "initialized %d capability(ies)", m.registry.Size())
	return nil
}

func (m *Manager) build(spec *config.Spec, name string, capSpec config.CapabilitySpec) (*Capability, error) {
	exposure, ok := spec.Exposures[capSpec.Exposure]
	if !ok {
		return nil, &config.ConfigurationError{
			Capability: name,
			Field:      "exposure",
			Message:    fmt.Sprintf("exposure %s does not exist", capSpec.Exposure),
		}
	}

	transport, ok := spec.Transports[capSpec.Transport]
	if !ok {
		logging.Warn("Capabilities", "capability %s references unknown transport %s, using empty transport record", name, capSpec.Transport)
		transport = config.TransportSpec{}
	}

	pipelines := make(map[string]*PipelineProcessor, len(capSpec.ResolvedActions))
	actionNames := make([]string, 0, len(capSpec.ResolvedActions))
	for action := range capSpec.ResolvedActions {
		actionNames = append(actionNames, action)
	}
	sort.Strings(actionNames)

	for _, action := range actionNames {
		def := capSpec.ResolvedActions[action]
		pipelineName := def.Pipeline
		if pipelineName == "" {
			pipelineName = action
		}
		ps, ok := capSpec.ResolvedPipelines[pipelineName]
		if !ok {
			return nil, &config.ConfigurationError{
				Capability: name,
				Action:     action,
				Message:    fmt.Sprintf("pipeline %s does not exist", pipelineName),
			}
		}
		proc, err := m.buildPipeline(name, action, ps)
		if err != nil {
			return nil, err
		}
		pipelines[action] = proc
	}

	return &Capability{
		name:        name,
		description: capSpec.Description,
		domain:      capSpec.Domain,
		exposure:    exposure,
		transport:   transport,
		sourceRefs:  append([]string(nil), capSpec.Sources...),
		engineRef:   capSpec.Engine,
		actions:     capSpec.ResolvedActions,
		pipelines:   pipelines,
	}, nil
}

func (m *Manager) buildPipeline(capability, action string, ps config.PipelineSpec) (*PipelineProcessor, error) {
	input, ok := core.ResolveShape(ps.Input)
	if !ok {
		return nil, shapeError(capability, action, "input", ps.Input)
	}
	output, ok := core.ResolveShape(ps.Output)
	if !ok {
		return nil, shapeError(capability, action, "output", ps.Output)
	}

	pre := make([]core.PreProcessor, 0, len(ps.Steps.Pre))
	for _, sd := range ps.Steps.Pre {
		if !m.catalog.HasPreStep(sd.Implementation) {
			return nil, kindError(capability, action, sd.Implementation, "a pre-processor")
		}
		step, err := m.catalog.NewPreStep(sd.Implementation, stepConfig(sd))
		if err != nil {
			return nil, stepError(capability, action, sd, err)
		}
		pre = append(pre, step)
	}

	if ps.Steps.Exec == nil {
		return nil, &config.ConfigurationError{
			Capability: capability,
			Action:     action,
			Message:    "pipeline has no executor step",
		}
	}
	execDef := *ps.Steps.Exec
	if !m.catalog.HasExecutor(execDef.Implementation) {
		return nil, kindError(capability, action, execDef.Implementation, "an executor")
	}
	exec, err := m.catalog.NewExecutor(execDef.Implementation, stepConfig(execDef))
	if err != nil {
		return nil, stepError(capability, action, execDef, err)
	}

	post := make([]core.PostProcessor, 0, len(ps.Steps.Post))
	for _, sd := range ps.Steps.Post {
		if !m.catalog.HasPostStep(sd.Implementation) {
			return nil, kindError(capability, action, sd.Implementation, "a post-processor")
		}
		step, err := m.catalog.NewPostStep(sd.Implementation, stepConfig(sd))
		if err != nil {
			return nil, stepError(capability, action, sd, err)
		}
		post = append(post, step)
	}

	return NewPipelineProcessor(capability, action, input, output, pre, exec, post), nil
}

// Get returns the capability registered under name. Unknown names surface as
// a bad-request error so the session can report them to the caller.
func (m *Manager) Get(name string) (*Capability, error) {
	c, err := m.registry.Get(name)
	if err != nil {
		return nil, core.NewBadRequestError("unknown capability %s", name)
	}
	return c, nil
}

// Names returns registered capability names in registration order.
func (m *Manager) Names() []string {
	return m.registry.Names()
}

// All returns a snapshot of the registered capabilities.
func (m *Manager) All() map[string]*Capability {
	return m.registry.All()
}

// Shutdown deregisters every capability in reverse registration order.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.registry.Shutdown(ctx)
	return nil
}

func stepConfig(sd config.StepDef) plugin.StepConfig {
	name := sd.Name
	if name == "" {
		name = sd.Implementation
	}
	return plugin.StepConfig{Name: name, Template: sd.Template, Params: sd.Params}
}

func shapeError(capability, action, side, shape string) error {
	return &config.ConfigurationError{
		Capability: capability,
		Action:     action,
		Field:      side,
		Message: fmt.Sprintf("unknown canonical shape %s (known: %s)",
			shape, strings.Join(core.KnownShapes(), ", ")),
	}
}

func kindError(capability, action, impl, want string) error {
	return &config.ConfigurationError{
		Capability: capability,
		Action:     action,
		Message:    fmt.Sprintf("implementation %s is not %s", impl, want),
	}
}

func stepError(capability, action string, sd config.StepDef, err error) error {
	return &config.ConfigurationError{
		Capability: capability,
		Action:     action,
		Message:    fmt.Sprintf("instantiating step %s (%s): %v", sd.Name, sd.Implementation, err),
	}
}
