package capability

import (
	"sort"

	"cheshire/internal/config"
	"cheshire/internal/core"
)

// Capability groups the actions sharing one set of sources, one engine, one
// exposure, and one transport. Capabilities are immutable after construction;
// the manager owns them exclusively.
type Capability struct {
	name        string
	description string
	domain      string
	exposure    config.ExposureSpec
	transport   config.TransportSpec
	sourceRefs  []string
	engineRef   string
	actions     map[string]config.ActionDef
	pipelines   map[string]*PipelineProcessor
}

// Name returns the capability name, unique within a deployment.
func (c *Capability) Name() string { return c.name }

// Description returns the operator-supplied description.
func (c *Capability) Description() string { return c.description }

// Domain returns the capability's domain grouping.
func (c *Capability) Domain() string { return c.domain }

// Exposure returns the resolved exposure record.
func (c *Capability) Exposure() config.ExposureSpec { return c.exposure }

// Transport returns the resolved transport record. It is the zero value when
// the configuration named no resolvable transport.
func (c *Capability) Transport() config.TransportSpec { return c.transport }

// SourceRefs returns the names of the sources this capability uses.
func (c *Capability) SourceRefs() []string {
	out := make([]string, len(c.sourceRefs))
	copy(out, c.sourceRefs)
	return out
}

// EngineRef returns the name of the bound engine.
func (c *Capability) EngineRef() string { return c.engineRef }

// Actions returns the declared action names, sorted.
func (c *Capability) Actions() []string {
	names := make([]string, 0, len(c.actions))
	for name := range c.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pipeline returns the processor bound to action. Unknown actions are a
// bad-request error so the session can report them to the client.
func (c *Capability) Pipeline(action string) (*PipelineProcessor, error) {
	p, ok := c.pipelines[action]
	if !ok {
		return nil, core.NewBadRequestError("capability %s has no action %s", c.name, action)
	}
	return p, nil
}
