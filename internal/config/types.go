package config

// Metadata is the informational block at the top of the main document.
type Metadata struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// SourceSpec declares one data source to connect.
type SourceSpec struct {
	Factory    string                 `yaml:"factory"`
	Type       string                 `yaml:"type,omitempty"`
	Connection map[string]interface{} `yaml:"connection,omitempty"`
	Pool       map[string]interface{} `yaml:"pool,omitempty"`
	Extras     map[string]interface{} `yaml:"extras,omitempty"`
}

// EngineSpec declares one query engine and the sources it evaluates against.
type EngineSpec struct {
	Factory string                 `yaml:"factory"`
	Sources []string               `yaml:"sources,omitempty"`
	Extras  map[string]interface{} `yaml:"extras,omitempty"`
}

// TransportSpec declares a physical carrier a server listens on.
type TransportSpec struct {
	Binding string                 `yaml:"binding"`
	Host    string                 `yaml:"host,omitempty"`
	Port    int                    `yaml:"port,omitempty"`
	Extras  map[string]interface{} `yaml:"extras,omitempty"`
}

// ExposureSpec declares how a capability is presented to clients.
type ExposureSpec struct {
	Binding string `yaml:"binding"`
	Version string `yaml:"version,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// CapabilitySpec declares a domain grouping of actions. ActionsFile and
// PipelinesFile are resolved relative to the configuration root; the loader
// fills ResolvedActions and ResolvedPipelines from them.
type CapabilitySpec struct {
	Description   string   `yaml:"description,omitempty"`
	Domain        string   `yaml:"domain,omitempty"`
	Exposure      string   `yaml:"exposure"`
	Transport     string   `yaml:"transport"`
	Sources       []string `yaml:"sources,omitempty"`
	Engine        string   `yaml:"engine,omitempty"`
	ActionsFile   string   `yaml:"actions-specification-file"`
	PipelinesFile string   `yaml:"pipelines-definition-file,omitempty"`

	ResolvedActions   map[string]ActionDef    `yaml:"-"`
	ResolvedPipelines map[string]PipelineSpec `yaml:"-"`
}

// ActionDef declares one invocable action. Pipeline names the pipeline in
// the capability's pipelines file; it defaults to the action name.
type ActionDef struct {
	Description string `yaml:"description,omitempty"`
	Pipeline    string `yaml:"pipeline,omitempty"`
}

// ActionsDoc is the on-disk shape of an actions specification file.
type ActionsDoc struct {
	Actions map[string]ActionDef `yaml:"actions"`
}

// StepDef declares one pipeline step.
type StepDef struct {
	Name           string                 `yaml:"name"`
	Implementation string                 `yaml:"implementation"`
	Template       string                 `yaml:"template,omitempty"`
	Params         map[string]interface{} `yaml:"params,omitempty"`
}

// PipelineSteps groups the three stages of a pipeline.
type PipelineSteps struct {
	Pre  []StepDef `yaml:"pre,omitempty"`
	Exec *StepDef  `yaml:"exec"`
	Post []StepDef `yaml:"post,omitempty"`
}

// PipelineSpec declares the pre-exec-post chain bound to an action, plus
// the canonical shapes on either end.
type PipelineSpec struct {
	Input  string        `yaml:"input"`
	Output string        `yaml:"output"`
	Steps  PipelineSteps `yaml:"steps"`
}

// PipelinesDoc is the on-disk shape of a pipelines definition file.
type PipelinesDoc struct {
	Pipelines map[string]PipelineSpec `yaml:"pipelines"`
}

// Spec is the root configuration, immutable after load. The loader is the
// only producer; consumers receive deep copies from the Manager.
type Spec struct {
	Metadata     Metadata                  `yaml:"metadata,omitempty"`
	Sources      map[string]SourceSpec     `yaml:"sources,omitempty"`
	Engines      map[string]EngineSpec     `yaml:"engines,omitempty"`
	Transports   map[string]TransportSpec  `yaml:"transports,omitempty"`
	Exposures    map[string]ExposureSpec   `yaml:"exposures,omitempty"`
	Capabilities map[string]CapabilitySpec `yaml:"capabilities,omitempty"`
}
