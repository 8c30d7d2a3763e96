package config

import (
	"fmt"
	"os"

	"cheshire/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigFile overrides the name of the main document inside the
	// configuration root.
	EnvConfigFile = "CHESHIRE_CONFIG"

	// DefaultConfigFile is the main document read when no override is set.
	DefaultConfigFile = "cheshire.yaml"
)

// MainDocumentName returns the name of the main document, honoring the
// process-environment override.
func MainDocumentName() string {
	if name := os.Getenv(EnvConfigFile); name != "" {
		return name
	}
	return DefaultConfigFile
}

// Load reads the main document from source, resolves every capability's
// actions and pipelines files from the same root, validates the whole in one
// pass, and returns the frozen Spec. On validation failure the returned
// error is an *ErrorCollection carrying every problem found.
func Load(source Source) (*Spec, error) {
	mainDoc := MainDocumentName()

	data, err := source.ReadFile(mainDoc)
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", mainDoc, source.Describe(), err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", mainDoc, err)
	}

	errs := &ErrorCollection{}
	resolveCapabilityFiles(source, &spec, errs)
	validate(&spec, errs)

	if errs.HasErrors() {
		return nil, errs
	}

	logging.Info("Config", "loaded %s from %s (%d sources, %d engines, %d capabilities)",
		mainDoc, source.Describe(), len(spec.Sources), len(spec.Engines), len(spec.Capabilities))
	return &spec, nil
}

// resolveCapabilityFiles loads each capability's referenced actions and
// pipelines documents. Missing or malformed files are accumulated, not
// fatal, so validation can still report everything else.
func resolveCapabilityFiles(source Source, spec *Spec, errs *ErrorCollection) {
	for name, capSpec := range spec.Capabilities {
		if capSpec.ActionsFile != "" {
			var doc ActionsDoc
			if ok := loadDoc(source, capSpec.ActionsFile, name, &doc, errs); ok {
				capSpec.ResolvedActions = doc.Actions
			}
		}
		if capSpec.PipelinesFile != "" {
			var doc PipelinesDoc
			if ok := loadDoc(source, capSpec.PipelinesFile, name, &doc, errs); ok {
				capSpec.ResolvedPipelines = doc.Pipelines
			}
		}
		spec.Capabilities[name] = capSpec
	}
}

func loadDoc(source Source, file, capability string, out interface{}, errs *ErrorCollection) bool {
	data, err := source.ReadFile(file)
	if err != nil {
		errs.Add(ConfigurationError{
			File:       file,
			Capability: capability,
			Message:    fmt.Sprintf("cannot read referenced file: %v", err),
		})
		return false
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		errs.Add(ConfigurationError{
			File:       file,
			Capability: capability,
			Message:    fmt.Sprintf("cannot parse referenced file: %v", err),
		})
		return false
	}
	return true
}
