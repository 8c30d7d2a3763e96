package config

import "fmt"

// validate runs the single deep-validation pass over the loaded spec,
// accumulating every problem in errs. Pipeline input/output identifiers are
// recorded only; the capability manager verifies them against the shape
// registry at instantiation time.
func validate(spec *Spec, errs *ErrorCollection) {
	validateSources(spec, errs)
	validateEngines(spec, errs)
	validateCapabilities(spec, errs)
}

func validateSources(spec *Spec, errs *ErrorCollection) {
	for name, src := range spec.Sources {
		if src.Factory == "" {
			errs.Add(ConfigurationError{Field: fmt.Sprintf("sources.%s.factory", name), Message: "factory identifier is required"})
		}
	}
}

func validateEngines(spec *Spec, errs *ErrorCollection) {
	for name, eng := range spec.Engines {
		if eng.Factory == "" {
			errs.Add(ConfigurationError{Field: fmt.Sprintf("engines.%s.factory", name), Message: "factory identifier is required"})
		}
		for _, srcName := range eng.Sources {
			if _, ok := spec.Sources[srcName]; !ok {
				errs.Add(ConfigurationError{
					Field:   fmt.Sprintf("engines.%s.sources", name),
					Message: fmt.Sprintf("referenced source %s does not exist", srcName),
				})
			}
		}
	}
}

func validateCapabilities(spec *Spec, errs *ErrorCollection) {
	for name, capSpec := range spec.Capabilities {
		if capSpec.Exposure == "" {
			errs.Add(ConfigurationError{Capability: name, Field: "exposure", Message: "exposure reference is required"})
		} else if _, ok := spec.Exposures[capSpec.Exposure]; !ok {
			errs.Add(ConfigurationError{
				Capability: name,
				Field:      "exposure",
				Message:    fmt.Sprintf("referenced exposure %s does not exist", capSpec.Exposure),
			})
		}

		// The transport scalar is required, but an unresolvable transport
		// reference is tolerated here: the capability manager substitutes an
		// empty transport record and warns.
		if capSpec.Transport == "" {
			errs.Add(ConfigurationError{Capability: name, Field: "transport", Message: "transport reference is required"})
		}

		if capSpec.ActionsFile == "" {
			errs.Add(ConfigurationError{Capability: name, Field: "actions-specification-file", Message: "actions file is required"})
		}

		for _, srcName := range capSpec.Sources {
			if _, ok := spec.Sources[srcName]; !ok {
				errs.Add(ConfigurationError{
					Capability: name,
					Field:      "sources",
					Message:    fmt.Sprintf("referenced source %s does not exist", srcName),
				})
			}
		}

		if capSpec.Engine != "" {
			if _, ok := spec.Engines[capSpec.Engine]; !ok {
				errs.Add(ConfigurationError{
					Capability: name,
					Field:      "engine",
					Message:    fmt.Sprintf("referenced engine %s does not exist", capSpec.Engine),
				})
			}
		}

		validateActions(name, capSpec, errs)
	}
}

func validateActions(capability string, capSpec CapabilitySpec, errs *ErrorCollection) {
	if capSpec.ActionsFile != "" && len(capSpec.ResolvedActions) == 0 {
		errs.Add(ConfigurationError{
			Capability: capability,
			File:       capSpec.ActionsFile,
			Message:    "capability declares no actions",
		})
		return
	}

	for actionName, def := range capSpec.ResolvedActions {
		pipelineName := def.Pipeline
		if pipelineName == "" {
			pipelineName = actionName
		}

		pipeline, ok := capSpec.ResolvedPipelines[pipelineName]
		if !ok {
			errs.Add(ConfigurationError{
				Capability: capability,
				Action:     actionName,
				Message:    fmt.Sprintf("no pipeline %s defined for action", pipelineName),
			})
			continue
		}

		validatePipeline(capability, actionName, pipelineName, pipeline, errs)
	}
}

func validatePipeline(capability, action, pipelineName string, pipeline PipelineSpec, errs *ErrorCollection) {
	if pipeline.Input == "" {
		errs.Add(ConfigurationError{Capability: capability, Action: action, Field: "input", Message: "pipeline input shape is required"})
	}
	if pipeline.Output == "" {
		errs.Add(ConfigurationError{Capability: capability, Action: action, Field: "output", Message: "pipeline output shape is required"})
	}

	if pipeline.Steps.Exec == nil || pipeline.Steps.Exec.Implementation == "" {
		errs.Add(ConfigurationError{
			Capability: capability,
			Action:     action,
			Message:    fmt.Sprintf("pipeline %s must declare exactly one executor step", pipelineName),
		})
	}

	for i, step := range pipeline.Steps.Pre {
		if step.Implementation == "" {
			errs.Add(ConfigurationError{
				Capability: capability,
				Action:     action,
				Field:      fmt.Sprintf("steps.pre[%d]", i),
				Message:    "step implementation identifier is required",
			})
		}
	}
	for i, step := range pipeline.Steps.Post {
		if step.Implementation == "" {
			errs.Add(ConfigurationError{
				Capability: capability,
				Action:     action,
				Field:      fmt.Sprintf("steps.post[%d]", i),
				Message:    "step implementation identifier is required",
			})
		}
	}
}
