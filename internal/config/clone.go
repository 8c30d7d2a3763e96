package config

// Deep-clone helpers. The Manager hands out clones so a consumer mutating
// its copy cannot corrupt the frozen Spec.

func cloneAnyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneAnyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneAny(e)
		}
		return out
	default:
		return v
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Clone returns an independent copy of the source spec.
func (s SourceSpec) Clone() SourceSpec {
	s.Connection = cloneAnyMap(s.Connection)
	s.Pool = cloneAnyMap(s.Pool)
	s.Extras = cloneAnyMap(s.Extras)
	return s
}

// Clone returns an independent copy of the engine spec.
func (s EngineSpec) Clone() EngineSpec {
	s.Sources = cloneStrings(s.Sources)
	s.Extras = cloneAnyMap(s.Extras)
	return s
}

// Clone returns an independent copy of the transport spec.
func (s TransportSpec) Clone() TransportSpec {
	s.Extras = cloneAnyMap(s.Extras)
	return s
}

// Clone returns an independent copy of the step definition.
func (s StepDef) Clone() StepDef {
	s.Params = cloneAnyMap(s.Params)
	return s
}

// Clone returns an independent copy of the pipeline spec.
func (s PipelineSpec) Clone() PipelineSpec {
	pre := make([]StepDef, len(s.Steps.Pre))
	for i, d := range s.Steps.Pre {
		pre[i] = d.Clone()
	}
	post := make([]StepDef, len(s.Steps.Post))
	for i, d := range s.Steps.Post {
		post[i] = d.Clone()
	}
	var exec *StepDef
	if s.Steps.Exec != nil {
		c := s.Steps.Exec.Clone()
		exec = &c
	}
	s.Steps = PipelineSteps{Pre: pre, Exec: exec, Post: post}
	return s
}

// Clone returns an independent copy of the capability spec, including its
// resolved actions and pipelines.
func (s CapabilitySpec) Clone() CapabilitySpec {
	s.Sources = cloneStrings(s.Sources)

	if s.ResolvedActions != nil {
		actions := make(map[string]ActionDef, len(s.ResolvedActions))
		for name, def := range s.ResolvedActions {
			actions[name] = def
		}
		s.ResolvedActions = actions
	}
	if s.ResolvedPipelines != nil {
		pipelines := make(map[string]PipelineSpec, len(s.ResolvedPipelines))
		for name, p := range s.ResolvedPipelines {
			pipelines[name] = p.Clone()
		}
		s.ResolvedPipelines = pipelines
	}
	return s
}

// Clone returns an independent deep copy of the whole spec.
func (s *Spec) Clone() *Spec {
	out := &Spec{Metadata: s.Metadata}

	if s.Sources != nil {
		out.Sources = make(map[string]SourceSpec, len(s.Sources))
		for name, src := range s.Sources {
			out.Sources[name] = src.Clone()
		}
	}
	if s.Engines != nil {
		out.Engines = make(map[string]EngineSpec, len(s.Engines))
		for name, eng := range s.Engines {
			out.Engines[name] = eng.Clone()
		}
	}
	if s.Transports != nil {
		out.Transports = make(map[string]TransportSpec, len(s.Transports))
		for name, tr := range s.Transports {
			out.Transports[name] = tr.Clone()
		}
	}
	if s.Exposures != nil {
		out.Exposures = make(map[string]ExposureSpec, len(s.Exposures))
		for name, exp := range s.Exposures {
			out.Exposures[name] = exp
		}
	}
	if s.Capabilities != nil {
		out.Capabilities = make(map[string]CapabilitySpec, len(s.Capabilities))
		for name, capSpec := range s.Capabilities {
			out.Capabilities[name] = capSpec.Clone()
		}
	}
	return out
}
