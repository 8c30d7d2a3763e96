package capability

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"cheshire/internal/core"
	"cheshire/internal/plugin"

	"github.com/Masterminds/sprig/v3"
)

// RegisterBuiltinSteps publishes the in-tree pipeline step implementations
// on the catalog. Call once at process start, before the capability manager
// initializes.
func RegisterBuiltinSteps(c *plugin.Catalog) error {
	if err := c.RegisterPreStep("validate-required", plugin.StepEntry[core.PreProcessor]{
		Configured: newRequiredFieldsPre,
	}); err != nil {
		return err
	}
	if err := c.RegisterPreStep("template", plugin.StepEntry[core.PreProcessor]{
		Configured: newTemplatePre,
	}); err != nil {
		return err
	}
	if err := c.RegisterExecutor("echo", plugin.StepEntry[core.Executor]{
		Configured: func(cfg plugin.StepConfig) (core.Executor, error) {
			return &echoExecutor{name: cfg.Name}, nil
		},
		Default: func() core.Executor { return &echoExecutor{name: "echo"} },
	}); err != nil {
		return err
	}
	if err := c.RegisterExecutor("query", plugin.StepEntry[core.Executor]{
		Configured: newQueryExecutor,
	}); err != nil {
		return err
	}
	if err := c.RegisterPostStep("timing", plugin.StepEntry[core.PostProcessor]{
		Configured: func(cfg plugin.StepConfig) (core.PostProcessor, error) {
			return &timingPost{name: cfg.Name}, nil
		},
		Default: func() core.PostProcessor { return &timingPost{name: "timing"} },
	}); err != nil {
		return err
	}
	return c.RegisterPostStep("redact", plugin.StepEntry[core.PostProcessor]{
		Configured: newRedactPost,
	})
}

// payloadData returns the request body map carried inside a canonical input.
func payloadData(in *core.CanonicalInput) map[string]interface{} {
	raw, ok := in.Get(core.MetaPayloadData)
	if !ok {
		return map[string]interface{}{}
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return m
}

// payloadParams returns the request parameter map carried inside a canonical
// input.
func payloadParams(in *core.CanonicalInput) map[string]interface{} {
	raw, ok := in.Get(core.MetaPayloadParams)
	if !ok {
		return map[string]interface{}{}
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return m
}

func stringList(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// requiredFieldsPre fails the request when the payload body is missing any
// of the configured fields.
type requiredFieldsPre struct {
	name   string
	fields []string
}

func newRequiredFieldsPre(cfg plugin.StepConfig) (core.PreProcessor, error) {
	fields := stringList(cfg.Params["fields"])
	if len(fields) == 0 {
		return nil, fmt.Errorf("validate-required needs a non-empty fields list in params")
	}
	return &requiredFieldsPre{name: cfg.Name, fields: fields}, nil
}

func (s *requiredFieldsPre) Name() string { return s.name }

func (s *requiredFieldsPre) Apply(ctx *core.PipelineContext, in *core.CanonicalInput) (*core.CanonicalInput, error) {
	body := payloadData(in)
	for _, field := range s.fields {
		if _, ok := body[field]; !ok {
			return nil, core.NewMissingFieldError(field)
		}
	}
	return in, nil
}

// templatePre renders a configured template against the payload body and
// stores the result back into the body under a target key.
type templatePre struct {
	name   string
	target string
	tpl    *template.Template
}

func newTemplatePre(cfg plugin.StepConfig) (core.PreProcessor, error) {
	if cfg.Template == "" {
		return nil, fmt.Errorf("template step needs a non-empty template")
	}
	tpl, err := template.New(cfg.Name).Funcs(sprig.TxtFuncMap()).Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	target := "rendered"
	if t, ok := cfg.Params["target"].(string); ok && t != "" {
		target = t
	}
	return &templatePre{name: cfg.Name, target: target, tpl: tpl}, nil
}

func (s *templatePre) Name() string { return s.name }

func (s *templatePre) Apply(ctx *core.PipelineContext, in *core.CanonicalInput) (*core.CanonicalInput, error) {
	var buf bytes.Buffer
	if err := s.tpl.Execute(&buf, payloadData(in)); err != nil {
		return nil, fmt.Errorf("rendering template %s: %w", s.name, err)
	}

	body := payloadData(in)
	next := make(map[string]interface{}, len(body)+1)
	for k, v := range body {
		next[k] = v
	}
	next[s.target] = buf.String()

	out := in.Copy()
	out.Set(core.MetaPayloadData, next)
	return out, nil
}

// echoExecutor promotes the payload body to the pipeline output unchanged.
type echoExecutor struct {
	name string
}

func (e *echoExecutor) Name() string { return e.name }

func (e *echoExecutor) Execute(ctx *core.PipelineContext, in *core.CanonicalInput) (*core.CanonicalOutput, error) {
	return core.NewCanonicalValue(in.Shape(), payloadData(in), in.Metadata()), nil
}

// queryExecutor runs the payload's statement on the engine the session bound
// into the input metadata.
type queryExecutor struct {
	name      string
	statement string
	source    string
}

func newQueryExecutor(cfg plugin.StepConfig) (core.Executor, error) {
	q := &queryExecutor{name: cfg.Name, statement: cfg.Template}
	if s, ok := cfg.Params["source"].(string); ok {
		q.source = s
	}
	return q, nil
}

func (q *queryExecutor) Name() string { return q.name }

func (q *queryExecutor) Execute(pctx *core.PipelineContext, in *core.CanonicalInput) (*core.CanonicalOutput, error) {
	raw, ok := in.MetadataValue(core.MetaEngine)
	if !ok {
		return nil, core.NewInternalError("no engine bound for query executor %s", q.name)
	}
	eng, ok := raw.(plugin.Engine)
	if !ok {
		return nil, core.NewInternalError("engine metadata has type %T", raw)
	}

	body := payloadData(in)
	statement := q.statement
	if s, ok := body["statement"].(string); ok && s != "" {
		statement = s
	}
	if statement == "" {
		return nil, core.NewBadRequestError("no statement in payload and none configured for step %s", q.name)
	}
	source := q.source
	if s, ok := body["source"].(string); ok && s != "" {
		source = s
	}

	ctx := context.Background()
	if !pctx.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, pctx.Deadline)
		defer cancel()
	}

	res, err := eng.Execute(ctx, plugin.LogicalQuery{
		Source:    source,
		Statement: statement,
		Params:    payloadParams(in),
	})
	if err != nil {
		return nil, err
	}

	meta := in.Metadata()
	for k, v := range res.Meta {
		meta[k] = v
	}
	return core.NewCanonicalValue(core.ShapeTabular, map[string]interface{}{
		"rows":  res.Rows,
		"count": len(res.Rows),
	}, meta), nil
}

// timingPost stamps the pipeline duration into the output metadata.
type timingPost struct {
	name string
}

func (s *timingPost) Name() string { return s.name }

func (s *timingPost) Apply(ctx *core.PipelineContext, out *core.CanonicalOutput) (*core.CanonicalOutput, error) {
	started, ok := ctx.Get(core.MetaPipelineAt)
	if !ok {
		return out, nil
	}
	startedAt, ok := started.(time.Time)
	if !ok {
		return out, nil
	}
	return out.WithMetadata(func(meta map[string]interface{}) {
		meta["debug.pipeline-duration-ms"] = time.Since(startedAt).Milliseconds()
	}), nil
}

// redactPost masks configured fields in the output body.
type redactPost struct {
	name   string
	fields []string
}

func newRedactPost(cfg plugin.StepConfig) (core.PostProcessor, error) {
	fields := stringList(cfg.Params["fields"])
	if len(fields) == 0 {
		return nil, fmt.Errorf("redact needs a non-empty fields list in params")
	}
	return &redactPost{name: cfg.Name, fields: fields}, nil
}

func (s *redactPost) Name() string { return s.name }

func (s *redactPost) Apply(ctx *core.PipelineContext, out *core.CanonicalOutput) (*core.CanonicalOutput, error) {
	next := out.Copy()
	for _, field := range s.fields {
		if _, ok := next.Get(field); ok {
			next.Set(field, "[redacted]")
		}
	}
	return next, nil
}
