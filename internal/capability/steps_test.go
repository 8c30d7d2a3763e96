package capability

import (
	"context"
	"testing"

	"cheshire/internal/core"
	"cheshire/internal/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredFieldsPre(t *testing.T) {
	step, err := newRequiredFieldsPre(plugin.StepConfig{
		Name:   "check",
		Params: map[string]interface{}{"fields": []interface{}{"x", "y"}},
	})
	require.NoError(t, err)

	ctx := core.NewPipelineContext(core.SessionContext{})

	_, err = step.Apply(ctx, genericInput(map[string]interface{}{"x": 1, "y": 2}))
	assert.NoError(t, err)

	_, err = step.Apply(ctx, genericInput(map[string]interface{}{"x": 1}))
	require.Error(t, err)
	assert.True(t, core.IsBadRequest(err))
	assert.Contains(t, err.Error(), "y")
}

func TestRequiredFieldsPreNeedsFields(t *testing.T) {
	_, err := newRequiredFieldsPre(plugin.StepConfig{Name: "check"})
	assert.Error(t, err)
}

func TestTemplatePreRendersWithSprigFuncs(t *testing.T) {
	step, err := newTemplatePre(plugin.StepConfig{
		Name:     "greet",
		Template: `hello {{ .who | upper }}`,
	})
	require.NoError(t, err)

	in := genericInput(map[string]interface{}{"who": "world"})
	out, err := step.Apply(core.NewPipelineContext(core.SessionContext{}), in)
	require.NoError(t, err)

	body := payloadData(out)
	assert.Equal(t, "hello WORLD", body["rendered"])
	assert.Equal(t, "world", body["who"])

	// The original input is untouched.
	_, ok := payloadData(in)["rendered"]
	assert.False(t, ok)
}

func TestTemplatePreTargetKey(t *testing.T) {
	step, err := newTemplatePre(plugin.StepConfig{
		Name:     "greet",
		Template: `{{ .who }}`,
		Params:   map[string]interface{}{"target": "greeting"},
	})
	require.NoError(t, err)

	out, err := step.Apply(core.NewPipelineContext(core.SessionContext{}),
		genericInput(map[string]interface{}{"who": "world"}))
	require.NoError(t, err)
	assert.Equal(t, "world", payloadData(out)["greeting"])
}

func TestTemplatePreRejectsBadTemplate(t *testing.T) {
	_, err := newTemplatePre(plugin.StepConfig{Name: "bad", Template: `{{ .who `})
	assert.Error(t, err)

	_, err = newTemplatePre(plugin.StepConfig{Name: "empty"})
	assert.Error(t, err)
}

type stubEngine struct {
	lastQuery plugin.LogicalQuery
	result    *plugin.EngineResult
	err       error
}

func (e *stubEngine) Name() string                    { return "stub" }
func (e *stubEngine) Open(ctx context.Context) error  { return nil }
func (e *stubEngine) Close(ctx context.Context) error { return nil }
func (e *stubEngine) Execute(ctx context.Context, q plugin.LogicalQuery) (*plugin.EngineResult, error) {
	e.lastQuery = q
	return e.result, e.err
}
func (e *stubEngine) Validate(q plugin.LogicalQuery) (bool, error) { return true, nil }
func (e *stubEngine) Explain(q plugin.LogicalQuery) (string, error) {
	return "stub", nil
}
func (e *stubEngine) SupportsStreaming() bool { return false }

func queryInput(eng plugin.Engine, body map[string]interface{}) *core.CanonicalInput {
	return core.NewCanonicalValue(core.ShapeGeneric, map[string]interface{}{
		core.MetaPayloadData:   body,
		core.MetaPayloadParams: map[string]interface{}{"limit": 10},
	}, map[string]interface{}{
		core.MetaCapability: "blog",
		core.MetaEngine:     eng,
	})
}

func TestQueryExecutor(t *testing.T) {
	eng := &stubEngine{result: &plugin.EngineResult{
		Rows: []map[string]interface{}{{"id": 1}},
		Meta: map[string]interface{}{"source": "db-a"},
	}}

	step, err := newQueryExecutor(plugin.StepConfig{Name: "q"})
	require.NoError(t, err)

	out, err := step.Execute(core.NewPipelineContext(core.SessionContext{}),
		queryInput(eng, map[string]interface{}{"statement": "SELECT 1", "source": "db-a"}))
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1", eng.lastQuery.Statement)
	assert.Equal(t, "db-a", eng.lastQuery.Source)
	assert.Equal(t, 10, eng.lastQuery.Params["limit"])

	assert.Equal(t, core.ShapeTabular, out.Shape())
	assert.Equal(t, 1, out.Data()["count"])
	assert.Equal(t, "db-a", out.Metadata()["source"])
	assert.Equal(t, "blog", out.Metadata()[core.MetaCapability])
}

func TestQueryExecutorConfiguredStatement(t *testing.T) {
	eng := &stubEngine{result: &plugin.EngineResult{}}

	step, err := newQueryExecutor(plugin.StepConfig{Name: "q", Template: "SELECT now()"})
	require.NoError(t, err)

	_, err = step.Execute(core.NewPipelineContext(core.SessionContext{}),
		queryInput(eng, map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, "SELECT now()", eng.lastQuery.Statement)
}

func TestQueryExecutorMissingStatement(t *testing.T) {
	step, err := newQueryExecutor(plugin.StepConfig{Name: "q"})
	require.NoError(t, err)

	_, err = step.Execute(core.NewPipelineContext(core.SessionContext{}),
		queryInput(&stubEngine{result: &plugin.EngineResult{}}, map[string]interface{}{}))
	require.Error(t, err)
	assert.True(t, core.IsBadRequest(err))
}

func TestQueryExecutorNoEngineBound(t *testing.T) {
	step, err := newQueryExecutor(plugin.StepConfig{Name: "q"})
	require.NoError(t, err)

	_, err = step.Execute(core.NewPipelineContext(core.SessionContext{}),
		genericInput(map[string]interface{}{"statement": "SELECT 1"}))
	require.Error(t, err)
	assert.True(t, core.IsInternal(err))
}

func TestTimingPost(t *testing.T) {
	step := &timingPost{name: "timing"}

	ctx := core.NewPipelineContext(core.SessionContext{})
	out := core.NewCanonicalValue(core.ShapeGeneric, nil, nil)

	// Without a start mark the step is a no-op.
	res, err := step.Apply(ctx, out)
	require.NoError(t, err)
	_, ok := res.Metadata()["debug.pipeline-duration-ms"]
	assert.False(t, ok)

	p := NewPipelineProcessor("blog", "ping", core.ShapeGeneric, core.ShapeGeneric,
		nil, &echoExecutor{name: "echo"}, []core.PostProcessor{step})
	final, err := p.Execute(ctx, genericInput(nil))
	require.NoError(t, err)
	_, ok = final.Metadata()["debug.pipeline-duration-ms"]
	assert.True(t, ok)
}

func TestRedactPost(t *testing.T) {
	step, err := newRedactPost(plugin.StepConfig{
		Name:   "redact",
		Params: map[string]interface{}{"fields": []interface{}{"password"}},
	})
	require.NoError(t, err)

	out := core.NewCanonicalValue(core.ShapeGeneric, map[string]interface{}{
		"user":     "alice",
		"password": "hunter2",
	}, nil)

	res, err := step.Apply(core.NewPipelineContext(core.SessionContext{}), out)
	require.NoError(t, err)
	assert.Equal(t, "[redacted]", res.Data()["password"])
	assert.Equal(t, "alice", res.Data()["user"])
	assert.Equal(t, "hunter2", out.Data()["password"], "the original output is untouched")
}

func TestRegisterBuiltinStepsTwiceFails(t *testing.T) {
	catalog := plugin.NewCatalog()
	require.NoError(t, RegisterBuiltinSteps(catalog))
	assert.Error(t, RegisterBuiltinSteps(catalog))
}
