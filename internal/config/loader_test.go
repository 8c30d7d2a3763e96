package config

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainDoc = `
metadata:
  name: test-deployment
sources:
  db-a:
    factory: memory
    type: relational
engines:
  eng-1:
    factory: direct
    sources: [db-a]
transports:
  http-main:
    binding: http-json
    host: localhost
    port: 8080
exposures:
  public:
    binding: http-json
    version: v1
capabilities:
  blog:
    description: blog actions
    domain: content
    exposure: public
    transport: http-main
    sources: [db-a]
    engine: eng-1
    actions-specification-file: blog/actions.yaml
    pipelines-definition-file: blog/pipelines.yaml
`

const actionsDoc = `
actions:
  ping:
    description: echo back the payload
`

const pipelinesDoc = `
pipelines:
  ping:
    input: generic
    output: generic
    steps:
      exec:
        name: echo
        implementation: echo
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"cheshire.yaml":       {Data: []byte(mainDoc)},
		"blog/actions.yaml":   {Data: []byte(actionsDoc)},
		"blog/pipelines.yaml": {Data: []byte(pipelinesDoc)},
	}
}

func TestLoadHappyPath(t *testing.T) {
	spec, err := Load(NewFSSource(testFS(), "test resources"))
	require.NoError(t, err)

	assert.Equal(t, "test-deployment", spec.Metadata.Name)
	assert.Contains(t, spec.Sources, "db-a")
	assert.Contains(t, spec.Engines, "eng-1")

	blog := spec.Capabilities["blog"]
	require.Contains(t, blog.ResolvedActions, "ping")
	require.Contains(t, blog.ResolvedPipelines, "ping")
	assert.Equal(t, "echo", blog.ResolvedPipelines["ping"].Steps.Exec.Implementation)
}

func TestLoadIsDeterministic(t *testing.T) {
	src := NewFSSource(testFS(), "test resources")

	a, err := Load(src)
	require.NoError(t, err)
	b, err := Load(src)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestLoadAccumulatesValidationErrors(t *testing.T) {
	fsys := testFS()
	fsys["cheshire.yaml"] = &fstest.MapFile{Data: []byte(`
sources:
  db-a:
    factory: memory
engines:
  eng-1:
    factory: direct
    sources: [missing-source]
capabilities:
  blog:
    exposure: no-such-exposure
    transport: ""
    sources: [also-missing]
    engine: ghost-engine
    actions-specification-file: blog/actions.yaml
    pipelines-definition-file: blog/pipelines.yaml
`)}
	fsys["blog/pipelines.yaml"] = &fstest.MapFile{Data: []byte(`
pipelines:
  ping:
    input: generic
    output: generic
    steps:
      pre:
        - name: broken
          implementation: ""
`)}

	_, err := Load(NewFSSource(fsys, "test resources"))
	require.Error(t, err)

	var coll *ErrorCollection
	require.True(t, errors.As(err, &coll))

	// One pass surfaces every problem: engine source ref, missing exposure,
	// empty transport, capability source ref, engine ref, missing executor,
	// and the blank pre-step implementation.
	assert.GreaterOrEqual(t, len(coll.Errors), 6, coll.Error())
}

func TestLoadMissingReferencedFile(t *testing.T) {
	fsys := testFS()
	delete(fsys, "blog/actions.yaml")

	_, err := Load(NewFSSource(fsys, "test resources"))
	require.Error(t, err)

	var coll *ErrorCollection
	require.True(t, errors.As(err, &coll))
}

func TestLoadEnvOverride(t *testing.T) {
	fsys := testFS()
	fsys["alternate.yaml"] = fsys["cheshire.yaml"]
	delete(fsys, "cheshire.yaml")

	t.Setenv(EnvConfigFile, "alternate.yaml")

	spec, err := Load(NewFSSource(fsys, "test resources"))
	require.NoError(t, err)
	assert.Equal(t, "test-deployment", spec.Metadata.Name)
}

func TestSanitizeRelPathRejectsEscapes(t *testing.T) {
	for _, bad := range []string{"../outside.yaml", "..", "a/../../b.yaml", "/etc/passwd"} {
		_, err := sanitizeRelPath(bad)
		assert.Error(t, err, "path %q must be rejected", bad)
	}

	for _, good := range []string{"cheshire.yaml", "blog/actions.yaml", "a/./b.yaml"} {
		_, err := sanitizeRelPath(good)
		assert.NoError(t, err, "path %q must be accepted", good)
	}
}

func TestManagerDeepCopy(t *testing.T) {
	spec, err := Load(NewFSSource(testFS(), "test resources"))
	require.NoError(t, err)

	mgr := NewManager(spec)

	first := mgr.Get()
	first.Sources["db-a"] = SourceSpec{Factory: "tampered"}
	first.Capabilities["blog"].ResolvedPipelines["ping"].Steps.Exec.Implementation = "tampered"

	second := mgr.Get()
	assert.Equal(t, "memory", second.Sources["db-a"].Factory)
	assert.Equal(t, "echo", second.Capabilities["blog"].ResolvedPipelines["ping"].Steps.Exec.Implementation)
}
