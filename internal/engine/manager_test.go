package engine

import (
	"context"
	"testing"

	"cheshire/internal/config"
	"cheshire/internal/plugin"
	"cheshire/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineFixture(t *testing.T, engines map[string]config.EngineSpec) (*Manager, *source.Manager) {
	t.Helper()

	catalog := plugin.NewCatalog()
	require.NoError(t, catalog.RegisterSourceFactory(source.MemoryFactory{}))
	require.NoError(t, catalog.RegisterEngineFactory(DirectFactory{}))
	require.NoError(t, catalog.RegisterEngineFactory(SQLFactory{}))

	spec := &config.Spec{
		Sources: map[string]config.SourceSpec{
			"db-a": {
				Factory: "memory",
				Extras: map[string]interface{}{
					"fixtures": map[string]interface{}{
						"posts": []interface{}{
							map[string]interface{}{"id": 1, "title": "hello"},
						},
					},
				},
			},
		},
		Engines: engines,
	}

	cfgMgr := config.NewManager(spec)
	srcMgr := source.NewManager(catalog, cfgMgr)
	require.NoError(t, srcMgr.Initialize(context.Background()))

	return NewManager(catalog, cfgMgr, srcMgr), srcMgr
}

func TestManagerInitializeAndExecute(t *testing.T) {
	mgr, _ := engineFixture(t, map[string]config.EngineSpec{
		"eng-1": {Factory: "direct", Sources: []string{"db-a"}},
	})

	require.NoError(t, mgr.Initialize(context.Background()))

	eng, err := mgr.Get("eng-1")
	require.NoError(t, err)

	res, err := eng.Execute(context.Background(), plugin.LogicalQuery{Statement: "posts"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "hello", res.Rows[0]["title"])
	assert.Equal(t, "eng-1", res.Meta["engine"])
}

func TestManagerUnknownFactory(t *testing.T) {
	mgr, _ := engineFixture(t, map[string]config.EngineSpec{
		"eng-1": {Factory: "quantum", Sources: []string{"db-a"}},
	})

	err := mgr.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantum")
}

func TestManagerMissingReferencedSource(t *testing.T) {
	mgr, _ := engineFixture(t, map[string]config.EngineSpec{
		"eng-1": {Factory: "direct", Sources: []string{"db-missing"}},
	})

	err := mgr.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db-missing")
}

func TestManagerShutdownClosesEngines(t *testing.T) {
	mgr, _ := engineFixture(t, map[string]config.EngineSpec{
		"eng-1": {Factory: "direct", Sources: []string{"db-a"}},
	})
	require.NoError(t, mgr.Initialize(context.Background()))

	eng, err := mgr.Get("eng-1")
	require.NoError(t, err)

	require.NoError(t, mgr.Shutdown(context.Background()))

	_, err = eng.Execute(context.Background(), plugin.LogicalQuery{Statement: "posts"})
	assert.Error(t, err, "closed engine must refuse queries")
}

func TestDirectEngineValidateAndExplain(t *testing.T) {
	mgr, _ := engineFixture(t, map[string]config.EngineSpec{
		"eng-1": {Factory: "direct", Sources: []string{"db-a"}},
	})
	require.NoError(t, mgr.Initialize(context.Background()))

	eng, err := mgr.Get("eng-1")
	require.NoError(t, err)

	ok, err := eng.Validate(plugin.LogicalQuery{Statement: "posts"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eng.Validate(plugin.LogicalQuery{Statement: ""})
	require.NoError(t, err)
	assert.False(t, ok)

	plan, err := eng.Explain(plugin.LogicalQuery{Statement: "posts"})
	require.NoError(t, err)
	assert.Contains(t, plan, "db-a")

	assert.False(t, eng.SupportsStreaming())
}

func TestSQLEngineReadOnlyGuard(t *testing.T) {
	mgr, _ := engineFixture(t, map[string]config.EngineSpec{
		"eng-sql": {Factory: "sql", Sources: []string{"db-a"}},
	})
	require.NoError(t, mgr.Initialize(context.Background()))

	eng, err := mgr.Get("eng-sql")
	require.NoError(t, err)

	_, err = eng.Execute(context.Background(), plugin.LogicalQuery{Statement: "DELETE FROM posts"})
	require.Error(t, err)

	ok, err := eng.Validate(plugin.LogicalQuery{Statement: "DROP TABLE posts"})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, eng.SupportsStreaming())
}
