package source

import (
	"context"
	"testing"

	"cheshire/internal/config"
	"cheshire/internal/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func managerFixture(t *testing.T, sources map[string]config.SourceSpec) *Manager {
	t.Helper()

	catalog := plugin.NewCatalog()
	require.NoError(t, catalog.RegisterSourceFactory(MemoryFactory{}))

	spec := &config.Spec{Sources: sources}
	return NewManager(catalog, config.NewManager(spec))
}

func TestManagerInitializeOpensAndRegisters(t *testing.T) {
	mgr := managerFixture(t, map[string]config.SourceSpec{
		"db-b": {Factory: "memory"},
		"db-a": {Factory: "memory"},
	})

	require.NoError(t, mgr.Initialize(context.Background()))

	assert.Equal(t, []string{"db-a", "db-b"}, mgr.Names(), "sources initialize in sorted name order")

	src, err := mgr.Get("db-a")
	require.NoError(t, err)
	assert.True(t, src.IsOpen())
}

func TestManagerUnknownFactory(t *testing.T) {
	mgr := managerFixture(t, map[string]config.SourceSpec{
		"db-a": {Factory: "warp-drive"},
	})

	err := mgr.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warp-drive")
}

func TestManagerShutdownClosesSources(t *testing.T) {
	mgr := managerFixture(t, map[string]config.SourceSpec{
		"db-a": {Factory: "memory"},
	})
	require.NoError(t, mgr.Initialize(context.Background()))

	src, err := mgr.Get("db-a")
	require.NoError(t, err)

	require.NoError(t, mgr.Shutdown(context.Background()))

	assert.False(t, src.IsOpen())
	_, err = mgr.Get("db-a")
	assert.Error(t, err, "registry is cleared after shutdown")
}

func TestManagerResolveImplementsSourceResolver(t *testing.T) {
	mgr := managerFixture(t, map[string]config.SourceSpec{
		"db-a": {Factory: "memory"},
	})
	require.NoError(t, mgr.Initialize(context.Background()))

	var resolver plugin.SourceResolver = mgr
	src, err := resolver.Resolve("db-a")
	require.NoError(t, err)
	assert.Equal(t, "db-a", src.Name())
}
