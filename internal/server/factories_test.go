package server

import (
	"testing"

	"cheshire/internal/health"
	"cheshire/internal/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterBuiltinServers(t *testing.T) {
	catalog := plugin.NewCatalog()
	require.NoError(t, RegisterBuiltinServers(catalog, health.NewMonitor(), health.NewMetrics()))

	for _, id := range []string{FactoryHTTPJSON, FactoryJSONRPC, FactoryStdio, FactoryStreaming} {
		factory, ok := catalog.ServerFactory(id)
		require.True(t, ok, "factory %s not registered", id)
		assert.Equal(t, id, factory.ID())

		srv, err := factory.Create(plugin.ServerBinding{Capability: "blog"})
		require.NoError(t, err)
		assert.Equal(t, id, srv.Type())
		assert.False(t, srv.IsRunning())
	}
}

func TestRegisterBuiltinServersTwice(t *testing.T) {
	catalog := plugin.NewCatalog()
	require.NoError(t, RegisterBuiltinServers(catalog, health.NewMonitor(), health.NewMetrics()))
	assert.Error(t, RegisterBuiltinServers(catalog, health.NewMonitor(), health.NewMetrics()))
}
