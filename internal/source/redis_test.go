package source

import (
	"context"
	"testing"

	"cheshire/internal/config"
	"cheshire/internal/core"
	"cheshire/internal/plugin"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisSourceFixture(t *testing.T) (plugin.Source, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	factory := RedisFactory{}
	cfg, err := factory.Adapt("cache", config.SourceSpec{
		Factory: "redis",
		Connection: map[string]interface{}{
			"addr": mr.Addr(),
		},
	})
	require.NoError(t, err)
	require.NoError(t, factory.Validate(cfg))

	src, err := factory.Create(cfg)
	require.NoError(t, err)
	require.NoError(t, src.Open(context.Background()))
	t.Cleanup(func() { _ = src.Close(context.Background()) })

	return src, mr
}

func TestRedisGetSet(t *testing.T) {
	src, _ := redisSourceFixture(t)
	ctx := context.Background()

	_, err := src.Execute(ctx, plugin.Query{
		Statement: "SET greeting",
		Params:    map[string]interface{}{"value": "hello"},
	})
	require.NoError(t, err)

	res, err := src.Execute(ctx, plugin.Query{Statement: "GET greeting"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "hello", res.Rows[0]["value"])
}

func TestRedisGetMissingKey(t *testing.T) {
	src, _ := redisSourceFixture(t)

	res, err := src.Execute(context.Background(), plugin.Query{Statement: "GET nothing"})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestRedisKeys(t *testing.T) {
	src, mr := redisSourceFixture(t)
	mr.Set("a:1", "x")
	mr.Set("a:2", "y")
	mr.Set("b:1", "z")

	res, err := src.Execute(context.Background(), plugin.Query{Statement: "KEYS a:*"})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
}

func TestRedisBadStatement(t *testing.T) {
	src, _ := redisSourceFixture(t)

	_, err := src.Execute(context.Background(), plugin.Query{Statement: "FLUSHALL"})
	assert.True(t, core.IsBadRequest(err))

	_, err = src.Execute(context.Background(), plugin.Query{Statement: "INCR counter"})
	assert.True(t, core.IsBadRequest(err))
}
