package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[int]("thing", nil)

	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", 2))

	v, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.True(t, r.Contains("b"))
	assert.False(t, r.Contains("c"))
	assert.Equal(t, 2, r.Size())
}

func TestRegisterRejectsDuplicatesAndBlank(t *testing.T) {
	r := New[int]("thing", nil)

	require.NoError(t, r.Register("a", 1))
	assert.Error(t, r.Register("a", 2))
	assert.Error(t, r.Register("", 3))
}

func TestGetNotRegistered(t *testing.T) {
	r := New[int]("thing", nil)

	_, err := r.Get("ghost")
	var nre *NotRegisteredError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, "thing", nre.Kind)
	assert.Equal(t, "ghost", nre.Name)
}

func TestAllReturnsSnapshot(t *testing.T) {
	r := New[int]("thing", nil)
	require.NoError(t, r.Register("a", 1))

	snap := r.All()
	snap["b"] = 2

	assert.False(t, r.Contains("b"), "mutating the snapshot must not affect the registry")
}

func TestShutdownReverseOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	r := New[int]("thing", func(ctx context.Context, name string, item int) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
		if name == "b" {
			return errors.New("b is broken")
		}
		return nil
	})

	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", 2))
	require.NoError(t, r.Register("c", 3))

	r.Shutdown(context.Background())

	assert.Equal(t, []string{"c", "b", "a"}, order, "shutdown must reverse registration order and continue past failures")
	assert.Equal(t, 0, r.Size(), "registry must be cleared after shutdown")
}

func TestShutdownCallsEachExactlyOnce(t *testing.T) {
	counts := make(map[string]int)
	var mu sync.Mutex

	r := New[int]("thing", func(ctx context.Context, name string, item int) error {
		mu.Lock()
		defer mu.Unlock()
		counts[name]++
		return nil
	})

	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", 2))

	r.Shutdown(context.Background())
	r.Shutdown(context.Background()) // second call is a no-op

	assert.Equal(t, map[string]int{"a": 1, "b": 1}, counts)
}

func TestConcurrentAccess(t *testing.T) {
	r := New[int]("thing", nil)
	require.NoError(t, r.Register("a", 1))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Get("a")
			_ = r.All()
			_ = r.Names()
		}()
	}
	wg.Wait()
}
