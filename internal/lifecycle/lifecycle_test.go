package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cheshire/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

type fakeComponent struct {
	name    string
	j       *journal
	initErr error
	stopErr error
	delay   time.Duration
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Initialize(ctx context.Context) error {
	f.j.add("start:" + f.name)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.initErr != nil {
		return f.initErr
	}
	f.j.add("done:" + f.name)
	return nil
}

func (f *fakeComponent) Shutdown(ctx context.Context) error {
	f.j.add("stop:" + f.name)
	return f.stopErr
}

func indexOf(entries []string, want string) int {
	for i, e := range entries {
		if e == want {
			return i
		}
	}
	return -1
}

func TestCoordinatorPhaseOrdering(t *testing.T) {
	j := &journal{}
	c := NewCoordinator()

	// Two sources in one phase, one engine in the next, one capability last.
	require.NoError(t, c.Register(PhaseSourceProviders, &fakeComponent{name: "db-a", j: j, delay: 20 * time.Millisecond}))
	require.NoError(t, c.Register(PhaseSourceProviders, &fakeComponent{name: "db-b", j: j}))
	require.NoError(t, c.Register(PhaseQueryEngines, &fakeComponent{name: "eng-1", j: j}))
	require.NoError(t, c.Register(PhaseCapabilities, &fakeComponent{name: "blog", j: j}))

	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, StateRunning, c.State())

	entries := j.all()
	// No component of a later phase starts before every component of the
	// earlier phase has completed.
	assert.Greater(t, indexOf(entries, "start:eng-1"), indexOf(entries, "done:db-a"))
	assert.Greater(t, indexOf(entries, "start:eng-1"), indexOf(entries, "done:db-b"))
	assert.Greater(t, indexOf(entries, "start:blog"), indexOf(entries, "done:eng-1"))
}

func TestCoordinatorFailFast(t *testing.T) {
	j := &journal{}
	c := NewCoordinator()

	boom := errors.New("connect refused")
	require.NoError(t, c.Register(PhaseSourceProviders, &fakeComponent{name: "db-a", j: j, initErr: boom}))
	require.NoError(t, c.Register(PhaseQueryEngines, &fakeComponent{name: "eng-1", j: j}))

	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "db-a")
	assert.Equal(t, StateFailed, c.State())

	// The engine phase never ran.
	assert.Equal(t, -1, indexOf(j.all(), "start:eng-1"))
}

func TestCoordinatorShutdownReverseOrder(t *testing.T) {
	j := &journal{}
	c := NewCoordinator()

	require.NoError(t, c.Register(PhaseSourceProviders, &fakeComponent{name: "db-a", j: j}))
	require.NoError(t, c.Register(PhaseQueryEngines, &fakeComponent{name: "eng-1", j: j}))
	require.NoError(t, c.Register(PhaseCapabilities, &fakeComponent{name: "blog", j: j}))

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, c.State())

	entries := j.all()
	assert.Less(t, indexOf(entries, "stop:blog"), indexOf(entries, "stop:eng-1"))
	assert.Less(t, indexOf(entries, "stop:eng-1"), indexOf(entries, "stop:db-a"))
}

func TestCoordinatorShutdownSwallowsFailures(t *testing.T) {
	j := &journal{}
	c := NewCoordinator()

	require.NoError(t, c.Register(PhaseSourceProviders, &fakeComponent{name: "db-a", j: j}))
	require.NoError(t, c.Register(PhaseQueryEngines, &fakeComponent{name: "eng-1", j: j, stopErr: errors.New("busy")}))

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, c.State())

	// db-a still shut down after eng-1 failed.
	assert.Contains(t, j.all(), "stop:db-a")
}

func TestCoordinatorInvalidTransitions(t *testing.T) {
	c := NewCoordinator()

	// Shutdown before initialize.
	err := c.Shutdown(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsLifecycle(err))
	assert.Equal(t, StateNew, c.State())

	require.NoError(t, c.Initialize(context.Background()))

	// Double initialize.
	err = c.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsLifecycle(err))
	assert.Equal(t, StateRunning, c.State())
}

func TestCoordinatorRegisterAfterStart(t *testing.T) {
	j := &journal{}
	c := NewCoordinator()
	require.NoError(t, c.Initialize(context.Background()))

	err := c.Register(PhaseSourceProviders, &fakeComponent{name: "late", j: j})
	require.Error(t, err)
	assert.True(t, core.IsLifecycle(err))
}

func TestCoordinatorShutdownFromFailed(t *testing.T) {
	j := &journal{}
	c := NewCoordinator()
	require.NoError(t, c.Register(PhaseSourceProviders, &fakeComponent{name: "db-a", j: j, initErr: errors.New("boom")}))

	require.Error(t, c.Initialize(context.Background()))
	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, c.State())
}
