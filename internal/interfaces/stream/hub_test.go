package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ttleague/livesync/internal/platform/logging"
)

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(logging.NewNop())

	c := NewConn("c1", "42", 4)
	hub.Register(c)
	require.Equal(t, 1, hub.Len())

	hub.Unregister("c1")
	require.Equal(t, 0, hub.Len())
	require.True(t, c.Closed())

	// Unregistering twice is fine; teardown and the reaper can race.
	hub.Unregister("c1")
}

func TestHubPruneIdleDropsQuietConnections(t *testing.T) {
	hub := NewHub(logging.NewNop())

	start := time.Date(2026, 3, 7, 19, 0, 0, 0, time.UTC)
	hub.now = func() time.Time { return start }

	idle := NewConn("idle", "", 4)
	idle.now = hub.now
	idle.lastDataAt = start

	fresh := NewConn("fresh", "", 4)
	fresh.now = hub.now
	fresh.lastDataAt = start

	hub.Register(idle)
	hub.Register(fresh)

	// Nothing is stale yet.
	require.Equal(t, 0, hub.PruneIdle(10*time.Minute))

	// The fresh connection keeps receiving data while the clock moves past
	// the idle cutoff.
	hub.now = func() time.Time { return start.Add(11 * time.Minute) }
	fresh.now = hub.now
	require.NoError(t, fresh.PushList(nil, 1))

	removed := hub.PruneIdle(10 * time.Minute)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, hub.Len())
	require.True(t, idle.Closed())
	require.False(t, fresh.Closed())
}
