package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ttleague/livesync/internal/domain/livematch"
	"github.com/ttleague/livesync/internal/domain/scoresheet"
)

func testMatch(id string, version uint64) livematch.Match {
	return livematch.Match{
		ID:      id,
		Version: version,
		State: scoresheet.State{
			ID:     id,
			Status: scoresheet.StatusRunning,
			Home:   scoresheet.Team{ID: "h", Name: "Home"},
			Away:   scoresheet.Team{ID: "a", Name: "Away"},
		},
	}
}

func drain(t *testing.T, c *Conn) []Envelope {
	t.Helper()

	var out []Envelope
	for {
		select {
		case frame, ok := <-c.Frames():
			if !ok {
				return out
			}
			env, err := DecodeFrame(frame)
			require.NoError(t, err)
			out = append(out, env)
			if len(c.Frames()) == 0 {
				c.NoteDrained()
				return out
			}
		default:
			return out
		}
	}
}

func TestPushMatchGatesOnVersion(t *testing.T) {
	c := NewConn("c1", "42", 4)

	require.NoError(t, c.PushMatch(testMatch("42", 3)))
	require.NoError(t, c.PushMatch(testMatch("42", 3)))
	require.NoError(t, c.PushMatch(testMatch("42", 2)))
	require.NoError(t, c.PushMatch(testMatch("42", 4)))

	frames := drain(t, c)
	require.Len(t, frames, 2)
	require.Equal(t, uint64(3), frames[0].Version)
	require.Equal(t, uint64(4), frames[1].Version)
}

func TestConcurrentPushesNeverRegressTheGate(t *testing.T) {
	const pushers = 16

	c := NewConn("c1", "42", pushers)

	// All versions race through the encode window at once. Whatever
	// interleaving happens, the stream must stay strictly increasing and the
	// gate must settle on the highest version.
	var wg sync.WaitGroup
	for v := uint64(1); v <= pushers; v++ {
		wg.Add(1)
		go func(version uint64) {
			defer wg.Done()
			_ = c.PushMatch(testMatch("42", version))
		}(v)
	}
	wg.Wait()

	frames := drain(t, c)
	require.NotEmpty(t, frames)
	last := uint64(0)
	for _, env := range frames {
		require.Greater(t, env.Version, last, "stale frame delivered after a newer one")
		last = env.Version
	}

	// Re-offering the highest delivered version must be a no-op.
	require.NoError(t, c.PushMatch(testMatch("42", last)))
	require.Empty(t, drain(t, c))
}

func TestPushMatchIgnoresOtherMatches(t *testing.T) {
	c := NewConn("c1", "42", 4)
	require.NoError(t, c.PushMatch(testMatch("43", 1)))
	require.Empty(t, drain(t, c))

	listOnly := NewConn("c2", "", 4)
	require.NoError(t, listOnly.PushMatch(testMatch("42", 1)))
	require.Empty(t, drain(t, listOnly))
}

func TestPushListGatesOnListVersion(t *testing.T) {
	c := NewConn("c1", "", 4)
	entries := []livematch.Entry{{MatchID: "42", HomeName: "Home", AwayName: "Away"}}

	require.NoError(t, c.PushList(entries, 1))
	require.NoError(t, c.PushList(entries, 1))
	require.NoError(t, c.PushList(entries, 2))

	frames := drain(t, c)
	require.Len(t, frames, 2)
	require.Equal(t, FrameMatchListUpdate, frames[0].Type)
}

func TestFullBufferFlipsDrainFlagAndSkipsWrites(t *testing.T) {
	c := NewConn("c1", "42", 1)

	require.NoError(t, c.PushMatch(testMatch("42", 1)))
	require.False(t, c.WaitingForDrain())

	// Second frame finds the buffer full: flag set, frame dropped, the
	// version gate stays at 1 so the state is re-offered later.
	require.NoError(t, c.PushMatch(testMatch("42", 2)))
	require.True(t, c.WaitingForDrain())

	// While waiting, everything is skipped, heartbeats included.
	c.Heartbeat()
	require.NoError(t, c.PushMatch(testMatch("42", 3)))
	require.Len(t, c.Frames(), 1)

	frames := drain(t, c)
	require.Len(t, frames, 1)
	require.Equal(t, uint64(1), frames[0].Version)
	require.False(t, c.WaitingForDrain())

	// After the drain the newest version goes through again.
	require.NoError(t, c.PushMatch(testMatch("42", 3)))
	frames = drain(t, c)
	require.Len(t, frames, 1)
	require.Equal(t, uint64(3), frames[0].Version)
}

func TestHeartbeatTimingAndIdleAccounting(t *testing.T) {
	c := NewConn("c1", "42", 4)

	now := time.Date(2026, 3, 7, 19, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.lastDataAt = now
	c.lastWriteAt = now

	require.False(t, c.ShouldHeartbeat(30*time.Second))

	now = now.Add(31 * time.Second)
	require.True(t, c.ShouldHeartbeat(30*time.Second))

	dataAt := c.LastDataAt()
	c.Heartbeat()
	require.False(t, c.ShouldHeartbeat(30*time.Second))
	require.Equal(t, dataAt, c.LastDataAt(), "heartbeats must not count as data")

	require.NoError(t, c.PushMatch(testMatch("42", 1)))
	require.Equal(t, now, c.LastDataAt())
}

func TestCloseStopsWrites(t *testing.T) {
	c := NewConn("c1", "42", 4)
	c.Close()
	c.Close()

	require.True(t, c.Closed())
	require.NoError(t, c.PushMatch(testMatch("42", 1)))
	c.Heartbeat()

	_, open := <-c.Frames()
	require.False(t, open)
}
