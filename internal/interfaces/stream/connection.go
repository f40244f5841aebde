package stream

import (
	"sync"
	"time"

	"github.com/ttleague/livesync/internal/domain/livematch"
)

// Conn wraps one long-lived server-to-client stream. A connection with no
// match id receives only list frames; a subscribed one also receives that
// match's detail frames. Frames are handed to the transport writer through a
// bounded channel; a full channel flips the drain flag and the scheduler
// skips the connection until the writer reports the backlog cleared.
type Conn struct {
	id      string
	matchID string
	frames  chan []byte

	mu              sync.Mutex
	closed          bool
	waitingForDrain bool
	lastDataAt      time.Time
	lastWriteAt     time.Time

	hasSentMatch     bool
	lastMatchVersion uint64
	hasSentList      bool
	lastListVersion  uint64

	now func() time.Time
}

func NewConn(id, matchID string, buffer int) *Conn {
	if buffer < 1 {
		buffer = 16
	}
	c := &Conn{
		id:      id,
		matchID: matchID,
		frames:  make(chan []byte, buffer),
		now:     time.Now,
	}
	created := c.now().UTC()
	c.lastDataAt = created
	c.lastWriteAt = created
	return c
}

func (c *Conn) ID() string      { return c.id }
func (c *Conn) MatchID() string { return c.matchID }

// Frames is consumed by the transport writer goroutine.
func (c *Conn) Frames() <-chan []byte { return c.frames }

// PushMatch offers one match state. It is a no-op unless the connection
// subscribes to this match and the version is strictly newer than what was
// already sent on the match channel.
func (c *Conn) PushMatch(m livematch.Match) error {
	if c.matchID == "" || c.matchID != m.ID {
		return nil
	}
	if c.skipMatch(m.Version) {
		return nil
	}

	frame, err := EncodeFrame(Envelope{Type: FrameMatchUpdate, Version: m.Version, Data: m.State})
	if err != nil {
		return err
	}

	// The gate is re-checked here: a concurrent pusher may have advanced it
	// while the frame was being encoded, and a stale frame must never land
	// behind a newer one.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.waitingForDrain {
		return nil
	}
	if c.hasSentMatch && m.Version <= c.lastMatchVersion {
		return nil
	}
	if !c.enqueue(frame) {
		return nil
	}
	c.hasSentMatch = true
	c.lastMatchVersion = m.Version
	c.lastDataAt = c.now().UTC()
	return nil
}

// skipMatch is the cheap pre-check that saves the encode cost; it is advisory
// only, the enqueue path holds the lock for the authoritative check.
func (c *Conn) skipMatch(version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.waitingForDrain {
		return true
	}
	return c.hasSentMatch && version <= c.lastMatchVersion
}

// PushList offers the match-list projection, gated the same way on the list
// version.
func (c *Conn) PushList(entries []livematch.Entry, version uint64) error {
	if c.skipList(version) {
		return nil
	}

	frame, err := EncodeFrame(Envelope{Type: FrameMatchListUpdate, Version: version, Data: entries})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.waitingForDrain {
		return nil
	}
	if c.hasSentList && version <= c.lastListVersion {
		return nil
	}
	if !c.enqueue(frame) {
		return nil
	}
	c.hasSentList = true
	c.lastListVersion = version
	c.lastDataAt = c.now().UTC()
	return nil
}

func (c *Conn) skipList(version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.waitingForDrain {
		return true
	}
	return c.hasSentList && version <= c.lastListVersion
}

// Heartbeat writes the keep-alive frame. It does not count as data for the
// reaper's idle accounting.
func (c *Conn) Heartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.waitingForDrain {
		return
	}
	c.enqueue(heartbeatFrame)
}

// ShouldHeartbeat reports whether nothing at all has been written for longer
// than interval.
func (c *Conn) ShouldHeartbeat(interval time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.now().UTC().Sub(c.lastWriteAt) >= interval
}

func (c *Conn) WaitingForDrain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitingForDrain
}

// NoteDrained is called by the transport writer once the frame backlog is
// empty again.
func (c *Conn) NoteDrained() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitingForDrain = false
}

// LastDataAt is the last time a real (non-heartbeat) frame was accepted.
func (c *Conn) LastDataAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDataAt
}

// Close stops all future writes and releases the transport writer.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.frames)
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// enqueue must be called with the mutex held. A full channel marks the
// connection as waiting for drain and drops the frame; the version gates stay
// unmoved so the frame is re-offered after the drain clears.
func (c *Conn) enqueue(frame []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.frames <- frame:
		c.lastWriteAt = c.now().UTC()
		return true
	default:
		c.waitingForDrain = true
		return false
	}
}
