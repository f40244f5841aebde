package stream

import (
	"sync"
	"time"

	"github.com/ttleague/livesync/internal/platform/logging"
)

// Hub is the registry of open stream connections.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	logger *logging.Logger

	now func() time.Time
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		conns:  make(map[string]*Conn),
		logger: logger,
		now:    time.Now,
	}
}

func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	h.mu.Unlock()
	h.logger.Debug("stream connection registered", "conn_id", c.ID(), "match_id", c.MatchID())
}

// Unregister removes and closes one connection. Safe to call twice; the
// transport teardown path and the reaper can race here.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if ok {
		c.Close()
		h.logger.Debug("stream connection removed", "conn_id", id)
	}
}

// Snapshot returns the current connections for one broadcast pass.
func (h *Hub) Snapshot() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// PruneIdle drops connections that have not been sent real data within
// maxIdle. Heartbeats do not count as data.
func (h *Hub) PruneIdle(maxIdle time.Duration) int {
	cutoff := h.now().UTC().Add(-maxIdle)

	h.mu.Lock()
	stale := make([]*Conn, 0)
	for id, c := range h.conns {
		if c.LastDataAt().Before(cutoff) {
			stale = append(stale, c)
			delete(h.conns, id)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		c.Close()
	}
	return len(stale)
}
