package stream

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/ttleague/livesync/internal/domain/livematch"
	"github.com/ttleague/livesync/internal/platform/logging"
)

// MatchSource is the read side of the live match store.
type MatchSource interface {
	Get(matchID string) (livematch.Match, bool)
	SnapshotList() ([]livematch.Entry, uint64)
}

type SchedulerConfig struct {
	Interval          time.Duration
	HeartbeatInterval time.Duration
	FanoutWorkers     int
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:          2 * time.Second,
		HeartbeatInterval: 25 * time.Second,
		FanoutWorkers:     32,
	}
}

// Scheduler fans the match list and subscribed match detail out to every
// registered connection on a fixed period. Wake triggers one out-of-band
// pass, used when a brand-new match is created so its first state is not
// delayed by a full tick.
type Scheduler struct {
	cfg    SchedulerConfig
	source MatchSource
	hub    *Hub
	pool   *ants.Pool
	kick   chan struct{}
	logger *logging.Logger
}

func NewScheduler(cfg SchedulerConfig, source MatchSource, hub *Hub, logger *logging.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSchedulerConfig().Interval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultSchedulerConfig().HeartbeatInterval
	}
	if cfg.FanoutWorkers < 1 {
		cfg.FanoutWorkers = DefaultSchedulerConfig().FanoutWorkers
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	pool, err := ants.NewPool(cfg.FanoutWorkers, ants.WithPanicHandler(func(rec any) {
		logger.Error("broadcast worker panicked", "panic", rec)
	}))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cfg:    cfg,
		source: source,
		hub:    hub,
		pool:   pool,
		kick:   make(chan struct{}, 1),
		logger: logger,
	}, nil
}

// Wake requests an immediate broadcast pass. Coalesces when one is already
// pending.
func (s *Scheduler) Wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	defer s.pool.Release()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Broadcast()
		case <-s.kick:
			s.Broadcast()
		}
	}
}

// Broadcast runs one fan-out pass. A connection that is waiting for its
// transport buffer to drain is skipped entirely, heartbeats included. A
// delivery failure on one connection never affects another.
func (s *Scheduler) Broadcast() {
	entries, listVersion := s.source.SnapshotList()
	conns := s.hub.Snapshot()

	var wg sync.WaitGroup
	for _, c := range conns {
		if c.Closed() || c.WaitingForDrain() {
			continue
		}

		conn := c
		wg.Add(1)
		job := func() {
			defer wg.Done()
			s.deliver(conn, entries, listVersion)
		}
		if err := s.pool.Submit(job); err != nil {
			job()
		}
	}
	wg.Wait()
}

func (s *Scheduler) deliver(c *Conn, entries []livematch.Entry, listVersion uint64) {
	if err := c.PushList(entries, listVersion); err != nil {
		s.logger.Warn("push match list", "conn_id", c.ID(), "error", err)
	}

	if matchID := c.MatchID(); matchID != "" {
		if match, ok := s.source.Get(matchID); ok {
			if err := c.PushMatch(match); err != nil {
				s.logger.Warn("push match state", "conn_id", c.ID(), "match_id", matchID, "error", err)
			}
		}
	}

	if c.ShouldHeartbeat(s.cfg.HeartbeatInterval) {
		c.Heartbeat()
	}
}
