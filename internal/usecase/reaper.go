package usecase

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/ttleague/livesync/internal/platform/logging"
)

// MatchPruner removes live matches that are stale or no longer live.
type MatchPruner interface {
	PruneStale(maxIdle, maxAge time.Duration) int
}

// ConnPruner removes stream connections that received no real data recently.
type ConnPruner interface {
	PruneIdle(maxIdle time.Duration) int
}

type ReaperConfig struct {
	MatchInterval time.Duration
	ConnInterval  time.Duration
	MatchMaxIdle  time.Duration
	MatchMaxAge   time.Duration
	ConnMaxIdle   time.Duration
}

func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		MatchInterval: 5 * time.Minute,
		ConnInterval:  time.Minute,
		MatchMaxIdle:  time.Hour,
		MatchMaxAge:   12 * time.Hour,
		ConnMaxIdle:   10 * time.Minute,
	}
}

// Reaper drives two independent garbage-collection timers, one for matches
// and one for connections. A panicking tick is logged and the timer keeps
// running.
type Reaper struct {
	cfg     ReaperConfig
	matches MatchPruner
	conns   ConnPruner
	logger  *logging.Logger
}

func NewReaper(cfg ReaperConfig, matches MatchPruner, conns ConnPruner, logger *logging.Logger) *Reaper {
	if cfg.MatchInterval <= 0 {
		cfg.MatchInterval = DefaultReaperConfig().MatchInterval
	}
	if cfg.ConnInterval <= 0 {
		cfg.ConnInterval = DefaultReaperConfig().ConnInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reaper{cfg: cfg, matches: matches, conns: conns, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	var wg conc.WaitGroup
	wg.Go(func() { r.loop(ctx, r.cfg.MatchInterval, r.reapMatches) })
	wg.Go(func() { r.loop(ctx, r.cfg.ConnInterval, r.reapConns) })
	wg.Wait()
}

func (r *Reaper) loop(ctx context.Context, interval time.Duration, tick func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.safeTick(tick)
		}
	}
}

func (r *Reaper) safeTick(tick func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("reaper tick panicked", "panic", rec)
		}
	}()
	tick()
}

func (r *Reaper) reapMatches() {
	if r.matches == nil {
		return
	}
	if removed := r.matches.PruneStale(r.cfg.MatchMaxIdle, r.cfg.MatchMaxAge); removed > 0 {
		r.logger.Info("reaped matches", "count", removed)
	}
}

func (r *Reaper) reapConns() {
	if r.conns == nil {
		return
	}
	if removed := r.conns.PruneIdle(r.cfg.ConnMaxIdle); removed > 0 {
		r.logger.Info("reaped connections", "count", removed)
	}
}
