package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ttleague/livesync/internal/domain/livematch"
	"github.com/ttleague/livesync/internal/domain/scoresheet"
	"github.com/ttleague/livesync/internal/platform/logging"
)

// LiveMatchService owns the authoritative table of matches currently being
// reported. All mutation goes through its mutex, so a single match's state is
// never read-modified-written from two requests at once; concurrent edits
// reduce to merge order.
type LiveMatchService struct {
	mu sync.Mutex

	matches     map[string]*livematch.Match
	entries     []livematch.Entry
	listVersion uint64

	logger *logging.Logger
	now    func() time.Time
	wake   func()
}

func NewLiveMatchService(logger *logging.Logger) *LiveMatchService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LiveMatchService{
		matches: make(map[string]*livematch.Match),
		logger:  logger,
		now:     time.Now,
	}
}

// SetWake registers the out-of-band broadcast trigger fired when a brand-new
// match is created, so the first push is not delayed by a full scheduler tick.
func (s *LiveMatchService) SetWake(wake func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wake = wake
}

// Ingest applies one incremental edit. A missing match is created when the
// edit is still in the scheduled status; an existing match gets the edit
// three-way merged against ref, or against its own previous state when the
// sender supplied no reference. Every accepted edit bumps the version by
// exactly one.
func (s *LiveMatchService) Ingest(ctx context.Context, edit scoresheet.State, ref *scoresheet.State) (uint64, error) {
	ctx, span := startUsecaseSpan(ctx, "LiveMatchService.Ingest")
	defer span.End()

	edit.ID = strings.TrimSpace(edit.ID)
	if err := scoresheet.Validate(edit); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if ref != nil {
		if err := scoresheet.Validate(*ref); err != nil {
			return 0, fmt.Errorf("%w: reference snapshot: %v", ErrInvalidInput, err)
		}
		if ref.ID != edit.ID {
			return 0, fmt.Errorf("%w: reference snapshot is for a different match", ErrInvalidInput)
		}
	}

	var wake func()

	s.mu.Lock()
	match, exists := s.matches[edit.ID]
	if !exists {
		if edit.Status != scoresheet.StatusScheduled {
			s.mu.Unlock()
			return 0, fmt.Errorf("%w: match=%s is not live", ErrNotFound, edit.ID)
		}

		seeded := edit.Clone()
		scoresheet.EnforceLineup(&seeded)

		now := s.now().UTC()
		match = &livematch.Match{
			ID:        edit.ID,
			StartedAt: now,
			UpdatedAt: now,
			Version:   0,
			Score:     scoresheet.Score(seeded),
			State:     seeded,
		}
		s.matches[edit.ID] = match
		wake = s.wake
		s.mu.Unlock()

		s.logger.InfoContext(ctx, "live match created", "match_id", edit.ID)
		if wake != nil {
			wake()
		}
		return 0, nil
	}

	old := match.State
	if ref != nil {
		old = *ref
	}

	match.State = scoresheet.Integrate(match.State, old, edit)
	match.Score = scoresheet.Score(match.State)
	match.Version++
	match.UpdatedAt = s.now().UTC()
	version := match.Version
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "live match edit merged", "match_id", edit.ID, "version", version)
	return version, nil
}

// Finalize overwrites a match's state in place once the report has been
// committed to the system of record, so straggling subscribers see the
// terminal state. The match is left for the reaper instead of being deleted
// here, covering the race with a broadcast that has not flushed yet.
func (s *LiveMatchService) Finalize(ctx context.Context, matchID, finalStatus string, final scoresheet.State) error {
	ctx, span := startUsecaseSpan(ctx, "LiveMatchService.Finalize")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	match, exists := s.matches[matchID]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}

	final.ID = matchID
	final.Status = finalStatus
	match.State = final.Clone()
	match.Score = scoresheet.Score(match.State)
	match.Version++
	match.UpdatedAt = s.now().UTC()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "live match finalized", "match_id", matchID, "status", finalStatus)
	return nil
}

// Get returns a deep copy of one live match.
func (s *LiveMatchService) Get(matchID string) (livematch.Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, exists := s.matches[matchID]
	if !exists {
		return livematch.Match{}, false
	}
	return match.Clone(), true
}

// SnapshotList recomputes the match-list projection and bumps the list
// version only when the projection actually changed, so no-op edits do not
// wake list subscribers.
func (s *LiveMatchService) SnapshotList() ([]livematch.Entry, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]livematch.Entry, 0, len(s.matches))
	for _, match := range s.matches {
		next = append(next, livematch.EntryOf(*match))
	}
	sort.Slice(next, func(i, j int) bool {
		if !next[i].StartedAt.Equal(next[j].StartedAt) {
			return next[i].StartedAt.Before(next[j].StartedAt)
		}
		return next[i].MatchID < next[j].MatchID
	})

	if !livematch.EntriesEqual(s.entries, next) {
		s.entries = next
		s.listVersion++
	}

	out := make([]livematch.Entry, len(s.entries))
	copy(out, s.entries)
	return out, s.listVersion
}

// PruneStale removes matches that have been idle past maxIdle, running past
// maxAge, or whose status has left the live phase. Returns how many were
// dropped.
func (s *LiveMatchService) PruneStale(maxIdle, maxAge time.Duration) int {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, match := range s.matches {
		switch {
		case !scoresheet.IsLiveStatus(match.State.Status):
		case now.Sub(match.UpdatedAt) > maxIdle:
		case now.Sub(match.StartedAt) > maxAge:
		default:
			continue
		}
		delete(s.matches, id)
		removed++
	}

	if removed > 0 {
		s.logger.Info("stale live matches reaped", "count", removed)
	}
	return removed
}
