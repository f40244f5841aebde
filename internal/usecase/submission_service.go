package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/ttleague/livesync/internal/domain/livematch"
	"github.com/ttleague/livesync/internal/domain/scoresheet"
	"github.com/ttleague/livesync/internal/platform/logging"
)

// SubmissionLocker serializes the window between "user pressed submit" and
// "report row committed" for one match id. Atomicity comes from the backing
// store's insert-if-absent, so it holds across parallel processes too.
type SubmissionLocker interface {
	Acquire(ctx context.Context, matchID string) (bool, error)
	Release(ctx context.Context, matchID string) error
}

// ReportWriter commits a finished match report to the system of record.
type ReportWriter interface {
	SaveReport(ctx context.Context, match livematch.Match) error
}

// FinalizeNotifier pings an external consumer after a report was committed.
type FinalizeNotifier interface {
	MatchFinalized(ctx context.Context, matchID, status string) error
}

type SubmissionService struct {
	live     *LiveMatchService
	locks    SubmissionLocker
	reports  ReportWriter
	notifier FinalizeNotifier
	logger   *logging.Logger
}

func NewSubmissionService(
	live *LiveMatchService,
	locks SubmissionLocker,
	reports ReportWriter,
	logger *logging.Logger,
) *SubmissionService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SubmissionService{
		live:    live,
		locks:   locks,
		reports: reports,
		logger:  logger,
	}
}

func (s *SubmissionService) SetNotifier(notifier FinalizeNotifier) {
	s.notifier = notifier
}

// Submit moves one live match into the system of record. The lock is held
// only across the report write; the live store is touched again only for the
// final in-place overwrite, never while the external write is in flight.
func (s *SubmissionService) Submit(ctx context.Context, matchID, finalStatus string) error {
	ctx, span := startUsecaseSpan(ctx, "SubmissionService.Submit")
	defer span.End()

	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	switch finalStatus {
	case scoresheet.StatusSubmitted, scoresheet.StatusFinal, scoresheet.StatusCancelled:
	default:
		return fmt.Errorf("%w: %q is not a terminal status", ErrInvalidInput, finalStatus)
	}

	match, ok := s.live.Get(matchID)
	if !ok {
		return fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}

	acquired, err := s.locks.Acquire(ctx, matchID)
	if err != nil {
		return fmt.Errorf("%w: acquire submission lock: %v", ErrDependencyUnavailable, err)
	}
	if !acquired {
		return fmt.Errorf("%w: match=%s", ErrSubmissionInProgress, matchID)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), matchID); err != nil {
			s.logger.WarnContext(ctx, "release submission lock", "match_id", matchID, "error", err)
		}
	}()

	match.State.Status = finalStatus
	if err := s.reports.SaveReport(ctx, match); err != nil {
		return fmt.Errorf("save match report: %w", err)
	}

	if err := s.live.Finalize(ctx, matchID, finalStatus, match.State); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.MatchFinalized(ctx, matchID, finalStatus); err != nil {
			s.logger.WarnContext(ctx, "finalize notification failed", "match_id", matchID, "error", err)
		}
	}

	return nil
}
