// Package results persists finalized match reports to the system of record.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/ttleague/livesync/internal/domain/livematch"
)

type reportTableModel struct {
	MatchID     string `db:"match_id"`
	Status      string `db:"status"`
	ScoreHome   int    `db:"score_home"`
	ScoreAway   int    `db:"score_away"`
	StartedAt   int64  `db:"started_at"`
	SubmittedAt int64  `db:"submitted_at"`
	Report      string `db:"report"`
}

// PostgresStore writes one row per finished match. Re-submitting the same
// match overwrites the previous row.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveReport(ctx context.Context, match livematch.Match) error {
	report, err := sonic.Marshal(match.State)
	if err != nil {
		return fmt.Errorf("marshal match report: %w", err)
	}

	row := reportTableModel{
		MatchID:     match.ID,
		Status:      match.State.Status,
		ScoreHome:   match.Score[0],
		ScoreAway:   match.Score[1],
		StartedAt:   match.StartedAt.Unix(),
		SubmittedAt: match.UpdatedAt.Unix(),
		Report:      string(report),
	}

	const query = `
		INSERT INTO match_reports (match_id, status, score_home, score_away, started_at, submitted_at, report)
		VALUES (:match_id, :status, :score_home, :score_away, :started_at, :submitted_at, :report)
		ON CONFLICT (match_id) DO UPDATE SET
			status       = EXCLUDED.status,
			score_home   = EXCLUDED.score_home,
			score_away   = EXCLUDED.score_away,
			submitted_at = EXCLUDED.submitted_at,
			report       = EXCLUDED.report`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("save match report: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, matchID string) (livematch.Match, bool, error) {
	var row reportTableModel
	err := s.db.GetContext(ctx, &row,
		`SELECT match_id, status, score_home, score_away, started_at, submitted_at, report
		 FROM match_reports WHERE match_id = $1`, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return livematch.Match{}, false, nil
		}
		return livematch.Match{}, false, fmt.Errorf("get match report: %w", err)
	}

	match := livematch.Match{
		ID:        row.MatchID,
		Score:     [2]int{row.ScoreHome, row.ScoreAway},
		StartedAt: time.Unix(row.StartedAt, 0).UTC(),
		UpdatedAt: time.Unix(row.SubmittedAt, 0).UTC(),
	}
	if err := sonic.Unmarshal([]byte(row.Report), &match.State); err != nil {
		return livematch.Match{}, false, fmt.Errorf("unmarshal match report: %w", err)
	}
	return match, true, nil
}
