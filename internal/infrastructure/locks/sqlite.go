// Package locks implements the durable submission lock. It is an embedded
// key-value table with insert-if-absent semantics, so exclusion holds even
// across process restarts and parallel processes sharing the file.
package locks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS submission_locks (
	match_id    TEXT PRIMARY KEY,
	acquired_at INTEGER NOT NULL
);`

// Store hands out at most one lock per match id. Locks older than the TTL
// are treated as abandoned and cleared before the next acquisition attempt,
// which recovers from a crash that left one dangling.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func Open(path string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, (5 * time.Second).Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open lock store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create lock table: %w", err)
	}

	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// Acquire reports whether the caller now holds the lock. Atomicity comes
// from the primary-key conflict clause, not from in-process state.
func (s *Store) Acquire(ctx context.Context, matchID string) (bool, error) {
	now := s.now().UTC().Unix()
	cutoff := now - int64(s.ttl.Seconds())

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM submission_locks WHERE match_id = ? AND acquired_at < ?`,
		matchID, cutoff,
	); err != nil {
		return false, fmt.Errorf("clear abandoned lock: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submission_locks (match_id, acquired_at) VALUES (?, ?)
		 ON CONFLICT(match_id) DO NOTHING`,
		matchID, now,
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock result: %w", err)
	}
	return inserted == 1, nil
}

func (s *Store) Release(ctx context.Context, matchID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM submission_locks WHERE match_id = ?`, matchID,
	); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
