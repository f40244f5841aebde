package results

import (
	"context"
	"sync"

	"github.com/ttleague/livesync/internal/domain/livematch"
)

// MemoryStore is the report sink used when no database is configured, for
// local development.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]livematch.Match
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]livematch.Match)}
}

func (s *MemoryStore) SaveReport(ctx context.Context, match livematch.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[match.ID] = match.Clone()
	return nil
}

func (s *MemoryStore) GetReport(ctx context.Context, matchID string) (livematch.Match, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, ok := s.reports[matchID]
	if !ok {
		return livematch.Match{}, false, nil
	}
	return match.Clone(), true, nil
}
