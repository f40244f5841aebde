package livematch

import (
	"time"

	"github.com/ttleague/livesync/internal/domain/scoresheet"
)

// Match is the authoritative in-memory record of one match currently being
// reported. It is owned exclusively by the live store; everything handed out
// is a copy.
type Match struct {
	ID        string           `json:"id"`
	StartedAt time.Time        `json:"startedAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Version   uint64           `json:"version"`
	Score     [2]int           `json:"score"`
	State     scoresheet.State `json:"state"`
}

// Entry is the match-list projection of a Match. Subscribers that only care
// about which matches are live see this instead of full match detail.
type Entry struct {
	MatchID   string    `json:"matchId"`
	HomeName  string    `json:"homeName"`
	AwayName  string    `json:"awayName"`
	Score     [2]int    `json:"score"`
	StartedAt time.Time `json:"startedAt"`
}

// EntryOf projects a match for the list view.
func EntryOf(m Match) Entry {
	return Entry{
		MatchID:   m.ID,
		HomeName:  m.State.Home.Name,
		AwayName:  m.State.Away.Name,
		Score:     m.Score,
		StartedAt: m.StartedAt,
	}
}

// Clone deep-copies the match so callers never share the store's state.
func (m Match) Clone() Match {
	out := m
	out.State = m.State.Clone()
	return out
}

// EntriesEqual reports whether two projections are identical, so the list
// version is only bumped when the view subscribers see actually changed.
func EntriesEqual(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
