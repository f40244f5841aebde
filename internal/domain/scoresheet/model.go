package scoresheet

import (
	"fmt"
	"strings"
)

const (
	// TeamSize is the number of selected players per side.
	TeamSize = 3
	// NumGames is every pairing of the 3x3 grid: each home player
	// meets each away player exactly once.
	NumGames = TeamSize * TeamSize
	// RoundsPerGame bounds a single game; 3 round wins decide it.
	RoundsPerGame = 5
	// RoundsToWin is the number of round wins that decide a game.
	RoundsToWin = 3
)

// Status values a scoresheet moves through while being reported.
// "scheduled" is the initial status; everything after it is one-directional
// during the live phase.
const (
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusSubmitted = "submitted"
	StatusFinal     = "final"
	StatusCancelled = "cancelled"
)

// Cell is one half of a round result.
type Cell string

const (
	CellBlank    Cell = ""
	CellWon      Cell = "w"
	CellLost     Cell = "l"
	CellWalkover Cell = "x"
)

// Player is one roster entry.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Team carries the known roster pool and the three selected slots.
// A selected slot holds a player id or "" when the slot is still open.
type Team struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Players  []Player         `json:"players"`
	Selected [TeamSize]string `json:"selected"`
}

// Round is the atomic (home, away) result pair of one round of one game.
type Round struct {
	Home Cell `json:"home"`
	Away Cell `json:"away"`
}

// Game is the result column for one player pairing.
type Game struct {
	Rounds [RoundsPerGame]Round `json:"rounds"`
}

// State is the full editable content of one match report.
type State struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Date   string         `json:"date"`
	Home   Team           `json:"home"`
	Away   Team           `json:"away"`
	Games  [NumGames]Game `json:"games"`
}

// HomeSlot and AwaySlot map a game index onto the selected-player slots.
// Game g is home player g/3 against away player g%3.
func HomeSlot(game int) int { return game / TeamSize }

func AwaySlot(game int) int { return game % TeamSize }

// IsLiveStatus reports whether a scoresheet with this status is still in the
// live reporting phase.
func IsLiveStatus(status string) bool {
	switch status {
	case StatusScheduled, StatusRunning:
		return true
	default:
		return false
	}
}

func knownStatus(status string) bool {
	switch status {
	case StatusScheduled, StatusRunning, StatusSubmitted, StatusFinal, StatusCancelled:
		return true
	default:
		return false
	}
}

func knownCell(c Cell) bool {
	switch c {
	case CellBlank, CellWon, CellLost, CellWalkover:
		return true
	default:
		return false
	}
}

// Validate rejects payloads that must never reach the live store.
func Validate(s State) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("match id is required")
	}
	if !knownStatus(s.Status) {
		return fmt.Errorf("unknown status %q", s.Status)
	}
	if err := validateTeam(s.Home, "home"); err != nil {
		return err
	}
	if err := validateTeam(s.Away, "away"); err != nil {
		return err
	}
	for g := range s.Games {
		for r := range s.Games[g].Rounds {
			round := s.Games[g].Rounds[r]
			if !knownCell(round.Home) || !knownCell(round.Away) {
				return fmt.Errorf("game %d round %d has an unknown result symbol", g, r)
			}
		}
	}
	return nil
}

func validateTeam(t Team, side string) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%s team id is required", side)
	}
	known := make(map[string]struct{}, len(t.Players))
	for _, p := range t.Players {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%s team roster contains a player without id", side)
		}
		if _, dup := known[p.ID]; dup {
			return fmt.Errorf("%s team roster contains duplicate player %s", side, p.ID)
		}
		known[p.ID] = struct{}{}
	}
	for slot, id := range t.Selected {
		if id == "" {
			continue
		}
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%s team slot %d selects unknown player %s", side, slot, id)
		}
	}
	return nil
}

// Clone returns a deep copy; State holds one slice per team, everything else
// is value data.
func (s State) Clone() State {
	out := s
	out.Home.Players = append([]Player(nil), s.Home.Players...)
	out.Away.Players = append([]Player(nil), s.Away.Players...)
	return out
}

// Score derives the match score from the result matrix: a game counts for the
// side that collected three round wins.
func Score(s State) [2]int {
	var score [2]int
	for g := range s.Games {
		home, away := 0, 0
		for _, round := range s.Games[g].Rounds {
			if round.Home == CellWon {
				home++
			}
			if round.Away == CellWon {
				away++
			}
		}
		switch {
		case home >= RoundsToWin:
			score[0]++
		case away >= RoundsToWin:
			score[1]++
		}
	}
	return score
}

// EnforceLineup forces every game whose home or away slot has no player
// assigned back to the fixed walkover pattern, regardless of what the cells
// currently hold. A game cannot show round wins for an empty slot.
func EnforceLineup(s *State) {
	for g := range s.Games {
		homePresent := s.Home.Selected[HomeSlot(g)] != ""
		awayPresent := s.Away.Selected[AwaySlot(g)] != ""
		if homePresent && awayPresent {
			continue
		}
		s.Games[g].Rounds = walkoverRounds(homePresent, awayPresent)
	}
}

// walkoverRounds is the fixed placeholder pattern for a game with a missing
// player: the present side takes three round wins, the absent side shows the
// walkover symbol, the remaining rounds stay blank.
func walkoverRounds(homePresent, awayPresent bool) [RoundsPerGame]Round {
	var rounds [RoundsPerGame]Round
	for r := 0; r < RoundsToWin; r++ {
		switch {
		case homePresent && !awayPresent:
			rounds[r] = Round{Home: CellWon, Away: CellWalkover}
		case !homePresent && awayPresent:
			rounds[r] = Round{Home: CellWalkover, Away: CellWon}
		default:
			rounds[r] = Round{Home: CellWalkover, Away: CellWalkover}
		}
	}
	return rounds
}
