package scoresheet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fullLineupState() State {
	home := Team{
		ID:   "team-home",
		Name: "TSV Linden",
		Players: []Player{
			{ID: "A", Name: "Anna"},
			{ID: "B", Name: "Bernd"},
			{ID: "C", Name: "Clara"},
		},
		Selected: [TeamSize]string{"A", "B", "C"},
	}
	away := Team{
		ID:   "team-away",
		Name: "SV Ricklingen",
		Players: []Player{
			{ID: "X", Name: "Xenia"},
			{ID: "Y", Name: "Yusuf"},
			{ID: "Z", Name: "Zoe"},
		},
		Selected: [TeamSize]string{"X", "Y", "Z"},
	}
	return State{
		ID:     "match-42",
		Status: StatusRunning,
		Date:   "2026-09-12",
		Home:   home,
		Away:   away,
	}
}

func TestIntegrateIdempotent(t *testing.T) {
	s := fullLineupState()
	s.Games[0].Rounds[0] = Round{Home: CellWon, Away: CellLost}
	s.Games[4].Rounds[2] = Round{Home: CellLost, Away: CellWon}

	require.Equal(t, s, Integrate(s, s, s))
}

func TestIntegrateNoOpKeepsBase(t *testing.T) {
	base := fullLineupState()
	base.Games[2].Rounds[1] = Round{Home: CellWon, Away: CellLost}

	other := fullLineupState()
	other.Date = "2026-09-13"
	other.Games[7].Rounds[0] = Round{Home: CellLost, Away: CellWon}

	// old == new means the sender changed nothing; the base survives even
	// though the sender's snapshot disagrees with it.
	require.Equal(t, base, Integrate(base, other, other))
}

func TestIntegrateReplacesOnlyChangedFields(t *testing.T) {
	base := fullLineupState()
	base.Games[0].Rounds[0] = Round{Home: CellWon, Away: CellLost}

	old := fullLineupState()
	next := old.Clone()
	next.Date = "2026-10-01"
	next.Games[3].Rounds[0] = Round{Home: CellLost, Away: CellWon}

	merged := Integrate(base, old, next)

	require.Equal(t, "2026-10-01", merged.Date)
	require.Equal(t, Round{Home: CellLost, Away: CellWon}, merged.Games[3].Rounds[0])
	// Untouched by the sender, so base wins.
	require.Equal(t, Round{Home: CellWon, Away: CellLost}, merged.Games[0].Rounds[0])
}

func TestIntegrateStatusNeverRegressesToScheduled(t *testing.T) {
	base := fullLineupState()
	base.Status = StatusRunning

	old := fullLineupState()
	old.Status = StatusScheduled
	next := old.Clone()

	merged := Integrate(base, old, next)
	require.Equal(t, StatusRunning, merged.Status)

	// The other direction: a sender that already left "scheduled" beats a
	// stale scheduled base.
	base.Status = StatusScheduled
	old.Status = StatusRunning
	next.Status = StatusRunning
	merged = Integrate(base, old, next)
	require.Equal(t, StatusRunning, merged.Status)
}

func TestIntegrateRoundPairIsAtomic(t *testing.T) {
	base := fullLineupState()
	base.Games[1].Rounds[0] = Round{Home: CellLost, Away: CellWon}

	old := fullLineupState()
	old.Games[1].Rounds[0] = Round{Home: CellLost, Away: CellWon}
	next := old.Clone()
	// Only the home half changes; the away half must still come from next.
	next.Games[1].Rounds[0].Home = CellWon
	next.Games[1].Rounds[0].Away = CellBlank

	merged := Integrate(base, old, next)
	require.Equal(t, Round{Home: CellWon, Away: CellBlank}, merged.Games[1].Rounds[0])
}

func TestIntegrateRosterUnionNeverShrinks(t *testing.T) {
	base := fullLineupState()
	base.Home.Players = append(base.Home.Players, Player{ID: "D", Name: "Dana"})

	old := fullLineupState()
	next := old.Clone()
	next.Home.Players = append(next.Home.Players, Player{ID: "E", Name: "Emil"})

	merged := Integrate(base, old, next)

	require.GreaterOrEqual(t, len(merged.Home.Players), len(base.Home.Players))
	ids := make(map[string]struct{})
	for _, p := range merged.Home.Players {
		ids[p.ID] = struct{}{}
	}
	for _, want := range []string{"A", "B", "C", "D", "E"} {
		require.Contains(t, ids, want)
	}
}

func TestIntegrateSelectedSlotsReplacePerSlot(t *testing.T) {
	base := fullLineupState()
	base.Home.Players = append(base.Home.Players, Player{ID: "D", Name: "Dana"})
	// Another participant already placed D into slot 2.
	base.Home.Selected[2] = "D"

	old := fullLineupState()
	next := old.Clone()
	next.Home.Players = append(next.Home.Players, Player{ID: "E", Name: "Emil"})
	// The sender swaps slot 0 only.
	next.Home.Selected[0] = "E"

	merged := Integrate(base, old, next)

	require.Equal(t, "E", merged.Home.Selected[0])
	require.Equal(t, "B", merged.Home.Selected[1])
	// Slot 2 was untouched by the sender, so the concurrent change survives.
	require.Equal(t, "D", merged.Home.Selected[2])
}

func TestIntegrateEnforcesWalkoverForMissingPlayer(t *testing.T) {
	base := fullLineupState()
	old := fullLineupState()
	next := old.Clone()
	// The sender clears away slot 0 while also reporting round results for
	// game 0 (which pairs home slot 0 with away slot 0).
	next.Away.Selected[0] = ""
	next.Games[0].Rounds[0] = Round{Home: CellLost, Away: CellWon}

	merged := Integrate(base, old, next)

	for r := 0; r < RoundsToWin; r++ {
		require.Equal(t, Round{Home: CellWon, Away: CellWalkover}, merged.Games[0].Rounds[r],
			"round %d must carry the walkover pattern", r)
	}
	for r := RoundsToWin; r < RoundsPerGame; r++ {
		require.Equal(t, Round{}, merged.Games[0].Rounds[r])
	}
}

func TestIntegrateConvergesUnderConcurrentSenders(t *testing.T) {
	base := fullLineupState()

	// Client 1 edits game 0, client 2 edits game 8; both reference the
	// original base. The outcome must not depend on arrival order.
	edit := func(game int, round Round) State {
		s := base.Clone()
		s.Games[game].Rounds[0] = round
		return s
	}
	one := edit(0, Round{Home: CellWon, Away: CellLost})
	two := edit(8, Round{Home: CellLost, Away: CellWon})

	firstOrder := Integrate(Integrate(base, base, one), base, two)
	secondOrder := Integrate(Integrate(base, base, two), base, one)

	require.Equal(t, firstOrder, secondOrder)
	require.Equal(t, Round{Home: CellWon, Away: CellLost}, firstOrder.Games[0].Rounds[0])
	require.Equal(t, Round{Home: CellLost, Away: CellWon}, firstOrder.Games[8].Rounds[0])
}

func TestIntegrateConflictingPairLastWriteWins(t *testing.T) {
	base := fullLineupState()

	edit := func(round Round) State {
		s := base.Clone()
		s.Games[5].Rounds[3] = round
		return s
	}
	one := edit(Round{Home: CellWon, Away: CellLost})
	two := edit(Round{Home: CellLost, Away: CellWon})

	merged := Integrate(Integrate(base, base, one), base, two)
	require.Equal(t, Round{Home: CellLost, Away: CellWon}, merged.Games[5].Rounds[3])
}
