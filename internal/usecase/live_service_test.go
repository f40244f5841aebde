package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ttleague/livesync/internal/domain/scoresheet"
	"github.com/ttleague/livesync/internal/platform/logging"
)

func scheduledState(id string) scoresheet.State {
	return scoresheet.State{
		ID:     id,
		Status: scoresheet.StatusScheduled,
		Date:   "2026-03-07",
		Home: scoresheet.Team{
			ID:   "tsv-linden",
			Name: "TSV Linden",
			Players: []scoresheet.Player{
				{ID: "p-a", Name: "A"}, {ID: "p-b", Name: "B"}, {ID: "p-c", Name: "C"},
			},
			Selected: [scoresheet.TeamSize]string{"p-a", "p-b", "p-c"},
		},
		Away: scoresheet.Team{
			ID:   "sv-ricklingen",
			Name: "SV Ricklingen",
			Players: []scoresheet.Player{
				{ID: "p-x", Name: "X"}, {ID: "p-y", Name: "Y"}, {ID: "p-z", Name: "Z"},
			},
			Selected: [scoresheet.TeamSize]string{"p-x", "p-y", "p-z"},
		},
	}
}

func newTestService() *LiveMatchService {
	svc := NewLiveMatchService(logging.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 7, 19, 0, 0, 0, time.UTC) }
	return svc
}

func TestIngestCreatesMatchAtVersionZero(t *testing.T) {
	svc := newTestService()

	woken := 0
	svc.SetWake(func() { woken++ })

	version, err := svc.Ingest(context.Background(), scheduledState("42"), nil)
	if err != nil {
		t.Fatalf("create ingest failed: %v", err)
	}
	if version != 0 {
		t.Fatalf("expected version 0 on create, got %d", version)
	}
	if woken != 1 {
		t.Fatalf("expected one wake on creation, got %d", woken)
	}

	match, ok := svc.Get("42")
	if !ok {
		t.Fatal("expected match to exist after create")
	}
	if match.Score != [2]int{0, 0} {
		t.Fatalf("expected zero score on create, got %v", match.Score)
	}
}

func TestIngestCreateForcesWalkoverForEmptySlot(t *testing.T) {
	svc := newTestService()

	// The third away slot is open, yet the payload claims round wins for the
	// absent player in game 2 (home 0 vs away 2).
	seed := scheduledState("42")
	seed.Away.Selected[2] = ""
	for r := 0; r < scoresheet.RoundsToWin; r++ {
		seed.Games[2].Rounds[r] = scoresheet.Round{Home: scoresheet.CellLost, Away: scoresheet.CellWon}
	}

	if _, err := svc.Ingest(context.Background(), seed, nil); err != nil {
		t.Fatalf("create ingest failed: %v", err)
	}

	match, _ := svc.Get("42")
	for _, g := range []int{2, 5, 8} {
		for r := 0; r < scoresheet.RoundsToWin; r++ {
			round := match.State.Games[g].Rounds[r]
			if round.Home != scoresheet.CellWon || round.Away != scoresheet.CellWalkover {
				t.Fatalf("game %d round %d = %+v, want home win over walkover", g, r, round)
			}
		}
	}
	if match.Score != [2]int{3, 0} {
		t.Fatalf("expected the present side to take the walkover games, got %v", match.Score)
	}
}

func TestIngestMergesConcurrentEditsAgainstOriginalBase(t *testing.T) {
	svc := newTestService()

	base := scheduledState("42")
	if _, err := svc.Ingest(context.Background(), base, nil); err != nil {
		t.Fatalf("create ingest failed: %v", err)
	}

	// Client 1 marks game 0 round 0 for the home player.
	edit1 := base.Clone()
	edit1.Status = scoresheet.StatusRunning
	edit1.Games[0].Rounds[0] = scoresheet.Round{Home: scoresheet.CellWon, Away: scoresheet.CellLost}

	ref1 := base.Clone()
	version, err := svc.Ingest(context.Background(), edit1, &ref1)
	if err != nil {
		t.Fatalf("first edit failed: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1 after first edit, got %d", version)
	}

	match, _ := svc.Get("42")
	if match.State.Games[0].Rounds[0].Home != scoresheet.CellWon {
		t.Fatal("expected game 0 round 0 home cell from first edit")
	}
	if match.Score != [2]int{0, 0} {
		t.Fatalf("a single round must not move the score, got %v", match.Score)
	}

	// Client 2 still references the original base, not version 1.
	edit2 := base.Clone()
	edit2.Status = scoresheet.StatusRunning
	edit2.Games[1].Rounds[0] = scoresheet.Round{Home: scoresheet.CellLost, Away: scoresheet.CellWon}

	ref2 := base.Clone()
	version, err = svc.Ingest(context.Background(), edit2, &ref2)
	if err != nil {
		t.Fatalf("second edit failed: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2 after second edit, got %d", version)
	}

	match, _ = svc.Get("42")
	games := match.State.Games
	if games[0].Rounds[0].Home != scoresheet.CellWon {
		t.Fatal("second edit must not wipe the first client's round")
	}
	if games[1].Rounds[0].Away != scoresheet.CellWon {
		t.Fatal("expected game 1 round 0 away cell from second edit")
	}
}

func TestIngestRejectsUnknownMatchPastScheduled(t *testing.T) {
	svc := newTestService()

	edit := scheduledState("77")
	edit.Status = scoresheet.StatusRunning

	if _, err := svc.Ingest(context.Background(), edit, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for running edit without live match, got %v", err)
	}
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	svc := newTestService()

	if _, err := svc.Ingest(context.Background(), scoresheet.State{}, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	edit := scheduledState("42")
	ref := scheduledState("43")
	if _, err := svc.Ingest(context.Background(), edit, &ref); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for mismatched reference, got %v", err)
	}
}

func TestSnapshotListSuppressesUnchangedProjection(t *testing.T) {
	svc := newTestService()

	base := scheduledState("42")
	if _, err := svc.Ingest(context.Background(), base, nil); err != nil {
		t.Fatalf("create ingest failed: %v", err)
	}

	entries, listVersion := svc.SnapshotList()
	if len(entries) != 1 {
		t.Fatalf("expected one list entry, got %d", len(entries))
	}
	if entries[0].HomeName != "TSV Linden" || entries[0].AwayName != "SV Ricklingen" {
		t.Fatalf("unexpected projection names: %+v", entries[0])
	}

	// A not-yet-decisive round bumps the match version but leaves the
	// score/name/start projection untouched.
	edit := base.Clone()
	edit.Status = scoresheet.StatusRunning
	edit.Games[0].Rounds[0] = scoresheet.Round{Home: scoresheet.CellWon, Away: scoresheet.CellLost}
	ref := base.Clone()
	if _, err := svc.Ingest(context.Background(), edit, &ref); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	_, again := svc.SnapshotList()
	if again != listVersion {
		t.Fatalf("list version must not move on an unchanged projection: %d -> %d", listVersion, again)
	}

	// Deciding a full game changes the score and must bump the list version.
	decided := edit.Clone()
	for r := 0; r < 3; r++ {
		decided.Games[0].Rounds[r] = scoresheet.Round{Home: scoresheet.CellWon, Away: scoresheet.CellLost}
	}
	ref = edit.Clone()
	if _, err := svc.Ingest(context.Background(), decided, &ref); err != nil {
		t.Fatalf("deciding edit failed: %v", err)
	}

	entries, bumped := svc.SnapshotList()
	if bumped != listVersion+1 {
		t.Fatalf("expected list version %d after score change, got %d", listVersion+1, bumped)
	}
	if entries[0].Score != [2]int{1, 0} {
		t.Fatalf("expected score 1:0 in projection, got %v", entries[0].Score)
	}
}

func TestFinalizeOverwritesStateInPlace(t *testing.T) {
	svc := newTestService()

	base := scheduledState("42")
	if _, err := svc.Ingest(context.Background(), base, nil); err != nil {
		t.Fatalf("create ingest failed: %v", err)
	}

	final := base.Clone()
	if err := svc.Finalize(context.Background(), "42", scoresheet.StatusFinal, final); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	match, ok := svc.Get("42")
	if !ok {
		t.Fatal("finalized match must stay visible for straggling subscribers")
	}
	if match.State.Status != scoresheet.StatusFinal {
		t.Fatalf("expected final status, got %s", match.State.Status)
	}
	if match.Version != 1 {
		t.Fatalf("expected finalize to bump the version, got %d", match.Version)
	}

	if err := svc.Finalize(context.Background(), "missing", scoresheet.StatusFinal, final); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not-found for unknown match, got %v", err)
	}
}

func TestPruneStaleDropsIdleAndFinishedMatches(t *testing.T) {
	svc := newTestService()

	now := time.Date(2026, 3, 7, 19, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.Ingest(context.Background(), scheduledState("idle"), nil); err != nil {
		t.Fatalf("create ingest failed: %v", err)
	}

	now = now.Add(30 * time.Minute)
	if _, err := svc.Ingest(context.Background(), scheduledState("fresh"), nil); err != nil {
		t.Fatalf("create ingest failed: %v", err)
	}
	if err := svc.Finalize(context.Background(), "fresh", scoresheet.StatusFinal, scheduledState("fresh")); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if _, err := svc.Ingest(context.Background(), scheduledState("live"), nil); err != nil {
		t.Fatalf("create ingest failed: %v", err)
	}

	removed := svc.PruneStale(20*time.Minute, 6*time.Hour)
	if removed != 2 {
		t.Fatalf("expected idle and finalized matches reaped, got %d", removed)
	}
	if _, ok := svc.Get("live"); !ok {
		t.Fatal("live match must survive the reaper")
	}
	if _, ok := svc.Get("idle"); ok {
		t.Fatal("idle match must be reaped")
	}
}
