package results

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttleague/livesync/internal/domain/livematch"
	"github.com/ttleague/livesync/internal/domain/scoresheet"
)

func TestMemoryStoreSaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.GetReport(ctx, "42")
	require.NoError(t, err)
	require.False(t, ok)

	match := livematch.Match{
		ID:    "42",
		Score: [2]int{5, 4},
		State: scoresheet.State{ID: "42", Status: scoresheet.StatusFinal},
	}
	require.NoError(t, store.SaveReport(ctx, match))

	got, ok, err := store.GetReport(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [2]int{5, 4}, got.Score)
	require.Equal(t, scoresheet.StatusFinal, got.State.Status)

	// The store hands out copies, not its own state.
	got.State.Status = scoresheet.StatusRunning
	again, _, err := store.GetReport(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, scoresheet.StatusFinal, again.State.Status)
}
