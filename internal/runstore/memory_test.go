package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgrid/oppscan/internal/contracts"
)

func storedRun(id string, startedAt time.Time) *contracts.RunResult {
	return &contracts.RunResult{
		RunID:     id,
		RunType:   contracts.RunTypeManual,
		StartedAt: startedAt,
		State:     contracts.StateRanked,
		Ranked: []contracts.ScoreBreakdown{
			{Symbol: "ALPHA", Rank: 1, FinalScore: 62.5},
		},
	}
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2026, 8, 14, 16, 30, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, storedRun("run-1", start)))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Ranked, 1)
	assert.Equal(t, "ALPHA", got.Ranked[0].Symbol)
}

func TestMemoryStoreGetUnknownRun(t *testing.T) {
	s := NewMemoryStore()

	got, err := s.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreCompleteRun(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2026, 8, 14, 16, 30, 0, 0, time.UTC)

	run := storedRun("run-1", start)
	require.NoError(t, s.SaveRun(ctx, run))

	run.State = contracts.StateCompleted
	run.CompletedAt = start.Add(40 * time.Second)
	require.NoError(t, s.CompleteRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, got.State)
	assert.Equal(t, run.CompletedAt, got.CompletedAt)
	assert.Len(t, got.Ranked, 1, "completion must not drop the ranked list")
}

func TestMemoryStoreCompleteUnknownRun(t *testing.T) {
	s := NewMemoryStore()

	err := s.CompleteRun(context.Background(), storedRun("ghost", time.Now()))
	require.Error(t, err)
	assert.True(t, contracts.IsPersistenceError(err))
}

func TestMemoryStoreLatestRun(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.SaveRun(ctx, storedRun("old", base)))
	require.NoError(t, s.SaveRun(ctx, storedRun("new", base.Add(time.Hour))))

	latest, err = s.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "new", latest.RunID)
}

func TestMemoryStoreListRuns(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, storedRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID, "newest first")
	assert.Equal(t, "b", runs[1].RunID)
}

func TestMemoryStoreSaveIsUpsert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2026, 8, 14, 16, 30, 0, 0, time.UTC)

	run := storedRun("run-1", start)
	require.NoError(t, s.SaveRun(ctx, run))

	run.State = contracts.StateFailed
	run.Error = "provider error: load universe: feed down"
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, contracts.StateFailed, got.State)
	assert.Contains(t, got.Error, "feed down")

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
