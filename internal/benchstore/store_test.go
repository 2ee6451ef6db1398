package benchstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdsim/internal/scenario"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bench.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func result(threads int, cycles ...time.Duration) scenario.Result {
	return scenario.Result{
		RunID:   uuid.NewString(),
		Threads: threads,
		Persons: 10,
		Cycles:  cycles,
		Summary: scenario.Summarize(cycles),
		Ticks:   42,
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	var journal string
	require.NoError(t, s.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)

	var busy int
	require.NoError(t, s.QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 5000, busy)
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first, err := s.Record(ctx, "crossing", result(1, 4*time.Millisecond, 6*time.Millisecond))
	require.NoError(t, err)
	second, err := s.Record(ctx, "crossing", result(4, 2*time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	_, err = s.Record(ctx, "other", result(2, time.Millisecond))
	require.NoError(t, err)

	runs, err := s.Runs(ctx, "crossing")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)
	assert.Equal(t, uint64(42), runs[0].Ticks)
	assert.Equal(t, 2, runs[0].Cycles)
	assert.InDelta(t, 5.0, runs[0].Summary.MeanMS, 1e-9)
	assert.True(t, runs[0].CreatedAt.Equal(first.CreatedAt))

	best, err := s.Best(ctx, "crossing")
	require.NoError(t, err)
	assert.Equal(t, second.ID, best.ID)
	assert.Equal(t, 4, best.Threads)

	cycles, err := s.Cycles(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{4 * time.Millisecond, 6 * time.Millisecond}, cycles)
}

func TestDuplicateRunRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := result(1, time.Millisecond)
	_, err := s.Record(ctx, "a", res)
	require.NoError(t, err)
	_, err = s.Record(ctx, "a", res)
	assert.Error(t, err)

	runs, err := s.Runs(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Best(ctx, "nothing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Cycles(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), "x", result(3, time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
