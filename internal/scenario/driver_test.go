package scenario

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdsim/internal/core"
	"crowdsim/internal/sim"
)

const crossing = `10 x 10
obstacles:
0, 9 @ 2 x 1
persons:
0, 0 -> 9, 9
9, 0 -> 0, 8
5, 5 -> 5, 0
insertions: 5
9, 5 -> 9, 4
`

func TestRunnerCycles(t *testing.T) {
	sc, err := Parse(strings.NewReader(crossing))
	require.NoError(t, err)

	var out bytes.Buffer
	r, err := NewRunner(sc, 4, WithOutput(&out))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.TearDown() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := r.Run(ctx, 3)
	require.NoError(t, err)

	assert.Len(t, res.Cycles, 3)
	assert.Equal(t, 3, res.Persons)
	assert.Equal(t, 4, res.Threads)
	assert.Equal(t, 3, res.Summary.Count)
	assert.NotEmpty(t, res.RunID)
	assert.Positive(t, res.Ticks)

	for i, p := range r.Persons() {
		assert.Equal(t, sc.Persons[i].Goal, p.Pos(), "person %d", p.ID)
	}
	text := out.String()
	assert.Contains(t, text, "Cycle 0 took ")
	assert.Contains(t, text, "Cycle 2 took ")
	assert.Contains(t, text, "Avg. per cycle: ")

	require.NoError(t, r.TearDown())
	require.NoError(t, r.TearDown())
	assert.Equal(t, sim.Destroyed, r.Simulation().State())
}

func TestRunnerRespectsContext(t *testing.T) {
	sc := &Scenario{
		Width:     3,
		Height:    3,
		Obstacles: []Rect{{X: 1, Y: 0, W: 1, H: 3}},
		Persons:   []Route{{Start: core.P(0, 1), Goal: core.P(2, 1)}},
	}
	r, err := NewRunner(sc, 2)
	require.NoError(t, err)
	defer r.TearDown()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = r.Run(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReplugWaitsForTickWhenStartIsTaken(t *testing.T) {
	sc := &Scenario{
		Width:   4,
		Height:  1,
		Persons: []Route{{Start: core.P(0, 0), Goal: core.P(3, 0)}},
	}
	r, err := NewRunner(sc, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.TearDown() })
	s := r.Simulation()

	require.NoError(t, s.Advance(1))
	require.Equal(t, core.P(1, 0), r.Persons()[0].Pos())

	blocker := core.NewPerson(99)
	blocker.Place(core.P(0, 0), core.P(0, 0))
	res, err := s.PlugUnsafe(blocker)
	require.NoError(t, err)
	require.Equal(t, sim.PlugInserted, res)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.replug(ctx) }()

	// Paused with no ticks: the retry must wait instead of polling.
	require.Eventually(t, func() bool { return r.retries.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), r.retries.Load())
	select {
	case err := <-done:
		t.Fatalf("replug returned early: %v", err)
	default:
	}

	require.NoError(t, s.Unplug(blocker))
	require.NoError(t, s.Advance(1))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("replug did not resume after the next tick")
	}
	assert.Equal(t, core.P(0, 0), r.Persons()[0].Pos())
	assert.Equal(t, int64(1), r.retries.Load())
}

func TestReplugStopsOnTearDown(t *testing.T) {
	sc := &Scenario{
		Width:   3,
		Height:  1,
		Persons: []Route{{Start: core.P(0, 0), Goal: core.P(2, 0)}},
	}
	r, err := NewRunner(sc, 1)
	require.NoError(t, err)
	s := r.Simulation()
	require.NoError(t, s.Advance(1))

	blocker := core.NewPerson(99)
	blocker.Place(core.P(0, 0), core.P(0, 0))
	_, err = s.PlugUnsafe(blocker)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- r.replug(context.Background()) }()
	require.Eventually(t, func() bool { return r.retries.Load() >= 1 }, time.Second, time.Millisecond)

	require.NoError(t, r.TearDown())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, sim.ErrDestroyed)
	case <-time.After(2 * time.Second):
		t.Fatal("replug still waiting after teardown")
	}
}

func TestNewRunnerRejectsBadWorkers(t *testing.T) {
	sc, err := Parse(strings.NewReader(crossing))
	require.NoError(t, err)
	_, err = NewRunner(sc, 0)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does/not/exist", 1)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))

	one := Summarize([]time.Duration{2 * time.Millisecond})
	assert.Equal(t, Summary{Count: 1, MeanMS: 2, MinMS: 2, MaxMS: 2}, one)

	s := Summarize([]time.Duration{1 * time.Millisecond, 3 * time.Millisecond})
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 2.0, s.MeanMS, 1e-9)
	assert.InDelta(t, math.Sqrt2, s.StdMS, 1e-9)
	assert.Equal(t, 1.0, s.MinMS)
	assert.Equal(t, 3.0, s.MaxMS)
}
