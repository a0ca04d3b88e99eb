package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLubySequence(t *testing.T) {
	// With growth 2.0, the budgets follow 1,1,2,1,1,2,4,...
	want := []float64{1, 1, 2, 1, 1, 2, 4, 1, 1, 2, 1, 1, 2, 4, 8}
	for i, w := range want {
		require.InDelta(t, w, luby(2.0, i), 1e-9, "luby(%d)", i)
	}
}

func TestLubyRestartPolicy_Thresholds(t *testing.T) {
	s := New("luby", 1)
	p := NewLubyRestartPolicy()

	for i := 0; i < lubyInitialConflicts-1; i++ {
		p.OnClauseLearned(s, nil)
	}
	require.False(t, p.ShouldRestart(s))
	p.OnClauseLearned(s, nil)
	require.True(t, p.ShouldRestart(s))

	p.OnRestarted(s)
	require.False(t, p.ShouldRestart(s))
}

func TestSlidingAverage(t *testing.T) {
	q := newSlidingAverage(3)
	require.False(t, q.atCapacity())
	require.Zero(t, q.average())

	q.push(1)
	q.push(2)
	q.push(3)
	require.True(t, q.atCapacity())
	require.InDelta(t, 2.0, q.average(), 1e-9)

	q.push(7) // evicts 1
	require.InDelta(t, 4.0, q.average(), 1e-9)

	q.clear()
	require.False(t, q.atCapacity())
}

func TestLBDRestartPolicy_RestartsOnHighRecentLBD(t *testing.T) {
	s := New("lbd", 1)
	p := NewLBDRestartPolicy()

	low := &ClauseConstraint{lbd: 1}
	high := &ClauseConstraint{lbd: 50}

	// A long run of low-LBD clauses establishes a low all-time rate.
	for i := 0; i < 1000; i++ {
		p.OnClauseLearned(s, low)
	}
	require.False(t, p.ShouldRestart(s))

	// A burst of high-LBD clauses fills the recent window above the
	// scaled all-time average.
	for i := 0; i < lbdQueueSize; i++ {
		p.OnClauseLearned(s, high)
	}
	require.True(t, p.ShouldRestart(s))

	// Restarting clears only the recent window.
	p.OnRestarted(s)
	require.False(t, p.ShouldRestart(s))
}

func TestNoRestartPolicy(t *testing.T) {
	s := New("none", 1)
	p := NewNoRestartPolicy()
	p.OnClauseLearned(s, nil)
	require.False(t, p.ShouldRestart(s))
}

func TestSolver_RestartPolicyOption(t *testing.T) {
	s := New("opt", 12, WithRestartPolicy(NewNoRestartPolicy()))
	vars := make([]VarID, 5)
	for i := range vars {
		vars[i] = s.NewVariable("v", NewDomain(0, 4))
	}
	s.AllDifferent(vars...)
	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.Zero(t, s.Stats().Restarts)
}
