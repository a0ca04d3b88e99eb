package solver

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// S6: three boolean variables with all pairwise "at least one" and "at most
// one" clauses form an unsatisfiable triangle.
func TestSolver_UnsatTriangle(t *testing.T) {
	s := New("unsat-triangle", 1)
	a := s.NewBoolean("a")
	b := s.NewBoolean("b")
	c := s.NewBoolean("c")

	s.AddClause(Clause(a, 1), Clause(b, 1))
	s.AddClause(Clause(b, 1), Clause(c, 1))
	s.AddClause(Clause(a, 1), Clause(c, 1))
	s.AddClause(Clause(a, 0), Clause(b, 0))
	s.AddClause(Clause(b, 0), Clause(c, 0))
	s.AddClause(Clause(a, 0), Clause(c, 0))

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultUnsatisfiable, res)
}

func TestSolver_SimpleClauseProblem(t *testing.T) {
	s := New("simple", 7)
	a := s.NewBoolean("a")
	b := s.NewBoolean("b")
	c := s.NewBoolean("c")

	s.AddClause(Clause(a, 1), Clause(b, 1))
	s.AddClause(Clause(a, 0), Clause(c, 1))
	s.AddNogood(Clause(b, 1), Clause(c, 1))

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.Empty(t, s.VerifySolution())

	// Model check: (a∨b) ∧ (¬a∨c) ∧ ¬(b∧c).
	av, bv, cv := s.SolvedValue(a), s.SolvedValue(b), s.SolvedValue(c)
	require.True(t, av == 1 || bv == 1)
	require.True(t, av == 0 || cv == 1)
	require.False(t, bv == 1 && cv == 1)
}

func TestSolver_StepInterface(t *testing.T) {
	s := New("steps", 3)
	x := s.NewVariable("x", NewDomain(1, 3))
	y := s.NewVariable("y", NewDomain(1, 3))
	s.Inequality(x, OpLessThan, y)

	res, err := s.StartSolving()
	require.NoError(t, err)
	require.Equal(t, ResultUnsolved, res)

	for res == ResultUnsolved {
		res = s.Step()
	}
	require.Equal(t, ResultSolved, res)
	require.Equal(t, ResultSolved, s.CurrentStatus())
	require.Less(t, s.SolvedValue(x), s.SolvedValue(y))
	require.NotZero(t, s.Stats().Steps)
}

// Trail monotonicity: every recorded modification narrows its variable.
func TestSolver_TrailIsMonotone(t *testing.T) {
	s := New("trail", 11)
	vars := make([]VarID, 6)
	for i := range vars {
		vars[i] = s.NewVariable("v", NewDomain(0, 5))
	}
	s.AllDifferent(vars...)
	s.Inequality(vars[0], OpLessThan, vars[1])

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)

	db := s.DB()
	for ts := 0; ts < db.TrailLength(); ts++ {
		m := db.ModificationAt(Timestamp(ts))
		require.True(t, m.New.IsSubsetOf(m.Prev),
			"trail entry %d does not narrow %s", ts, m.Var)
		require.False(t, m.New.IsEmpty())
	}
}

// Determinism: identical builds and seeds produce identical solutions and
// statistics.
func TestSolver_Determinism(t *testing.T) {
	build := func() *Solver {
		s := New("det", 99)
		q := make([]VarID, 6)
		for i := range q {
			q[i] = s.NewVariable("q", NewDomain(0, 5))
		}
		s.AllDifferent(q...)
		for i := 0; i < len(q)-1; i++ {
			s.Inequality(q[i], OpNotEqual, q[i+1])
		}
		return s
	}

	s1, s2 := build(), build()
	r1, err := s1.Solve()
	require.NoError(t, err)
	r2, err := s2.Solve()
	require.NoError(t, err)
	require.Equal(t, r1, r2)
	require.Equal(t, ResultSolved, r1)

	require.Equal(t, s1.DB().TrailLength(), s2.DB().TrailLength())
	for v := VarID(1); int(v) <= s1.DB().NumVariables(); v++ {
		require.Equal(t, s1.SolvedValue(v), s2.SolvedValue(v), "variable %s diverged", v)
	}
	require.Equal(t, s1.Stats().Steps, s2.Stats().Steps)
	require.Equal(t, s1.Stats().Backtracks, s2.Stats().Backtracks)
}

// A recorded decision log replayed through the log heuristic reproduces the
// same solution.
func TestSolver_DecisionLogReplay(t *testing.T) {
	log := NewDecisionLog()
	build := func(opts ...Option) (*Solver, []VarID) {
		s := New("logged", 13, opts...)
		vars := make([]VarID, 5)
		for i := range vars {
			vars[i] = s.NewVariable("v", NewDomain(0, 4))
		}
		s.AllDifferent(vars...)
		return s, vars
	}

	s1, vars1 := build(WithOutputLog(log))
	res, err := s1.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.NotZero(t, log.NumDecisions())

	// Round-trip the log through its text format.
	var buf bytes.Buffer
	require.NoError(t, log.Write(&buf))
	replayLog := NewDecisionLog()
	require.NoError(t, replayLog.Read(&buf))
	require.Equal(t, log.NumDecisions(), replayLog.NumDecisions())

	s2, vars2 := build()
	s2.AddDecisionHeuristic(NewLogOrderHeuristic(replayLog))
	res, err = s2.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	for i := range vars1 {
		require.Equal(t, s1.SolvedValue(vars1[i]), s2.SolvedValue(vars2[i]))
	}
}

func TestSolver_SaveAndAttemptSolution(t *testing.T) {
	s := New("save", 5)
	x := s.NewVariable("x", NewDomain(0, 3))
	y := s.NewVariable("y", NewDomain(0, 3))
	s.Inequality(x, OpGreaterThan, y)
	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)

	var dump bytes.Buffer
	require.NoError(t, s.SaveSolution(&dump))

	s2 := New("load", 6)
	x2 := s2.NewVariable("x", NewDomain(0, 3))
	y2 := s2.NewVariable("y", NewDomain(0, 3))
	s2.Inequality(x2, OpGreaterThan, y2)
	require.NoError(t, s2.AttemptSolution(bytes.NewReader(dump.Bytes())))
	res, err = s2.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.Equal(t, s.SolvedValue(x), s2.SolvedValue(x2))
	require.Equal(t, s.SolvedValue(y), s2.SolvedValue(y2))
}

func TestSolver_InvalidBuildSurfacesError(t *testing.T) {
	s := New("bad-build", 2)
	s.NewVariable("v", NewDomain(1, 9), 42) // outside the domain
	_, err := s.Solve()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid build")
}

func TestSolver_BreadcrumbOutput(t *testing.T) {
	log := NewDecisionLog()
	s := New("crumbs", 21, WithOutputLog(log))
	vars := make([]VarID, 4)
	for i := range vars {
		vars[i] = s.NewVariable("v", NewDomain(0, 3))
	}
	s.AllDifferent(vars...)
	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)

	var buf bytes.Buffer
	require.NoError(t, log.WriteBreadcrumbs(s, &buf))
	require.NotEmpty(t, buf.String())
}
