package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOffsetConstraint_Propagation(t *testing.T) {
	s := New("offset", 1)
	x := s.NewVariable("x", NewDomain(0, 9))
	y := s.NewVariable("y", NewDomain(0, 9))
	s.Offset(y, x, 3) // y = x + 3

	res, err := s.StartSolving()
	require.NoError(t, err)
	require.Equal(t, ResultUnsolved, res)

	// Initial arc consistency: y ≥ 3, x ≤ 6.
	require.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, s.PotentialValues(y))
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, s.PotentialValues(x))

	for res == ResultUnsolved {
		res = s.Step()
	}
	require.Equal(t, ResultSolved, res)
	require.Equal(t, s.SolvedValue(x)+3, s.SolvedValue(y))
}

func TestInequalityConstraint_Operators(t *testing.T) {
	cases := []struct {
		op    ConstraintOperator
		check func(l, r int) bool
	}{
		{OpLessThan, func(l, r int) bool { return l < r }},
		{OpLessThanEq, func(l, r int) bool { return l <= r }},
		{OpGreaterThan, func(l, r int) bool { return l > r }},
		{OpGreaterThanEq, func(l, r int) bool { return l >= r }},
		{OpNotEqual, func(l, r int) bool { return l != r }},
	}
	for _, tc := range cases {
		s := New("inequality", 2)
		l := s.NewVariable("l", NewDomain(0, 4))
		r := s.NewVariable("r", NewDomain(0, 4))
		s.Inequality(l, tc.op, r)
		res, err := s.Solve()
		require.NoError(t, err)
		require.Equal(t, ResultSolved, res, "op %s", tc.op)
		require.True(t, tc.check(s.SolvedValue(l), s.SolvedValue(r)),
			"%d %s %d does not hold", s.SolvedValue(l), tc.op, s.SolvedValue(r))
	}
}

func TestInequalityConstraint_Unsatisfiable(t *testing.T) {
	s := New("inequality-unsat", 2)
	l := s.NewVariable("l", NewDomain(3, 5))
	r := s.NewVariable("r", NewDomain(0, 3))
	s.Inequality(l, OpLessThan, r)
	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultUnsatisfiable, res)
}

func TestAllDifferent_ValueElimination(t *testing.T) {
	s := New("alldiff", 3)
	a := s.NewVariable("a", NewDomain(1, 3), 1)
	b := s.NewVariable("b", NewDomain(1, 3))
	c := s.NewVariable("c", NewDomain(1, 3))
	s.AllDifferent(a, b, c)

	res, err := s.StartSolving()
	require.NoError(t, err)

	// a=1 eliminates 1 from b and c immediately.
	require.NotContains(t, s.PotentialValues(b), 1)
	require.NotContains(t, s.PotentialValues(c), 1)

	for res == ResultUnsolved {
		res = s.Step()
	}
	require.Equal(t, ResultSolved, res)
	require.NotEqual(t, s.SolvedValue(b), s.SolvedValue(c))
}

func TestAllDifferent_PigeonholeUnsat(t *testing.T) {
	s := New("pigeonhole", 3)
	vars := make([]VarID, 4)
	for i := range vars {
		vars[i] = s.NewVariable("p", NewDomain(1, 3))
	}
	s.AllDifferent(vars...)
	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultUnsatisfiable, res)
}

func TestSumConstraint_Bounds(t *testing.T) {
	s := New("sum", 4)
	a := s.NewVariable("a", NewDomain(1, 5))
	b := s.NewVariable("b", NewDomain(1, 5))
	total := s.NewVariable("total", NewDomain(9, 10))
	s.Sum(total, a, b)

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.Equal(t, s.SolvedValue(a)+s.SolvedValue(b), s.SolvedValue(total))
}

func TestCardinalityConstraint_Bounds(t *testing.T) {
	s := New("cardinality", 5)
	vars := make([]VarID, 5)
	for i := range vars {
		vars[i] = s.NewVariable("v", NewDomain(0, 2))
	}
	s.Cardinality(vars, map[int]CardinalityBound{
		0: {Min: 2, Max: 2},
		1: {Min: 1, Max: 2},
		2: {Min: 1, Max: 2},
	})

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)

	counts := make(map[int]int)
	for _, v := range vars {
		counts[s.SolvedValue(v)]++
	}
	require.Equal(t, 2, counts[0])
	require.GreaterOrEqual(t, counts[1], 1)
	require.GreaterOrEqual(t, counts[2], 1)
}

func TestTableConstraint_FiltersToRows(t *testing.T) {
	s := New("table", 6)
	x := s.NewVariable("x", NewDomain(0, 3))
	y := s.NewVariable("y", NewDomain(0, 3))
	data := NewTableData([][]int{{0, 1}, {1, 2}, {2, 3}})
	s.Table(data, x, y)

	res, err := s.StartSolving()
	require.NoError(t, err)
	// Initial filtering: x ∈ {0,1,2}, y ∈ {1,2,3}.
	require.Equal(t, []int{0, 1, 2}, s.PotentialValues(x))
	require.Equal(t, []int{1, 2, 3}, s.PotentialValues(y))

	for res == ResultUnsolved {
		res = s.Step()
	}
	require.Equal(t, ResultSolved, res)
	require.Equal(t, s.SolvedValue(x)+1, s.SolvedValue(y))
}

func TestIffConstraint_BothDirections(t *testing.T) {
	// head ↔ (x=1 ∧ y=1), with the head forced each way.
	for _, headVal := range []int{0, 1} {
		s := New("iff", 7)
		head := s.NewBoolean("head")
		x := s.NewBoolean("x")
		y := s.NewBoolean("y")
		s.Iff(Clause(head, 1), Clause(x, 1), Clause(y, 1))
		s.SetInitialValues(head, headVal)

		res, err := s.Solve()
		require.NoError(t, err)
		require.Equal(t, ResultSolved, res)
		conj := s.SolvedValue(x) == 1 && s.SolvedValue(y) == 1
		require.Equal(t, headVal == 1, conj, "head=%d", headVal)
	}
}

func TestDisjunctionConstraint_OneSideSuffices(t *testing.T) {
	s := New("disjunction", 8)
	x := s.NewVariable("x", NewDomain(0, 3))
	y := s.NewVariable("y", NewDomain(0, 3))
	a := s.Inequality(x, OpLessThan, y)
	b := s.Inequality(x, OpGreaterThan, y)
	s.Disjunction(a, b)

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.NotEqual(t, s.SolvedValue(x), s.SolvedValue(y))
}

func TestReachability_ClosesUnreachableVertices(t *testing.T) {
	// A 1×5 strip: forcing the middle tile to wall makes everything past
	// it unreachable, so it must be closed too.
	grid := NewGridTopology(5, 1)
	s := New("reachability", 9)
	tiles := s.NewVariableGraph("tile", grid, NewDomain(0, 1))
	s.SetInitialValues(tiles.Get(0), 1)
	s.SetInitialValues(tiles.Get(2), 0)
	s.Reachability(tiles, 0, 1)

	res, err := s.StartSolving()
	require.NoError(t, err)
	require.NotEqual(t, ResultUnsatisfiable, res)

	require.Equal(t, []int{0}, s.PotentialValues(tiles.Get(3)))
	require.Equal(t, []int{0}, s.PotentialValues(tiles.Get(4)))
}

func TestReachability_ForcedOpenButUnreachableIsUnsat(t *testing.T) {
	grid := NewGridTopology(5, 1)
	s := New("reachability-unsat", 9)
	tiles := s.NewVariableGraph("tile", grid, NewDomain(0, 1))
	s.SetInitialValues(tiles.Get(0), 1)
	s.SetInitialValues(tiles.Get(2), 0)
	s.SetInitialValues(tiles.Get(4), 1)
	s.Reachability(tiles, 0, 1)

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultUnsatisfiable, res)
}

func TestDomainUnification_CreatesSharedOffsets(t *testing.T) {
	s := New("unify", 10)
	a := s.NewVariable("a", NewDomain(0, 3))
	b := s.NewVariable("b", NewDomain(2, 5))
	s.AllDifferent(a, b)

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.NotEqual(t, s.SolvedValue(a), s.SolvedValue(b))
	// Unification created offset variables over [0,5].
	require.Greater(t, s.DB().NumVariables(), 2)
}
