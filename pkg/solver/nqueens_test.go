package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S2: 8 queens, one per column, with the diagonals expressed as shifted
// copies of the column variables. The shifted copies are created over
// per-queen domains, so all-different additionally exercises domain
// unification through offset variables.
func TestScenario_NQueens8(t *testing.T) {
	const n = 8
	s := New("n-queens", 17)

	queens := make([]VarID, n)
	diagUp := make([]VarID, n)
	diagDown := make([]VarID, n)
	for i := 0; i < n; i++ {
		queens[i] = s.NewVariable("q", NewDomain(0, n-1))
		// q[i] + i, each over its own shifted domain.
		diagUp[i] = s.NewVariable("dUp", NewDomain(i, n-1+i))
		s.Offset(diagUp[i], queens[i], i)
		// q[i] - i.
		diagDown[i] = s.NewVariable("dDown", NewDomain(-i, n-1-i))
		s.Offset(diagDown[i], queens[i], -i)
	}
	s.AllDifferent(queens...)
	s.AllDifferent(diagUp...)
	s.AllDifferent(diagDown...)

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.Empty(t, s.VerifySolution())

	rows := make([]int, n)
	for i := range queens {
		rows[i] = s.SolvedValue(queens[i])
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			require.NotEqual(t, rows[i], rows[j], "queens %d and %d share a row", i, j)
			require.NotEqual(t, rows[i]+i, rows[j]+j, "queens %d and %d share a diagonal", i, j)
			require.NotEqual(t, rows[i]-i, rows[j]-j, "queens %d and %d share an anti-diagonal", i, j)
		}
	}

	// The shifted copies track their sources.
	for i := 0; i < n; i++ {
		require.Equal(t, rows[i]+i, s.SolvedValue(diagUp[i]))
		require.Equal(t, rows[i]-i, s.SolvedValue(diagDown[i]))
	}
}
