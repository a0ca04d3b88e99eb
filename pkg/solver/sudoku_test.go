package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// sudokuSolution is a known-valid grid; sudokuClueCells reveals 17 of its
// cells, so the instance is guaranteed satisfiable.
var sudokuSolution = [9][9]int{
	{5, 3, 4, 6, 7, 8, 9, 1, 2},
	{6, 7, 2, 1, 9, 5, 3, 4, 8},
	{1, 9, 8, 3, 4, 2, 5, 6, 7},
	{8, 5, 9, 7, 6, 1, 4, 2, 3},
	{4, 2, 6, 8, 5, 3, 7, 9, 1},
	{7, 1, 3, 9, 2, 4, 8, 5, 6},
	{9, 6, 1, 5, 3, 7, 2, 8, 4},
	{2, 8, 7, 4, 1, 9, 6, 3, 5},
	{3, 4, 5, 2, 8, 6, 1, 7, 9},
}

var sudokuClueCells = [17][2]int{
	{0, 0}, {0, 4}, {1, 1}, {1, 8}, {2, 3}, {2, 6}, {3, 2},
	{3, 5}, {4, 0}, {4, 7}, {5, 4}, {5, 6}, {6, 1}, {6, 8},
	{7, 3}, {8, 0}, {8, 5},
}

// S1: 81 variables, 27 all-different constraints, 17 clues.
func TestScenario_Sudoku(t *testing.T) {
	s := New("sudoku", 42)

	var cells [9][9]VarID
	clued := make(map[[2]int]bool, len(sudokuClueCells))
	for _, c := range sudokuClueCells {
		clued[c] = true
	}
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if clued[[2]int{r, c}] {
				cells[r][c] = s.NewVariable("cell", NewDomain(1, 9), sudokuSolution[r][c])
			} else {
				cells[r][c] = s.NewVariable("cell", NewDomain(1, 9))
			}
		}
	}

	for r := 0; r < 9; r++ {
		row := make([]VarID, 9)
		col := make([]VarID, 9)
		for c := 0; c < 9; c++ {
			row[c] = cells[r][c]
			col[c] = cells[c][r]
		}
		s.AllDifferent(row...)
		s.AllDifferent(col...)
	}
	for br := 0; br < 3; br++ {
		for bc := 0; bc < 3; bc++ {
			box := make([]VarID, 0, 9)
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					box = append(box, cells[br*3+r][bc*3+c])
				}
			}
			s.AllDifferent(box...)
		}
	}

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.Empty(t, s.VerifySolution())

	// Every row, column, and box is a permutation of 1..9.
	checkPermutation := func(vars []VarID, what string) {
		seen := make(map[int]bool, 9)
		for _, v := range vars {
			val := s.SolvedValue(v)
			require.GreaterOrEqual(t, val, 1)
			require.LessOrEqual(t, val, 9)
			require.False(t, seen[val], "%s repeats %d", what, val)
			seen[val] = true
		}
	}
	for r := 0; r < 9; r++ {
		row := make([]VarID, 9)
		col := make([]VarID, 9)
		for c := 0; c < 9; c++ {
			row[c] = cells[r][c]
			col[c] = cells[c][r]
		}
		checkPermutation(row, "row")
		checkPermutation(col, "column")
	}
	for br := 0; br < 3; br++ {
		for bc := 0; bc < 3; bc++ {
			box := make([]VarID, 0, 9)
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					box = append(box, cells[br*3+r][bc*3+c])
				}
			}
			checkPermutation(box, "box")
		}
	}

	// The clue cells keep their values.
	for _, c := range sudokuClueCells {
		require.Equal(t, sudokuSolution[c[0]][c[1]], s.SolvedValue(cells[c[0]][c[1]]))
	}
}
