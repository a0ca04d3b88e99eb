package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S5: a 5×5 maze of wall/blank tiles. The entrance and exit are blank,
// every blank tile must be reachable from the entrance through
// 4-neighbour blank connectivity, and no 2×2 block may be all-wall or
// all-blank.
func TestScenario_Maze5x5(t *testing.T) {
	const wall, blank = 0, 1
	grid := NewGridTopology(5, 5)
	s := New("maze", 31)

	tiles := s.NewVariableGraph("tile", grid, NewDomain(0, 1))
	entrance, _ := grid.VertexAt(0, 0)
	exit, _ := grid.VertexAt(4, 4)
	s.SetInitialValues(tiles.Get(entrance), blank)
	s.SetInitialValues(tiles.Get(exit), blank)

	s.Reachability(tiles, entrance, blank)

	// 2×2 uniform blocks are forbidden via graph clause templates anchored
	// at each block's top-left corner.
	blockTemplate := func(value int) GraphClauseBuilder {
		return func(vertex int) ([]SignedClause, bool) {
			x, y := grid.Coordinates(vertex)
			var clauses []SignedClause
			for _, d := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
				v, ok := grid.VertexAt(x+d[0], y+d[1])
				if !ok {
					return nil, false
				}
				clauses = append(clauses, Clause(tiles.Get(v), value))
			}
			return clauses, true
		}
	}
	s.MakeGraphClauses(tiles, true, blockTemplate(wall))
	s.MakeGraphClauses(tiles, true, blockTemplate(blank))

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.Empty(t, s.VerifySolution())

	// Flood fill from the entrance through blanks and verify every blank
	// is reached.
	isBlank := func(v int) bool { return s.SolvedValue(tiles.Get(v)) == blank }
	require.True(t, isBlank(entrance))
	require.True(t, isBlank(exit))

	seen := make(map[int]bool)
	queue := []int{entrance}
	seen[entrance] = true
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, n := range grid.Outgoing(v) {
			if !seen[n] && isBlank(n) {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	for v := 0; v < grid.NumVertices(); v++ {
		if isBlank(v) {
			require.True(t, seen[v], "blank tile %s unreachable", grid.VertexToString(v))
		}
	}

	// No 2×2 block uniform.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			count := 0
			for _, d := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
				v, _ := grid.VertexAt(x+d[0], y+d[1])
				if isBlank(v) {
					count++
				}
			}
			require.NotEqual(t, 0, count, "all-wall block at (%d,%d)", x, y)
			require.NotEqual(t, 4, count, "all-blank block at (%d,%d)", x, y)
		}
	}
}
