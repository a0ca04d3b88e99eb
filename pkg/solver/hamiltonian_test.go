package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S3: a rule program finding a Hamiltonian cycle on the 4-node graph with
// edges 0→1, 0→2, 1→2, 1→3, 2→0, 2→3, 3→0. Every node must have exactly
// one incoming and one outgoing path edge, and every node must be
// reachable from node 0 along chosen path edges.
func TestScenario_HamiltonianProgram(t *testing.T) {
	edges := [][2]int{{0, 1}, {0, 2}, {1, 2}, {1, 3}, {2, 0}, {2, 3}, {3, 0}}

	prog := NewProgram("hamiltonian")
	node := prog.Formula("node", 1)
	edge := prog.Formula("edge", 2)
	start := prog.Formula("start", 1)
	for v := 0; v < 4; v++ {
		node.Fact(v)
	}
	for _, e := range edges {
		edge.Fact(e[0], e[1])
	}
	start.Fact(0)

	X := prog.Wildcard("X")
	Y := prog.Wildcard("Y")
	Z := prog.Wildcard("Z")
	X1 := prog.Wildcard("X1")
	Y1 := prog.Wildcard("Y1")

	path := prog.Formula("path", 2)
	omit := prog.Formula("omit", 2)

	// Each edge is either on the path or omitted.
	prog.Rule(path.T(X, Y), Not(omit.T(X, Y)), edge.T(X, Y))
	prog.Rule(omit.T(X, Y), Not(path.T(X, Y)), edge.T(X, Y))

	// No two path edges may end or start at the same node.
	prog.Disallow(path.T(X, Y), path.T(X1, Y), Lt(X, X1))
	prog.Disallow(path.T(X, Y), path.T(X, Y1), Lt(Y, Y1))

	// Every node lies on the path: it has an incoming and an outgoing
	// path edge.
	onPath := prog.Formula("on_path", 1)
	prog.Rule(onPath.T(Y), path.T(X, Y), path.T(Y, Z))
	prog.Disallow(node.T(X), Not(onPath.T(X)))

	// Every node is reachable from the start along path edges.
	reach := prog.Formula("reach", 1)
	prog.Rule(reach.T(X), start.T(X))
	prog.Rule(reach.T(Y), reach.T(X), path.T(X, Y))
	prog.Disallow(node.T(X), Not(reach.T(X)))

	s := New("hamiltonian", 3)

	var pathVars [4][4]VarID
	path.Bind(func(args []Symbol) VarID {
		x, y := args[0].Int(), args[1].Int()
		require.False(t, pathVars[x][y].IsValid())
		pathVars[x][y] = s.NewBoolean("path")
		return pathVars[x][y]
	})

	s.AddProgram(prog.Instantiate())
	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.Empty(t, s.VerifySolution())

	hasEdge := func(x, y int) bool {
		for _, e := range edges {
			if e[0] == x && e[1] == y {
				return true
			}
		}
		return false
	}

	// Collect chosen path edges; every chosen pair must be a graph edge.
	next := make(map[int]int)
	prev := make(map[int]int)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			if !pathVars[x][y].IsValid() || s.SolvedValue(pathVars[x][y]) != 1 {
				continue
			}
			require.True(t, hasEdge(x, y), "path(%d,%d) is not an edge", x, y)
			_, dup := next[x]
			require.False(t, dup, "node %d has two outgoing path edges", x)
			next[x] = y
			_, dup = prev[y]
			require.False(t, dup, "node %d has two incoming path edges", y)
			prev[y] = x
		}
	}

	// The chosen edges form a single circuit visiting all 4 nodes.
	require.Len(t, next, 4)
	require.Len(t, prev, 4)
	visited := map[int]bool{0: true}
	at := 0
	for i := 0; i < 4; i++ {
		to, ok := next[at]
		require.True(t, ok)
		at = to
		visited[at] = true
	}
	require.Equal(t, 0, at, "path does not close into a circuit")
	require.Len(t, visited, 4)
}
