package solver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFindSCCs_Components(t *testing.T) {
	// 0 -> 1 -> 2 -> 0 form a cycle; 3 -> 0; 4 isolated.
	edges := [][]int{
		0: {1},
		1: {2},
		2: {0},
		3: {0},
		4: {},
	}
	var components [][]int
	comp := findSCCs(5, func(n int) []int { return edges[n] }, func(members []int) {
		sorted := append([]int(nil), members...)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j] < sorted[i] {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		components = append(components, sorted)
	})

	require.Equal(t, comp[0], comp[1])
	require.Equal(t, comp[1], comp[2])
	require.NotEqual(t, comp[0], comp[3])
	require.NotEqual(t, comp[0], comp[4])

	if diff := cmp.Diff([]int{0, 1, 2}, components[0]); diff != "" {
		t.Fatalf("first completed component mismatch (-want +got):\n%s", diff)
	}
}

// Edge ordering: for every edge, either both endpoints share a component or
// the target's component completes (is numbered) before the source's.
func TestFindSCCs_EdgeOrdering(t *testing.T) {
	edges := [][]int{
		0: {1, 3},
		1: {2},
		2: {1, 4},
		3: {4},
		4: {},
		5: {0, 5},
	}
	comp := findSCCs(6, func(n int) []int { return edges[n] }, nil)
	for src, dsts := range edges {
		for _, dst := range dsts {
			if comp[src] == comp[dst] {
				continue
			}
			require.Less(t, comp[dst], comp[src],
				"edge %d->%d crosses components out of order", src, dst)
		}
	}
}

func TestFindSCCs_SelfLoopAndChain(t *testing.T) {
	// 0 -> 0 (self loop), 0 -> 1 -> 2.
	edges := [][]int{
		0: {0, 1},
		1: {2},
		2: {},
	}
	comp := findSCCs(3, func(n int) []int { return edges[n] }, nil)
	require.NotEqual(t, comp[0], comp[1])
	require.NotEqual(t, comp[1], comp[2])
	require.Greater(t, comp[0], comp[1])
	require.Greater(t, comp[1], comp[2])
}
