package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticOrderHeuristic_PicksLowestUnsolved(t *testing.T) {
	s := New("static", 1, WithBaseHeuristic(NewStaticOrderHeuristic()))
	a := s.NewVariable("a", NewDomain(0, 2), 1) // already solved
	b := s.NewVariable("b", NewDomain(0, 2))
	_, err := s.StartSolving()
	require.NoError(t, err)

	v, vals, ok := NewStaticOrderHeuristic().NextDecision(s)
	require.True(t, ok)
	require.Equal(t, b, v)
	require.True(t, vals.IsSingleton())
	require.True(t, s.DB().IsSolved(a))
}

func TestVSIDS_ActivityOrdering(t *testing.T) {
	s := New("vsids", 4)
	for i := 0; i < 4; i++ {
		s.NewVariable("v", NewDomain(0, 1))
	}
	h := NewVSIDSHeuristic()
	s.heuristics = []DecisionHeuristic{h}
	h.Initialize(s)

	// Bump variable 3 hard; it must surface at the top of the heap.
	for i := 0; i < 10; i++ {
		h.OnVariableConflictActivity(VarID(3))
	}
	v, _, ok := h.NextDecision(s)
	require.True(t, ok)
	require.Equal(t, VarID(3), v)

	// Assignment removes it; unassignment brings it back.
	solvedSet := NewValueSetFromIndices(2, 0)
	full := NewValueSet(2, true)
	h.OnVariableAssignment(VarID(3), full, solvedSet)
	v, _, ok = h.NextDecision(s)
	require.True(t, ok)
	require.NotEqual(t, VarID(3), v)

	h.OnVariableUnassignment(VarID(3), solvedSet, full)
	v, _, ok = h.NextDecision(s)
	require.True(t, ok)
	require.Equal(t, VarID(3), v)
}

func TestVSIDS_RescalePreservesOrdering(t *testing.T) {
	s := New("vsids-rescale", 4)
	for i := 0; i < 3; i++ {
		s.NewVariable("v", NewDomain(0, 1))
	}
	h := NewVSIDSHeuristic()
	s.heuristics = []DecisionHeuristic{h}
	h.Initialize(s)

	h.increment = vsidsMaxActivity * 0.6
	h.OnVariableConflictActivity(VarID(2))
	h.OnVariableConflictActivity(VarID(2)) // triggers rescale
	require.Less(t, h.priorities[2], vsidsMaxActivity)
	v, _, ok := h.NextDecision(s)
	require.True(t, ok)
	require.Equal(t, VarID(2), v)
}

func TestLRB_LearningRateUpdates(t *testing.T) {
	s := New("lrb", 4)
	for i := 0; i < 3; i++ {
		s.NewVariable("v", NewDomain(0, 1))
	}
	h := NewLRBHeuristic(true)
	require.True(t, h.WantsReasonActivity())
	s.heuristics = []DecisionHeuristic{h}
	h.Initialize(s)

	full := NewValueSet(2, true)
	single := NewValueSetFromIndices(2, 1)

	// Assign v1, involve it in two conflicts over four learned clauses,
	// then unassign: its priority becomes the EMA toward the rates.
	h.OnVariableAssignment(VarID(1), full, single)
	h.OnClauseLearned()
	h.OnVariableConflictActivity(VarID(1))
	h.OnClauseLearned()
	h.OnVariableConflictActivity(VarID(1))
	h.OnVariableReasonActivity(VarID(1))
	h.OnClauseLearned()
	h.OnClauseLearned()

	before := h.priorities[1]
	h.OnVariableUnassignment(VarID(1), single, full)
	require.NotEqual(t, before, h.priorities[1])
	require.True(t, h.heap.Contains(uint32(1)))

	// interval=4, participated=2, reasoned=1 → target rate 0.75.
	expected := (1-h.stepSize)*before + h.stepSize*0.75
	require.InDelta(t, expected, h.priorities[1], 1e-6)
}

func TestHeuristicStack_UserStrategyFirst(t *testing.T) {
	log := NewDecisionLog()
	log.AddDecision(1, VarID(2), 1)

	s := New("stack", 8)
	a := s.NewVariable("a", NewDomain(0, 1))
	b := s.NewVariable("b", NewDomain(0, 1))
	s.AddDecisionHeuristic(NewLogOrderHeuristic(log))

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	// The logged decision forced b=1 first.
	require.Equal(t, 1, s.SolvedValue(b))
	_ = a
}
