// Package solver: the VSIDS decision heuristic (Variable State Independent
// Decaying Sum). Variables involved in recent conflicts float to the top of
// an activity heap.
package solver

const (
	vsidsInitialActivityRange = 1.0
	vsidsMaxActivity          = 1e100
	vsidsActivityRescale      = 1e-100
	vsidsInitialDecay         = 1.0 / 0.85
	vsidsMaxDecay             = 1.0 / 0.999
	vsidsDecayStep            = 0.01
	vsidsDecayUpdateFrequency = 5000
)

// VSIDSHeuristic implements the standard VSIDS branching strategy. Each
// variable carries an activity score; conflict analysis bumps the score of
// every variable in the learned clause, and the bump increment grows
// geometrically so recent conflicts dominate. Scores are rescaled before
// they can overflow.
type VSIDSHeuristic struct {
	heuristicBase
	solver     *Solver
	priorities []float64
	heap       *priorityHeap
	increment  float64
	decay      float64
	conflicts  int
}

// NewVSIDSHeuristic returns an uninitialized VSIDS heuristic.
func NewVSIDSHeuristic() *VSIDSHeuristic {
	return &VSIDSHeuristic{increment: 1.0, decay: vsidsInitialDecay}
}

// Initialize seeds every unsolved variable with a small random activity so
// the seed influences early tie-breaking, and builds the heap.
func (h *VSIDSHeuristic) Initialize(s *Solver) {
	h.solver = s
	n := s.db.NumVariables()
	h.priorities = make([]float64, n+1)
	h.heap = newPriorityHeap(func(a, b uint32) bool {
		return h.priorities[a] > h.priorities[b]
	})
	for i := 1; i <= n; i++ {
		if !s.db.IsSolved(VarID(i)) {
			h.priorities[i] = s.randomRangeFloat(0, vsidsInitialActivityRange)
			h.heap.Insert(uint32(i))
		}
	}
}

// NextDecision implements DecisionHeuristic.
func (h *VSIDSHeuristic) NextDecision(s *Solver) (VarID, ValueSet, bool) {
	if h.heap.Empty() {
		return InvalidVarID, ValueSet{}, false
	}
	v := VarID(h.heap.Peek())
	ix := chooseValueIndex(s, v)
	return v, NewValueSetFromIndices(s.db.Domain(v).Size(), ix), true
}

// OnVariableAssignment removes a variable from the heap once it is solved.
func (h *VSIDSHeuristic) OnVariableAssignment(v VarID, prev, next ValueSet) {
	if next.IsSingleton() {
		h.heap.Remove(uint32(v))
	}
}

// OnVariableUnassignment reinserts a variable when backjumping un-solves it.
func (h *VSIDSHeuristic) OnVariableUnassignment(v VarID, beforeBacktrack, afterBacktrack ValueSet) {
	if beforeBacktrack.IsSingleton() {
		h.heap.Insert(uint32(v))
	}
}

// OnVariableConflictActivity bumps the variable's activity.
func (h *VSIDSHeuristic) OnVariableConflictActivity(v VarID) {
	h.priorities[v] += h.increment
	if h.priorities[v] > vsidsMaxActivity {
		for i := range h.priorities {
			h.priorities[i] *= vsidsActivityRescale
		}
		h.increment *= vsidsActivityRescale
	}
	if h.heap.Contains(uint32(v)) {
		h.heap.Update(uint32(v))
	}
}

// OnClauseLearned grows the increment and periodically tightens the decay
// toward its asymptote.
func (h *VSIDSHeuristic) OnClauseLearned() {
	h.conflicts++
	h.increment *= h.decay
	if h.conflicts%vsidsDecayUpdateFrequency == 0 {
		if next := h.decay - vsidsDecayStep; next > vsidsMaxDecay {
			h.decay = next
		} else {
			h.decay = vsidsMaxDecay
		}
	}
}
