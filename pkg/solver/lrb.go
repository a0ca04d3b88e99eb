// Package solver: the coarse learning-rate branching heuristic. It tracks,
// per variable, how often the variable participates in conflicts while
// assigned, and branches on the variables with the highest learning rate.
// Coarse because it scores variables, not individual values.
package solver

import "math"

const (
	lrbMinStepSize   = 0.06
	lrbStepDecaySize = 1e-5
	lrbRecencyDecay  = 0.99
	lrbEMASeedRange  = 0.75
)

// LRBHeuristic implements learning-rate branching. On every un-assignment
// the variable's priority is folded into an exponential moving average of
// its conflict participation rate over the interval it was assigned; a
// recency decay ages priorities of variables that have sat untouched in the
// heap.
type LRBHeuristic struct {
	solver     *Solver
	priorities []float64
	heap       *priorityHeap

	// wantReason enables reason-side-rate tracking, which sharpens the
	// score at a measurable propagation cost.
	wantReason bool

	stepSize     float64
	learnCounter int

	assigned     []int
	unassigned   []int
	participated []int
	reasoned     []int
}

// NewLRBHeuristic returns an uninitialized LRB heuristic. withReasonRate
// additionally tracks the reason-side rate term.
func NewLRBHeuristic(withReasonRate bool) *LRBHeuristic {
	return &LRBHeuristic{wantReason: withReasonRate, stepSize: 0.4}
}

// Initialize seeds priorities with small random values so the seed matters
// before any learning-rate data exists.
func (h *LRBHeuristic) Initialize(s *Solver) {
	h.solver = s
	n := s.db.NumVariables()
	h.priorities = make([]float64, n+1)
	h.assigned = make([]int, n+1)
	h.unassigned = make([]int, n+1)
	h.participated = make([]int, n+1)
	h.reasoned = make([]int, n+1)
	h.heap = newPriorityHeap(func(a, b uint32) bool {
		return h.priorities[a] > h.priorities[b]
	})
	for i := 1; i <= n; i++ {
		if !s.db.IsSolved(VarID(i)) {
			h.priorities[i] = s.randomRangeFloat(0, lrbEMASeedRange)
			h.heap.Insert(uint32(i))
		}
	}
}

// NextDecision applies the recency decay to the top of the heap until the
// top entry's priority is current, then branches on it. The value is the
// variable's last solved value when still possible, else a uniformly
// random candidate.
func (h *LRBHeuristic) NextDecision(s *Solver) (VarID, ValueSet, bool) {
	if h.heap.Empty() {
		return InvalidVarID, ValueSet{}, false
	}
	top := h.heap.Peek()
	for age := h.learnCounter - h.unassigned[top]; age > 0; age = h.learnCounter - h.unassigned[top] {
		h.priorities[top] *= math.Pow(lrbRecencyDecay, float64(age))
		h.heap.Update(top)
		h.unassigned[top] = h.learnCounter
		top = h.heap.Peek()
	}
	v := VarID(top)
	ix := chooseValueIndex(s, v)
	return v, NewValueSetFromIndices(s.db.Domain(v).Size(), ix), true
}

// OnVariableAssignment starts a new participation interval for the
// variable.
func (h *LRBHeuristic) OnVariableAssignment(v VarID, prev, next ValueSet) {
	if next.IsSingleton() {
		h.assigned[v] = h.learnCounter
		h.participated[v] = 0
		h.reasoned[v] = 0
		h.heap.Remove(uint32(v))
	}
}

// OnVariableUnassignment folds the interval's learning rate into the
// variable's priority and reinserts it.
func (h *LRBHeuristic) OnVariableUnassignment(v VarID, beforeBacktrack, afterBacktrack ValueSet) {
	if !beforeBacktrack.IsSingleton() {
		return
	}
	if !h.heap.Contains(uint32(v)) {
		if interval := float64(h.learnCounter - h.assigned[v]); interval > 0 {
			rate := float64(h.participated[v]) / interval
			reasonRate := float64(h.reasoned[v]) / interval
			h.priorities[v] = (1-h.stepSize)*h.priorities[v] + h.stepSize*(rate+reasonRate)
		}
		h.heap.Insert(uint32(v))
	}
	h.unassigned[v] = h.learnCounter
}

// OnVariableConflictActivity counts a conflict participation.
func (h *LRBHeuristic) OnVariableConflictActivity(v VarID) { h.participated[v]++ }

// OnVariableReasonActivity counts a reason-side participation.
func (h *LRBHeuristic) OnVariableReasonActivity(v VarID) { h.reasoned[v]++ }

// WantsReasonActivity implements DecisionHeuristic.
func (h *LRBHeuristic) WantsReasonActivity() bool { return h.wantReason }

// OnClauseLearned advances the learn counter and decays the step size
// toward its floor.
func (h *LRBHeuristic) OnClauseLearned() {
	h.learnCounter++
	h.stepSize -= lrbStepDecaySize
	if h.stepSize < lrbMinStepSize {
		h.stepSize = lrbMinStepSize
	}
}

// OnRestarted implements DecisionHeuristic.
func (h *LRBHeuristic) OnRestarted() {}
