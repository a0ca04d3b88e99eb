// Package solver: the decision heuristic contract, plus the two trivial
// strategies (static order and decision-log replay). The activity-based
// strategies live in vsids.go and lrb.go.
package solver

// DecisionHeuristic chooses the next (variable, value set) pair to branch
// on. The engine keeps a stack of heuristics and queries them top-down
// until one produces a decision; a heuristic returning false defers to the
// next one.
//
// The engine feeds every heuristic the full stream of search events so that
// activity-based strategies can maintain their scores.
type DecisionHeuristic interface {
	// Initialize is called once, after rules are finalized and initial
	// arc consistency is established.
	Initialize(s *Solver)

	// NextDecision returns the variable to branch on and the value set to
	// narrow it to, or false to defer to the next heuristic on the stack.
	NextDecision(s *Solver) (VarID, ValueSet, bool)

	// OnVariableAssignment is called for every narrowing of a variable.
	OnVariableAssignment(v VarID, prev, next ValueSet)

	// OnVariableUnassignment is called during backjumping for every undone
	// narrowing.
	OnVariableUnassignment(v VarID, beforeBacktrack, afterBacktrack ValueSet)

	// OnVariableConflictActivity is called for every variable appearing
	// in the learned clause during conflict analysis.
	OnVariableConflictActivity(v VarID)

	// OnVariableReasonActivity is called for variables on the reason side
	// of a resolution step, for heuristics that request it.
	OnVariableReasonActivity(v VarID)

	// WantsReasonActivity reports whether the heuristic uses
	// OnVariableReasonActivity. Reason tracking has a cost, so the engine
	// only produces the events when some heuristic asks.
	WantsReasonActivity() bool

	// OnClauseLearned is called once per learned clause (i.e. once per
	// conflict).
	OnClauseLearned()

	// OnRestarted is called after the engine backjumps to level zero for
	// a restart.
	OnRestarted()
}

// heuristicBase provides no-op implementations of the event callbacks so
// simple strategies only implement what they need.
type heuristicBase struct{}

func (heuristicBase) OnVariableAssignment(VarID, ValueSet, ValueSet)   {}
func (heuristicBase) OnVariableUnassignment(VarID, ValueSet, ValueSet) {}
func (heuristicBase) OnVariableConflictActivity(VarID)                 {}
func (heuristicBase) OnVariableReasonActivity(VarID)                   {}
func (heuristicBase) WantsReasonActivity() bool                        { return false }
func (heuristicBase) OnClauseLearned()                                 {}
func (heuristicBase) OnRestarted()                                     {}

// chooseValueIndex picks the value to try for a variable: the last value it
// was solved to if still possible (phase saving), otherwise a uniformly
// random possible value.
func chooseValueIndex(s *Solver, v VarID) int {
	potentials := s.db.PotentialValues(v)
	if last, ok := s.db.LastSolvedIndex(v); ok && potentials.Test(last) {
		return last
	}
	indices := potentials.ToIndices()
	return indices[s.randomRange(0, len(indices)-1)]
}

// StaticOrderHeuristic branches on the lowest-numbered unsolved variable.
// Useful as a deterministic baseline and as the bottom of the stack.
type StaticOrderHeuristic struct {
	heuristicBase
}

// NewStaticOrderHeuristic returns a heuristic that picks variables in
// creation order.
func NewStaticOrderHeuristic() *StaticOrderHeuristic { return &StaticOrderHeuristic{} }

// Initialize implements DecisionHeuristic.
func (h *StaticOrderHeuristic) Initialize(*Solver) {}

// NextDecision implements DecisionHeuristic.
func (h *StaticOrderHeuristic) NextDecision(s *Solver) (VarID, ValueSet, bool) {
	for v := VarID(1); int(v) <= s.db.NumVariables(); v++ {
		if !s.db.IsSolved(v) {
			ix := chooseValueIndex(s, v)
			return v, NewValueSetFromIndices(s.db.Domain(v).Size(), ix), true
		}
	}
	return InvalidVarID, ValueSet{}, false
}

// LogOrderHeuristic replays the decisions from a previously recorded
// DecisionLog. Entries whose variable is already solved consistently are
// skipped; once the log is exhausted the heuristic defers.
type LogOrderHeuristic struct {
	heuristicBase
	log  *DecisionLog
	next int
}

// NewLogOrderHeuristic returns a heuristic replaying the given log.
func NewLogOrderHeuristic(log *DecisionLog) *LogOrderHeuristic {
	return &LogOrderHeuristic{log: log}
}

// Initialize implements DecisionHeuristic.
func (h *LogOrderHeuristic) Initialize(*Solver) { h.next = 0 }

// NextDecision implements DecisionHeuristic.
func (h *LogOrderHeuristic) NextDecision(s *Solver) (VarID, ValueSet, bool) {
	for h.next < len(h.log.decisions) {
		rec := h.log.decisions[h.next]
		h.next++
		if !rec.Var.IsValid() || int(rec.Var) > s.db.NumVariables() {
			continue
		}
		potentials := s.db.PotentialValues(rec.Var)
		if s.db.IsSolved(rec.Var) {
			continue
		}
		if !potentials.Test(rec.ValueIndex) {
			continue
		}
		return rec.Var, NewValueSetFromIndices(s.db.Domain(rec.Var).Size(), rec.ValueIndex), true
	}
	return InvalidVarID, ValueSet{}, false
}

// OnRestarted implements DecisionHeuristic: replay starts over, skipping
// entries that remain consistent.
func (h *LogOrderHeuristic) OnRestarted() { h.next = 0 }
