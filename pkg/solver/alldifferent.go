// Package solver: the all-different constraint. Variables with differing
// domains are first unified onto a shared domain through offset variables,
// then propagated by value elimination: whenever a variable solves, its
// value is removed from every sibling.
package solver

// AllDifferentConstraint requires every pair of its variables to take
// different values.
type AllDifferentConstraint struct {
	constraintCore
	// unified are the variables actually propagated over; they share one
	// domain. Equal to vars unless domain unification created offsets.
	unified []VarID
	solver  *Solver
}

// AllDifferent creates an all-different constraint over the variables.
// Variables may have different domains; they are unified internally.
func (s *Solver) AllDifferent(vars ...VarID) *AllDifferentConstraint {
	assertf(len(vars) > 1, "AllDifferent needs at least two variables")
	unified := s.unifyVariableDomains(vars)
	c := &AllDifferentConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID(), vars: append([]VarID(nil), vars...)},
		unified:        unified,
		solver:         s,
	}
	s.registerConstraint(c)
	return c
}

// Initialize implements Constraint: watch for variables becoming solved and
// eliminate values already fixed.
func (c *AllDifferentConstraint) Initialize(db *VariableDatabase) bool {
	for _, v := range c.unified {
		db.AddWatch(v, WatchSolved, c)
	}
	for _, v := range c.unified {
		if db.IsSolved(v) {
			if !c.eliminate(db, v) {
				return false
			}
		}
	}
	return true
}

// eliminate removes the solved value of v from every other variable.
func (c *AllDifferentConstraint) eliminate(db *VariableDatabase, v VarID) bool {
	ix := db.PotentialValues(v).SingletonIndex()
	mask := NewValueSetFromIndices(db.Domain(v).Size(), ix)
	for _, other := range c.unified {
		if other == v {
			continue
		}
		if !db.Exclude(other, mask, c) {
			return false
		}
	}
	return true
}

// OnVariableNarrowed implements Constraint. The watch only fires when the
// variable became a singleton.
func (c *AllDifferentConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	return c.eliminate(db, v)
}

// Explain implements Constraint: removing value a from w is justified by
// "the variable solved to a does not hold a, or w avoids a". Culprits are
// located in the state at the narrowing's timestamp, so their literals
// were falsified before it.
func (c *AllDifferentConstraint) Explain(req ExplainRequest) []Literal {
	// Identify the values that were excluded.
	removed := req.DB.ValuesBefore(req.Var, req.Timestamp).Exclude(req.Values)
	if req.Conflict {
		removed = req.DB.ValuesBefore(req.Var, req.Timestamp)
	}
	size := removed.Size()

	lits := []Literal{{Var: req.Var, Values: removed.Invert()}}
	if !req.Conflict {
		lits[0].Values = lits[0].Values.Union(req.Values)
	}
	for _, other := range c.unified {
		if other == req.Var {
			continue
		}
		vals := req.DB.ValuesBefore(other, req.Timestamp)
		if vals.IsSingleton() && vals.AnyCommon(removed) {
			lits = append(lits, Literal{Var: other, Values: NewValueSet(size, true).Exclude(removed)})
		}
	}
	return lits
}

// CheckConflicting implements Constraint.
func (c *AllDifferentConstraint) CheckConflicting(db *VariableDatabase) bool {
	seen := make(map[int]bool)
	for _, v := range c.unified {
		if !db.IsSolved(v) {
			continue
		}
		val := db.SolvedValue(v)
		if seen[val] {
			return true
		}
		seen[val] = true
	}
	return false
}
