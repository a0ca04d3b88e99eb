// Package solver: the cardinality constraint bounds how many of its
// variables may take each value.
package solver

import "sort"

// CardinalityBound is the allowed occurrence range for one value.
type CardinalityBound struct {
	Min int
	Max int
}

// CardinalityConstraint enforces, for each bounded value, that the number
// of variables solved to that value stays within [Min, Max]. Values without
// a bound are unconstrained.
type CardinalityConstraint struct {
	constraintCore
	solver *Solver
	// bounds maps domain values to their occurrence range; boundedValues
	// holds its keys in ascending order so propagation is deterministic.
	// All variables share one (unified) domain.
	bounds        map[int]CardinalityBound
	boundedValues []int
	unified       []VarID
}

// Cardinality creates a cardinality constraint over the variables.
func (s *Solver) Cardinality(vars []VarID, bounds map[int]CardinalityBound) *CardinalityConstraint {
	assertf(len(vars) > 0, "Cardinality needs variables")
	unified := s.unifyVariableDomains(vars)
	values := make([]int, 0, len(bounds))
	for v := range bounds {
		values = append(values, v)
	}
	sort.Ints(values)
	c := &CardinalityConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID(), vars: append([]VarID(nil), vars...)},
		solver:         s,
		bounds:         bounds,
		boundedValues:  values,
		unified:        unified,
	}
	s.registerConstraint(c)
	return c
}

// tally counts, for a value, the variables solved to it and the variables
// that could still take it.
func (c *CardinalityConstraint) tally(db *VariableDatabase, value int) (solved, possible int) {
	for _, v := range c.unified {
		ix, ok := db.Domain(v).IndexFor(value)
		if !ok || !db.PotentialValues(v).Test(ix) {
			continue
		}
		possible++
		if db.IsSolved(v) {
			solved++
		}
	}
	return solved, possible
}

// enforce applies both directions for every bounded value: when the
// maximum is reached, unsolved variables lose the value; when the minimum
// is only just reachable, every candidate is forced to it.
func (c *CardinalityConstraint) enforce(db *VariableDatabase) bool {
	for _, value := range c.boundedValues {
		bound := c.bounds[value]
		solved, possible := c.tally(db, value)
		if solved > bound.Max {
			victim := c.unified[0]
			db.conflict = &conflictInfo{victim: victim, cause: c, attempted: db.Domain(victim).EmptySet()}
			return false
		}
		if solved == bound.Max {
			for _, v := range c.unified {
				if db.IsSolved(v) {
					continue
				}
				ix, ok := db.Domain(v).IndexFor(value)
				if !ok || !db.PotentialValues(v).Test(ix) {
					continue
				}
				if !db.Exclude(v, NewValueSetFromIndices(db.Domain(v).Size(), ix), c) {
					return false
				}
			}
		}
		if possible < bound.Min {
			// Not enough candidates remain.
			victim := c.unified[0]
			db.conflict = &conflictInfo{victim: victim, cause: c, attempted: db.Domain(victim).EmptySet()}
			return false
		}
		if possible == bound.Min {
			for _, v := range c.unified {
				ix, ok := db.Domain(v).IndexFor(value)
				if !ok || !db.PotentialValues(v).Test(ix) || db.IsSolved(v) {
					continue
				}
				if !db.Constrain(v, NewValueSetFromIndices(db.Domain(v).Size(), ix), c) {
					return false
				}
			}
		}
	}
	return true
}

// Initialize implements Constraint.
func (c *CardinalityConstraint) Initialize(db *VariableDatabase) bool {
	for _, v := range c.unified {
		db.AddWatch(v, WatchAnyChange, c)
	}
	return c.enforce(db)
}

// OnVariableNarrowed implements Constraint: batch through the deferred
// queue, since every pass scans all variables anyway.
func (c *CardinalityConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	c.solver.QueueConstraintPropagation(c)
	return true
}

// PropagateDeferred implements DeferredPropagator.
func (c *CardinalityConstraint) PropagateDeferred(db *VariableDatabase) bool {
	return c.enforce(db)
}

// Explain implements Constraint.
func (c *CardinalityConstraint) Explain(req ExplainRequest) []Literal {
	return defaultExplanation(c, req)
}

// CheckConflicting implements Constraint.
func (c *CardinalityConstraint) CheckConflicting(db *VariableDatabase) bool {
	for _, value := range c.boundedValues {
		bound := c.bounds[value]
		solved, possible := c.tally(db, value)
		if solved > bound.Max || possible < bound.Min {
			return true
		}
	}
	return false
}
