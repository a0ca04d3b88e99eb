// Package solver: the sum constraint ties a sum variable to the total of
// its term variables, propagated by bounds consistency.
package solver

// SumConstraint enforces sum = term₁ + … + termₙ.
type SumConstraint struct {
	constraintCore
	solver *Solver
	sum    VarID
	terms  []VarID
}

// Sum creates a constraint enforcing that sum equals the total of terms.
func (s *Solver) Sum(sum VarID, terms ...VarID) *SumConstraint {
	assertf(len(terms) > 0, "Sum needs terms")
	vars := append([]VarID{sum}, terms...)
	c := &SumConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID(), vars: vars},
		solver:         s,
		sum:            sum,
		terms:          terms,
	}
	s.registerConstraint(c)
	return c
}

func varBounds(db *VariableDatabase, v VarID) (int, int) {
	dom := db.Domain(v)
	vals := db.PotentialValues(v)
	return dom.ValueFor(vals.FirstSet()), dom.ValueFor(vals.LastSet())
}

// rangeMask builds the subset of v's current values lying within [lo, hi].
func rangeMask(db *VariableDatabase, v VarID, lo, hi int) ValueSet {
	dom := db.Domain(v)
	out := dom.EmptySet()
	db.PotentialValues(v).ForEachSet(func(ix int) {
		val := dom.ValueFor(ix)
		if val >= lo && val <= hi {
			out.words[ix/64] |= 1 << uint(ix%64)
		}
	})
	return out
}

// enforce narrows the sum to the terms' reachable total range and each
// term to the range the sum leaves for it.
func (c *SumConstraint) enforce(db *VariableDatabase) bool {
	totalMin, totalMax := 0, 0
	for _, t := range c.terms {
		lo, hi := varBounds(db, t)
		totalMin += lo
		totalMax += hi
	}
	if !db.Constrain(c.sum, rangeMask(db, c.sum, totalMin, totalMax), c) {
		return false
	}
	sumMin, sumMax := varBounds(db, c.sum)
	for _, t := range c.terms {
		lo, hi := varBounds(db, t)
		othersMin, othersMax := totalMin-lo, totalMax-hi
		if !db.Constrain(t, rangeMask(db, t, sumMin-othersMax, sumMax-othersMin), c) {
			return false
		}
	}
	return true
}

// Initialize implements Constraint.
func (c *SumConstraint) Initialize(db *VariableDatabase) bool {
	for _, v := range c.vars {
		db.AddWatch(v, WatchBoundsChange, c)
	}
	return c.enforce(db)
}

// OnVariableNarrowed implements Constraint.
func (c *SumConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	c.solver.QueueConstraintPropagation(c)
	return true
}

// PropagateDeferred implements DeferredPropagator.
func (c *SumConstraint) PropagateDeferred(db *VariableDatabase) bool {
	return c.enforce(db)
}

// Explain implements Constraint.
func (c *SumConstraint) Explain(req ExplainRequest) []Literal {
	return defaultExplanation(c, req)
}

// CheckConflicting implements Constraint.
func (c *SumConstraint) CheckConflicting(db *VariableDatabase) bool {
	totalMin, totalMax := 0, 0
	for _, t := range c.terms {
		lo, hi := varBounds(db, t)
		totalMin += lo
		totalMax += hi
	}
	sumMin, sumMax := varBounds(db, c.sum)
	return sumMax < totalMin || sumMin > totalMax
}
