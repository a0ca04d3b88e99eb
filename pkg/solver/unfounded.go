// Package solver: unfounded-set reasoning for recursive (non-tight) rule
// programs. The clause encoding alone lets a cycle of atoms support each
// other; the analyzer falsifies any group of atoms whose only remaining
// support is circular.
package solver

// unfoundedSetConstraint guards one recursive component of the positive
// dependency graph. It watches every atom and body variable involved;
// whenever support weakens it recomputes which atoms still have a
// non-circular chain of possible support, and falsifies the rest.
type unfoundedSetConstraint struct {
	constraintCore
	solver *Solver
	rdb    *RuleDatabase

	// atoms in the component, with membership for the internal test.
	atoms []AtomID
	inSCC map[AtomID]bool
	// explanations captures, per falsified atom variable, the reason
	// clause recorded at propagation time.
	explanations map[VarID][]Literal
}

// newUnfoundedSetConstraint installs the analyzer for one component.
// Called by the rule database during finalize.
func newUnfoundedSetConstraint(s *Solver, rdb *RuleDatabase, atoms []AtomID) *unfoundedSetConstraint {
	c := &unfoundedSetConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID()},
		solver:         s,
		rdb:            rdb,
		atoms:          atoms,
		inSCC:          make(map[AtomID]bool, len(atoms)),
		explanations:   make(map[VarID][]Literal),
	}
	seen := make(map[VarID]bool)
	addVar := func(v VarID) {
		if v.IsValid() && !seen[v] {
			seen[v] = true
			c.vars = append(c.vars, v)
		}
	}
	for _, id := range atoms {
		c.inSCC[id] = true
		addVar(rdb.atoms[id].equivalence.Var)
		for _, bix := range rdb.atoms[id].supports {
			addVar(rdb.bodies[bix].equivalence.Var)
		}
	}
	s.registerConstraint(c)
	return c
}

// bodyPossiblyTrue reports whether the body can still hold.
func (c *unfoundedSetConstraint) bodyPossiblyTrue(db *VariableDatabase, b *bodyInfo) bool {
	switch b.status {
	case TruthTrue:
		return true
	case TruthFalse:
		return false
	}
	return satisfiable(db, b.equivalence)
}

// atomPossiblyTrue reports whether the atom can still hold.
func (c *unfoundedSetConstraint) atomPossiblyTrue(db *VariableDatabase, id AtomID) bool {
	a := c.rdb.atoms[id]
	switch a.status {
	case TruthTrue:
		return true
	case TruthFalse:
		return false
	}
	return satisfiable(db, a.equivalence)
}

// foundedAtoms computes the component members with a viable support chain
// rooted outside the component: an atom is founded when some possibly-true
// support body has all of its in-component positive literals founded.
func (c *unfoundedSetConstraint) foundedAtoms(db *VariableDatabase) map[AtomID]bool {
	founded := make(map[AtomID]bool, len(c.atoms))
	changed := true
	for changed {
		changed = false
		for _, id := range c.atoms {
			if founded[id] {
				continue
			}
			for _, bix := range c.rdb.atoms[id].supports {
				b := c.rdb.bodies[bix]
				if !c.bodyPossiblyTrue(db, b) {
					continue
				}
				viable := true
				for _, l := range b.lits {
					if l.Sign && c.inSCC[l.ID] && !founded[l.ID] {
						viable = false
						break
					}
				}
				if viable {
					founded[id] = true
					changed = true
					break
				}
			}
		}
	}
	return founded
}

// unfoundedExplanation builds the reason an unfounded atom must be false:
// either the atom is false, or some support body of the unfounded group
// that is currently impossible becomes true again.
func (c *unfoundedSetConstraint) unfoundedExplanation(db *VariableDatabase, atom AtomID, founded map[AtomID]bool) []Literal {
	lits := []Literal{c.rdb.atoms[atom].equivalence.Inverted()}
	seen := make(map[VarID]bool)
	for _, id := range c.atoms {
		if founded[id] {
			continue
		}
		for _, bix := range c.rdb.atoms[id].supports {
			b := c.rdb.bodies[bix]
			if c.bodyPossiblyTrue(db, b) || !b.equivalence.Var.IsValid() {
				continue
			}
			if !seen[b.equivalence.Var] {
				seen[b.equivalence.Var] = true
				lits = append(lits, b.equivalence)
			}
		}
	}
	return lits
}

// enforce falsifies every unfounded, still-possible atom.
func (c *unfoundedSetConstraint) enforce(db *VariableDatabase) bool {
	founded := c.foundedAtoms(db)
	for _, id := range c.atoms {
		if founded[id] || !c.atomPossiblyTrue(db, id) {
			continue
		}
		a := c.rdb.atoms[id]
		if !a.equivalence.Var.IsValid() {
			continue
		}
		c.explanations[a.equivalence.Var] = c.unfoundedExplanation(db, id, founded)
		if !db.Constrain(a.equivalence.Var, a.equivalence.Values.Invert(), c) {
			return false
		}
	}
	return true
}

// Initialize implements Constraint.
func (c *unfoundedSetConstraint) Initialize(db *VariableDatabase) bool {
	for _, v := range c.vars {
		db.AddWatch(v, WatchAnyChange, c)
	}
	return c.enforce(db)
}

// OnVariableNarrowed implements Constraint: recompute once per propagation
// wave through the deferred queue.
func (c *unfoundedSetConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	c.solver.QueueConstraintPropagation(c)
	return true
}

// PropagateDeferred implements DeferredPropagator.
func (c *unfoundedSetConstraint) PropagateDeferred(db *VariableDatabase) bool {
	return c.enforce(db)
}

// Explain implements Constraint, returning the clause captured when the
// narrowing was performed. The clause is globally entailed ("an unfounded
// atom is false unless one of those bodies holds"), so replaying it later
// during analysis stays sound.
func (c *unfoundedSetConstraint) Explain(req ExplainRequest) []Literal {
	if lits, ok := c.explanations[req.Var]; ok {
		return lits
	}
	return defaultExplanation(c, req)
}

// CheckConflicting implements Constraint: a necessarily-true atom with no
// founded support is a violation.
func (c *unfoundedSetConstraint) CheckConflicting(db *VariableDatabase) bool {
	founded := c.foundedAtoms(db)
	for _, id := range c.atoms {
		if founded[id] {
			continue
		}
		a := c.rdb.atoms[id]
		if a.status == TruthTrue {
			return true
		}
		if a.equivalence.Var.IsValid() && satisfied(db, a.equivalence) {
			return true
		}
	}
	return false
}
