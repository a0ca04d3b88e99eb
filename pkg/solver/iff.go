// Package solver: the iff constraint ties a head literal to a body
// conjunction, and the disjunction constraint satisfies one of two child
// constraints. Both are reductions to clause constraints.
package solver

// IffConstraint enforces head ↔ (body₁ ∧ … ∧ bodyₙ). It decomposes into
// clause constraints at construction: (¬head ∨ bodyᵢ) for each body literal
// and (head ∨ ¬body₁ ∨ … ∨ ¬bodyₙ).
type IffConstraint struct {
	constraintCore
	head    Literal
	body    []Literal
	clauses []*ClauseConstraint
}

// Iff creates a constraint enforcing head ↔ conjunction(body).
func (s *Solver) Iff(head SignedClause, body ...SignedClause) *IffConstraint {
	headLit := head.translate(s.db.Domain(head.Var))
	bodyLits := s.translateLiterals(body)

	c := &IffConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID(), vars: []VarID{head.Var}},
		head:           headLit,
		body:           bodyLits,
	}
	for _, bl := range bodyLits {
		c.vars = append(c.vars, bl.Var)
	}
	s.registerConstraint(c)

	for _, bl := range bodyLits {
		cl := s.addInternalClause([]Literal{headLit.Inverted(), bl})
		s.markChildConstraint(cl)
		c.clauses = append(c.clauses, cl)
	}
	reverse := []Literal{headLit}
	for _, bl := range bodyLits {
		reverse = append(reverse, bl.Inverted())
	}
	cl := s.addInternalClause(reverse)
	s.markChildConstraint(cl)
	c.clauses = append(c.clauses, cl)
	return c
}

// Initialize implements Constraint by initializing the child clauses.
func (c *IffConstraint) Initialize(db *VariableDatabase) bool {
	for _, cl := range c.clauses {
		if !cl.Initialize(db) {
			return false
		}
	}
	return true
}

// OnVariableNarrowed implements Constraint. The child clauses watch their
// own variables; the parent has nothing to do.
func (c *IffConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	return true
}

// Explain implements Constraint. Narrowings are performed by the child
// clauses, which explain themselves; this is only called for the parent's
// own (nonexistent) propagations.
func (c *IffConstraint) Explain(req ExplainRequest) []Literal {
	return defaultExplanation(c, req)
}

// CheckConflicting implements Constraint.
func (c *IffConstraint) CheckConflicting(db *VariableDatabase) bool {
	for _, cl := range c.clauses {
		if cl.CheckConflicting(db) {
			return true
		}
	}
	return false
}

// DisjunctionConstraint requires at least one of two child constraints to
// be satisfiable. It watches both children's variables and raises a
// conflict when both children are violated; it does not propagate into the
// child that is still satisfiable.
type DisjunctionConstraint struct {
	constraintCore
	a, b Constraint
}

// Disjunction creates a constraint satisfied when either child is.
// The children must already be registered; they are marked as child
// constraints and no longer propagate independently.
func (s *Solver) Disjunction(a, b Constraint) *DisjunctionConstraint {
	c := &DisjunctionConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID(), vars: append(append([]VarID(nil), a.Variables()...), b.Variables()...)},
		a:              a,
		b:              b,
	}
	s.registerConstraint(c)
	s.markChildConstraint(a)
	s.markChildConstraint(b)
	return c
}

// Initialize implements Constraint: watch both children's variables.
func (c *DisjunctionConstraint) Initialize(db *VariableDatabase) bool {
	for _, v := range c.vars {
		db.AddWatch(v, WatchAnyChange, c)
	}
	return c.check(db)
}

// check raises a conflict when both children are violated. The disjunction
// deliberately does not forward propagation into a child whose sibling is
// conflicting: the sibling may stop conflicting on backtrack, and a child's
// narrowings cannot be selectively undone.
func (c *DisjunctionConstraint) check(db *VariableDatabase) bool {
	if c.a.CheckConflicting(db) && c.b.CheckConflicting(db) {
		victim := c.vars[0]
		db.conflict = &conflictInfo{victim: victim, cause: c, attempted: db.Domain(victim).EmptySet()}
		return false
	}
	return true
}

// OnVariableNarrowed implements Constraint.
func (c *DisjunctionConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	return c.check(db)
}

// Explain implements Constraint.
func (c *DisjunctionConstraint) Explain(req ExplainRequest) []Literal {
	return defaultExplanation(c, req)
}

// CheckConflicting implements Constraint.
func (c *DisjunctionConstraint) CheckConflicting(db *VariableDatabase) bool {
	return c.a.CheckConflicting(db) && c.b.CheckConflicting(db)
}
