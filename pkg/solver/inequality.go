// Package solver: offset and inequality constraints over pairs of
// variables, propagated by bounds reasoning.
package solver

import "fmt"

// ConstraintOperator names the relational operators the inequality
// constraint supports.
type ConstraintOperator uint8

const (
	// OpLessThan is lhs < rhs.
	OpLessThan ConstraintOperator = iota
	// OpLessThanEq is lhs <= rhs.
	OpLessThanEq
	// OpGreaterThan is lhs > rhs.
	OpGreaterThan
	// OpGreaterThanEq is lhs >= rhs.
	OpGreaterThanEq
	// OpNotEqual is lhs != rhs.
	OpNotEqual
)

func (op ConstraintOperator) String() string {
	switch op {
	case OpLessThan:
		return "<"
	case OpLessThanEq:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanEq:
		return ">="
	case OpNotEqual:
		return "!="
	default:
		return "?"
	}
}

// OffsetConstraint enforces sum = term + delta. The two variables may have
// different domains; propagation translates value sets between them.
type OffsetConstraint struct {
	constraintCore
	sum   VarID
	term  VarID
	delta int
}

// Offset creates a constraint enforcing sum = term + delta.
func (s *Solver) Offset(sum, term VarID, delta int) *OffsetConstraint {
	c := &OffsetConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID(), vars: []VarID{sum, term}},
		sum:            sum,
		term:           term,
		delta:          delta,
	}
	s.registerConstraint(c)
	return c
}

// shiftSet translates a value set from one variable's domain to another's,
// adding delta to every value.
func shiftSet(db *VariableDatabase, from, to VarID, in ValueSet, delta int) ValueSet {
	fromDom, toDom := db.Domain(from), db.Domain(to)
	out := toDom.EmptySet()
	in.ForEachSet(func(ix int) {
		if destIx, ok := toDom.IndexFor(fromDom.ValueFor(ix) + delta); ok {
			out.words[destIx/64] |= 1 << uint(destIx%64)
		}
	})
	return out
}

// Initialize implements Constraint.
func (c *OffsetConstraint) Initialize(db *VariableDatabase) bool {
	db.AddWatch(c.sum, WatchAnyChange, c)
	db.AddWatch(c.term, WatchAnyChange, c)
	if !db.Constrain(c.sum, shiftSet(db, c.term, c.sum, db.PotentialValues(c.term), c.delta), c) {
		return false
	}
	return db.Constrain(c.term, shiftSet(db, c.sum, c.term, db.PotentialValues(c.sum), -c.delta), c)
}

// OnVariableNarrowed implements Constraint.
func (c *OffsetConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	if v == c.term {
		return db.Constrain(c.sum, shiftSet(db, c.term, c.sum, db.PotentialValues(c.term), c.delta), c)
	}
	return db.Constrain(c.term, shiftSet(db, c.sum, c.term, db.PotentialValues(c.sum), -c.delta), c)
}

// Explain implements Constraint: the narrowing of one side is justified by
// the values the other side no longer holds.
func (c *OffsetConstraint) Explain(req ExplainRequest) []Literal {
	return defaultExplanation(c, req)
}

// CheckConflicting implements Constraint.
func (c *OffsetConstraint) CheckConflicting(db *VariableDatabase) bool {
	return !db.PotentialValues(c.sum).AnyCommon(shiftSet(db, c.term, c.sum, db.PotentialValues(c.term), c.delta))
}

func (c *OffsetConstraint) String() string {
	return fmt.Sprintf("%s = %s + %d", c.sum, c.term, c.delta)
}

// InequalityConstraint enforces lhs <op> rhs by bounds propagation (value
// propagation for !=).
type InequalityConstraint struct {
	constraintCore
	lhs VarID
	rhs VarID
	op  ConstraintOperator
}

// Inequality creates a constraint enforcing lhs <op> rhs.
func (s *Solver) Inequality(lhs VarID, op ConstraintOperator, rhs VarID) *InequalityConstraint {
	c := &InequalityConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID(), vars: []VarID{lhs, rhs}},
		lhs:            lhs,
		rhs:            rhs,
		op:             op,
	}
	s.registerConstraint(c)
	return c
}

// boundsMask builds the value set of var's domain consistent with the
// operator given the other side's bounds.
func (c *InequalityConstraint) boundsMask(db *VariableDatabase, v VarID) ValueSet {
	dom := db.Domain(v)
	other := c.rhs
	if v == c.rhs {
		other = c.lhs
	}
	otherDom := db.Domain(other)
	otherVals := db.PotentialValues(other)
	lo := otherDom.ValueFor(otherVals.FirstSet())
	hi := otherDom.ValueFor(otherVals.LastSet())

	op := c.op
	if v == c.rhs {
		// Flip the operator to express rhs relative to lhs.
		switch op {
		case OpLessThan:
			op = OpGreaterThan
		case OpLessThanEq:
			op = OpGreaterThanEq
		case OpGreaterThan:
			op = OpLessThan
		case OpGreaterThanEq:
			op = OpLessThanEq
		}
	}

	out := dom.EmptySet()
	for val := dom.Min(); val <= dom.Max(); val++ {
		keep := false
		switch op {
		case OpLessThan:
			keep = val < hi
		case OpLessThanEq:
			keep = val <= hi
		case OpGreaterThan:
			keep = val > lo
		case OpGreaterThanEq:
			keep = val >= lo
		case OpNotEqual:
			keep = !(lo == hi && val == lo)
		}
		if keep {
			ix, _ := dom.IndexFor(val)
			out.words[ix/64] |= 1 << uint(ix%64)
		}
	}
	return out
}

// Initialize implements Constraint.
func (c *InequalityConstraint) Initialize(db *VariableDatabase) bool {
	watch := WatchBoundsChange
	if c.op == OpNotEqual {
		watch = WatchSolved
	}
	db.AddWatch(c.lhs, watch, c)
	db.AddWatch(c.rhs, watch, c)
	if !db.Constrain(c.lhs, c.boundsMask(db, c.lhs), c) {
		return false
	}
	return db.Constrain(c.rhs, c.boundsMask(db, c.rhs), c)
}

// OnVariableNarrowed implements Constraint.
func (c *InequalityConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	other := c.rhs
	if v == c.rhs {
		other = c.lhs
	}
	return db.Constrain(other, c.boundsMask(db, other), c)
}

// Explain implements Constraint.
func (c *InequalityConstraint) Explain(req ExplainRequest) []Literal {
	return defaultExplanation(c, req)
}

// CheckConflicting implements Constraint.
func (c *InequalityConstraint) CheckConflicting(db *VariableDatabase) bool {
	ldom, rdom := db.Domain(c.lhs), db.Domain(c.rhs)
	lvals, rvals := db.PotentialValues(c.lhs), db.PotentialValues(c.rhs)
	lmin, lmax := ldom.ValueFor(lvals.FirstSet()), ldom.ValueFor(lvals.LastSet())
	rmin, rmax := rdom.ValueFor(rvals.FirstSet()), rdom.ValueFor(rvals.LastSet())
	switch c.op {
	case OpLessThan:
		return lmin >= rmax
	case OpLessThanEq:
		return lmin > rmax
	case OpGreaterThan:
		return lmax <= rmin
	case OpGreaterThanEq:
		return lmax < rmin
	case OpNotEqual:
		return lmin == lmax && rmin == rmax && lmin == rmin
	default:
		return false
	}
}

func (c *InequalityConstraint) String() string {
	return fmt.Sprintf("%s %s %s", c.lhs, c.op, c.rhs)
}
