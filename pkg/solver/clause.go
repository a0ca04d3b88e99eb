// Package solver: the clause constraint. Clauses are the workhorse of the
// engine: user-level disjunctions, every constraint emitted by the rule
// database, and every learned clause all share this implementation and its
// two-watch propagation scheme.
package solver

// ClauseConstraint enforces a disjunction of literals: at least one of them
// must hold in any solution. Literals over the same variable are merged at
// construction, so each variable appears at most once.
type ClauseConstraint struct {
	constraintCore
	lits []Literal

	// Two-watch scheme: watchIx[0] and watchIx[1] index into lits (or -1 for
	// unit clauses). The clause only needs attention when a watched
	// literal is falsified.
	watchIx     [2]int
	watchHandle [2]WatcherHandle

	// learned is set for clauses produced by conflict analysis.
	learned bool
	// permanent learned clauses are exempt from purging.
	permanent bool
	// activity decays every conflict and is bumped when the clause takes
	// part in a resolution step.
	activity float64
	// lbd is the literal-block-distance recorded when the clause was
	// learned, re-computed when it participates in conflicts.
	lbd int
}

// newClauseConstraint merges duplicate variables and returns the clause.
// Literals whose value set is empty are dropped.
func newClauseConstraint(id int, lits []Literal, learned bool) *ClauseConstraint {
	merged := make([]Literal, 0, len(lits))
	byVar := make(map[VarID]int, len(lits))
	for _, l := range lits {
		if l.Values.IsEmpty() {
			continue
		}
		if ix, ok := byVar[l.Var]; ok {
			merged[ix].Values = merged[ix].Values.Union(l.Values)
			continue
		}
		byVar[l.Var] = len(merged)
		merged = append(merged, Literal{Var: l.Var, Values: l.Values.Clone()})
	}
	c := &ClauseConstraint{
		constraintCore: constraintCore{id: id},
		lits:           merged,
		watchIx:        [2]int{-1, -1},
		learned:        learned,
	}
	for _, l := range merged {
		c.vars = append(c.vars, l.Var)
	}
	return c
}

// NumLiterals returns the number of (merged) literals in the clause.
func (c *ClauseConstraint) NumLiterals() int { return len(c.lits) }

// Literal returns the i-th literal.
func (c *ClauseConstraint) Literal(i int) Literal { return c.lits[i] }

// Literals returns the clause's literals. The slice must not be mutated.
func (c *ClauseConstraint) Literals() []Literal { return c.lits }

// IsLearned reports whether the clause came from conflict analysis.
func (c *ClauseConstraint) IsLearned() bool { return c.learned }

// LBD returns the clause's literal-block-distance.
func (c *ClauseConstraint) LBD() int { return c.lbd }

// Hash returns an order-independent hash of the clause's literals, used to
// detect duplicates during graph promotion.
func (c *ClauseConstraint) Hash() uint64 {
	var h uint64
	for _, l := range c.lits {
		h += uint64(l.Var)*0x9e3779b97f4a7c15 + l.Values.Hash()
	}
	return h
}

// satisfiable reports whether the literal can still hold.
func satisfiable(db *VariableDatabase, l Literal) bool {
	return db.PotentialValues(l.Var).AnyCommon(l.Values)
}

// satisfied reports whether the literal necessarily holds.
func satisfied(db *VariableDatabase, l Literal) bool {
	return db.PotentialValues(l.Var).IsSubsetOf(l.Values)
}

// Initialize scans for two watchable literals, propagating immediately when
// the clause is unit and failing when it is empty.
func (c *ClauseConstraint) Initialize(db *VariableDatabase) bool {
	if len(c.lits) == 0 {
		db.conflict = &conflictInfo{victim: InvalidVarID, cause: c}
		return false
	}
	open := make([]int, 0, 2)
	for i := range c.lits {
		if satisfiable(db, c.lits[i]) {
			open = append(open, i)
			if len(open) == 2 {
				break
			}
		}
	}
	switch len(open) {
	case 0:
		// Every literal already falsified.
		l := c.lits[0]
		db.conflict = &conflictInfo{victim: l.Var, cause: c, attempted: l.Values}
		return false
	case 1:
		if !db.Constrain(c.lits[open[0]].Var, c.lits[open[0]].Values, c) {
			return false
		}
		c.watch(db, 0, open[0])
		return true
	default:
		c.watch(db, 0, open[0])
		c.watch(db, 1, open[1])
		return true
	}
}

// watch installs the LostValues watcher for the literal at lits[ix] in
// watch slot slot, replacing any previous watcher in that slot.
func (c *ClauseConstraint) watch(db *VariableDatabase, slot, ix int) {
	if c.watchIx[slot] >= 0 {
		db.RemoveWatch(c.lits[c.watchIx[slot]].Var, c.watchHandle[slot])
	}
	c.watchIx[slot] = ix
	c.watchHandle[slot] = db.AddValueWatch(c.lits[ix].Var, c.lits[ix].Values, c)
}

// OnVariableNarrowed handles the falsification of a watched literal: find a
// replacement watch, or assert the remaining watched literal.
func (c *ClauseConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	slot := -1
	for s := 0; s < 2; s++ {
		if ix := c.watchIx[s]; ix >= 0 && c.lits[ix].Var == v && !satisfiable(db, c.lits[ix]) {
			slot = s
			break
		}
	}
	if slot < 0 {
		return true
	}
	other := c.watchIx[1-slot]

	// Look for another literal that can still hold.
	for i := range c.lits {
		if i == c.watchIx[slot] || i == other {
			continue
		}
		if satisfiable(db, c.lits[i]) {
			c.watch(db, slot, i)
			return true
		}
	}

	if other < 0 {
		// Unit clause falsified.
		l := c.lits[c.watchIx[slot]]
		db.conflict = &conflictInfo{victim: l.Var, cause: c, attempted: l.Values}
		return false
	}
	// The remaining watched literal must hold.
	return db.Constrain(c.lits[other].Var, c.lits[other].Values, c)
}

// Explain returns the clause itself: its literals are exactly the reason
// for any propagation or conflict it produces.
func (c *ClauseConstraint) Explain(req ExplainRequest) []Literal {
	out := make([]Literal, len(c.lits))
	copy(out, c.lits)
	return out
}

// CheckConflicting reports whether every literal is falsified.
func (c *ClauseConstraint) CheckConflicting(db *VariableDatabase) bool {
	for _, l := range c.lits {
		if satisfiable(db, l) {
			return false
		}
	}
	return true
}

// computeLBD counts the distinct decision levels of the clause's literals'
// falsifying modifications. Unfalsified literals are ignored.
func (c *ClauseConstraint) computeLBD(s *Solver) int {
	seen := make(map[int]struct{}, len(c.lits))
	for _, l := range c.lits {
		if ts, ok := s.falsifyingTimestamp(l); ok {
			seen[s.decisionLevelForTimestamp(ts)] = struct{}{}
		}
	}
	return len(seen)
}
