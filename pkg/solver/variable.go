// Package solver: the variable database owns every variable's current value
// set and the assignment trail. All narrowing flows through Constrain and
// Exclude; the trail is the sole source of truth for undo during backjumps.
package solver

// Modification is one entry on the assignment trail: a single narrowing of
// a single variable, with enough information to undo it and to reconstruct
// the variable's value set at any earlier time.
type Modification struct {
	// Var is the variable that was narrowed.
	Var VarID
	// Prev and New are the value sets before and after the narrowing.
	Prev ValueSet
	New ValueSet
	// Cause is the constraint that performed the narrowing, or nil for a
	// search decision.
	Cause Constraint
	// PrevVarMod is the trail index of the previous modification of the
	// same variable, or NoTimestamp.
	PrevVarMod Timestamp
}

// IsDecision reports whether this modification was a search decision rather
// than a propagation.
func (m *Modification) IsDecision() bool { return m.Cause == nil }

// conflictInfo records the most recent narrowing that emptied a value set.
type conflictInfo struct {
	victim VarID
	cause  Constraint
	// attempted is the value set the cause tried to constrain the victim
	// to; it shares no values with the victim's set at the time.
	attempted ValueSet
}

// VariableDatabase stores variable state, the watch lists, and the
// assignment trail. It is created by the solver and shared with every
// constraint through the narrowing callbacks.
type VariableDatabase struct {
	solver *Solver

	// Per-variable state, 1-based; index 0 is unused padding so a VarID
	// indexes directly.
	names      []string
	domains    []VariableDomain
	initial    []ValueSet
	current    []ValueSet
	lastMod    []Timestamp
	lastSolved []int // domain index of the most recent solved value, -1 if never

	watchLists [][]watcher
	nextHandle WatcherHandle

	trail    []Modification
	conflict *conflictInfo
}

func newVariableDatabase(s *Solver) *VariableDatabase {
	return &VariableDatabase{
		solver:     s,
		names:      []string{""},
		domains:    []VariableDomain{{}},
		initial:    []ValueSet{{}},
		current:    []ValueSet{{}},
		lastMod:    []Timestamp{NoTimestamp},
		lastSolved: []int{-1},
		watchLists: [][]watcher{nil},
	}
}

// addVariable registers a new variable and returns its ID. Only the solver
// calls this, during the build phase.
func (db *VariableDatabase) addVariable(name string, dom VariableDomain, initial ValueSet) VarID {
	id := VarID(len(db.names))
	db.names = append(db.names, name)
	db.domains = append(db.domains, dom)
	db.initial = append(db.initial, initial.Clone())
	db.current = append(db.current, initial)
	db.lastMod = append(db.lastMod, NoTimestamp)
	db.lastSolved = append(db.lastSolved, -1)
	db.watchLists = append(db.watchLists, nil)
	return id
}

// NumVariables returns the number of registered variables.
func (db *VariableDatabase) NumVariables() int { return len(db.names) - 1 }

// Name returns the variable's name.
func (db *VariableDatabase) Name(v VarID) string { return db.names[v] }

// Domain returns the variable's domain.
func (db *VariableDatabase) Domain(v VarID) VariableDomain { return db.domains[v] }

// PotentialValues returns the variable's current value set. The returned
// set must not be mutated.
func (db *VariableDatabase) PotentialValues(v VarID) ValueSet { return db.current[v] }

// IsSolved reports whether the variable has exactly one remaining value.
func (db *VariableDatabase) IsSolved(v VarID) bool { return db.current[v].IsSingleton() }

// SolvedValue returns the variable's single remaining value, translated to
// its domain. It panics if the variable is not solved.
func (db *VariableDatabase) SolvedValue(v VarID) int {
	return db.domains[v].ValueFor(db.current[v].SingletonIndex())
}

// LastSolvedIndex returns the domain index the variable last held as a
// singleton, and whether it ever did. Heuristics use this for phase saving.
func (db *VariableDatabase) LastSolvedIndex(v VarID) (int, bool) {
	ix := db.lastSolved[v]
	return ix, ix >= 0
}

// TrailLength returns the number of modifications recorded so far.
func (db *VariableDatabase) TrailLength() int { return len(db.trail) }

// ModificationAt returns the trail entry at the given timestamp.
func (db *VariableDatabase) ModificationAt(ts Timestamp) *Modification {
	return &db.trail[ts]
}

// LastModification returns the trail index of the variable's most recent
// narrowing, or NoTimestamp.
func (db *VariableDatabase) LastModification(v VarID) Timestamp { return db.lastMod[v] }

// ValuesAfter returns the variable's value set immediately after the given
// timestamp (NoTimestamp yields the initial set).
func (db *VariableDatabase) ValuesAfter(v VarID, ts Timestamp) ValueSet {
	m := db.lastMod[v]
	for m != NoTimestamp && m > ts {
		m = db.trail[m].PrevVarMod
	}
	if m == NoTimestamp {
		return db.initial[v]
	}
	return db.trail[m].New
}

// ValuesBefore returns the variable's value set immediately before the given
// timestamp.
func (db *VariableDatabase) ValuesBefore(v VarID, ts Timestamp) ValueSet {
	return db.ValuesAfter(v, ts-1)
}

// Constrain intersects the variable's value set with mask. If the variable
// changes, the narrowing is recorded on the trail and queued for
// propagation. It returns false if the intersection is empty, recording the
// conflict for the engine to analyze; the variable keeps its previous set.
func (db *VariableDatabase) Constrain(v VarID, mask ValueSet, cause Constraint) bool {
	cur := db.current[v]
	next := cur.Intersect(mask)
	if next.Equals(cur) {
		return true
	}
	if next.IsEmpty() {
		db.conflict = &conflictInfo{victim: v, cause: cause, attempted: mask}
		return false
	}
	db.record(v, cur, next, cause)
	return true
}

// Exclude subtracts mask from the variable's value set, with the same
// contract as Constrain.
func (db *VariableDatabase) Exclude(v VarID, mask ValueSet, cause Constraint) bool {
	return db.Constrain(v, mask.Invert(), cause)
}

// ConstrainToValue narrows the variable to a single domain value.
func (db *VariableDatabase) ConstrainToValue(v VarID, value int, cause Constraint) bool {
	set, ok := db.domains[v].SetForValue(value)
	if !ok {
		db.conflict = &conflictInfo{victim: v, cause: cause, attempted: db.domains[v].EmptySet()}
		return false
	}
	return db.Constrain(v, set, cause)
}

func (db *VariableDatabase) record(v VarID, prev, next ValueSet, cause Constraint) {
	ts := Timestamp(len(db.trail))
	db.trail = append(db.trail, Modification{
		Var:        v,
		Prev:       prev,
		New:        next,
		Cause:      cause,
		PrevVarMod: db.lastMod[v],
	})
	db.lastMod[v] = ts
	db.current[v] = next
	if next.IsSingleton() {
		db.lastSolved[v] = next.SingletonIndex()
	}
	db.solver.onVariableModified(v, prev, next, cause)
}

// takeConflict returns and clears the recorded conflict.
func (db *VariableDatabase) takeConflict() *conflictInfo {
	c := db.conflict
	db.conflict = nil
	return c
}

// undoUntil pops trail entries until the trail length equals target,
// restoring each variable's previous value set. The engine notifies
// heuristics and backtracking constraints separately.
func (db *VariableDatabase) undoUntil(target int, onUndo func(m *Modification)) {
	for len(db.trail) > target {
		m := &db.trail[len(db.trail)-1]
		db.current[m.Var] = m.Prev
		db.lastMod[m.Var] = m.PrevVarMod
		if onUndo != nil {
			onUndo(m)
		}
		db.trail = db.trail[:len(db.trail)-1]
	}
}
