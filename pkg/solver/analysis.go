// Package solver: first-UIP conflict analysis. Starting from the
// conflicting constraint's explanation, the analyzer resolves reason
// clauses backward along the trail until exactly one literal of the working
// clause was falsified at the conflict's decision level; that literal is
// the first unique implication point.
//
// Resolution is the finite-domain generalization of propositional
// resolution: combining (X ∨ v∈A) with (Y ∨ v∈B) yields X ∨ Y ∨ v∈(A∩B),
// and the literal disappears entirely when A∩B is empty.
package solver

import "sort"

// learnedClauseInfo is the outcome of one conflict analysis.
type learnedClauseInfo struct {
	lits          []Literal
	uipVar        VarID
	backjumpLevel int
	lbd           int
	// graphOrigin is set when every constraint that took part in the
	// resolution is an instance of a graph template, which makes the
	// learned clause a candidate for promotion to a template itself.
	graphOrigin bool
}

// workingClause is the clause under resolution, keyed by variable. Every
// literal in it is falsified by the current trail.
type workingClause struct {
	byVar map[VarID]ValueSet
}

func newWorkingClause() *workingClause {
	return &workingClause{byVar: make(map[VarID]ValueSet)}
}

// mergeLiteral unions a literal into the clause (disjunction of literals
// over the same variable is a single literal over the union).
func (w *workingClause) mergeLiteral(l Literal) {
	if have, ok := w.byVar[l.Var]; ok {
		w.byVar[l.Var] = have.Union(l.Values)
	} else {
		w.byVar[l.Var] = l.Values.Clone()
	}
}

// resolveOn intersects the clause's literal for v with mask, removing the
// literal when the intersection is empty.
func (w *workingClause) resolveOn(v VarID, mask ValueSet) {
	next := w.byVar[v].Intersect(mask)
	if next.IsEmpty() {
		delete(w.byVar, v)
	} else {
		w.byVar[v] = next
	}
}

// sortedVars returns the clause's variables in ascending order, keeping
// analysis deterministic regardless of map iteration.
func (w *workingClause) sortedVars() []VarID {
	vars := make([]VarID, 0, len(w.byVar))
	for v := range w.byVar {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	return vars
}

// falsifyingTimestamp locates the trail entry that falsified the literal:
// the most recent modification whose previous value set still intersected
// the literal's values. The second result is false when the literal is not
// currently falsified; NoTimestamp means it was false from the initial
// values.
func (s *Solver) falsifyingTimestamp(l Literal) (Timestamp, bool) {
	db := s.db
	if db.PotentialValues(l.Var).AnyCommon(l.Values) {
		return NoTimestamp, false
	}
	m := db.lastMod[l.Var]
	for m != NoTimestamp {
		mod := &db.trail[m]
		if mod.Prev.AnyCommon(l.Values) {
			return m, true
		}
		m = mod.PrevVarMod
	}
	return NoTimestamp, true
}

// decisionLevelForTimestamp returns the decision level that owns a trail
// index. NoTimestamp and pre-decision entries map to level zero.
func (s *Solver) decisionLevelForTimestamp(ts Timestamp) int {
	if ts == NoTimestamp {
		return 0
	}
	// decisionLevels[i].trailMark is the trail length when level i+1 began.
	lo, hi := 0, len(s.decisionLevels)
	for lo < hi {
		mid := (lo + hi) / 2
		if Timestamp(s.decisionLevels[mid].trailMark) <= ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// analyzeConflict derives the learned clause for the recorded conflict.
func (s *Solver) analyzeConflict(ci *conflictInfo) learnedClauseInfo {
	db := s.db
	work := newWorkingClause()

	seed := ci.cause.Explain(ExplainRequest{
		DB:        db,
		Var:       ci.victim,
		Values:    ci.attempted,
		Timestamp: Timestamp(len(db.trail)),
		Conflict:  true,
	})
	for _, l := range seed {
		work.mergeLiteral(l)
	}
	s.markConstraintActivity(ci.cause)
	graphOrigin := s.graphOrigin[ci.cause.ID()]

	for {
		// Locate the highest falsification level and the most recent
		// falsifying modification at that level.
		maxLevel, count := 0, 0
		latestTs := NoTimestamp
		var latestVar VarID
		for _, v := range work.sortedVars() {
			ts, fals := s.falsifyingTimestamp(Literal{Var: v, Values: work.byVar[v]})
			assertf(fals, "working clause literal %s not falsified", v)
			level := s.decisionLevelForTimestamp(ts)
			switch {
			case level > maxLevel:
				maxLevel, count = level, 1
				latestTs, latestVar = ts, v
			case level == maxLevel && level > 0:
				count++
				if ts > latestTs {
					latestTs, latestVar = ts, v
				}
			}
		}

		if maxLevel == 0 || count <= 1 {
			info := s.finishAnalysis(work, latestVar, maxLevel)
			info.graphOrigin = graphOrigin
			return info
		}

		// Resolve the latest falsified literal against its reason.
		mod := &db.trail[latestTs]
		assertf(!mod.IsDecision(), "resolving against a decision with %d open literals", count)
		reason := mod.Cause.Explain(ExplainRequest{
			DB:        db,
			Var:       mod.Var,
			Values:    mod.New,
			Timestamp: latestTs,
		})
		s.markConstraintActivity(mod.Cause)
		graphOrigin = graphOrigin && s.graphOrigin[mod.Cause.ID()]

		var resolveMask ValueSet
		sawVictim := false
		for _, l := range reason {
			if l.Var == latestVar {
				if sawVictim {
					resolveMask = resolveMask.Union(l.Values)
				} else {
					resolveMask = l.Values
					sawVictim = true
				}
				continue
			}
			work.mergeLiteral(l)
			if s.wantReasonActivity {
				for _, h := range s.heuristics {
					h.OnVariableReasonActivity(l.Var)
				}
			}
		}
		assertf(sawVictim, "reason clause does not mention propagated variable %s", latestVar)
		work.resolveOn(latestVar, resolveMask)
	}
}

// finishAnalysis assembles the learned clause, its backjump level, and its
// literal-block-distance.
func (s *Solver) finishAnalysis(work *workingClause, uipVar VarID, uipLevel int) learnedClauseInfo {
	info := learnedClauseInfo{uipVar: uipVar}
	levels := make(map[int]struct{})
	backjump := 0
	for _, v := range work.sortedVars() {
		vals := work.byVar[v]
		info.lits = append(info.lits, Literal{Var: v, Values: vals.Clone()})
		ts, _ := s.falsifyingTimestamp(Literal{Var: v, Values: vals})
		level := s.decisionLevelForTimestamp(ts)
		levels[level] = struct{}{}
		if v != uipVar && level > backjump {
			backjump = level
		}
		for _, h := range s.heuristics {
			h.OnVariableConflictActivity(v)
		}
	}
	if backjump >= uipLevel && uipLevel > 0 {
		backjump = uipLevel - 1
	}
	info.backjumpLevel = backjump
	info.lbd = len(levels)
	return info
}
