// Package solver: the rule database. It accepts ground rules (head +
// body literals), propagates facts to fixpoint, analyzes the positive
// dependency graph for recursion, and reduces everything left undetermined
// to clause constraints over boolean solver variables.
package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
)

// TruthStatus is the three-valued status of atoms and rule bodies during
// fact propagation.
type TruthStatus uint8

const (
	// TruthUndetermined means the solver decides at search time.
	TruthUndetermined TruthStatus = iota
	// TruthTrue holds in every solution.
	TruthTrue
	// TruthFalse holds in no solution.
	TruthFalse
)

func (t TruthStatus) String() string {
	switch t {
	case TruthTrue:
		return "true"
	case TruthFalse:
		return "false"
	default:
		return "undetermined"
	}
}

// AtomID identifies an atom in the rule database. IDs are 1-based.
type AtomID int32

// IsValid reports whether the ID refers to an atom.
func (a AtomID) IsValid() bool { return a > 0 }

// RuleAtomLiteral is a signed reference to an atom in a rule body.
type RuleAtomLiteral struct {
	ID AtomID
	// Sign is true for a positive occurrence.
	Sign bool
}

// PosAtom returns a positive literal for the atom.
func PosAtom(id AtomID) RuleAtomLiteral { return RuleAtomLiteral{ID: id, Sign: true} }

// NegAtom returns a negative literal for the atom.
func NegAtom(id AtomID) RuleAtomLiteral { return RuleAtomLiteral{ID: id} }

// headRef records one head an emitted body supports.
type headRef struct {
	atom AtomID
	// choice heads may be true when the body holds; they are never forced.
	choice bool
}

// atomInfo is the arena record for one atom. Cross-references are indices
// into the database's arenas, avoiding ownership cycles.
type atomInfo struct {
	id       AtomID
	name     string
	external bool
	scc      int

	// supports lists bodies that can make this atom true; posDeps and
	// negDeps list bodies referencing the atom in their literals.
	supports []int
	posDeps  []int
	negDeps  []int

	status   TruthStatus
	enqueued bool

	// equivalence is the solver literal whose truth is the atom's truth.
	// Bound atoms get it at creation; the rest at finalize.
	equivalence Literal
}

// bodyInfo is the arena record for one rule body.
type bodyInfo struct {
	id    int
	lits  []RuleAtomLiteral
	heads []headRef
	// isNegativeConstraint marks a headless body (← B), which must never
	// hold.
	isNegativeConstraint bool

	numUndeterminedTails int
	status               TruthStatus
	enqueued             bool
	scc                  int

	equivalence Literal
}

// abstractRule is a rule template expanded per topology vertex during
// finalize.
type abstractRule struct {
	topo Topology
	// instantiate produces the concrete rule for a vertex, or false when
	// the template does not apply there.
	instantiate func(rdb *RuleDatabase, vertex int) (head RuleAtomLiteral, choice bool, body []RuleAtomLiteral, ok bool)
}

// RuleDatabase reduces ground rules to solver constraints. Create it
// through Solver.RuleDB; rules may be added until solving starts.
type RuleDatabase struct {
	solver *Solver

	atoms  []*atomInfo // index 0 unused
	bodies []*bodyInfo
	// bodyIndex deduplicates bodies by canonical literal key.
	bodyIndex map[string]int

	abstractRules []*abstractRule

	atomQueue []AtomID
	bodyQueue []int

	conflicted bool
	finalized  bool
	tight      bool
}

func newRuleDatabase(s *Solver) *RuleDatabase {
	return &RuleDatabase{
		solver:    s,
		atoms:     []*atomInfo{nil},
		bodyIndex: make(map[string]int),
		tight:     true,
	}
}

// NumAtoms returns the number of created atoms.
func (rdb *RuleDatabase) NumAtoms() int { return len(rdb.atoms) - 1 }

// NumBodies returns the number of distinct rule bodies.
func (rdb *RuleDatabase) NumBodies() int { return len(rdb.bodies) }

// IsTight reports whether the positive dependency graph is acyclic.
// Meaningful after Finalize.
func (rdb *RuleDatabase) IsTight() bool { return rdb.tight }

// CreateAtom registers a new undetermined atom.
func (rdb *RuleDatabase) CreateAtom(name string) AtomID {
	return rdb.createAtom(name, false, Literal{})
}

// CreateExternalAtom registers an atom that may be true without any
// supporting rule (its truth comes from outside the program).
func (rdb *RuleDatabase) CreateExternalAtom(name string) AtomID {
	return rdb.createAtom(name, true, Literal{})
}

// CreateBoundAtom registers an atom whose truth is tied to an existing
// solver literal.
func (rdb *RuleDatabase) CreateBoundAtom(name string, equivalence Literal) AtomID {
	return rdb.createAtom(name, false, equivalence)
}

func (rdb *RuleDatabase) createAtom(name string, external bool, equivalence Literal) AtomID {
	id := AtomID(len(rdb.atoms))
	if name == "" {
		name = fmt.Sprintf("atom%d", id)
	}
	rdb.atoms = append(rdb.atoms, &atomInfo{
		id:          id,
		name:        name,
		external:    external,
		scc:         -1,
		status:      TruthUndetermined,
		equivalence: equivalence,
	})
	return id
}

// AtomName returns the atom's diagnostic name.
func (rdb *RuleDatabase) AtomName(id AtomID) string { return rdb.atoms[id].name }

// AtomStatus returns the atom's truth status (after fact propagation).
func (rdb *RuleDatabase) AtomStatus(id AtomID) TruthStatus { return rdb.atoms[id].status }

// LiteralForAtom returns the solver literal carrying the atom's truth, if
// one exists (bound atoms always, undetermined atoms after Finalize).
func (rdb *RuleDatabase) LiteralForAtom(id AtomID) (Literal, bool) {
	lit := rdb.atoms[id].equivalence
	return lit, lit.Var.IsValid()
}

// IsAtomTrue reports whether the atom holds in the current solver state:
// by fact status, or by its solver literal being satisfied.
func (rdb *RuleDatabase) IsAtomTrue(id AtomID) bool {
	info := rdb.atoms[id]
	switch info.status {
	case TruthTrue:
		return true
	case TruthFalse:
		return false
	}
	if !info.equivalence.Var.IsValid() {
		return false
	}
	return satisfied(rdb.solver.db, info.equivalence)
}

// SetFact forces an atom's truth status before solving. Conflicting facts
// mark the database conflicted.
func (rdb *RuleDatabase) SetFact(id AtomID, truth bool) {
	status := TruthFalse
	if truth {
		status = TruthTrue
	}
	rdb.setAtomStatus(rdb.atoms[id], status)
}

// bodyKey builds the canonical key for body deduplication.
func bodyKey(lits []RuleAtomLiteral) string {
	sorted := append([]RuleAtomLiteral(nil), lits...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID < sorted[j].ID
		}
		return !sorted[i].Sign && sorted[j].Sign
	})
	var b strings.Builder
	for _, l := range sorted {
		if l.Sign {
			b.WriteByte('+')
		} else {
			b.WriteByte('-')
		}
		fmt.Fprintf(&b, "%d.", l.ID)
	}
	return b.String()
}

// findOrCreateBody deduplicates bodies by literal set.
func (rdb *RuleDatabase) findOrCreateBody(lits []RuleAtomLiteral) *bodyInfo {
	key := bodyKey(lits)
	if ix, ok := rdb.bodyIndex[key]; ok {
		return rdb.bodies[ix]
	}
	body := &bodyInfo{
		id:     len(rdb.bodies),
		lits:   append([]RuleAtomLiteral(nil), lits...),
		scc:    -1,
		status: TruthUndetermined,
	}
	rdb.bodies = append(rdb.bodies, body)
	rdb.bodyIndex[key] = body.id
	for _, l := range lits {
		info := rdb.atoms[l.ID]
		if l.Sign {
			info.posDeps = append(info.posDeps, body.id)
		} else {
			info.negDeps = append(info.negDeps, body.id)
		}
	}
	return body
}

// AddRule records "head ← body". An invalid head makes the body a negative
// constraint (← body). choice marks a choice head: the body supports the
// head without forcing it.
func (rdb *RuleDatabase) AddRule(head RuleAtomLiteral, choice bool, body []RuleAtomLiteral) error {
	if rdb.finalized {
		return errors.New("rule added after finalize")
	}
	return rdb.addRule(head, choice, body)
}

func (rdb *RuleDatabase) addRule(head RuleAtomLiteral, choice bool, body []RuleAtomLiteral) error {
	if head.ID.IsValid() && !head.Sign {
		return errors.New("rule heads must be positive atoms")
	}

	if !head.ID.IsValid() && len(body) == 0 {
		rdb.conflicted = true
		return nil
	}

	if head.ID.IsValid() && len(body) == 0 {
		if choice {
			// A choice with an always-true body leaves the atom free: it
			// needs no support and nothing forces it.
			rdb.atoms[head.ID].external = true
			return nil
		}
		rdb.SetFact(head.ID, true)
		return nil
	}

	b := rdb.findOrCreateBody(body)
	if !head.ID.IsValid() {
		b.isNegativeConstraint = true
		return nil
	}
	for _, h := range b.heads {
		if h.atom == head.ID && h.choice == choice {
			return nil
		}
	}
	b.heads = append(b.heads, headRef{atom: head.ID, choice: choice})
	rdb.atoms[head.ID].supports = append(rdb.atoms[head.ID].supports, b.id)
	return nil
}

// AddAbstractRule records a rule template over a topology; it is expanded
// to one concrete rule per vertex during Finalize. Vertices where the
// template reports no applicable rule are skipped.
func (rdb *RuleDatabase) AddAbstractRule(topo Topology, instantiate func(rdb *RuleDatabase, vertex int) (RuleAtomLiteral, bool, []RuleAtomLiteral, bool)) error {
	if rdb.finalized {
		return errors.New("rule added after finalize")
	}
	rdb.abstractRules = append(rdb.abstractRules, &abstractRule{topo: topo, instantiate: instantiate})
	return nil
}

//
// Fact propagation
//

func (rdb *RuleDatabase) setAtomStatus(a *atomInfo, status TruthStatus) {
	if a.status == status {
		return
	}
	if a.status != TruthUndetermined {
		rdb.conflicted = true
		return
	}
	a.status = status
	if !a.enqueued {
		a.enqueued = true
		rdb.atomQueue = append(rdb.atomQueue, a.id)
	}
}

func (rdb *RuleDatabase) setBodyStatus(b *bodyInfo, status TruthStatus) {
	if b.status == status {
		return
	}
	if b.status != TruthUndetermined {
		rdb.conflicted = true
		return
	}
	if status == TruthTrue && b.isNegativeConstraint {
		rdb.conflicted = true
		return
	}
	b.status = status
	if !b.enqueued {
		b.enqueued = true
		rdb.bodyQueue = append(rdb.bodyQueue, b.id)
	}
}

// litSatisfied and litFalsified evaluate a body literal against atom
// statuses.
func (rdb *RuleDatabase) litSatisfied(l RuleAtomLiteral) bool {
	st := rdb.atoms[l.ID].status
	return (l.Sign && st == TruthTrue) || (!l.Sign && st == TruthFalse)
}

func (rdb *RuleDatabase) litFalsified(l RuleAtomLiteral) bool {
	st := rdb.atoms[l.ID].status
	return (l.Sign && st == TruthFalse) || (!l.Sign && st == TruthTrue)
}

// propagateFacts drives atom and body statuses to fixpoint. Returns false
// on conflict.
func (rdb *RuleDatabase) propagateFacts() bool {
	// Tails start at the full literal count; every atom that reaches a
	// determined status flows through the queue exactly once, keeping the
	// counts consistent. Atoms made facts during the build are already
	// queued.
	for _, b := range rdb.bodies {
		b.numUndeterminedTails = len(b.lits)
	}
	for _, a := range rdb.atoms[1:] {
		if a.status == TruthUndetermined && !a.external && len(a.supports) == 0 {
			rdb.setAtomStatus(a, TruthFalse)
		}
	}

	for !rdb.conflicted && (len(rdb.atomQueue) > 0 || len(rdb.bodyQueue) > 0) {
		if !rdb.emptyAtomQueue() {
			return false
		}
		if !rdb.emptyBodyQueue() {
			return false
		}
	}
	return !rdb.conflicted
}

func (rdb *RuleDatabase) emptyAtomQueue() bool {
	for len(rdb.atomQueue) > 0 {
		id := rdb.atomQueue[0]
		rdb.atomQueue = rdb.atomQueue[1:]
		a := rdb.atoms[id]
		a.enqueued = false

		deps := a.posDeps
		antiDeps := a.negDeps
		if a.status == TruthFalse {
			deps, antiDeps = antiDeps, deps
		}
		// deps now holds bodies whose literal over this atom is
		// satisfied; antiDeps the falsified ones.
		for _, bix := range deps {
			b := rdb.bodies[bix]
			if b.status == TruthFalse {
				continue
			}
			b.numUndeterminedTails--
			if b.numUndeterminedTails == 0 {
				rdb.setBodyStatus(b, TruthTrue)
			}
		}
		for _, bix := range antiDeps {
			rdb.setBodyStatus(rdb.bodies[bix], TruthFalse)
		}

		// A false head falsifies its non-choice supporting bodies.
		if a.status == TruthFalse {
			for _, bix := range a.supports {
				b := rdb.bodies[bix]
				for _, h := range b.heads {
					if h.atom == a.id && !h.choice {
						rdb.setBodyStatus(b, TruthFalse)
					}
				}
			}
		}
		if rdb.conflicted {
			return false
		}
	}
	return true
}

func (rdb *RuleDatabase) emptyBodyQueue() bool {
	for len(rdb.bodyQueue) > 0 {
		ix := rdb.bodyQueue[0]
		rdb.bodyQueue = rdb.bodyQueue[1:]
		b := rdb.bodies[ix]
		b.enqueued = false

		switch b.status {
		case TruthTrue:
			for _, h := range b.heads {
				if !h.choice {
					rdb.setAtomStatus(rdb.atoms[h.atom], TruthTrue)
				}
			}
		case TruthFalse:
			// A head with every support false is false.
			for _, h := range b.heads {
				a := rdb.atoms[h.atom]
				if a.status != TruthUndetermined || a.external {
					continue
				}
				allFalse := true
				for _, six := range a.supports {
					if rdb.bodies[six].status != TruthFalse {
						allFalse = false
						break
					}
				}
				if allFalse {
					rdb.setAtomStatus(a, TruthFalse)
				}
			}
		}
		if rdb.conflicted {
			return false
		}
	}
	return true
}

//
// SCC analysis
//

// computeSCCs labels every atom with its strongly-connected component in
// the positive dependency graph and returns the components that contain
// recursion (more than one atom, or an atom depending on itself).
func (rdb *RuleDatabase) computeSCCs() [][]AtomID {
	n := rdb.NumAtoms()
	adjacency := func(node int) []int {
		a := rdb.atoms[node+1]
		if a.status != TruthUndetermined {
			return nil
		}
		succs := set.New[int](4)
		for _, bix := range a.supports {
			b := rdb.bodies[bix]
			if b.status != TruthUndetermined {
				continue
			}
			for _, l := range b.lits {
				if l.Sign && rdb.atoms[l.ID].status == TruthUndetermined {
					succs.Insert(int(l.ID) - 1)
				}
			}
		}
		out := succs.Slice()
		sort.Ints(out)
		return out
	}

	var recursive [][]AtomID
	comp := findSCCs(n, adjacency, func(members []int) {
		if len(members) < 2 {
			// A single atom is recursive only with a positive self-loop.
			a := rdb.atoms[members[0]+1]
			selfLoop := false
			for _, bix := range a.supports {
				b := rdb.bodies[bix]
				if b.status != TruthUndetermined {
					continue
				}
				for _, l := range b.lits {
					if l.Sign && l.ID == a.id {
						selfLoop = true
					}
				}
			}
			if !selfLoop {
				return
			}
		}
		scc := make([]AtomID, 0, len(members))
		for _, m := range members {
			scc = append(scc, AtomID(m+1))
		}
		sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
		recursive = append(recursive, scc)
	})
	for i, a := range rdb.atoms[1:] {
		a.scc = comp[i]
	}
	for _, b := range rdb.bodies {
		b.scc = -1
		for _, l := range b.lits {
			if l.Sign && rdb.atoms[l.ID].scc >= 0 {
				b.scc = rdb.atoms[l.ID].scc
			}
		}
	}
	return recursive
}

// AtomSCC returns the atom's component index after Finalize.
func (rdb *RuleDatabase) AtomSCC(id AtomID) int { return rdb.atoms[id].scc }

//
// Finalize
//

// Finalize expands abstract rules, propagates facts, derives solver
// variables for everything undetermined, and emits the clause encoding.
// It returns false (with no error) when fact propagation proves the
// program unsatisfiable, and an error for invalid builds.
func (rdb *RuleDatabase) Finalize() (bool, error) {
	if rdb.finalized {
		return false, errors.New("rule database finalized twice")
	}
	rdb.finalized = true

	for _, ar := range rdb.abstractRules {
		for vtx := 0; vtx < ar.topo.NumVertices(); vtx++ {
			head, choice, body, ok := ar.instantiate(rdb, vtx)
			if !ok {
				continue
			}
			if err := rdb.addRule(head, choice, body); err != nil {
				return false, err
			}
		}
	}

	// A bound atom no rule supports draws its truth from its solver
	// variable alone; treat it as external so it is neither forced false
	// nor given a support clause.
	for _, a := range rdb.atoms[1:] {
		if !a.external && a.equivalence.Var.IsValid() && len(a.supports) == 0 {
			a.external = true
		}
	}

	if !rdb.propagateFacts() {
		return false, nil
	}

	recursive := rdb.computeSCCs()
	rdb.tight = len(recursive) == 0

	s := rdb.solver

	// Solver variables for undetermined atoms and bodies; unit clauses
	// for determined bound atoms.
	for _, a := range rdb.atoms[1:] {
		switch a.status {
		case TruthUndetermined:
			if !a.equivalence.Var.IsValid() {
				v := s.NewBoolean("atom:" + a.name)
				a.equivalence = Literal{Var: v, Values: NewValueSetFromIndices(2, 1)}
			}
		case TruthTrue:
			if a.equivalence.Var.IsValid() {
				s.addInternalClause([]Literal{a.equivalence})
			}
		case TruthFalse:
			if a.equivalence.Var.IsValid() {
				s.addInternalClause([]Literal{a.equivalence.Inverted()})
			}
		}
	}
	for _, b := range rdb.bodies {
		if b.status != TruthUndetermined {
			continue
		}
		v := s.NewBoolean(fmt.Sprintf("body%d", b.id))
		b.equivalence = Literal{Var: v, Values: NewValueSetFromIndices(2, 1)}
	}

	// litToSolver maps a body literal to its solver form.
	litToSolver := func(l RuleAtomLiteral) Literal {
		eq := rdb.atoms[l.ID].equivalence
		if l.Sign {
			return eq
		}
		return eq.Inverted()
	}

	for _, b := range rdb.bodies {
		if b.status != TruthUndetermined {
			continue
		}
		if b.isNegativeConstraint {
			s.addInternalClause([]Literal{b.equivalence.Inverted()})
		}

		// Body ↔ conjunction of its literals.
		reverse := []Literal{b.equivalence}
		for _, l := range b.lits {
			if rdb.litSatisfied(l) {
				continue
			}
			lit := litToSolver(l)
			s.addInternalClause([]Literal{b.equivalence.Inverted(), lit})
			reverse = append(reverse, lit.Inverted())
		}
		s.addInternalClause(reverse)

		// Body true forces its non-choice heads.
		for _, h := range b.heads {
			a := rdb.atoms[h.atom]
			if h.choice || a.status != TruthUndetermined {
				continue
			}
			s.addInternalClause([]Literal{b.equivalence.Inverted(), a.equivalence})
		}
	}

	// Heads need some support.
	for _, a := range rdb.atoms[1:] {
		if a.status != TruthUndetermined || a.external {
			continue
		}
		clause := []Literal{a.equivalence.Inverted()}
		hasTrueSupport := false
		for _, bix := range a.supports {
			b := rdb.bodies[bix]
			switch b.status {
			case TruthTrue:
				hasTrueSupport = true
			case TruthUndetermined:
				clause = append(clause, b.equivalence)
			}
		}
		if !hasTrueSupport {
			s.addInternalClause(clause)
		}
	}

	// Recursive components additionally need unfounded-set reasoning.
	for _, scc := range recursive {
		newUnfoundedSetConstraint(s, rdb, scc)
	}

	s.logger.Debug("rule database finalized",
		"atoms", rdb.NumAtoms(), "bodies", rdb.NumBodies(),
		"tight", rdb.tight, "recursiveSCCs", len(recursive))
	return true, nil
}
