// Package solver: the rule grounder. It rewrites arithmetic out of formula
// arguments, orders statements by their dependency components, expands each
// statement over every consistent wildcard binding through the
// instantiator cursors, applies the head transforms, and exports the
// resulting ground rules to the rule database.
package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
)

// compilerAtom is one grounded instance of a formula, with its fact flag.
type compilerAtom struct {
	sym  Symbol
	fact bool
}

// atomDomain is the grounded extension of one formula.
type atomDomain struct {
	list  []compilerAtom
	index map[*ConstantFormula]int
}

func newAtomDomain() *atomDomain {
	return &atomDomain{index: make(map[*ConstantFormula]int)}
}

// groundedRule is a fully instantiated statement awaiting export.
type groundedRule struct {
	headType ruleHeadType
	heads    []Symbol
	body     []Symbol
}

func (gr *groundedRule) key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:", gr.headType)
	for _, h := range gr.heads {
		b.WriteString(h.key())
		b.WriteByte('|')
	}
	b.WriteByte(':')
	for _, l := range gr.body {
		b.WriteString(l.key())
		b.WriteByte(',')
	}
	return b.String()
}

// grounder compiles one program instance into the rule database.
type grounder struct {
	rdb   *RuleDatabase
	inst  *ProgramInstance
	prog  *Program
	arena *formulaArena

	statements []*ruleStatement

	// outerSCC and innerSCC label each statement with its dependency
	// components: outer over all edges, inner over positive edges only.
	outerSCC []int
	innerSCC []int

	domains map[FormulaUID]*atomDomain
	facts   map[*ConstantFormula]bool

	groundedRules []groundedRule
	ruleKeys      map[string]bool
	// changed flags that the current fixpoint pass produced a new atom,
	// fact, or rule.
	changed bool

	exported map[*ConstantFormula]AtomID
	err      error
}

func newGrounder(rdb *RuleDatabase, inst *ProgramInstance) *grounder {
	return &grounder{
		rdb:      rdb,
		inst:     inst,
		prog:     inst.program,
		arena:    inst.arena,
		domains:  make(map[FormulaUID]*atomDomain),
		facts:    make(map[*ConstantFormula]bool),
		ruleKeys: make(map[string]bool),
		exported: make(map[*ConstantFormula]AtomID),
	}
}

// compile runs the full pipeline: math rewrite, dependency analysis,
// component-ordered grounding to fixpoint, and export.
func (g *grounder) compile() error {
	g.rewriteMath()
	g.computeComponents()

	for _, component := range g.componentOrder() {
		for pass := 0; ; pass++ {
			g.changed = false
			for _, stmtIx := range component {
				if err := g.groundStatement(g.statements[stmtIx]); err != nil {
					return err
				}
			}
			if !g.changed {
				break
			}
		}
	}
	if g.err != nil {
		return g.err
	}

	// Statements sharing a positive-edge component are recursive; they are
	// what forced the fixpoint passes above.
	recursive := 0
	counts := make(map[int]int)
	for _, c := range g.innerSCC {
		counts[c]++
	}
	for _, n := range counts {
		if n > 1 {
			recursive++
		}
	}
	g.rdb.solver.logger.Debug("program grounded",
		"program", g.inst.name,
		"statements", len(g.statements),
		"rules", len(g.groundedRules),
		"recursiveComponents", recursive)

	return g.export()
}

//
// Phase 1: math rewrite
//

// rewriteMath deep-copies the program's statements and lifts arithmetic
// sub-expressions out of formula arguments: A(X+1) ← B(X) becomes
// A(M) ← B(X), M == X+1.
func (g *grounder) rewriteMath() {
	synthetic := 0
	freshWildcard := func() Wildcard {
		synthetic++
		g.prog.nextWildcard++
		return Wildcard{uid: g.prog.nextWildcard, name: fmt.Sprintf("_M%d", synthetic)}
	}

	for i := range g.prog.statements {
		src := &g.prog.statements[i]
		st := &ruleStatement{headType: src.headType}
		var lifted []Term

		liftCall := func(call *FormulaCall) *FormulaCall {
			out := *call
			out.args = make([]Term, len(call.args))
			for ai, a := range call.args {
				if op, isOp := a.(opTerm); isOp && op.op.isArithmetic() {
					m := freshWildcard()
					out.args[ai] = wildcardTerm{w: m}
					lifted = append(lifted, Eq(m, a))
					continue
				}
				out.args[ai] = a
			}
			return &out
		}

		for _, h := range src.heads {
			st.heads = append(st.heads, liftCall(h))
		}
		for _, t := range src.body {
			if call, isCall := t.(*FormulaCall); isCall {
				st.body = append(st.body, liftCall(call))
				continue
			}
			st.body = append(st.body, t)
		}
		st.body = append(st.body, lifted...)
		g.statements = append(g.statements, st)
	}
}

//
// Phase 2: dependency components
//

// wildcardsOf collects the wildcard UIDs mentioned anywhere in a term.
func wildcardsOf(t Term, out *set.Set[int]) {
	switch v := t.(type) {
	case wildcardTerm:
		out.Insert(v.w.uid)
	case opTerm:
		wildcardsOf(v.lhs, out)
		wildcardsOf(v.rhs, out)
	case *FormulaCall:
		for _, a := range v.args {
			wildcardsOf(a, out)
		}
	}
}

// computeComponents builds the statement dependency graph (an edge from
// each statement defining a formula to each statement using it) and labels
// statements with outer (all-edge) and inner (positive-edge) components.
func (g *grounder) computeComponents() {
	n := len(g.statements)
	definers := make(map[FormulaUID][]int)
	for i, st := range g.statements {
		for _, h := range st.heads {
			definers[h.uid] = append(definers[h.uid], i)
		}
	}

	allEdges := make([][]int, n)
	posEdges := make([][]int, n)
	for i, st := range g.statements {
		for _, t := range st.body {
			call, isCall := t.(*FormulaCall)
			if !isCall || call.external {
				continue
			}
			for _, def := range definers[call.uid] {
				allEdges[def] = append(allEdges[def], i)
				if !call.negated {
					posEdges[def] = append(posEdges[def], i)
				}
			}
		}
	}

	g.outerSCC = findSCCs(n, func(u int) []int { return allEdges[u] }, nil)
	g.innerSCC = findSCCs(n, func(u int) []int { return posEdges[u] }, nil)
}

// componentOrder groups statement indices by outer component, definers
// first (descending component index: Tarjan numbers sinks before sources).
func (g *grounder) componentOrder() [][]int {
	groups := make(map[int][]int)
	for i, c := range g.outerSCC {
		groups[c] = append(groups[c], i)
	}
	comps := make([]int, 0, len(groups))
	for c := range groups {
		comps = append(comps, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(comps)))

	out := make([][]int, 0, len(comps))
	for _, c := range comps {
		members := groups[c]
		sort.Ints(members)
		out = append(out, members)
	}
	return out
}

//
// Phase 3: grounding one statement
//

// termBindings classifies one body term's wildcard flow.
type termBindings struct {
	term Term
	// binds are wildcards the term can provide a value for; requires are
	// wildcards it needs already bound.
	binds    *set.Set[int]
	requires *set.Set[int]
	external bool
	constant bool
}

func (g *grounder) classifyTerm(t Term) (termBindings, error) {
	tb := termBindings{term: t, binds: set.New[int](2), requires: set.New[int](2)}
	switch v := t.(type) {
	case symbolTerm:
		tb.constant = true
	case *FormulaCall:
		tb.external = v.external
		if v.negated {
			wildcardsOf(v, tb.requires)
			break
		}
		for _, a := range v.args {
			if wt, isWildcard := a.(wildcardTerm); isWildcard {
				tb.binds.Insert(wt.w.uid)
				continue
			}
			wildcardsOf(a, tb.requires)
		}
	case opTerm:
		if v.op.isArithmetic() {
			return tb, errors.Errorf("bare arithmetic term %v in rule body", v.op)
		}
		if v.op == OpEquality {
			if wt, isWildcard := v.lhs.(wildcardTerm); isWildcard {
				tb.binds.Insert(wt.w.uid)
				wildcardsOf(v.rhs, tb.requires)
				break
			}
		}
		wildcardsOf(v, tb.requires)
	default:
		return tb, errors.Errorf("unsupported rule body term %T", t)
	}
	// A wildcard a term both requires and binds is only a binder.
	for _, uid := range tb.binds.Slice() {
		tb.requires.Remove(uid)
	}
	return tb, nil
}

// orderTerms topologically orders the body so binders precede consumers,
// breaking ties by the precedence: constants, external calls, terms with
// an already-bound wildcard, anything else. An unorderable remainder means
// an unsafe (unbindable) wildcard.
func (g *grounder) orderTerms(st *ruleStatement) ([]Term, error) {
	nodes := make([]termBindings, 0, len(st.body))
	for _, t := range st.body {
		tb, err := g.classifyTerm(t)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, tb)
	}

	bound := set.New[int](8)
	used := make([]bool, len(nodes))
	ordered := make([]Term, 0, len(nodes))

	score := func(tb termBindings) int {
		switch {
		case tb.constant:
			return 0
		case tb.external:
			return 1
		case anyBound(tb, bound):
			return 2
		default:
			return 3
		}
	}

	for len(ordered) < len(nodes) {
		best := -1
		bestScore := 0
		for i, tb := range nodes {
			if used[i] || !allBound(tb.requires, bound) {
				continue
			}
			sc := score(tb)
			if best < 0 || sc < bestScore {
				best, bestScore = i, sc
			}
		}
		if best < 0 {
			return nil, errors.Errorf("statement has an unsafe wildcard: no term can bind the remaining variables")
		}
		used[best] = true
		ordered = append(ordered, nodes[best].term)
		for _, uid := range nodes[best].binds.Slice() {
			bound.Insert(uid)
		}
	}

	// Every head wildcard must be bound by the body.
	headWildcards := set.New[int](4)
	for _, h := range st.heads {
		wildcardsOf(h, headWildcards)
	}
	if !allBound(headWildcards, bound) {
		return nil, errors.New("statement head mentions a wildcard its body never binds")
	}
	return ordered, nil
}

func anyBound(tb termBindings, bound *set.Set[int]) bool {
	for _, uid := range tb.binds.Slice() {
		if bound.Contains(uid) {
			return true
		}
	}
	return false
}

// allBound reports whether every wildcard in want is already bound.
func allBound(want, bound *set.Set[int]) bool {
	for _, uid := range want.Slice() {
		if !bound.Contains(uid) {
			return false
		}
	}
	return true
}

// makeInstantiator builds the cursor for one ordered term.
func (g *grounder) makeInstantiator(t Term, bindings *bindingSet) instantiator {
	switch v := t.(type) {
	case symbolTerm:
		truthy := v.sym.Type() != SymInt || v.sym.Int() != 0
		return &constInstantiator{matched: truthy}
	case *FormulaCall:
		if v.external {
			return &externalInstantiator{g: g, call: v, bindings: bindings}
		}
		if v.negated {
			return &negativeFunctionInstantiator{g: g, call: v, bindings: bindings}
		}
		return &functionInstantiator{g: g, call: v, bindings: bindings}
	case opTerm:
		if v.op == OpEquality {
			return &equalityInstantiator{g: g, term: v, bindings: bindings}
		}
		return &relationInstantiator{g: g, term: v, bindings: bindings}
	default:
		panic(fmt.Sprintf("solver: no instantiator for term %T", t))
	}
}

// groundStatement expands one statement over every consistent binding.
func (g *grounder) groundStatement(st *ruleStatement) error {
	ordered, err := g.orderTerms(st)
	if err != nil {
		return errors.Wrapf(err, "program %q", g.inst.name)
	}
	bindings := newBindingSet()
	nodes := make([]instantiator, len(ordered))
	for i, t := range ordered {
		nodes[i] = g.makeInstantiator(t, bindings)
	}
	g.instantiate(st, ordered, nodes, bindings, 0)
	return g.err
}

// instantiate recurses through the ordered cursors like nested loops,
// emitting a grounded rule at every full match.
func (g *grounder) instantiate(st *ruleStatement, ordered []Term, nodes []instantiator, bindings *bindingSet, depth int) {
	if g.err != nil {
		return
	}
	if depth == len(nodes) {
		g.emit(st, ordered, bindings)
		return
	}
	in := nodes[depth]
	for in.first(); !in.hitEnd(); in.next() {
		g.instantiate(st, ordered, nodes, bindings, depth+1)
		if g.err != nil {
			return
		}
	}
}

// emit records the grounded rule for the current bindings and extends the
// formula domains with its head atoms.
func (g *grounder) emit(st *ruleStatement, ordered []Term, bindings *bindingSet) {
	gr := groundedRule{headType: st.headType}

	for _, h := range st.heads {
		sym, ok := g.evalCall(h, bindings)
		if !ok {
			g.err = errors.Errorf("program %q: head %s did not ground", g.inst.name, h.name)
			return
		}
		gr.heads = append(gr.heads, sym)
	}

	// Collect the surviving body literals: formula calls that are not
	// external and, for positive calls, not established facts.
	for _, t := range ordered {
		call, isCall := t.(*FormulaCall)
		if !isCall || call.external {
			continue
		}
		sym, ok := g.evalCall(call, bindings)
		if !ok {
			g.err = errors.Errorf("program %q: body literal %s did not ground", g.inst.name, call.name)
			return
		}
		if !call.negated && g.facts[sym.Formula()] {
			continue
		}
		gr.body = append(gr.body, sym)
	}

	key := gr.key()
	if g.ruleKeys[key] {
		return
	}
	g.ruleKeys[key] = true
	g.changed = true
	g.groundedRules = append(g.groundedRules, gr)

	// Heads join their formula domains; an empty-bodied normal head is a
	// fact.
	isFact := st.headType == headNormal && len(gr.body) == 0
	for _, h := range gr.heads {
		g.addGroundedAtom(h, isFact && len(gr.heads) == 1)
	}
}

func (g *grounder) addGroundedAtom(sym Symbol, fact bool) {
	dom, ok := g.domains[sym.Formula().UID]
	if !ok {
		dom = newAtomDomain()
		g.domains[sym.Formula().UID] = dom
	}
	cf := sym.Formula()
	if ix, exists := dom.index[cf]; exists {
		if fact && !dom.list[ix].fact {
			dom.list[ix].fact = true
			g.facts[cf] = true
			g.changed = true
		}
		return
	}
	dom.index[cf] = len(dom.list)
	dom.list = append(dom.list, compilerAtom{sym: sym.Absolute(), fact: fact})
	if fact {
		g.facts[cf] = true
	}
	g.changed = true
}

//
// Phase 4/5: head transforms and export
//

// atomFor returns (creating on demand) the rule-database atom for a ground
// formula symbol, invoking the formula's binder when one is installed.
func (g *grounder) atomFor(sym Symbol) AtomID {
	cf := sym.Absolute().Formula()
	if id, ok := g.exported[cf]; ok {
		return id
	}
	var id AtomID
	if binder, ok := g.prog.binders[cf.UID]; ok {
		if v := binder(cf.Args); v.IsValid() {
			// Bound variables are boolean: index 1 is the atom's truth.
			dom := g.rdb.solver.db.Domain(v)
			assertf(dom.Size() == 2, "bound variable %s for %s is not boolean", v, cf)
			lit := Literal{Var: v, Values: NewValueSetFromIndices(2, 1)}
			id = g.rdb.CreateBoundAtom(cf.String(), lit)
		}
	}
	if !id.IsValid() {
		id = g.rdb.CreateAtom(cf.String())
	}
	g.exported[cf] = id
	if g.facts[cf] {
		g.rdb.SetFact(id, true)
	}
	return id
}

// export applies the head transforms and hands every grounded rule to the
// rule database. Disjunction heads expand into one rule per head with the
// sibling heads negated in the body.
func (g *grounder) export() error {
	for _, gr := range g.groundedRules {
		body, derivable := g.exportBody(gr.body)
		if !derivable {
			continue
		}
		switch gr.headType {
		case headNone:
			if err := g.rdb.AddRule(RuleAtomLiteral{}, false, body); err != nil {
				return err
			}
		case headNormal:
			if err := g.rdb.AddRule(PosAtom(g.atomFor(gr.heads[0])), false, body); err != nil {
				return err
			}
		case headChoice:
			if err := g.rdb.AddRule(PosAtom(g.atomFor(gr.heads[0])), true, body); err != nil {
				return err
			}
		case headDisjunction:
			ids := make([]AtomID, len(gr.heads))
			for i, h := range gr.heads {
				ids[i] = g.atomFor(h)
			}
			for i := range ids {
				expanded := append([]RuleAtomLiteral(nil), body...)
				for j, other := range ids {
					if j != i {
						expanded = append(expanded, NegAtom(other))
					}
				}
				if err := g.rdb.AddRule(PosAtom(ids[i]), false, expanded); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// exportBody converts grounded body symbols to database literals. The
// second result is false when the body can never hold (a positive literal
// with no grounded atom, or a negated established fact).
func (g *grounder) exportBody(symbols []Symbol) ([]RuleAtomLiteral, bool) {
	out := make([]RuleAtomLiteral, 0, len(symbols))
	for _, sym := range symbols {
		cf := sym.Absolute().Formula()
		if sym.IsNegated() {
			if g.facts[cf] {
				return nil, false
			}
			if !g.symbolGrounded(cf) {
				// Never derivable: the negation holds vacuously.
				continue
			}
			out = append(out, NegAtom(g.atomFor(sym)))
			continue
		}
		if g.facts[cf] {
			continue
		}
		if !g.symbolGrounded(cf) {
			return nil, false
		}
		out = append(out, PosAtom(g.atomFor(sym)))
	}
	return out, true
}

func (g *grounder) symbolGrounded(cf *ConstantFormula) bool {
	dom, ok := g.domains[cf.UID]
	if !ok {
		return false
	}
	_, exists := dom.index[cf]
	return exists
}
