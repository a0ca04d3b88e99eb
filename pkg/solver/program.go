// Package solver: the rule program DSL. A Program collects formula
// declarations and rule statements through an explicit builder (no ambient
// globals); Instantiate produces a ProgramInstance that is ground into the
// rule database when solving starts.
package solver

import (
	"fmt"

	"github.com/pkg/errors"
)

// Wildcard is an ungrounded variable scoped to the rule statements of one
// program. The grounder expands each statement over every consistent
// binding of its wildcards.
type Wildcard struct {
	uid  int
	name string
}

func (w Wildcard) String() string { return w.name }

// BinaryOp enumerates the operators usable in rule bodies and formula
// arguments.
type BinaryOp uint8

const (
	// OpAdd, OpSubtract, OpMultiply, OpDivide are arithmetic operators,
	// usable inside formula arguments and equality right-hand sides.
	OpAdd BinaryOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	// OpEquality binds its left-hand wildcard from its right-hand
	// expression (or checks equality when already bound).
	OpEquality
	// OpInequality and the comparisons below are relational tests over
	// bound expressions.
	OpInequality
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpEquality:
		return "=="
	case OpInequality:
		return "!="
	case OpLess:
		return "<"
	case OpLessEq:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEq:
		return ">="
	default:
		return "?"
	}
}

// isArithmetic reports whether the operator computes a value (as opposed to
// testing a relation).
func (op BinaryOp) isArithmetic() bool { return op <= OpDivide }

// Term is a node of the rule-program AST: a wildcard, a constant, a binary
// operation, or a formula call.
type Term interface{ isTerm() }

type wildcardTerm struct{ w Wildcard }

type symbolTerm struct{ sym Symbol }

type opTerm struct {
	op  BinaryOp
	lhs Term
	rhs Term
}

// FormulaCall is a formula applied to argument terms, usable as a rule head
// or body literal.
type FormulaCall struct {
	uid      FormulaUID
	name     string
	args     []Term
	negated  bool
	external bool
	provider ExternalProvider
}

func (wildcardTerm) isTerm() {}
func (symbolTerm) isTerm()   {}
func (opTerm) isTerm()       {}
func (*FormulaCall) isTerm() {}

// Not negates a body formula call.
func Not(call *FormulaCall) *FormulaCall {
	out := *call
	out.negated = true
	out.args = call.args
	return &out
}

// Plus builds lhs + rhs.
func Plus(lhs, rhs interface{}) Term { return opTerm{op: OpAdd, lhs: toTerm(lhs), rhs: toTerm(rhs)} }

// Minus builds lhs - rhs.
func Minus(lhs, rhs interface{}) Term {
	return opTerm{op: OpSubtract, lhs: toTerm(lhs), rhs: toTerm(rhs)}
}

// Times builds lhs * rhs.
func Times(lhs, rhs interface{}) Term {
	return opTerm{op: OpMultiply, lhs: toTerm(lhs), rhs: toTerm(rhs)}
}

// Eq builds the binding/equality test lhs == rhs.
func Eq(lhs, rhs interface{}) Term { return opTerm{op: OpEquality, lhs: toTerm(lhs), rhs: toTerm(rhs)} }

// Neq builds the test lhs != rhs.
func Neq(lhs, rhs interface{}) Term {
	return opTerm{op: OpInequality, lhs: toTerm(lhs), rhs: toTerm(rhs)}
}

// Lt builds the test lhs < rhs.
func Lt(lhs, rhs interface{}) Term { return opTerm{op: OpLess, lhs: toTerm(lhs), rhs: toTerm(rhs)} }

// Lte builds the test lhs <= rhs.
func Lte(lhs, rhs interface{}) Term { return opTerm{op: OpLessEq, lhs: toTerm(lhs), rhs: toTerm(rhs)} }

// Gt builds the test lhs > rhs.
func Gt(lhs, rhs interface{}) Term { return opTerm{op: OpGreater, lhs: toTerm(lhs), rhs: toTerm(rhs)} }

// Gte builds the test lhs >= rhs.
func Gte(lhs, rhs interface{}) Term {
	return opTerm{op: OpGreaterEq, lhs: toTerm(lhs), rhs: toTerm(rhs)}
}

// toTerm lifts DSL arguments into Terms. Accepted: Term, Wildcard, int,
// string (an ID constant), Symbol.
func toTerm(arg interface{}) Term {
	switch v := arg.(type) {
	case Term:
		return v
	case Wildcard:
		return wildcardTerm{w: v}
	case int:
		return symbolTerm{sym: IntSymbol(v)}
	case string:
		return symbolTerm{sym: IDSymbol(v)}
	case Symbol:
		return symbolTerm{sym: v}
	default:
		panic(fmt.Sprintf("solver: invalid rule term %T", arg))
	}
}

// ExternalProvider supplies the matches of an external formula: a predicate
// implemented in Go rather than by rules, such as the edge relation of a
// topology.
type ExternalProvider interface {
	// Enumerate yields every tuple consistent with the partially bound
	// argument list (invalid symbols mark unbound positions).
	Enumerate(bound []Symbol, emit func(args []Symbol))
	// Eval validates a fully bound call.
	Eval(args []Symbol) bool
}

// EdgeProvider exposes a topology's edge relation (u, v) as an external
// formula of arity 2.
type EdgeProvider struct {
	topo Topology
}

// NewEdgeProvider wraps a topology.
func NewEdgeProvider(topo Topology) *EdgeProvider { return &EdgeProvider{topo: topo} }

// Enumerate implements ExternalProvider.
func (p *EdgeProvider) Enumerate(bound []Symbol, emit func(args []Symbol)) {
	emitEdge := func(u, v int) {
		emit([]Symbol{IntSymbol(u), IntSymbol(v)})
	}
	switch {
	case bound[0].IsValid() && bound[1].IsValid():
		if p.Eval(bound) {
			emit(bound)
		}
	case bound[0].IsValid():
		u := bound[0].Int()
		if p.topo.IsValidVertex(u) {
			for _, v := range p.topo.Outgoing(u) {
				emitEdge(u, v)
			}
		}
	case bound[1].IsValid():
		v := bound[1].Int()
		if p.topo.IsValidVertex(v) {
			for _, u := range p.topo.Incoming(v) {
				emitEdge(u, v)
			}
		}
	default:
		for u := 0; u < p.topo.NumVertices(); u++ {
			for _, v := range p.topo.Outgoing(u) {
				emitEdge(u, v)
			}
		}
	}
}

// Eval implements ExternalProvider.
func (p *EdgeProvider) Eval(args []Symbol) bool {
	if args[0].Type() != SymInt || args[1].Type() != SymInt {
		return false
	}
	u, v := args[0].Int(), args[1].Int()
	for _, o := range p.topo.Outgoing(u) {
		if o == v {
			return true
		}
	}
	return false
}

// VertexProvider exposes a topology's vertices as an external formula of
// arity 1.
type VertexProvider struct {
	topo Topology
}

// NewVertexProvider wraps a topology.
func NewVertexProvider(topo Topology) *VertexProvider { return &VertexProvider{topo: topo} }

// Enumerate implements ExternalProvider.
func (p *VertexProvider) Enumerate(bound []Symbol, emit func(args []Symbol)) {
	if bound[0].IsValid() {
		if p.Eval(bound) {
			emit(bound)
		}
		return
	}
	for v := 0; v < p.topo.NumVertices(); v++ {
		emit([]Symbol{IntSymbol(v)})
	}
}

// Eval implements ExternalProvider.
func (p *VertexProvider) Eval(args []Symbol) bool {
	return args[0].Type() == SymInt && p.topo.IsValidVertex(args[0].Int())
}

// ruleHeadType discriminates statement heads.
type ruleHeadType uint8

const (
	headNone ruleHeadType = iota
	headNormal
	headChoice
	headDisjunction
)

// ruleStatement is one statement of a program: an optional head and a body
// term list.
type ruleStatement struct {
	headType ruleHeadType
	heads    []*FormulaCall
	body     []Term
}

// BindFunc maps a grounded head's argument tuple to a user solver variable,
// giving the atom a truth-ground outside the rule layer.
type BindFunc func(args []Symbol) VarID

// Formula is a declared predicate of fixed arity within a program.
type Formula struct {
	prog  *Program
	uid   FormulaUID
	name  string
	arity int
}

// Name returns the formula's declared name.
func (f *Formula) Name() string { return f.name }

// Arity returns the formula's argument count.
func (f *Formula) Arity() int { return f.arity }

// T applies the formula to arguments, producing a head or body literal.
func (f *Formula) T(args ...interface{}) *FormulaCall {
	assertf(len(args) == f.arity, "formula %s/%d called with %d arguments", f.name, f.arity, len(args))
	call := &FormulaCall{uid: f.uid, name: f.name, args: make([]Term, len(args))}
	if provider, ok := f.prog.externals[f.uid]; ok {
		call.external = true
		call.provider = provider
	}
	for i, a := range args {
		call.args[i] = toTerm(a)
	}
	return call
}

// Fact registers a ground instance of the formula as a fact.
func (f *Formula) Fact(args ...interface{}) {
	f.prog.addStatement(ruleStatement{headType: headNormal, heads: []*FormulaCall{f.T(args...)}})
}

// Bind installs a binder invoked for every grounded head instance of the
// formula, tying the atom to a caller-owned solver variable.
func (f *Formula) Bind(fn BindFunc) {
	f.prog.binders[f.uid] = fn
}

// Program is a rule program under construction.
type Program struct {
	name          string
	nextFormula   FormulaUID
	nextWildcard  int
	statements    []ruleStatement
	externals     map[FormulaUID]ExternalProvider
	binders       map[FormulaUID]BindFunc
	formulaArity  map[FormulaUID]int
	formulaByName map[string]FormulaUID
	buildErr      error
}

// NewProgram creates an empty program.
func NewProgram(name string) *Program {
	return &Program{
		name:          name,
		externals:     make(map[FormulaUID]ExternalProvider),
		binders:       make(map[FormulaUID]BindFunc),
		formulaArity:  make(map[FormulaUID]int),
		formulaByName: make(map[string]FormulaUID),
	}
}

// Formula declares a predicate with the given arity. Re-declaring a name
// with a different arity is a build error.
func (p *Program) Formula(name string, arity int) *Formula {
	if uid, ok := p.formulaByName[name]; ok {
		if p.formulaArity[uid] != arity {
			p.fail(errors.Errorf("formula %q redeclared with arity %d (was %d)", name, arity, p.formulaArity[uid]))
		}
		return &Formula{prog: p, uid: uid, name: name, arity: arity}
	}
	p.nextFormula++
	uid := p.nextFormula
	p.formulaByName[name] = uid
	p.formulaArity[uid] = arity
	return &Formula{prog: p, uid: uid, name: name, arity: arity}
}

// ExternalFormula declares a predicate backed by a Go provider instead of
// rules.
func (p *Program) ExternalFormula(name string, arity int, provider ExternalProvider) *Formula {
	f := p.Formula(name, arity)
	p.externals[f.uid] = provider
	return f
}

// Wildcard declares a fresh wildcard for use in this program's statements.
func (p *Program) Wildcard(name string) Wildcard {
	p.nextWildcard++
	return Wildcard{uid: p.nextWildcard, name: name}
}

func (p *Program) fail(err error) {
	if p.buildErr == nil {
		p.buildErr = err
	}
}

func (p *Program) addStatement(st ruleStatement) { p.statements = append(p.statements, st) }

// Rule adds "head ← body".
func (p *Program) Rule(head *FormulaCall, body ...Term) {
	if head.external {
		p.fail(errors.Errorf("external formula %q cannot be a rule head", head.name))
		return
	}
	p.addStatement(ruleStatement{headType: headNormal, heads: []*FormulaCall{head}, body: body})
}

// Choice adds "{head} ← body": the head may be true when the body holds,
// but nothing forces it.
func (p *Program) Choice(head *FormulaCall, body ...Term) {
	p.addStatement(ruleStatement{headType: headChoice, heads: []*FormulaCall{head}, body: body})
}

// DisjunctionRule adds "h₁ | … | hₙ ← body".
func (p *Program) DisjunctionRule(heads []*FormulaCall, body ...Term) {
	assertf(len(heads) > 1, "disjunction rule needs at least two heads")
	p.addStatement(ruleStatement{headType: headDisjunction, heads: heads, body: body})
}

// Disallow forbids any solution where the body holds.
func (p *Program) Disallow(body ...Term) {
	p.addStatement(ruleStatement{headType: headNone, body: body})
}

// Instantiate snapshots the program into an instance ready to be added to a
// solver. Each instance grounds independently with its own formula arena.
func (p *Program) Instantiate() *ProgramInstance {
	return &ProgramInstance{
		name:    p.name,
		program: p,
		arena:   newFormulaArena(),
	}
}

// ProgramInstance is one grounding of a program. Add it to a solver with
// AddProgram; grounding happens when solving starts.
type ProgramInstance struct {
	name    string
	program *Program
	arena   *formulaArena
}

// compile grounds the instance's statements into the solver's rule
// database.
func (pi *ProgramInstance) compile(s *Solver) error {
	if pi.program.buildErr != nil {
		return pi.program.buildErr
	}
	g := newGrounder(s.RuleDB(), pi)
	return g.compile()
}
