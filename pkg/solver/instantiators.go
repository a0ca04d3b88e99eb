// Package solver: instantiators. Each body term of a rule statement is
// compiled to a cursor over its possible matches; the grounder nests the
// cursors like loops, binding wildcards on the way down and unbinding on
// backtrack.
package solver

// bindingSet is the shared wildcard environment of one statement grounding.
type bindingSet struct {
	values map[int]Symbol
}

func newBindingSet() *bindingSet { return &bindingSet{values: make(map[int]Symbol)} }

func (b *bindingSet) get(w Wildcard) (Symbol, bool) {
	sym, ok := b.values[w.uid]
	return sym, ok
}

func (b *bindingSet) bind(w Wildcard, sym Symbol) { b.values[w.uid] = sym }

func (b *bindingSet) unbind(w Wildcard) { delete(b.values, w.uid) }

// evalTerm evaluates a term to a ground symbol under the bindings. The
// second result is false when the term mentions an unbound wildcard (or
// divides by zero).
func (g *grounder) evalTerm(t Term, bindings *bindingSet) (Symbol, bool) {
	switch v := t.(type) {
	case symbolTerm:
		return v.sym, true
	case wildcardTerm:
		return bindings.get(v.w)
	case opTerm:
		lhs, ok := g.evalTerm(v.lhs, bindings)
		if !ok || lhs.Type() != SymInt {
			return Symbol{}, false
		}
		rhs, ok := g.evalTerm(v.rhs, bindings)
		if !ok || rhs.Type() != SymInt {
			return Symbol{}, false
		}
		switch v.op {
		case OpAdd:
			return IntSymbol(lhs.Int() + rhs.Int()), true
		case OpSubtract:
			return IntSymbol(lhs.Int() - rhs.Int()), true
		case OpMultiply:
			return IntSymbol(lhs.Int() * rhs.Int()), true
		case OpDivide:
			if rhs.Int() == 0 {
				return Symbol{}, false
			}
			return IntSymbol(lhs.Int() / rhs.Int()), true
		default:
			return Symbol{}, false
		}
	case *FormulaCall:
		return g.evalCall(v, bindings)
	default:
		return Symbol{}, false
	}
}

// evalCall interns the formula symbol for a fully bound call.
func (g *grounder) evalCall(call *FormulaCall, bindings *bindingSet) (Symbol, bool) {
	args := make([]Symbol, len(call.args))
	for i, a := range call.args {
		sym, ok := g.evalTerm(a, bindings)
		if !ok {
			return Symbol{}, false
		}
		args[i] = sym
	}
	return g.arena.formulaSymbol(call.uid, call.name, args, call.negated), true
}

// instantiator is a cursor over the matches of one body term.
type instantiator interface {
	// first resets the cursor to its first match.
	first()
	// next advances past the current match.
	next()
	// hitEnd reports whether the cursor is exhausted.
	hitEnd() bool
}

// functionInstantiator matches a positive, non-external formula call
// against the formula's grounded atoms.
type functionInstantiator struct {
	g        *grounder
	call     *FormulaCall
	bindings *bindingSet

	index int
	ended bool
	bound []Wildcard // wildcards this cursor bound for the current match
}

func (fi *functionInstantiator) domain() []compilerAtom {
	if d, ok := fi.g.domains[fi.call.uid]; ok {
		return d.list
	}
	return nil
}

func (fi *functionInstantiator) first() {
	fi.index = 0
	fi.ended = false
	fi.unbindAll()
	fi.scan()
}

func (fi *functionInstantiator) next() {
	fi.unbindAll()
	fi.index++
	fi.scan()
}

func (fi *functionInstantiator) hitEnd() bool { return fi.ended }

func (fi *functionInstantiator) unbindAll() {
	for _, w := range fi.bound {
		fi.bindings.unbind(w)
	}
	fi.bound = fi.bound[:0]
}

// scan advances to the next grounded atom that unifies with the call.
func (fi *functionInstantiator) scan() {
	list := fi.domain()
	for ; fi.index < len(list); fi.index++ {
		if fi.matches(list[fi.index].sym) {
			return
		}
		fi.unbindAll()
	}
	fi.ended = true
}

// matches unifies the candidate's arguments against the call's terms,
// binding free wildcards.
func (fi *functionInstantiator) matches(candidate Symbol) bool {
	args := candidate.Formula().Args
	for i, t := range fi.call.args {
		switch v := t.(type) {
		case wildcardTerm:
			if have, ok := fi.bindings.get(v.w); ok {
				if !have.Equal(args[i]) {
					return false
				}
				continue
			}
			fi.bindings.bind(v.w, args[i])
			fi.bound = append(fi.bound, v.w)
		default:
			val, ok := fi.g.evalTerm(t, fi.bindings)
			if !ok || !val.Equal(args[i]) {
				return false
			}
		}
	}
	return true
}

// negativeFunctionInstantiator handles a negated formula call: every
// wildcard must already be bound; the match fails if the call is an
// established fact, and otherwise succeeds once (the negation becomes a
// body literal).
type negativeFunctionInstantiator struct {
	g        *grounder
	call     *FormulaCall
	bindings *bindingSet
	ended    bool
	matched  bool
}

func (ni *negativeFunctionInstantiator) first() {
	ni.ended = false
	sym, ok := ni.g.evalCall(ni.call, ni.bindings)
	ni.matched = ok && !ni.g.facts[sym.Absolute().Formula()]
	if !ni.matched {
		ni.ended = true
	}
}

func (ni *negativeFunctionInstantiator) next()        { ni.ended = true }
func (ni *negativeFunctionInstantiator) hitEnd() bool { return ni.ended }

// externalInstantiator delegates to the formula's provider, enumerating
// tuples for unbound arguments and validating bound calls. Negated
// external calls succeed exactly when the provider rejects the bound
// tuple.
type externalInstantiator struct {
	g        *grounder
	call     *FormulaCall
	bindings *bindingSet

	matchesList [][]Symbol
	index       int
	ended       bool
	bound       []Wildcard
}

func (ei *externalInstantiator) first() {
	ei.unbindAll()
	ei.ended = false
	ei.index = 0
	ei.matchesList = ei.matchesList[:0]

	if ei.call.negated {
		args := make([]Symbol, len(ei.call.args))
		for i, t := range ei.call.args {
			sym, ok := ei.g.evalTerm(t, ei.bindings)
			if !ok {
				ei.ended = true
				return
			}
			args[i] = sym
		}
		if ei.call.provider.Eval(args) {
			ei.ended = true
		}
		return
	}

	pattern := make([]Symbol, len(ei.call.args))
	for i, t := range ei.call.args {
		if sym, ok := ei.g.evalTerm(t, ei.bindings); ok {
			pattern[i] = sym
		}
	}
	ei.call.provider.Enumerate(pattern, func(args []Symbol) {
		tuple := append([]Symbol(nil), args...)
		ei.matchesList = append(ei.matchesList, tuple)
	})
	ei.scan()
}

func (ei *externalInstantiator) next() {
	if ei.call.negated {
		ei.ended = true
		return
	}
	ei.unbindAll()
	ei.index++
	ei.scan()
}

func (ei *externalInstantiator) hitEnd() bool { return ei.ended }

func (ei *externalInstantiator) unbindAll() {
	for _, w := range ei.bound {
		ei.bindings.unbind(w)
	}
	ei.bound = ei.bound[:0]
}

func (ei *externalInstantiator) scan() {
	for ; ei.index < len(ei.matchesList); ei.index++ {
		if ei.matches(ei.matchesList[ei.index]) {
			return
		}
		ei.unbindAll()
	}
	ei.ended = true
}

func (ei *externalInstantiator) matches(tuple []Symbol) bool {
	for i, t := range ei.call.args {
		switch v := t.(type) {
		case wildcardTerm:
			if have, ok := ei.bindings.get(v.w); ok {
				if !have.Equal(tuple[i]) {
					return false
				}
				continue
			}
			ei.bindings.bind(v.w, tuple[i])
			ei.bound = append(ei.bound, v.w)
		default:
			val, ok := ei.g.evalTerm(t, ei.bindings)
			if !ok || !val.Equal(tuple[i]) {
				return false
			}
		}
	}
	return true
}

// equalityInstantiator binds its left-hand wildcard from the right-hand
// expression, or checks equality when already bound.
type equalityInstantiator struct {
	g        *grounder
	term     opTerm
	bindings *bindingSet
	ended    bool
	bound    bool
	wildcard Wildcard
}

func (eq *equalityInstantiator) first() {
	eq.ended = false
	if eq.bound {
		eq.bindings.unbind(eq.wildcard)
		eq.bound = false
	}
	rhs, ok := eq.g.evalTerm(eq.term.rhs, eq.bindings)
	if !ok {
		eq.ended = true
		return
	}
	if wt, isWildcard := eq.term.lhs.(wildcardTerm); isWildcard {
		if have, alreadyBound := eq.bindings.get(wt.w); alreadyBound {
			if !have.Equal(rhs) {
				eq.ended = true
			}
			return
		}
		eq.bindings.bind(wt.w, rhs)
		eq.wildcard, eq.bound = wt.w, true
		return
	}
	lhs, ok := eq.g.evalTerm(eq.term.lhs, eq.bindings)
	if !ok || !lhs.Equal(rhs) {
		eq.ended = true
	}
}

func (eq *equalityInstantiator) next() {
	if eq.bound {
		eq.bindings.unbind(eq.wildcard)
		eq.bound = false
	}
	eq.ended = true
}

func (eq *equalityInstantiator) hitEnd() bool { return eq.ended }

// relationInstantiator evaluates a comparison over bound expressions; it
// passes at most once.
type relationInstantiator struct {
	g        *grounder
	term     opTerm
	bindings *bindingSet
	ended    bool
}

func (ri *relationInstantiator) first() {
	ri.ended = !ri.holds()
}

func (ri *relationInstantiator) next()        { ri.ended = true }
func (ri *relationInstantiator) hitEnd() bool { return ri.ended }

func (ri *relationInstantiator) holds() bool {
	lhs, ok := ri.g.evalTerm(ri.term.lhs, ri.bindings)
	if !ok {
		return false
	}
	rhs, ok := ri.g.evalTerm(ri.term.rhs, ri.bindings)
	if !ok {
		return false
	}
	if lhs.Type() == SymInt && rhs.Type() == SymInt {
		a, b := lhs.Int(), rhs.Int()
		switch ri.term.op {
		case OpInequality:
			return a != b
		case OpLess:
			return a < b
		case OpLessEq:
			return a <= b
		case OpGreater:
			return a > b
		case OpGreaterEq:
			return a >= b
		}
	}
	if ri.term.op == OpInequality {
		return !lhs.Equal(rhs)
	}
	return false
}

// constInstantiator passes or fails once on a constant's truthiness.
type constInstantiator struct {
	matched bool
	ended   bool
}

func (ci *constInstantiator) first()       { ci.ended = !ci.matched }
func (ci *constInstantiator) next()        { ci.ended = true }
func (ci *constInstantiator) hitEnd() bool { return ci.ended }
