package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Arithmetic buried in a formula argument is lifted to a synthetic
// wildcard: succ(X+1) ← num(X).
func TestGrounder_MathRewrite(t *testing.T) {
	prog := NewProgram("math")
	num := prog.Formula("num", 1)
	succ := prog.Formula("succ", 1)
	num.Fact(1)
	num.Fact(2)
	X := prog.Wildcard("X")
	prog.Rule(succ.T(Plus(X, 1)), num.T(X))

	s := New("math", 1)
	values := make(map[int]VarID)
	succ.Bind(func(args []Symbol) VarID {
		v := s.NewBoolean("succ")
		values[args[0].Int()] = v
		return v
	})
	s.AddProgram(prog.Instantiate())

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)

	require.Len(t, values, 2)
	require.Contains(t, values, 2)
	require.Contains(t, values, 3)
	// succ facts follow from num facts, so the bound variables are true.
	require.Equal(t, 1, s.SolvedValue(values[2]))
	require.Equal(t, 1, s.SolvedValue(values[3]))
}

func TestGrounder_RelationAndEqualityTerms(t *testing.T) {
	prog := NewProgram("relations")
	pair := prog.Formula("pair", 2)
	picked := prog.Formula("picked", 2)
	pair.Fact(1, 2)
	pair.Fact(2, 1)
	pair.Fact(3, 3)
	X := prog.Wildcard("X")
	Y := prog.Wildcard("Y")
	M := prog.Wildcard("M")
	// picked(X, M) for pairs with X < Y, where M = X*10.
	prog.Rule(picked.T(X, M), pair.T(X, Y), Lt(X, Y), Eq(M, Times(X, 10)))

	s := New("relations", 1)
	var got [][2]int
	picked.Bind(func(args []Symbol) VarID {
		got = append(got, [2]int{args[0].Int(), args[1].Int()})
		return s.NewBoolean("picked")
	})
	s.AddProgram(prog.Instantiate())

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.Equal(t, [][2]int{{1, 10}}, got)
}

// A wildcard only mentioned in a negated literal cannot be bound.
func TestGrounder_UnsafeWildcardIsBuildError(t *testing.T) {
	prog := NewProgram("unsafe")
	p := prog.Formula("p", 1)
	q := prog.Formula("q", 1)
	X := prog.Wildcard("X")
	prog.Rule(p.T(X), Not(q.T(X)))

	s := New("unsafe", 1)
	s.AddProgram(prog.Instantiate())
	_, err := s.Solve()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsafe")
}

func TestGrounder_FormulaArityMismatch(t *testing.T) {
	prog := NewProgram("arity")
	prog.Formula("p", 1)
	prog.Formula("p", 2)

	s := New("arity", 1)
	s.AddProgram(prog.Instantiate())
	_, err := s.Solve()
	require.Error(t, err)
	require.Contains(t, err.Error(), "arity")
}

// Disjunction heads expand into one rule per head with the siblings
// negated, so exactly one side is chosen when the body is forced.
func TestGrounder_DisjunctionHeads(t *testing.T) {
	prog := NewProgram("disjunction")
	p := prog.Formula("p", 0)
	q := prog.Formula("q", 0)
	trigger := prog.Formula("trigger", 0)
	trigger.Fact()
	prog.DisjunctionRule([]*FormulaCall{p.T(), q.T()}, trigger.T())

	s := New("disjunction", 5)
	var pVar, qVar VarID
	p.Bind(func([]Symbol) VarID { pVar = s.NewBoolean("p"); return pVar })
	q.Bind(func([]Symbol) VarID { qVar = s.NewBoolean("q"); return qVar })
	s.AddProgram(prog.Instantiate())

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.NotEqual(t, s.SolvedValue(pVar), s.SolvedValue(qVar),
		"disjunction chose neither or both heads")
}

// Choice rules leave the head free; a separate constraint can force it
// either way.
func TestGrounder_ChoiceHeads(t *testing.T) {
	for _, force := range []int{0, 1} {
		prog := NewProgram("choice")
		c := prog.Formula("c", 0)
		prog.Choice(c.T())

		s := New("choice", 9)
		cVar := s.NewBoolean("c")
		c.Bind(func([]Symbol) VarID { return cVar })
		s.AddProgram(prog.Instantiate())
		s.SetInitialValues(cVar, force)

		res, err := s.Solve()
		require.NoError(t, err)
		require.Equal(t, ResultSolved, res, "force=%d", force)
		require.Equal(t, force, s.SolvedValue(cVar))
	}
}

// External formulas ground through their provider.
func TestGrounder_ExternalEdgeProvider(t *testing.T) {
	topo := NewDigraphTopology(3)
	topo.AddEdge(0, 1)
	topo.AddEdge(1, 2)

	prog := NewProgram("external")
	adj := prog.ExternalFormula("adj", 2, NewEdgeProvider(topo))
	linked := prog.Formula("linked", 2)
	X := prog.Wildcard("X")
	Y := prog.Wildcard("Y")
	prog.Rule(linked.T(X, Y), adj.T(X, Y))

	s := New("external", 1)
	var got [][2]int
	linked.Bind(func(args []Symbol) VarID {
		got = append(got, [2]int{args[0].Int(), args[1].Int()})
		return s.NewBoolean("linked")
	})
	s.AddProgram(prog.Instantiate())

	res, err := s.Solve()
	require.NoError(t, err)
	require.Equal(t, ResultSolved, res)
	require.ElementsMatch(t, [][2]int{{0, 1}, {1, 2}}, got)
}

// Symbols intern through the program arena: equal structure, equal pointer.
func TestFormulaArena_Interning(t *testing.T) {
	arena := newFormulaArena()
	a := arena.formulaSymbol(1, "p", []Symbol{IntSymbol(1), IDSymbol("x")}, false)
	b := arena.formulaSymbol(1, "p", []Symbol{IntSymbol(1), IDSymbol("x")}, false)
	c := arena.formulaSymbol(1, "p", []Symbol{IntSymbol(2), IDSymbol("x")}, false)

	require.Same(t, a.Formula(), b.Formula())
	require.NotSame(t, a.Formula(), c.Formula())
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.True(t, a.Equal(a.Negated().Negated()))
	require.False(t, a.Equal(a.Negated()))
}
