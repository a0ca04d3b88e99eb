// Package solver: core identifier and literal types shared by the variable
// database, the constraints, and the rule layer.
package solver

import "fmt"

// VarID identifies a solver variable. IDs are 1-based; the zero value is
// invalid and can be used as a sentinel.
type VarID int32

// InvalidVarID is the zero sentinel for VarID.
const InvalidVarID VarID = 0

// IsValid reports whether the ID refers to a real variable.
func (v VarID) IsValid() bool { return v > 0 }

func (v VarID) String() string { return fmt.Sprintf("var%d", int32(v)) }

// Timestamp is an index into the assignment trail. -1 means "before any
// modification".
type Timestamp int

// NoTimestamp is the sentinel for "before solving began".
const NoTimestamp Timestamp = -1

// Result is the outcome of Solve or Step.
type Result uint8

const (
	// ResultUninitialized means solving has not started.
	ResultUninitialized Result = iota
	// ResultUnsolved means the search has not yet finished.
	ResultUnsolved
	// ResultSolved means every variable has exactly one potential value.
	ResultSolved
	// ResultUnsatisfiable means the search space is exhausted with no
	// solution.
	ResultUnsatisfiable
)

func (r Result) String() string {
	switch r {
	case ResultUninitialized:
		return "uninitialized"
	case ResultUnsolved:
		return "unsolved"
	case ResultSolved:
		return "solved"
	case ResultUnsatisfiable:
		return "unsatisfiable"
	default:
		return "unknown"
	}
}

// Literal asserts that a variable takes some value within a set. It is the
// common currency between constraints, rule atoms, and conflict analysis: a
// clause is a disjunction of literals, at least one of which must hold.
type Literal struct {
	Var    VarID
	Values ValueSet
}

// Inverted returns the literal asserting the complementary value set.
func (l Literal) Inverted() Literal {
	return Literal{Var: l.Var, Values: l.Values.Invert()}
}

func (l Literal) String() string {
	return fmt.Sprintf("%s∈%s", l.Var, l.Values.String())
}

// SignedClause names a (variable, values, sign) triple in build-API calls
// before domain translation has happened. With Sign false the clause stands
// for the complement of the listed values.
type SignedClause struct {
	Var    VarID
	Values []int
	Sign   bool
}

// Clause builds a positive SignedClause.
func Clause(v VarID, values ...int) SignedClause {
	return SignedClause{Var: v, Values: values, Sign: true}
}

// NotClause builds a negative SignedClause.
func NotClause(v VarID, values ...int) SignedClause {
	return SignedClause{Var: v, Values: values, Sign: false}
}

// translate resolves the signed clause into a Literal over the variable's
// domain.
func (sc SignedClause) translate(dom VariableDomain) Literal {
	vals := dom.SetForValues(sc.Values...)
	if !sc.Sign {
		vals = vals.Invert()
	}
	return Literal{Var: sc.Var, Values: vals}
}

// assertf panics with a formatted message when cond is false. It guards
// internal invariants only; user-facing errors are returned as values.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic("solver: internal invariant violation: " + fmt.Sprintf(format, args...))
	}
}
