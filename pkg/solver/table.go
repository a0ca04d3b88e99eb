// Package solver: the table constraint restricts a variable tuple to a list
// of allowed rows, maintaining generalized arc consistency by filtering
// each variable to the values that still appear in some viable row.
package solver

// TableData is the immutable row list shared by table constraints. Each row
// lists one value per constrained variable, expressed in the variables'
// domains.
type TableData struct {
	rows [][]int
}

// NewTableData creates a table from allowed rows.
func NewTableData(rows [][]int) *TableData {
	return &TableData{rows: rows}
}

// NumRows returns the number of allowed tuples.
func (t *TableData) NumRows() int { return len(t.rows) }

// TableConstraint requires the variables to jointly take one of the
// table's rows. Propagation is batched through the deferred constraint
// queue: any watched narrowing schedules one filtering pass over the rows.
type TableConstraint struct {
	constraintCore
	solver *Solver
	data   *TableData
}

// Table creates a table constraint over the variables. Every row of data
// must have one value per variable.
func (s *Solver) Table(data *TableData, vars ...VarID) *TableConstraint {
	for _, row := range data.rows {
		assertf(len(row) == len(vars), "table row arity %d != %d variables", len(row), len(vars))
	}
	c := &TableConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID(), vars: append([]VarID(nil), vars...)},
		solver:         s,
		data:           data,
	}
	s.registerConstraint(c)
	return c
}

// rowViable reports whether every value of the row is still possible.
func (c *TableConstraint) rowViable(db *VariableDatabase, row []int) bool {
	for i, v := range c.vars {
		ix, ok := db.Domain(v).IndexFor(row[i])
		if !ok || !db.PotentialValues(v).Test(ix) {
			return false
		}
	}
	return true
}

// filter constrains each variable to the values appearing in some viable
// row.
func (c *TableConstraint) filter(db *VariableDatabase) bool {
	supported := make([]ValueSet, len(c.vars))
	for i, v := range c.vars {
		supported[i] = db.Domain(v).EmptySet()
	}
	for _, row := range c.data.rows {
		if !c.rowViable(db, row) {
			continue
		}
		for i, v := range c.vars {
			ix, _ := db.Domain(v).IndexFor(row[i])
			supported[i].words[ix/64] |= 1 << uint(ix%64)
		}
	}
	for i, v := range c.vars {
		if !db.Constrain(v, supported[i], c) {
			return false
		}
	}
	return true
}

// Initialize implements Constraint.
func (c *TableConstraint) Initialize(db *VariableDatabase) bool {
	for _, v := range c.vars {
		db.AddWatch(v, WatchAnyChange, c)
	}
	return c.filter(db)
}

// OnVariableNarrowed implements Constraint: defer to one batched filtering
// pass after the variable queue drains.
func (c *TableConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	c.solver.QueueConstraintPropagation(c)
	return true
}

// PropagateDeferred implements DeferredPropagator.
func (c *TableConstraint) PropagateDeferred(db *VariableDatabase) bool {
	return c.filter(db)
}

// Explain implements Constraint.
func (c *TableConstraint) Explain(req ExplainRequest) []Literal {
	return defaultExplanation(c, req)
}

// CheckConflicting implements Constraint: no row remains viable.
func (c *TableConstraint) CheckConflicting(db *VariableDatabase) bool {
	for _, row := range c.data.rows {
		if c.rowViable(db, row) {
			return false
		}
	}
	return true
}
