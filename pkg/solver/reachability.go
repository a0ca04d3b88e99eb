// Package solver: the reachability constraint keeps every "open" vertex of
// a topology connected to a source vertex through other open vertices.
// Typical use: maze and map generation, where blank tiles must all be
// reachable from the entrance.
package solver

// ReachabilityConstraint watches one variable per vertex. A vertex is
// considered open while its variable can still take a value in the open
// mask, and definitely open once it must. The constraint maintains: every
// definitely-open vertex is reachable from the source through possibly-open
// vertices, by closing any vertex the source can no longer reach.
type ReachabilityConstraint struct {
	constraintCore
	solver   *Solver
	topo     Topology
	source   int
	vertices *VertexData[VarID]
	// openMask selects the variable values that count as open, expressed
	// over the (shared) vertex variable domain.
	openMask ValueSet
}

// Reachability creates a reachability constraint over per-vertex variables.
// openValues are the domain values that mark a vertex open. The source
// vertex is forced open.
func (s *Solver) Reachability(vertices *VertexData[VarID], source int, openValues ...int) *ReachabilityConstraint {
	topo := vertices.Topology()
	assertf(topo.IsValidVertex(source), "reachability source %d invalid", source)
	vars := append([]VarID(nil), vertices.All()...)
	dom := s.db.Domain(vars[0])
	c := &ReachabilityConstraint{
		constraintCore: constraintCore{id: s.nextConstraintID(), vars: vars},
		solver:         s,
		topo:           topo,
		source:         source,
		vertices:       vertices,
		openMask:       dom.SetForValues(openValues...),
	}
	s.registerConstraint(c)
	return c
}

// possiblyOpen reports whether the vertex can still be open.
func (c *ReachabilityConstraint) possiblyOpen(db *VariableDatabase, vtx int) bool {
	return db.PotentialValues(c.vertices.Get(vtx)).AnyCommon(c.openMask)
}

// definitelyOpen reports whether the vertex must be open.
func (c *ReachabilityConstraint) definitelyOpen(db *VariableDatabase, vtx int) bool {
	return db.PotentialValues(c.vertices.Get(vtx)).IsSubsetOf(c.openMask)
}

// reachable floods from the source through possibly-open vertices.
func (c *ReachabilityConstraint) reachable(db *VariableDatabase) []bool {
	seen := make([]bool, c.topo.NumVertices())
	if !c.possiblyOpen(db, c.source) {
		return seen
	}
	queue := []int{c.source}
	seen[c.source] = true
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, n := range c.topo.Outgoing(v) {
			if !seen[n] && c.possiblyOpen(db, n) {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return seen
}

// enforce closes every vertex the source cannot reach.
func (c *ReachabilityConstraint) enforce(db *VariableDatabase) bool {
	if !db.Constrain(c.vertices.Get(c.source), c.openMask, c) {
		return false
	}
	seen := c.reachable(db)
	for vtx := 0; vtx < c.topo.NumVertices(); vtx++ {
		if seen[vtx] {
			continue
		}
		if !db.Exclude(c.vertices.Get(vtx), c.openMask, c) {
			return false
		}
	}
	return true
}

// Initialize implements Constraint.
func (c *ReachabilityConstraint) Initialize(db *VariableDatabase) bool {
	for _, v := range c.vars {
		db.AddWatch(v, WatchAnyChange, c)
	}
	return c.enforce(db)
}

// OnVariableNarrowed implements Constraint: reachability is recomputed in
// one deferred pass per propagation wave.
func (c *ReachabilityConstraint) OnVariableNarrowed(db *VariableDatabase, v VarID, prev ValueSet, ts Timestamp) bool {
	c.solver.QueueConstraintPropagation(c)
	return true
}

// PropagateDeferred implements DeferredPropagator.
func (c *ReachabilityConstraint) PropagateDeferred(db *VariableDatabase) bool {
	return c.enforce(db)
}

// Explain implements Constraint.
func (c *ReachabilityConstraint) Explain(req ExplainRequest) []Literal {
	return defaultExplanation(c, req)
}

// CheckConflicting implements Constraint: some vertex must be open yet is
// unreachable.
func (c *ReachabilityConstraint) CheckConflicting(db *VariableDatabase) bool {
	seen := c.reachable(db)
	for vtx := 0; vtx < c.topo.NumVertices(); vtx++ {
		if !seen[vtx] && c.definitelyOpen(db, vtx) {
			return true
		}
	}
	return false
}
