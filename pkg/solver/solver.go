// Package solver: the constraint solver engine. Ties together the variable
// database, the propagation queues, conflict analysis, clause learning,
// decision heuristics, restart policies, and the rule database.
package solver

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// decisionRecord marks one entry of the decision stack.
type decisionRecord struct {
	// trailMark is the trail length just before the decision was applied.
	trailMark int
	// variable is the decision variable.
	variable VarID
}

// queuedVariable is one entry of the variable propagation queue.
type queuedVariable struct {
	v VarID
	// firstPending is the trail index of the first unprocessed
	// modification of the variable.
	firstPending Timestamp
}

// disabledWatchMarker re-enables a watcher when the trail unwinds past the
// level it was disabled at.
type disabledWatchMarker struct {
	level  int
	v      VarID
	handle WatcherHandle
}

// duplicateCacheSize bounds the clause-hash cache used to reject duplicate
// learned clauses during graph promotion.
const duplicateCacheSize = 4096

// Option configures a Solver at construction.
type Option func(*Solver)

// WithLogger installs a structured logger. The default discards output.
func WithLogger(l hclog.Logger) Option { return func(s *Solver) { s.logger = l } }

// WithRestartPolicy overrides the default Luby restart policy.
func WithRestartPolicy(p RestartPolicy) Option { return func(s *Solver) { s.restartPolicy = p } }

// WithBaseHeuristic replaces the default learning-rate branching heuristic
// at the bottom of the heuristic stack.
func WithBaseHeuristic(h DecisionHeuristic) Option { return func(s *Solver) { s.baseHeuristic = h } }

// WithOutputLog records every decision into the given log.
func WithOutputLog(log *DecisionLog) Option { return func(s *Solver) { s.outputLog = log } }

// Solver is a finite-domain constraint solver with clause learning. Build
// it up with variables, constraints, and rule programs, then call Solve (or
// StartSolving followed by Step). A Solver is single-threaded; with the
// same seed and build sequence, two runs produce identical trails.
type Solver struct {
	name   string
	seed   int64
	rng    *rand.Rand
	logger hclog.Logger

	db *VariableDatabase

	constraints       []Constraint
	constraintIsChild []bool
	backtrackers      []BacktrackingConstraint

	heuristics         []DecisionHeuristic
	baseHeuristic      DecisionHeuristic
	wantReasonActivity bool

	restartPolicy RestartPolicy
	newDescent    bool

	decisionLevels []decisionRecord

	variableQueue  []queuedVariable
	variableQueued []bool
	// constraintQueue holds IDs of constraints awaiting a deferred pass.
	constraintQueue  []int
	constraintQueued map[int]bool

	disabledWatches []disabledWatchMarker

	tempLearned        []*ClauseConstraint
	permLearned        []*ClauseConstraint
	learnedHashes      *lru.Cache[uint64, struct{}]
	purgeThreshold     int
	clauseActivityIncr float64

	// graph bookkeeping for clause promotion
	graphData    []*VertexData[VarID]
	varGraphSlot map[VarID]graphSlot
	// graphOrigin marks constraints (by ID) that are instances of a graph
	// template, and hence safe sources for clause promotion.
	graphOrigin map[int]bool

	// offset-variable unification cache
	offsetVars map[offsetKey]VarID

	ruleDB   *RuleDatabase
	programs []*ProgramInstance

	outputLog *DecisionLog

	status      Result
	initialized bool
	buildErr    *multierror.Error
	stats       Stats
}

type graphSlot struct {
	dataIndex int
	vertex    int
}

type offsetKey struct {
	v        VarID
	min, max int
}

// New creates a solver. An empty name is replaced with a generated one; a
// zero seed is replaced with a time-derived one (pass a fixed seed for
// reproducible runs).
func New(name string, seed int64, opts ...Option) *Solver {
	if name == "" {
		if id, err := uuid.GenerateUUID(); err == nil {
			name = "solver-" + id[:8]
		} else {
			name = "solver"
		}
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Solver{
		name:               name,
		seed:               seed,
		rng:                rand.New(rand.NewSource(seed)),
		logger:             hclog.NewNullLogger(),
		restartPolicy:      NewLubyRestartPolicy(),
		constraintQueued:   make(map[int]bool),
		varGraphSlot:       make(map[VarID]graphSlot),
		graphOrigin:        make(map[int]bool),
		offsetVars:         make(map[offsetKey]VarID),
		purgeThreshold:     2000,
		clauseActivityIncr: 1.0,
		status:             ResultUninitialized,
	}
	s.db = newVariableDatabase(s)
	s.learnedHashes, _ = lru.New[uint64, struct{}](duplicateCacheSize)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the solver's name.
func (s *Solver) Name() string { return s.name }

// Seed returns the seed the random stream was initialized with.
func (s *Solver) Seed() int64 { return s.seed }

// DB returns the variable database.
func (s *Solver) DB() *VariableDatabase { return s.db }

// Stats returns the statistics of the current solve.
func (s *Solver) Stats() *Stats { return &s.stats }

// CurrentStatus returns the last result produced by Step.
func (s *Solver) CurrentStatus() Result { return s.status }

// DumpStats emits the current statistics through the solver's logger.
func (s *Solver) DumpStats() {
	s.logger.Info("solver statistics", "name", s.name, "stats", s.stats.String())
}

// CurrentDecisionLevel returns the number of decisions currently applied.
func (s *Solver) CurrentDecisionLevel() int { return len(s.decisionLevels) }

// randomRange returns a random int in [min, max], inclusive.
func (s *Solver) randomRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}

// randomRangeFloat returns a random float64 in [min, max).
func (s *Solver) randomRangeFloat(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

//
// Build API
//

// buildError records a build-phase error; it is surfaced from StartSolving.
func (s *Solver) buildError(err error) {
	s.buildErr = multierror.Append(s.buildErr, err)
}

// NewVariable creates a variable over the given domain. If initialValues is
// non-empty the variable starts restricted to those values; values outside
// the domain are a build error.
func (s *Solver) NewVariable(name string, dom VariableDomain, initialValues ...int) VarID {
	initial := dom.FullSet()
	if len(initialValues) > 0 {
		initial = dom.EmptySet()
		for _, v := range initialValues {
			ix, ok := dom.IndexFor(v)
			if !ok {
				s.buildError(errors.Errorf("variable %q: initial value %d outside domain [%d, %d]", name, v, dom.Min(), dom.Max()))
				continue
			}
			initial.words[ix/64] |= 1 << uint(ix%64)
		}
		if initial.IsEmpty() {
			s.buildError(errors.Errorf("variable %q: no valid initial values", name))
			initial = dom.FullSet()
		}
	}
	return s.db.addVariable(name, dom, initial)
}

// NewBoolean creates a variable over the boolean domain.
func (s *Solver) NewBoolean(name string) VarID {
	return s.NewVariable(name, BooleanDomain())
}

// SetInitialValues restricts a variable's starting values. Build phase only.
func (s *Solver) SetInitialValues(v VarID, values ...int) {
	if s.initialized {
		s.buildError(errors.Errorf("SetInitialValues(%s) after solving started", v))
		return
	}
	dom := s.db.Domain(v)
	set := dom.SetForValues(values...)
	if set.IsEmpty() {
		s.buildError(errors.Errorf("variable %q: no valid initial values", s.db.Name(v)))
		return
	}
	s.db.initial[v] = set.Clone()
	s.db.current[v] = set
}

// VariableName returns the name a variable was created with.
func (s *Solver) VariableName(v VarID) string { return s.db.Name(v) }

// Domain returns a variable's domain.
func (s *Solver) Domain(v VarID) VariableDomain { return s.db.Domain(v) }

// NewVariableGraph creates one variable per vertex of a topology, all over
// the same domain, and returns the per-vertex data. The engine uses the
// association to promote learned clauses to graph templates.
func (s *Solver) NewVariableGraph(namePrefix string, topo Topology, dom VariableDomain) *VertexData[VarID] {
	data := NewVertexData[VarID](topo)
	dataIndex := len(s.graphData)
	for i := 0; i < topo.NumVertices(); i++ {
		v := s.NewVariable(namePrefix+topo.VertexToString(i), dom)
		data.Set(i, v)
		s.varGraphSlot[v] = graphSlot{dataIndex: dataIndex, vertex: i}
	}
	s.graphData = append(s.graphData, data)
	return data
}

// GraphClauseBuilder produces, for one vertex, the signed clauses of one
// clause-constraint instance, or false when the template does not apply at
// that vertex (e.g. at a grid border).
type GraphClauseBuilder func(vertex int) ([]SignedClause, bool)

// MakeGraphClauses instantiates a clause template once per vertex of the
// variable graph's topology. The instances are marked as graph-templated,
// which allows clauses learned purely from them to be promoted back into
// templates during search. nogood inverts each instance into a forbidden
// conjunction.
func (s *Solver) MakeGraphClauses(data *VertexData[VarID], nogood bool, build GraphClauseBuilder) []*ClauseConstraint {
	var out []*ClauseConstraint
	for vtx := 0; vtx < data.Topology().NumVertices(); vtx++ {
		clauses, ok := build(vtx)
		if !ok {
			continue
		}
		var c *ClauseConstraint
		if nogood {
			c = s.AddNogood(clauses...)
		} else {
			c = s.AddClause(clauses...)
		}
		s.graphOrigin[c.ID()] = true
		out = append(out, c)
	}
	return out
}

// registerConstraint assigns the constraint its creation-order ID slot.
// Constraints must be registered in ID order; factories obtain the ID from
// nextConstraintID first.
func (s *Solver) registerConstraint(c Constraint) Constraint {
	assertf(c.ID() == len(s.constraints), "constraint registered out of order")
	s.constraints = append(s.constraints, c)
	s.constraintIsChild = append(s.constraintIsChild, false)
	if bc, ok := c.(BacktrackingConstraint); ok {
		s.backtrackers = append(s.backtrackers, bc)
	}
	return c
}

// nextConstraintID returns the ID the next registered constraint receives.
func (s *Solver) nextConstraintID() int { return len(s.constraints) }

// markChildConstraint marks a constraint as initialized by its parent
// rather than by the engine.
func (s *Solver) markChildConstraint(c Constraint) {
	s.constraintIsChild[c.ID()] = true
}

// translateLiterals resolves signed clauses against variable domains.
func (s *Solver) translateLiterals(clauses []SignedClause) []Literal {
	out := make([]Literal, 0, len(clauses))
	for _, sc := range clauses {
		out = append(out, sc.translate(s.db.Domain(sc.Var)))
	}
	return out
}

// AddClause creates a clause constraint: at least one of the signed clauses
// must hold.
func (s *Solver) AddClause(clauses ...SignedClause) *ClauseConstraint {
	c := newClauseConstraint(s.nextConstraintID(), s.translateLiterals(clauses), false)
	s.registerConstraint(c)
	return c
}

// AddNogood forbids the conjunction of the signed clauses: at least one
// must fail.
func (s *Solver) AddNogood(clauses ...SignedClause) *ClauseConstraint {
	lits := s.translateLiterals(clauses)
	for i := range lits {
		lits[i] = lits[i].Inverted()
	}
	c := newClauseConstraint(s.nextConstraintID(), lits, false)
	s.registerConstraint(c)
	return c
}

// addInternalClause registers a clause built from already-translated
// literals (used by the rule database and the promotion machinery).
func (s *Solver) addInternalClause(lits []Literal) *ClauseConstraint {
	c := newClauseConstraint(s.nextConstraintID(), lits, false)
	s.registerConstraint(c)
	return c
}

// getOrCreateOffsetVariable returns a variable equal in value to v but
// expressed over the domain [min, max], creating it (and the linking offset
// constraint) on first use.
func (s *Solver) getOrCreateOffsetVariable(v VarID, min, max int) VarID {
	key := offsetKey{v: v, min: min, max: max}
	if existing, ok := s.offsetVars[key]; ok {
		return existing
	}
	dom := NewDomain(min, max)
	name := fmt.Sprintf("%s_offset[%d..%d]", s.db.Name(v), min, max)
	nv := s.NewVariable(name, dom)
	// Restrict to the source variable's translated initial values.
	srcDom := s.db.Domain(v)
	s.db.initial[nv] = srcDom.TranslateTo(s.db.initial[v], dom)
	s.db.current[nv] = s.db.initial[nv].Clone()
	s.offsetVars[key] = nv
	s.Offset(nv, v, 0)
	return nv
}

// unifyVariableDomains returns variables equivalent to vars but all over
// one shared domain spanning every input domain. Variables already on the
// unified domain are returned unchanged.
func (s *Solver) unifyVariableDomains(vars []VarID) []VarID {
	min, max := s.db.Domain(vars[0]).Min(), s.db.Domain(vars[0]).Max()
	for _, v := range vars[1:] {
		d := s.db.Domain(v)
		if d.Min() < min {
			min = d.Min()
		}
		if d.Max() > max {
			max = d.Max()
		}
	}
	out := make([]VarID, len(vars))
	for i, v := range vars {
		d := s.db.Domain(v)
		if d.Min() == min && d.Max() == max {
			out[i] = v
		} else {
			out[i] = s.getOrCreateOffsetVariable(v, min, max)
		}
	}
	return out
}

// RuleDB returns the solver's rule database, creating it on first use.
func (s *Solver) RuleDB() *RuleDatabase {
	if s.ruleDB == nil {
		s.ruleDB = newRuleDatabase(s)
	}
	return s.ruleDB
}

// AddProgram schedules a compiled rule program instance. Its statements are
// grounded into the rule database when solving starts.
func (s *Solver) AddProgram(inst *ProgramInstance) {
	s.programs = append(s.programs, inst)
}

// AddDecisionHeuristic pushes a strategy onto the heuristic stack.
// Strategies added later are consulted first. Must be called before solving
// starts.
func (s *Solver) AddDecisionHeuristic(h DecisionHeuristic) {
	if s.initialized {
		s.buildError(errors.New("AddDecisionHeuristic after solving started"))
		return
	}
	s.heuristics = append([]DecisionHeuristic{h}, s.heuristics...)
}

//
// Solve API
//

// Solve runs StartSolving and then steps until the search terminates.
func (s *Solver) Solve() (Result, error) {
	res, err := s.StartSolving()
	if err != nil {
		return res, err
	}
	for res == ResultUnsolved {
		res = s.Step()
	}
	return res, nil
}

// StartSolving finalizes the build phase (grounding programs, reducing the
// rule database, establishing initial arc consistency) and leaves the
// solver ready to Step. Build errors are returned here; an immediate
// root-level conflict yields ResultUnsatisfiable.
func (s *Solver) StartSolving() (Result, error) {
	if s.initialized {
		return s.status, errors.New("solver already started; create a new solver to re-solve")
	}
	s.stats = Stats{StartTime: time.Now()}
	s.initialized = true

	// Ground rule programs into the rule database.
	for _, p := range s.programs {
		if err := p.compile(s); err != nil {
			s.buildError(errors.Wrapf(err, "program %q", p.name))
		}
	}
	if s.buildErr != nil {
		s.status = ResultUninitialized
		return s.status, errors.Wrap(s.buildErr.ErrorOrNil(), "invalid build")
	}

	// Reduce rules to clause constraints.
	if s.ruleDB != nil {
		ok, err := s.ruleDB.Finalize()
		if err != nil {
			return ResultUninitialized, errors.Wrap(err, "invalid build")
		}
		if !ok {
			s.logger.Debug("rule database derived a root conflict")
			s.finish(ResultUnsatisfiable)
			return s.status, nil
		}
	}

	s.stats.InitialConstraints = uint32(len(s.constraints))
	s.variableQueued = make([]bool, s.db.NumVariables()+1)

	// Initial propagation: every non-child constraint establishes arc
	// consistency, then the queues are drained.
	s.status = ResultUnsolved
	for i, c := range s.constraints {
		if s.constraintIsChild[i] {
			continue
		}
		if !c.Initialize(s.db) {
			s.db.takeConflict()
			s.finish(ResultUnsatisfiable)
			return s.status, nil
		}
		if !s.propagate() {
			s.db.takeConflict()
			s.finish(ResultUnsatisfiable)
			return s.status, nil
		}
	}

	// Heuristic stack: user strategies first, base heuristic at the
	// bottom, static order as the final fallback.
	if s.baseHeuristic == nil {
		s.baseHeuristic = NewLRBHeuristic(false)
	}
	s.heuristics = append(s.heuristics, s.baseHeuristic, NewStaticOrderHeuristic())
	for _, h := range s.heuristics {
		h.Initialize(s)
		if h.WantsReasonActivity() {
			s.wantReasonActivity = true
		}
	}

	if s.allSolved() {
		s.finish(ResultSolved)
	}
	s.logger.Debug("solving started", "name", s.name, "seed", s.seed,
		"variables", s.db.NumVariables(), "constraints", len(s.constraints))
	return s.status, nil
}

// Step performs one iteration of the search: propagate, then either recover
// from a conflict or make the next decision. It returns the resulting
// status.
func (s *Solver) Step() Result {
	if s.status != ResultUnsolved {
		return s.status
	}
	s.stats.Steps++

	if !s.propagate() {
		s.resolveConflict()
		return s.status
	}

	v, vals, ok := s.nextDecision()
	if !ok {
		assertf(s.allSolved(), "heuristics exhausted with unsolved variables")
		s.finish(ResultSolved)
		return s.status
	}
	s.pushDecision(v, vals)
	return s.status
}

func (s *Solver) finish(r Result) {
	s.status = r
	s.stats.EndTime = time.Now()
	s.logger.Debug("search finished", "result", r.String(), "stats", s.stats.String())
}

func (s *Solver) allSolved() bool {
	for v := VarID(1); int(v) <= s.db.NumVariables(); v++ {
		if !s.db.IsSolved(v) {
			return false
		}
	}
	return true
}

//
// Propagation
//

// onVariableModified is called by the database for every narrowing.
func (s *Solver) onVariableModified(v VarID, prev, next ValueSet, cause Constraint) {
	if s.variableQueued != nil && !s.variableQueued[v] {
		s.variableQueued[v] = true
		s.variableQueue = append(s.variableQueue, queuedVariable{v: v, firstPending: Timestamp(len(s.db.trail) - 1)})
	}
	for _, h := range s.heuristics {
		h.OnVariableAssignment(v, prev, next)
	}
}

// QueueConstraintPropagation schedules a deferred propagation pass for a
// constraint, run after the variable queue drains. Constraints with many
// variables use this to batch their work.
func (s *Solver) QueueConstraintPropagation(c Constraint) {
	if s.constraintQueued[c.ID()] {
		return
	}
	s.constraintQueued[c.ID()] = true
	s.constraintQueue = append(s.constraintQueue, c.ID())
}

// DeferredPropagator is implemented by constraints that use
// QueueConstraintPropagation.
type DeferredPropagator interface {
	Constraint
	// PropagateDeferred runs the batched pass. Returns false on conflict.
	PropagateDeferred(db *VariableDatabase) bool
}

// propagate drains the variable queue, then one deferred constraint, and
// repeats until both queues are empty or a conflict occurs. Returns false
// on conflict (left recorded in the database).
func (s *Solver) propagate() bool {
	if s.db.conflict != nil {
		return false
	}
	for {
		if !s.drainVariableQueue() {
			return false
		}
		if len(s.constraintQueue) == 0 {
			return true
		}
		id := s.constraintQueue[0]
		s.constraintQueue = s.constraintQueue[1:]
		delete(s.constraintQueued, id)
		if dp, ok := s.constraints[id].(DeferredPropagator); ok {
			if !dp.PropagateDeferred(s.db) {
				return false
			}
		}
	}
}

// drainVariableQueue notifies watchers for queued narrowings in FIFO order.
// The full watch list of the front variable is consumed before the next
// variable is dequeued.
func (s *Solver) drainVariableQueue() bool {
	for len(s.variableQueue) > 0 {
		entry := s.variableQueue[0]
		s.variableQueue = s.variableQueue[1:]
		s.variableQueued[entry.v] = false

		prev := s.db.ValuesBefore(entry.v, entry.firstPending)
		cur := s.db.PotentialValues(entry.v)
		if prev.Equals(cur) {
			// Narrowing was undone before the queue drained.
			continue
		}

		// Snapshot the list: sinks may install or remove watches while
		// being notified.
		watchers := make([]watcher, len(s.db.watchLists[entry.v]))
		copy(watchers, s.db.watchLists[entry.v])
		for i := range watchers {
			w := &watchers[i]
			if !w.fires(prev, cur) {
				continue
			}
			if !w.sink.OnVariableNarrowed(s.db, entry.v, prev, entry.firstPending) {
				return false
			}
		}
	}
	return true
}

//
// Decisions
//

func (s *Solver) nextDecision() (VarID, ValueSet, bool) {
	for _, h := range s.heuristics {
		if v, vals, ok := h.NextDecision(s); ok {
			return v, vals, true
		}
	}
	return InvalidVarID, ValueSet{}, false
}

func (s *Solver) pushDecision(v VarID, vals ValueSet) {
	s.decisionLevels = append(s.decisionLevels, decisionRecord{trailMark: len(s.db.trail), variable: v})
	if s.outputLog != nil {
		s.outputLog.AddDecision(len(s.decisionLevels), v, vals.FirstSet())
	}
	ok := s.db.Constrain(v, vals, nil)
	assertf(ok, "decision on %s chose impossible values", v)
}

// trailMarkAfterLevel returns the trail length holding exactly the
// modifications of levels 0..level: the point a backjump to that level
// unwinds to.
func (s *Solver) trailMarkAfterLevel(level int) int {
	if level >= len(s.decisionLevels) {
		return len(s.db.trail)
	}
	return s.decisionLevels[level].trailMark
}

// DisableWatcherUntilBacktrack disables a watcher until the trail unwinds
// below the current decision level.
func (s *Solver) DisableWatcherUntilBacktrack(v VarID, handle WatcherHandle) {
	s.db.setWatchDisabled(v, handle, true)
	s.disabledWatches = append(s.disabledWatches, disabledWatchMarker{
		level: len(s.decisionLevels), v: v, handle: handle,
	})
}

//
// Conflict handling
//

// resolveConflict analyzes the recorded conflict, learns a clause,
// backjumps, and asks the restart policy whether to restart.
func (s *Solver) resolveConflict() {
	ci := s.db.takeConflict()
	assertf(ci != nil, "resolveConflict with no recorded conflict")
	s.newDescent = false

	if len(s.decisionLevels) == 0 {
		s.finish(ResultUnsatisfiable)
		return
	}

	info := s.analyzeConflict(ci)
	s.stats.Backtracks++
	if jump := uint32(len(s.decisionLevels) - info.backjumpLevel); jump > s.stats.MaxBackjump {
		s.stats.MaxBackjump = jump
	}

	learned := s.learn(info)
	s.backjumpTo(info.backjumpLevel)

	// Discard propagation queued above the backjump point.
	s.clearQueues()

	if learned != nil {
		if !learned.Initialize(s.db) {
			// The learned clause conflicts even after the backjump; if
			// that happens at the root the problem is unsatisfiable,
			// otherwise the next step analyzes the new conflict.
			if len(s.decisionLevels) == 0 {
				s.db.takeConflict()
				s.finish(ResultUnsatisfiable)
				return
			}
			return
		}
		// Promotion happens only now: cloned instances propagate against
		// the restored trail, not the conflicting one.
		s.maybePromoteToGraph(learned)
		if s.db.conflict != nil {
			return
		}
	}

	for _, h := range s.heuristics {
		h.OnClauseLearned()
	}
	s.restartPolicy.OnClauseLearned(s, learned)
	s.clauseActivityIncr *= 1.001

	if len(s.tempLearned) > s.purgeThreshold {
		s.purgeConstraints()
	}

	if s.restartPolicy.ShouldRestart(s) {
		s.restart()
	}
}

// learn creates the clause constraint for an analysis result. Short and
// low-LBD clauses are kept permanently; the rest are temporary and subject
// to purging.
func (s *Solver) learn(info learnedClauseInfo) *ClauseConstraint {
	s.stats.ConstraintsLearned++
	c := newClauseConstraint(s.nextConstraintID(), info.lits, true)
	c.lbd = info.lbd
	c.activity = s.clauseActivityIncr
	s.registerConstraint(c)
	if info.graphOrigin {
		s.graphOrigin[c.ID()] = true
	}

	if len(info.lits) <= 2 || info.lbd <= 2 {
		c.permanent = true
		s.permLearned = append(s.permLearned, c)
	} else {
		s.tempLearned = append(s.tempLearned, c)
	}
	return c
}

// markConstraintActivity bumps a learned clause that took part in a
// resolution step and refreshes its LBD.
func (s *Solver) markConstraintActivity(c Constraint) {
	cc, ok := c.(*ClauseConstraint)
	if !ok || !cc.learned {
		return
	}
	cc.activity += s.clauseActivityIncr
	if cc.activity > 1e20 {
		for _, t := range s.tempLearned {
			t.activity *= 1e-20
		}
		s.clauseActivityIncr *= 1e-20
	}
	cc.lbd = cc.computeLBD(s)
}

// backjumpTo unwinds the trail to the target decision level, restoring
// value sets, notifying heuristics and backtracking constraints, and
// re-enabling watches disabled above the target.
func (s *Solver) backjumpTo(level int) {
	target := s.trailMarkAfterLevel(level)
	s.db.undoUntil(target, func(m *Modification) {
		for _, h := range s.heuristics {
			h.OnVariableUnassignment(m.Var, m.New, m.Prev)
		}
	})
	s.decisionLevels = s.decisionLevels[:level]

	for i := len(s.disabledWatches) - 1; i >= 0; i-- {
		marker := s.disabledWatches[i]
		if marker.level <= level {
			break
		}
		s.db.setWatchDisabled(marker.v, marker.handle, false)
		s.disabledWatches = s.disabledWatches[:i]
	}

	for _, bc := range s.backtrackers {
		bc.OnBacktrack(s.db, level)
	}
}

func (s *Solver) clearQueues() {
	for _, q := range s.variableQueue {
		s.variableQueued[q.v] = false
	}
	s.variableQueue = s.variableQueue[:0]
	s.constraintQueue = s.constraintQueue[:0]
	for id := range s.constraintQueued {
		delete(s.constraintQueued, id)
	}
}

// restart backjumps to the root and notifies the heuristics and policy.
func (s *Solver) restart() {
	s.logger.Trace("restarting", "conflicts", s.stats.Backtracks)
	s.backjumpTo(0)
	s.clearQueues()
	s.stats.Restarts++
	for _, h := range s.heuristics {
		h.OnRestarted()
	}
	s.restartPolicy.OnRestarted(s)
	s.newDescent = true
}

// IsInNewDescent reports whether the solver restarted and has not yet hit a
// conflict.
func (s *Solver) IsInNewDescent() bool { return s.newDescent }

//
// Clause purging
//

// lockedConstraints returns the set of constraint IDs currently justifying
// a trail entry; those clauses must survive purging.
func (s *Solver) lockedConstraints() map[int]bool {
	locked := make(map[int]bool)
	for i := range s.db.trail {
		if c := s.db.trail[i].Cause; c != nil {
			locked[c.ID()] = true
		}
	}
	return locked
}

// purgeConstraints drops the lower-activity half of the temporary learned
// clauses, keeping locked ones.
func (s *Solver) purgeConstraints() {
	s.stats.Purges++
	locked := s.lockedConstraints()

	sorted := make([]*ClauseConstraint, len(s.tempLearned))
	copy(sorted, s.tempLearned)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].activity < sorted[j].activity
	})

	drop := len(sorted) / 2
	kept := make([]*ClauseConstraint, 0, len(sorted)-drop)
	for i, c := range sorted {
		if i < drop {
			if locked[c.ID()] {
				s.stats.LockedPurgeSkips++
				kept = append(kept, c)
				continue
			}
			s.detachClause(c)
			s.stats.PurgedConstraints++
			continue
		}
		kept = append(kept, c)
	}
	s.tempLearned = kept
	s.purgeThreshold += s.purgeThreshold / 10
	s.logger.Debug("purged learned clauses", "dropped", s.stats.PurgedConstraints, "kept", len(kept))
}

// detachClause removes a clause's watches so it no longer participates in
// propagation. The constraint slot remains (IDs are creation-ordered), but
// the clause is inert.
func (s *Solver) detachClause(c *ClauseConstraint) {
	for slot := 0; slot < 2; slot++ {
		if ix := c.watchIx[slot]; ix >= 0 {
			s.db.RemoveWatch(c.lits[ix].Var, c.watchHandle[slot])
			c.watchIx[slot] = -1
		}
	}
}

//
// Graph promotion
//

// maybePromoteToGraph checks whether every literal of a learned clause
// belongs to the same variable graph, and if so instantiates the clause as
// a template across every vertex of the graph's topology. Duplicate
// instances are rejected by clause hash.
func (s *Solver) maybePromoteToGraph(c *ClauseConstraint) {
	if !s.graphOrigin[c.ID()] || len(c.lits) == 0 || len(s.graphData) == 0 {
		return
	}
	slot0, ok := s.varGraphSlot[c.lits[0].Var]
	if !ok {
		return
	}
	data := s.graphData[slot0.dataIndex]
	grid, ok := data.Topology().(*GridTopology)
	if !ok {
		// Only grid topologies carry the positional links the template
		// needs to re-anchor literals at other vertices.
		return
	}

	type litLink struct {
		dx, dy int
		values ValueSet
	}
	ax, ay := grid.Coordinates(slot0.vertex)
	links := make([]litLink, 0, len(c.lits))
	for _, l := range c.lits {
		slot, ok := s.varGraphSlot[l.Var]
		if !ok || slot.dataIndex != slot0.dataIndex {
			s.stats.FailedPromotions++
			return
		}
		x, y := grid.Coordinates(slot.vertex)
		links = append(links, litLink{dx: x - ax, dy: y - ay, values: l.Values})
	}

	s.stats.ConstraintPromotions++
	cloned := 0
	for vtx := 0; vtx < grid.NumVertices(); vtx++ {
		vx, vy := grid.Coordinates(vtx)
		lits := make([]Literal, 0, len(links))
		valid := true
		for _, link := range links {
			target, ok := grid.VertexAt(vx+link.dx, vy+link.dy)
			if !ok {
				valid = false
				break
			}
			lits = append(lits, Literal{Var: data.Get(target), Values: link.values})
		}
		if !valid {
			continue
		}
		clone := newClauseConstraint(s.nextConstraintID(), lits, true)
		if _, dup := s.learnedHashes.Get(clone.Hash()); dup {
			s.stats.DuplicateLearned++
			continue
		}
		s.learnedHashes.Add(clone.Hash(), struct{}{})
		clone.permanent = true
		s.registerConstraint(clone)
		s.graphOrigin[clone.ID()] = true
		s.permLearned = append(s.permLearned, clone)
		if !clone.Initialize(s.db) {
			// Leave the conflict recorded; the caller's propagation pass
			// picks it up.
			return
		}
		cloned++
	}
	s.stats.GraphClonedConstraints += uint32(cloned)
}

//
// Solution access
//

// IsSolved reports whether the variable has a single remaining value.
func (s *Solver) IsSolved(v VarID) bool { return s.db.IsSolved(v) }

// SolvedValue returns a solved variable's value in its domain.
func (s *Solver) SolvedValue(v VarID) int { return s.db.SolvedValue(v) }

// PotentialValues returns the domain values a variable can still take.
func (s *Solver) PotentialValues(v VarID) []int {
	dom := s.db.Domain(v)
	out := make([]int, 0, s.db.PotentialValues(v).Count())
	s.db.PotentialValues(v).ForEachSet(func(ix int) {
		out = append(out, dom.ValueFor(ix))
	})
	return out
}

// SolvedRecord pairs a variable's name with its solved value.
type SolvedRecord struct {
	Name  string
	Value int
}

// Solution returns every variable's solved value. It panics unless the
// current status is Solved.
func (s *Solver) Solution() map[VarID]SolvedRecord {
	assertf(s.status == ResultSolved, "Solution requested while %s", s.status)
	out := make(map[VarID]SolvedRecord, s.db.NumVariables())
	for v := VarID(1); int(v) <= s.db.NumVariables(); v++ {
		out[v] = SolvedRecord{Name: s.db.Name(v), Value: s.db.SolvedValue(v)}
	}
	return out
}

// VerifySolution re-checks every constraint against the solved state,
// returning the violated constraints (empty for a valid solution). Child
// constraints are checked through their parents: a disjunction is satisfied
// even though its losing side, checked alone, is not.
func (s *Solver) VerifySolution() []Constraint {
	var bad []Constraint
	for i, c := range s.constraints {
		if s.constraintIsChild[i] {
			continue
		}
		if c.CheckConflicting(s.db) {
			bad = append(bad, c)
		}
	}
	return bad
}

// SaveSolution writes "id value" lines for every solved variable.
func (s *Solver) SaveSolution(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for v := VarID(1); int(v) <= s.db.NumVariables(); v++ {
		if !s.db.IsSolved(v) {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%d %d\n", int32(v), s.db.SolvedValue(v)); err != nil {
			return errors.Wrap(err, "writing solution")
		}
	}
	return bw.Flush()
}

// AttemptSolution restricts variables to the values read from a solution
// dump, so solving verifies (or completes) that assignment. Build phase
// only.
func (s *Solver) AttemptSolution(r io.Reader) error {
	if s.initialized {
		return errors.New("AttemptSolution after solving started")
	}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		var raw int32
		var value int
		if _, err := fmt.Sscanf(sc.Text(), "%d %d", &raw, &value); err != nil {
			return errors.Wrapf(err, "solution line %d", line)
		}
		v := VarID(raw)
		if !v.IsValid() || int(v) > s.db.NumVariables() {
			return errors.Errorf("solution line %d: unknown variable %d", line, raw)
		}
		s.SetInitialValues(v, value)
	}
	return errors.Wrap(sc.Err(), "reading solution")
}
