// Package solver implements a finite-domain constraint solver built around
// conflict-driven clause learning (CDCL), together with an answer-set-style
// rule layer that compiles non-monotonic logic programs into propositional
// constraints over the same variables.
//
// The package is organized in three tightly coupled layers:
//
//   - The variable database and watch system (variable.go, watch.go,
//     values.go, domain.go): variables with bitset value sets, an append-only
//     assignment trail, and a notification system that wakes constraints
//     when the variables they watch are narrowed.
//
//   - The search engine (solver.go, analysis.go, heuristics, restart
//     policies): decision making, two-queue propagation, first-UIP conflict
//     analysis, non-chronological backjumping, clause learning and purging.
//
//   - The rule layer (rules.go, program.go, grounder.go): a small logic
//     programming front end whose grounded rules are reduced to clause
//     constraints handed to the engine, including strongly-connected
//     component analysis and unfounded-set reasoning for recursive programs.
//
// A Solver is built up during a build phase (variables, constraints, rule
// programs), then solved. Solving is single-threaded and deterministic for a
// given seed and build sequence. Callers wanting progress reporting drive
// the search with StartSolving/Step instead of Solve.
package solver
