// Package solver: search statistics, reset on every StartSolving and
// readable at any step boundary.
package solver

import (
	"fmt"
	"time"
)

// Stats counts the work done by the most recent solve.
type Stats struct {
	// StartTime and EndTime bracket the solve; EndTime is zero until the
	// search terminates.
	StartTime time.Time
	EndTime   time.Time

	// Steps is the number of Step iterations performed.
	Steps uint32
	// Backtracks counts conflicts that led to a backjump.
	Backtracks uint32
	// MaxBackjump is the largest number of levels undone by one backjump.
	MaxBackjump uint32
	// Restarts counts restarts requested by the restart policy.
	Restarts uint32

	// InitialConstraints is the number of user-supplied constraints.
	InitialConstraints uint32
	// ConstraintsLearned counts learned clauses, including later-purged ones.
	ConstraintsLearned uint32
	// ConstraintPromotions counts learned clauses promoted to graph
	// templates; FailedPromotions counts attempts that fit no template.
	ConstraintPromotions uint32
	FailedPromotions     uint32
	// GraphClonedConstraints is the number of clauses instantiated from
	// promoted templates.
	GraphClonedConstraints uint32

	// Purges counts sweeps of the temporary learned-clause database;
	// PurgedConstraints the clauses dropped; LockedPurgeSkips the clauses
	// kept because they justified a trail entry.
	Purges            uint32
	PurgedConstraints uint64
	LockedPurgeSkips  uint64
	// DuplicateLearned counts learned clauses rejected as duplicates by
	// the promotion hash cache.
	DuplicateLearned uint64
}

// Duration returns the wall time of the solve so far.
func (st *Stats) Duration() time.Duration {
	end := st.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(st.StartTime)
}

func (st *Stats) String() string {
	return fmt.Sprintf("steps=%d backtracks=%d restarts=%d maxBackjump=%d learned=%d promoted=%d purges=%d purged=%d duration=%s",
		st.Steps, st.Backtracks, st.Restarts, st.MaxBackjump,
		st.ConstraintsLearned, st.ConstraintPromotions, st.Purges, st.PurgedConstraints, st.Duration())
}
