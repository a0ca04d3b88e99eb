// Package solver: the decision log records the search's branch choices so a
// run can be replayed (via LogOrderHeuristic) or inspected as breadcrumbs.
package solver

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// DecisionRecord is one logged decision: the level it was made at, the
// variable, and the chosen domain index.
type DecisionRecord struct {
	Level      int
	Var        VarID
	ValueIndex int
}

// DecisionLog accumulates the decisions of a run. The text format is one
// decision per line: "<level> <variable-id> <value-index>".
type DecisionLog struct {
	decisions []DecisionRecord
}

// NewDecisionLog returns an empty log.
func NewDecisionLog() *DecisionLog { return &DecisionLog{} }

// AddDecision appends a record.
func (dl *DecisionLog) AddDecision(level int, v VarID, valueIndex int) {
	dl.decisions = append(dl.decisions, DecisionRecord{Level: level, Var: v, ValueIndex: valueIndex})
}

// NumDecisions returns the number of recorded decisions.
func (dl *DecisionLog) NumDecisions() int { return len(dl.decisions) }

// Decision returns the i-th record.
func (dl *DecisionLog) Decision(i int) DecisionRecord { return dl.decisions[i] }

// Write emits the log in its text format.
func (dl *DecisionLog) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, d := range dl.decisions {
		if _, err := fmt.Fprintf(bw, "%d %d %d\n", d.Level, int32(d.Var), d.ValueIndex); err != nil {
			return errors.Wrap(err, "writing decision log")
		}
	}
	return bw.Flush()
}

// Read replaces the log's contents with records parsed from r.
func (dl *DecisionLog) Read(r io.Reader) error {
	dl.decisions = dl.decisions[:0]
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec DecisionRecord
		var raw int32
		if _, err := fmt.Sscanf(text, "%d %d %d", &rec.Level, &raw, &rec.ValueIndex); err != nil {
			return errors.Wrapf(err, "decision log line %d", line)
		}
		rec.Var = VarID(raw)
		dl.decisions = append(dl.decisions, rec)
	}
	return errors.Wrap(sc.Err(), "reading decision log")
}

// WriteBreadcrumbs emits one line per search leaf: the chain of variable
// names decided on the path to that leaf, joined by ">>>", followed by the
// leaf number. Useful for visualizing the shape of the search tree.
func (dl *DecisionLog) WriteBreadcrumbs(s *Solver, w io.Writer) error {
	sanitize := func(name string) string {
		return strings.ReplaceAll(name, ">>>", "___")
	}

	bw := bufio.NewWriter(w)
	leaf := 0
	var stack []VarID
	i := 0
	for i < len(dl.decisions) {
		stack = append(stack, dl.decisions[i].Var)

		// Extend while the decision level keeps increasing.
		j := i + 1
		for j < len(dl.decisions) && dl.decisions[j].Level > dl.decisions[j-1].Level {
			stack = append(stack, dl.decisions[j].Var)
			j++
		}

		parts := make([]string, len(stack))
		for k, v := range stack {
			parts[k] = sanitize(s.VariableName(v))
		}
		if _, err := fmt.Fprintf(bw, "%s,%d\n", strings.Join(parts, ">>>"), leaf); err != nil {
			return errors.Wrap(err, "writing breadcrumbs")
		}
		leaf++

		// Pop back to the level the next decision resumes at.
		if j < len(dl.decisions) {
			for len(stack) >= dl.decisions[j].Level {
				stack = stack[:len(stack)-1]
			}
		}
		i = j
	}
	return bw.Flush()
}
