package runner

import (
	"fmt"
	"time"

	"github.com/loykin/pushprobe/internal/step"
)

// ResultSet is the ordered collection of outcomes of one run: one per
// declared step, in execution order, with unique names. It is read-only
// once Run returns.
type ResultSet struct {
	outcomes []step.Outcome
	index    map[string]int
	sealed   bool

	StartedAt  time.Time
	FinishedAt time.Time
}

func newResultSet(capacity int) *ResultSet {
	return &ResultSet{
		outcomes: make([]step.Outcome, 0, capacity),
		index:    make(map[string]int, capacity),
	}
}

func (rs *ResultSet) add(o step.Outcome) error {
	if rs.sealed {
		return fmt.Errorf("result set is sealed")
	}
	if _, dup := rs.index[o.Name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateStep, o.Name)
	}
	rs.index[o.Name] = len(rs.outcomes)
	rs.outcomes = append(rs.outcomes, o)
	return nil
}

func (rs *ResultSet) seal() { rs.sealed = true }

// Len returns the number of recorded outcomes.
func (rs *ResultSet) Len() int { return len(rs.outcomes) }

// Outcomes returns a copy of the outcomes in execution order.
func (rs *ResultSet) Outcomes() []step.Outcome {
	return append([]step.Outcome(nil), rs.outcomes...)
}

// Get returns the outcome recorded under name.
func (rs *ResultSet) Get(name string) (step.Outcome, bool) {
	i, ok := rs.index[name]
	if !ok {
		return step.Outcome{}, false
	}
	return rs.outcomes[i], true
}

// Passed counts passing outcomes.
func (rs *ResultSet) Passed() int {
	n := 0
	for _, o := range rs.outcomes {
		if o.Passed {
			n++
		}
	}
	return n
}

// AllPassed reports whether every outcome passed. An empty set has not passed.
func (rs *ResultSet) AllPassed() bool {
	return len(rs.outcomes) > 0 && rs.Passed() == len(rs.outcomes)
}

// Elapsed is the wall time of the run.
func (rs *ResultSet) Elapsed() time.Duration {
	if rs.FinishedAt.IsZero() {
		return 0
	}
	return rs.FinishedAt.Sub(rs.StartedAt)
}
