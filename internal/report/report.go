// Package report aggregates run outcomes and renders the pass/fail summary.
package report

import (
	"time"

	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/metrics"
	"github.com/loykin/pushprobe/internal/step"
)

// Summary is the aggregate of one run's outcomes.
type Summary struct {
	Suite   string                  `json:"suite,omitempty"`
	Passed  int                     `json:"passed"`
	Total   int                     `json:"total"`
	Healthy bool                    `json:"healthy"`
	Order   []string                `json:"order"`
	ByName  map[string]step.Outcome `json:"outcomes"`
	Latency metrics.Latency         `json:"latency"`
	Elapsed time.Duration           `json:"elapsed,omitempty"`
}

// Aggregate summarises outcomes in order. It is pure: the same input always
// yields the same Summary.
func Aggregate(outcomes []step.Outcome) Summary {
	s := Summary{
		Total:  len(outcomes),
		Order:  make([]string, 0, len(outcomes)),
		ByName: make(map[string]step.Outcome, len(outcomes)),
	}
	durations := make([]time.Duration, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Passed {
			s.Passed++
		}
		s.Order = append(s.Order, o.Name)
		s.ByName[o.Name] = o
		durations = append(durations, o.Duration)
	}
	s.Healthy = s.Total > 0 && s.Passed == s.Total
	s.Latency = metrics.Summarize(durations)
	return s
}

// Failed lists failed step names in order.
func (s Summary) Failed() []string {
	var out []string
	for _, name := range s.Order {
		if !s.ByName[name].Passed {
			out = append(out, name)
		}
	}
	return out
}

// deliverySteps are the steps whose success means a notification should
// have reached a device.
var deliverySteps = []string{
	constants.StepNotificationSystem,
	constants.StepBookingSimulation,
	constants.StepNotificationEndpoint,
	constants.StepProviderDirect,
}

// Delivered counts passed steps that dispatched a notification. Delivery to
// the device itself is only observable by a human.
func (s Summary) Delivered() int {
	n := 0
	for _, name := range deliverySteps {
		if o, ok := s.ByName[name]; ok && o.Passed {
			n++
		}
	}
	return n
}
