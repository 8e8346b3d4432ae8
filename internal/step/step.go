// Package step defines the unit of verification the runner sequences.
package step

import (
	"context"
	"time"
)

// Step is one named, self-contained verification. It owns its request
// construction and its pass predicate. A returned error is a genuine fault
// (not an assertion failure); the runner records it as a failed outcome.
type Step interface {
	Name() string
	Execute(ctx context.Context) (Outcome, error)
}

// Outcome is the immutable result of one step execution. It is passed by
// value; Detail must not be mutated after the outcome is returned.
type Outcome struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Detail   any           `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Pass builds a passing outcome.
func Pass(name string, detail any) Outcome {
	return Outcome{Name: name, Passed: true, Detail: detail}
}

// Fail builds a failing outcome.
func Fail(name string, detail any) Outcome {
	return Outcome{Name: name, Passed: false, Detail: detail}
}

// Result builds an outcome from a predicate result.
func Result(name string, passed bool, detail any) Outcome {
	return Outcome{Name: name, Passed: passed, Detail: detail}
}

// Func adapts a plain function into a Step.
type Func struct {
	StepName string
	Fn       func(ctx context.Context) (passed bool, detail any, err error)
}

// New wraps fn as a Step named name.
func New(name string, fn func(ctx context.Context) (bool, any, error)) Step {
	return Func{StepName: name, Fn: fn}
}

// Name returns the step name.
func (f Func) Name() string { return f.StepName }

// Execute runs the wrapped function.
func (f Func) Execute(ctx context.Context) (Outcome, error) {
	passed, detail, err := f.Fn(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Result(f.StepName, passed, detail), nil
}

// Details is the structured diagnostic most steps attach to an outcome.
type Details map[string]any
