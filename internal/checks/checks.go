// Package checks holds the concrete steps that probe the backend and the
// push provider.
package checks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/httpc"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/util"
)

// Evaluator decides whether a delivered response satisfies a check and
// builds the outcome detail.
type Evaluator func(resp *httpc.Response) (passed bool, detail any)

// HTTPCheck is a step issuing one request and evaluating the response.
// Transport faults and timeouts fail the outcome with the fault as detail;
// they are not returned as errors.
type HTTPCheck struct {
	StepName string
	Client   *httpc.Client
	Auth     auth.Method
	Request  httpc.RequestSpec
	Evaluate Evaluator
}

// Name returns the step name.
func (c *HTTPCheck) Name() string { return c.StepName }

// Execute sends the request and applies the evaluator.
func (c *HTTPCheck) Execute(ctx context.Context) (step.Outcome, error) {
	if c.Client == nil {
		return step.Outcome{}, fmt.Errorf("%s: no client configured", c.StepName)
	}
	spec := c.Request
	headers := make(map[string]string, len(spec.Headers)+1)
	for k, v := range spec.Headers {
		headers[k] = v
	}
	if err := auth.Apply(ctx, c.Auth, headers); err != nil {
		return step.Outcome{}, fmt.Errorf("acquire credentials: %w", err)
	}
	spec.Headers = headers

	resp := c.Client.Send(ctx, spec)
	if !resp.Delivered() {
		return step.Outcome{Name: c.StepName, Detail: resp.FaultDetail(), Duration: resp.Elapsed}, nil
	}
	passed, detail := c.Evaluate(resp)
	return step.Outcome{Name: c.StepName, Passed: passed, Detail: detail, Duration: resp.Elapsed}, nil
}

// successFlag reports whether the body carries success: true.
func successFlag(resp *httpc.Response) bool {
	return resp.JSON("success").Bool()
}

// mismatch describes a response that failed its predicate.
func mismatch(resp *httpc.Response) step.Details {
	d := step.Details{"status": resp.StatusCode}
	if resp.Malformed {
		d["malformed"] = true
		d["body"] = util.Truncate(resp.Text(), 200)
		return d
	}
	if msg := resp.JSON("message"); msg.Exists() {
		d["message"] = msg.String()
	} else if e := resp.JSON("error"); e.Exists() {
		d["error"] = e.String()
	}
	return d
}

func get(path string) httpc.RequestSpec {
	return httpc.RequestSpec{Method: http.MethodGet, Path: path}
}

func post(path string, body any) httpc.RequestSpec {
	return httpc.RequestSpec{Method: http.MethodPost, Path: path, Body: body}
}
