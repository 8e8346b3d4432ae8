package checks

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/httpc"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/util"
	"github.com/tidwall/gjson"
)

// Definition is a check declared in the config file under checks:.
//
//	- name: pendingBookings
//	  target: backend
//	  method: GET
//	  path: /api/bookings/user/{{.phone}}
//	  result_code: ["200", "404"]
//	  expect: ["success", "bookings.#>0"]
//	  detail_from: {count: "bookings.#"}
type Definition struct {
	Name       string            `mapstructure:"name" yaml:"name"`
	Target     string            `mapstructure:"target" yaml:"target"`
	Method     string            `mapstructure:"method" yaml:"method"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Headers    map[string]string `mapstructure:"headers" yaml:"headers"`
	Body       any               `mapstructure:"body" yaml:"body"`
	Timeout    time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	ResultCode []string          `mapstructure:"result_code" yaml:"result_code"`
	// Expect lists gjson paths that must be truthy, or "path==value" pairs.
	Expect     []string          `mapstructure:"expect" yaml:"expect"`
	DetailFrom map[string]string `mapstructure:"detail_from" yaml:"detail_from"`
	// DetailMissing is "skip" (default) or "fail".
	DetailMissing string `mapstructure:"detail_missing" yaml:"detail_missing"`
}

// Target is a client plus the credentials to send with it.
type Target struct {
	Client *httpc.Client
	Auth   auth.Method
}

// Build validates d, renders its templates over vars and returns the step.
func (d Definition) Build(targets map[string]Target, vars map[string]string) (step.Step, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return nil, fmt.Errorf("check: name is required")
	}
	targetName := util.TrimWithDefault(d.Target, "backend")
	target, ok := targets[targetName]
	if !ok || target.Client == nil {
		return nil, fmt.Errorf("check %s: unknown target %q", name, targetName)
	}
	method := strings.ToUpper(util.TrimWithDefault(d.Method, http.MethodGet))
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("check %s: unsupported method %q", name, d.Method)
	}

	path, err := util.RenderTemplate(d.Path, vars)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", name, err)
	}
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		if headers[k], err = util.RenderTemplate(v, vars); err != nil {
			return nil, fmt.Errorf("check %s: header %s: %w", name, k, err)
		}
	}
	var body any
	if d.Body != nil {
		if body, err = util.RenderAny(normalizeYAML(d.Body), vars); err != nil {
			return nil, fmt.Errorf("check %s: body: %w", name, err)
		}
	}
	allowed, err := d.allowedStatus(vars)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", name, err)
	}

	return &HTTPCheck{
		StepName: name,
		Client:   target.Client,
		Auth:     target.Auth,
		Request: httpc.RequestSpec{
			Method:  method,
			Path:    path,
			Headers: headers,
			Body:    body,
			Timeout: d.Timeout,
		},
		Evaluate: d.evaluator(allowed),
	}, nil
}

// allowedStatus renders ResultCode entries; an empty set means 200 only.
func (d Definition) allowedStatus(vars map[string]string) (map[int]struct{}, error) {
	allowed := map[int]struct{}{}
	for _, c := range d.ResultCode {
		rendered, err := util.RenderTemplate(c, vars)
		if err != nil {
			return nil, err
		}
		rendered = strings.TrimSpace(rendered)
		if rendered == "" {
			continue
		}
		n, err := strconv.Atoi(rendered)
		if err != nil {
			return nil, fmt.Errorf("result_code %q is not a number", rendered)
		}
		allowed[n] = struct{}{}
	}
	if len(allowed) == 0 {
		allowed[http.StatusOK] = struct{}{}
	}
	return allowed, nil
}

func (d Definition) evaluator(allowed map[int]struct{}) Evaluator {
	failOnMissing := util.TrimAndLower(d.DetailMissing) == "fail"
	return func(resp *httpc.Response) (bool, any) {
		if _, ok := allowed[resp.StatusCode]; !ok {
			return false, mismatch(resp)
		}
		parsed := gjson.ParseBytes(resp.Raw)
		for _, e := range d.Expect {
			if ok, why := expectation(parsed, e); !ok {
				return false, step.Details{"status": resp.StatusCode, "expect": e, "reason": why}
			}
		}
		detail := step.Details{"status": resp.StatusCode}
		for key, path := range d.DetailFrom {
			r := parsed.Get(strings.TrimSpace(path))
			if !r.Exists() {
				if failOnMissing {
					return false, step.Details{"status": resp.StatusCode, "missing": path}
				}
				continue
			}
			detail[key] = r.Value()
		}
		return true, detail
	}
}

// expectation evaluates "path" (truthy) or "path==value".
func expectation(doc gjson.Result, expr string) (bool, string) {
	expr = strings.TrimSpace(expr)
	if path, want, ok := strings.Cut(expr, "=="); ok {
		got := doc.Get(strings.TrimSpace(path))
		want = strings.Trim(strings.TrimSpace(want), `"'`)
		if !got.Exists() {
			return false, "missing"
		}
		if got.String() != want {
			return false, fmt.Sprintf("got %q", got.String())
		}
		return true, ""
	}
	r := doc.Get(expr)
	if !r.Exists() {
		return false, "missing"
	}
	if !truthy(r) {
		return false, fmt.Sprintf("falsy value %s", r.Raw)
	}
	return true, ""
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	default:
		return true
	}
}

// normalizeYAML converts map[any]any nodes (older YAML decoders) to
// map[string]any so bodies can be JSON encoded.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// BuildAll builds every definition, stopping at the first invalid one.
func BuildAll(defs []Definition, targets map[string]Target, vars map[string]string) ([]step.Step, error) {
	out := make([]step.Step, 0, len(defs))
	for _, d := range defs {
		s, err := d.Build(targets, vars)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

