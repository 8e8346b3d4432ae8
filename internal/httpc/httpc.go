// Package httpc implements the single-attempt HTTP(S) request client every
// probe step is built on. Transport problems are reported as data on the
// returned Response, never as an error, so one flaky call cannot abort a run.
package httpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/pushprobe/internal/common"
	"github.com/tidwall/gjson"
)

// FaultKind classifies why a request produced no usable HTTP response.
type FaultKind int

const (
	FaultNone FaultKind = iota
	// FaultConnection: transport failed before any response arrived.
	FaultConnection
	// FaultTimeout: no terminal response within the request timeout.
	FaultTimeout
	// FaultRequest: the request was rejected locally and never sent.
	FaultRequest
)

func (k FaultKind) String() string {
	switch k {
	case FaultNone:
		return "none"
	case FaultConnection:
		return "connection"
	case FaultTimeout:
		return "timeout"
	case FaultRequest:
		return "request"
	default:
		return "unknown"
	}
}

// RequestSpec describes one exchange. Path is relative to the client's base URL.
type RequestSpec struct {
	Method  string
	Path    string
	Headers map[string]string
	// Body, when non-nil, is serialised as JSON.
	Body    any
	Timeout time.Duration
}

// Response is the envelope returned by Send.
type Response struct {
	StatusCode int
	// Body is the decoded JSON value, the raw text when the payload is not JSON,
	// or "" when nothing was received. It is never nil.
	Body      any
	Raw       []byte
	Headers   map[string]string
	Malformed bool
	Fault     FaultKind
	Err       error
	Elapsed   time.Duration
}

// Delivered reports whether an HTTP response was received at all.
func (r *Response) Delivered() bool {
	return r.Fault == FaultNone
}

// JSON evaluates a gjson path against the raw body.
func (r *Response) JSON(path string) gjson.Result {
	if len(r.Raw) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Raw, path)
}

// Text returns the raw body as a string.
func (r *Response) Text() string {
	return string(r.Raw)
}

// FaultDetail is a one-line description of a transport fault, "" when delivered.
func (r *Response) FaultDetail() string {
	if r.Delivered() {
		return ""
	}
	if r.Err == nil {
		return r.Fault.String()
	}
	return fmt.Sprintf("%s: %v", r.Fault, r.Err)
}

// Options configures a Client. BaseURL is fixed for the client's lifetime.
type Options struct {
	BaseURL string
	Timeout time.Duration
	TLS     *tls.Config
	// Headers are sent with every request unless a RequestSpec overrides them.
	Headers map[string]string
}

// Client sends requests against one base URL (scheme, host and port).
type Client struct {
	base    string
	timeout time.Duration
	headers map[string]string
	rc      *resty.Client
}

// New validates the base URL and builds a client.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("httpc: invalid base url %q: %w", opts.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("httpc: base url %q must be http(s)://host[:port]", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		return nil, errors.New("httpc: timeout must be positive")
	}
	hdrs := map[string]string{"Accept": "application/json"}
	for k, v := range opts.Headers {
		hdrs[k] = v
	}
	h := Httpc{TlsConfig: opts.TLS}
	return &Client{
		base:    strings.TrimRight(u.String(), "/"),
		timeout: opts.Timeout,
		headers: hdrs,
		rc:      h.New(),
	}, nil
}

// BaseURL returns the scheme://host[:port][/prefix] requests are joined to.
func (c *Client) BaseURL() string { return c.base }

// Timeout returns the default per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// URL joins path onto the base URL.
func (c *Client) URL(path string) string {
	if path == "" {
		return c.base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base + path
}

// Send performs exactly one request. It always returns a non-nil Response and
// returns within the request timeout plus scheduling slack.
func (c *Client) Send(ctx context.Context, spec RequestSpec) *Response {
	start := time.Now()
	method := strings.ToUpper(strings.TrimSpace(spec.Method))
	if method == "" {
		method = http.MethodGet
	}
	target := c.URL(spec.Path)
	logger := common.GetLogger().WithComponent("httpc").WithRequest(method, target)

	fail := func(kind FaultKind, err error) *Response {
		return &Response{Body: "", Headers: map[string]string{}, Fault: kind, Err: err, Elapsed: time.Since(start)}
	}

	if method != http.MethodGet && method != http.MethodPost {
		return fail(FaultRequest, fmt.Errorf("unsupported method %s", method))
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.rc.R().SetContext(rctx).SetHeaders(c.headers).SetHeaders(spec.Headers)
	if spec.Body != nil {
		payload, err := json.Marshal(spec.Body)
		if err != nil {
			return fail(FaultRequest, fmt.Errorf("encode body: %w", err))
		}
		if _, ok := spec.Headers["Content-Type"]; !ok {
			req.SetHeader("Content-Type", "application/json")
		}
		// []byte bodies make net/http set Content-Length to the encoded length.
		req.SetBody(payload)
	}

	logger.Debug("sending request", "timeout", timeout)
	resp, err := req.Execute(method, target)
	if err != nil {
		kind := classify(rctx, err)
		logger.Warn("request failed", "fault", kind.String(), "error", err)
		return fail(kind, err)
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Raw:        resp.Body(),
		Headers:    flattenHeaders(resp.Header()),
		Elapsed:    time.Since(start),
	}
	out.Body, out.Malformed = decodeBody(out.Raw)
	logger.Debug("received response", "status_code", out.StatusCode, "bytes", len(out.Raw), "malformed", out.Malformed)
	return out
}

func classify(ctx context.Context, err error) FaultKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return FaultTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FaultTimeout
	}
	return FaultConnection
}

func decodeBody(raw []byte) (any, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil || v == nil {
		return string(raw), true
	}
	return v, false
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
