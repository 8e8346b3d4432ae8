package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// RenderTemplate renders s as a Go template over vars. Strings without "{{"
// are returned untouched. Missing keys render as an error so a typo in a
// check definition does not silently send "<no value>".
func RenderTemplate(s string, vars map[string]string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tpl, err := template.New("value").Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", s, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render template %q: %w", s, err)
	}
	return buf.String(), nil
}

// RenderAny walks maps and slices decoded from YAML/JSON and renders every
// string leaf with RenderTemplate. Non-string scalars are returned as-is.
func RenderAny(in any, vars map[string]string) (any, error) {
	switch t := in.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			r, err := RenderAny(v, vars)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			r, err := RenderAny(v, vars)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case string:
		return RenderTemplate(t, vars)
	default:
		return in, nil
	}
}
