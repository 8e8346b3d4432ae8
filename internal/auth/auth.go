// Package auth produces the credential headers probes attach to backend and
// provider requests.
package auth

import (
	"context"
	"fmt"
	"strings"
)

// Method acquires one header (name and value) to attach to a request.
type Method interface {
	Acquire(ctx context.Context) (header string, value string, err error)
}

// Config selects a Method by type and carries its loosely-typed settings,
// as read from the config file.
type Config struct {
	Type     string         `mapstructure:"type" yaml:"type"`
	Settings map[string]any `mapstructure:"settings" yaml:"settings"`
}

// IsZero reports whether no auth is configured.
func (c Config) IsZero() bool { return strings.TrimSpace(c.Type) == "" }

// Build resolves the configured Method through the registry.
func Build(c Config) (Method, error) {
	if c.IsZero() {
		return nil, fmt.Errorf("auth: missing type")
	}
	return New(c.Type, c.Settings)
}

// Apply acquires credentials from m and sets them on headers. A nil method
// leaves headers untouched.
func Apply(ctx context.Context, m Method, headers map[string]string) error {
	if m == nil {
		return nil
	}
	h, v, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	headers[headerOrDefault(h)] = v
	return nil
}

func headerOrDefault(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return "Authorization"
	}
	return h
}
