package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/loykin/pushprobe/internal/common"
)

type staticMethod struct {
	header string
	value  string
}

func (m staticMethod) Acquire(_ context.Context) (string, string, error) {
	return m.header, m.value, nil
}

// BasicConfig is username/password Basic authentication.
type BasicConfig struct {
	Header   string `mapstructure:"header"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Method validates the config and returns a Method sending
// "Basic base64(user:pass)".
func (c BasicConfig) Method() (Method, error) {
	u := strings.TrimSpace(c.Username)
	p := strings.TrimSpace(c.Password)
	if u == "" || p == "" {
		return nil, errors.New("basic: username and password are required")
	}
	common.GetGlobalMasker().AddLiteral("basic_password", p)
	cred := base64.StdEncoding.EncodeToString([]byte(u + ":" + p))
	return staticMethod{header: headerOrDefault(c.Header), value: "Basic " + cred}, nil
}

// ProviderKeyConfig is the push provider's REST API key. The provider
// expects the key verbatim after "Basic", not base64 encoded.
type ProviderKeyConfig struct {
	Header string `mapstructure:"header"`
	Key    string `mapstructure:"key"`
}

// Method returns a Method sending "Basic <key>".
func (c ProviderKeyConfig) Method() (Method, error) {
	k := strings.TrimSpace(c.Key)
	if k == "" {
		return nil, errors.New("provider_key: key is required")
	}
	common.GetGlobalMasker().AddLiteral("provider_key", k)
	return staticMethod{header: headerOrDefault(c.Header), value: "Basic " + k}, nil
}

// BearerConfig is a pre-issued bearer token.
type BearerConfig struct {
	Header string `mapstructure:"header"`
	Token  string `mapstructure:"token"`
}

// Method returns a Method sending "Bearer <token>".
func (c BearerConfig) Method() (Method, error) {
	t := strings.TrimSpace(c.Token)
	if t == "" {
		return nil, errors.New("bearer: token is required")
	}
	common.GetGlobalMasker().AddLiteral("bearer_token", t)
	return staticMethod{header: headerOrDefault(c.Header), value: "Bearer " + t}, nil
}
