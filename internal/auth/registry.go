package auth

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// Factory builds a Method from a settings map.
type Factory func(settings map[string]any) (Method, error)

var (
	providersMu sync.RWMutex
	providers   = map[string]Factory{}
)

func normalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register adds a factory under a type key. Empty keys and nil factories are
// ignored.
func Register(typ string, f Factory) {
	key := normalizeKey(typ)
	if key == "" || f == nil {
		return
	}
	providersMu.Lock()
	providers[key] = f
	providersMu.Unlock()
}

// New builds a Method of the given type.
func New(typ string, settings map[string]any) (Method, error) {
	providersMu.RLock()
	f, ok := providers[normalizeKey(typ)]
	providersMu.RUnlock()
	if !ok {
		return nil, errors.New("auth: unsupported type: " + typ)
	}
	return f(settings)
}

// Types lists the registered type keys.
func Types() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	out := make([]string, 0, len(providers))
	for k := range providers {
		out = append(out, k)
	}
	return out
}

func decode(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(settings)
}

func init() {
	Register("basic", func(s map[string]any) (Method, error) {
		var c BasicConfig
		if err := decode(s, &c); err != nil {
			return nil, err
		}
		return c.Method()
	})
	Register("provider_key", func(s map[string]any) (Method, error) {
		var c ProviderKeyConfig
		if err := decode(s, &c); err != nil {
			return nil, err
		}
		return c.Method()
	})
	Register("bearer", func(s map[string]any) (Method, error) {
		var c BearerConfig
		if err := decode(s, &c); err != nil {
			return nil, err
		}
		return c.Method()
	})
	Register("jwt", func(s map[string]any) (Method, error) {
		var c JWTConfig
		if err := decode(s, &c); err != nil {
			return nil, err
		}
		return c.Method()
	})
	Register("oauth2", func(s map[string]any) (Method, error) {
		var c ClientCredentialsConfig
		if err := decode(s, &c); err != nil {
			return nil, err
		}
		return c.Method()
	})
}
