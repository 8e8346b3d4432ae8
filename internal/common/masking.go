package common

import (
	"regexp"
	"strings"
	"sync/atomic"
)

// MaskedValue replaces anything the masker considers sensitive.
const MaskedValue = "***MASKED***"

// SensitivePattern describes one kind of secret: keys whose values are always
// masked, and an optional regex applied to free text.
type SensitivePattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Keys        []string
}

// DefaultSensitivePatterns cover the credentials a probe run handles: the
// provider REST key, basic/bearer headers, JWTs and OAuth2 client secrets.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "provider_key",
		Regex:       regexp.MustCompile(`os_v2_app_[A-Za-z0-9]+`),
		Replacement: MaskedValue,
		Keys:        []string{"api_key", "apikey", "rest_api_key", "provider_key"},
	},
	{
		Name:        "authorization",
		Regex:       regexp.MustCompile(`(?i)\b(Basic|Bearer)\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "$1 " + MaskedValue,
		Keys:        []string{"authorization", "token", "access_token"},
	},
	{
		Name:        "jwt",
		Regex:       regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		Replacement: MaskedValue,
	},
	{
		Name:        "secret",
		Regex:       regexp.MustCompile(`(?i)(password|client_secret|secret)(["']?\s*[:=]\s*["']?)[^"',}\s]+`),
		Replacement: "$1$2" + MaskedValue,
		Keys:        []string{"password", "secret", "client_secret", "jwt_secret"},
	},
}

// Masker redacts sensitive data in log output.
type Masker struct {
	patterns []SensitivePattern
	enabled  atomic.Bool
}

// NewMasker creates an enabled masker with the default patterns.
func NewMasker() *Masker {
	return NewMaskerWithPatterns(DefaultSensitivePatterns)
}

// NewMaskerWithPatterns creates an enabled masker with custom patterns.
func NewMaskerWithPatterns(patterns []SensitivePattern) *Masker {
	m := &Masker{patterns: patterns}
	m.enabled.Store(true)
	return m
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) { m.enabled.Store(enabled) }

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool { return m.enabled.Load() }

// AddLiteral masks every occurrence of a known secret value, such as the
// configured provider key, regardless of its format.
func (m *Masker) AddLiteral(name, secret string) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 4 {
		return
	}
	m.patterns = append(m.patterns, SensitivePattern{
		Name:        name,
		Regex:       regexp.MustCompile(regexp.QuoteMeta(secret)),
		Replacement: MaskedValue,
	})
}

// IsSensitiveKey reports whether values logged under key are always masked.
func (m *Masker) IsSensitiveKey(key string) bool {
	if !m.IsEnabled() {
		return false
	}
	lower := strings.ToLower(key)
	for _, p := range m.patterns {
		for _, k := range p.Keys {
			if lower == k {
				return true
			}
		}
	}
	return false
}

// MaskString masks sensitive information in a string
func (m *Masker) MaskString(input string) string {
	if !m.IsEnabled() {
		return input
	}
	for _, p := range m.patterns {
		if p.Regex != nil {
			input = p.Regex.ReplaceAllString(input, p.Replacement)
		}
	}
	return input
}

var globalMasker = NewMasker()

// GetGlobalMasker returns the masker shared by all handlers.
func GetGlobalMasker() *Masker { return globalMasker }

// MaskValue masks a decoded JSON value: values under sensitive keys become
// MaskedValue and strings are masked in place. Other types pass through, so
// the result still encodes as valid JSON.
func (m *Masker) MaskValue(v any) any {
	if !m.IsEnabled() {
		return v
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if m.IsSensitiveKey(k) {
				out[k] = MaskedValue
				continue
			}
			out[k] = m.MaskValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = m.MaskValue(val)
		}
		return out
	case string:
		return m.MaskString(t)
	default:
		return v
	}
}

// MaskSensitiveData masks sensitive data using the global masker
func MaskSensitiveData(input string) string { return globalMasker.MaskString(input) }

// EnableMasking enables/disables global masking
func EnableMasking(enabled bool) { globalMasker.SetEnabled(enabled) }

// IsMaskingEnabled returns whether global masking is enabled
func IsMaskingEnabled() bool { return globalMasker.IsEnabled() }
