package util

import (
	"strings"
	"unicode/utf8"
)

// TrimAndLower trims whitespace and converts to lowercase
func TrimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TrimEmptyCheck trims whitespace and checks if non-empty
func TrimEmptyCheck(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	return trimmed, trimmed != ""
}

// TrimWithDefault trims whitespace and returns default if empty
func TrimWithDefault(s, defaultValue string) string {
	if trimmed := strings.TrimSpace(s); trimmed != "" {
		return trimmed
	}
	return defaultValue
}

// NonEmpty returns the trimmed, non-empty entries of in, preserving order.
func NonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t, ok := TrimEmptyCheck(s); ok {
			out = append(out, t)
		}
	}
	return out
}

// Truncate shortens s to at most n runes, appending "..." when it cut.
// It never splits a multi-byte rune.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for cut := range s {
		if i == n {
			return s[:cut] + "..."
		}
		i++
	}
	return s
}
