package httpc

import (
	"crypto/tls"
	"strings"
)

// ParseTLSVersion converts "1.2", "tls12", "TLS1.3" and similar to the
// crypto/tls constant. Unknown values return 0.
func ParseTLSVersion(version string) uint16 {
	switch strings.TrimSpace(strings.ToLower(version)) {
	case "1.2", "12", "tls1.2", "tls12":
		return tls.VersionTLS12
	case "1.3", "13", "tls1.3", "tls13":
		return tls.VersionTLS13
	default:
		return 0
	}
}

// TLSConfig builds a client TLS config, or nil when nothing is customised.
func TLSConfig(insecure bool, minVersion, maxVersion string) *tls.Config {
	minV, maxV := ParseTLSVersion(minVersion), ParseTLSVersion(maxVersion)
	if !insecure && minV == 0 && maxV == 0 {
		return nil
	}
	// #nosec G402 -- InsecureSkipVerify only when explicitly configured for self-signed test backends
	return &tls.Config{MinVersion: minV, MaxVersion: maxV, InsecureSkipVerify: insecure}
}
