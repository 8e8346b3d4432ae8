package httpc

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/pushprobe/internal/common"
)

// Httpc builds resty clients with the configured TLS settings.
type Httpc struct {
	TlsConfig *tls.Config
}

// New returns a resty.Client with retries disabled and resty's own logging
// routed through the shared logger. MinVersion defaults to TLS1.2 when unset.
func (h *Httpc) New() *resty.Client {
	c := resty.New().SetRetryCount(0).SetLogger(restyLogger{common.GetLogger().WithComponent("resty")})
	if h.TlsConfig == nil {
		return c
	}
	cfg := h.TlsConfig.Clone()
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	c.SetTLSClientConfig(cfg)
	return c
}

type restyLogger struct{ l *common.Logger }

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error(sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...interface{})  { r.l.Warn(sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...interface{}) { r.l.Debug(sprintf(format, v...)) }

func sprintf(format string, v ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}
