// Package fakeapi serves in-memory stand-ins for the booking backend and the
// push provider. Tests run them under httptest; `pushprobe mock` serves them
// for local dry runs.
package fakeapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/pushprobe/internal/common"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

var idSeq atomic.Uint64

// newID returns a unique, UUID-shaped identifier.
func newID() string {
	n := idSeq.Add(1)
	now := uint64(time.Now().UnixNano())
	return fmt.Sprintf("%08x-%04x-4%03x-8%03x-%012x", uint32(now>>32), uint16(now>>16), n&0xfff, (n>>12)&0xfff, now&0xffffffffffff)
}

func newEngine(component string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(component))
	return engine
}

func requestLogger(component string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		common.GetLogger().WithComponent(component).Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Serve listens on addr, prints the readiness line to ready, and serves h
// until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler, ready io.Writer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	port := ln.Addr().(*net.TCPAddr).Port
	if ready != nil {
		_, _ = fmt.Fprintf(ready, "listening on port %d\n", port)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
