package httpc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, base string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: base, Timeout: timeout})
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "localhost:5000", "ftp://host", "http://"} {
		_, err := New(Options{BaseURL: base, Timeout: time.Second})
		assert.Error(t, err, base)
	}
	_, err := New(Options{BaseURL: "http://localhost", Timeout: 0})
	assert.Error(t, err)
}

func TestClient_URLJoin(t *testing.T) {
	c := newClient(t, "https://example.com/", time.Second)
	assert.Equal(t, "https://example.com", c.BaseURL())
	assert.Equal(t, "https://example.com/api/health", c.URL("/api/health"))
	assert.Equal(t, "https://example.com/api/health", c.URL("api/health"))
}

func TestSend_DecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("X-Test", "yes")
		_, _ = w.Write([]byte(`{"success":true,"status":"OK","uptime":120}`))
	}))
	defer srv.Close()

	resp := newClient(t, srv.URL, time.Second).Send(context.Background(), RequestSpec{Method: http.MethodGet, Path: "/api/health"})
	require.True(t, resp.Delivered())
	assert.Equal(t, 200, resp.StatusCode)
	assert.False(t, resp.Malformed)
	assert.Equal(t, "yes", resp.Headers["X-Test"])
	body, ok := resp.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "OK", body["status"])
	assert.True(t, resp.JSON("success").Bool())
	assert.Equal(t, int64(120), resp.JSON("uptime").Int())
}

func TestSend_ErrorStatusIsDelivered(t *testing.T) {
	for _, status := range []int{401, 404, 500} {
		h := httphelpers.HandlerWithResponse(status, http.Header{"Content-Type": {"application/json"}}, []byte(`{"success":false}`))
		rh, requests := httphelpers.RecordingHandler(h)
		srv := httptest.NewServer(rh)

		c, err := New(Options{BaseURL: srv.URL, Timeout: time.Second, Headers: map[string]string{"X-App": "probe"}})
		require.NoError(t, err)
		resp := c.Send(context.Background(), RequestSpec{
			Method:  http.MethodGet,
			Path:    "/api/admin/bookings",
			Headers: map[string]string{"Authorization": "Bearer tok"},
		})
		srv.Close()

		require.True(t, resp.Delivered(), status)
		assert.Equal(t, status, resp.StatusCode)
		assert.Empty(t, resp.FaultDetail())
		assert.False(t, resp.JSON("success").Bool())

		require.Len(t, requests, 1)
		req := <-requests
		assert.Equal(t, "/api/admin/bookings", req.Request.URL.Path)
		assert.Equal(t, "probe", req.Request.Header.Get("X-App"))
		assert.Equal(t, "Bearer tok", req.Request.Header.Get("Authorization"))
	}
}

func TestSend_PostBodyHasContentLength(t *testing.T) {
	payload := map[string]any{"title": "t", "message": "m", "type": "probe"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, int64(len(raw)), r.ContentLength)
		assert.JSONEq(t, `{"title":"t","message":"m","type":"probe"}`, string(raw))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	resp := newClient(t, srv.URL, time.Second).Send(context.Background(), RequestSpec{Method: "post", Path: "/api/notifications/test", Body: payload})
	require.True(t, resp.Delivered())
	assert.True(t, resp.JSON("success").Bool())
}

func TestSend_MalformedBodyReturnsRawText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	resp := newClient(t, srv.URL, time.Second).Send(context.Background(), RequestSpec{Path: "/"})
	require.True(t, resp.Delivered())
	assert.True(t, resp.Malformed)
	assert.Equal(t, 502, resp.StatusCode)
	assert.Equal(t, "<html>bad gateway</html>", resp.Body)
}

func TestSend_EmptyBodyIsEmptyString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	resp := newClient(t, srv.URL, time.Second).Send(context.Background(), RequestSpec{Path: "/api/bookings"})
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, "", resp.Body)
	assert.False(t, resp.Malformed)
	assert.False(t, resp.JSON("success").Exists())
}

func TestSend_TimeoutIsBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	resp := newClient(t, srv.URL, time.Second).Send(context.Background(), RequestSpec{Path: "/slow", Timeout: 100 * time.Millisecond})
	elapsed := time.Since(start)

	assert.Equal(t, FaultTimeout, resp.Fault)
	assert.False(t, resp.Delivered())
	assert.NotNil(t, resp.Body)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Contains(t, resp.FaultDetail(), "timeout")
}

func TestSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	resp := newClient(t, base, time.Second).Send(context.Background(), RequestSpec{Path: "/api/health"})
	assert.Equal(t, FaultConnection, resp.Fault)
	assert.Error(t, resp.Err)
	assert.Equal(t, "", resp.Body)
}

func TestSend_RejectsUnsupportedMethod(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1", time.Second)
	resp := c.Send(context.Background(), RequestSpec{Method: http.MethodDelete, Path: "/x"})
	assert.Equal(t, FaultRequest, resp.Fault)

	resp = c.Send(context.Background(), RequestSpec{Method: http.MethodPost, Path: "/x", Body: make(chan int)})
	assert.Equal(t, FaultRequest, resp.Fault)
}

func TestSend_InsecureTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	strict := newClient(t, srv.URL, time.Second)
	assert.Equal(t, FaultConnection, strict.Send(context.Background(), RequestSpec{Path: "/"}).Fault)

	c, err := New(Options{BaseURL: srv.URL, Timeout: time.Second, TLS: TLSConfig(true, "", "")})
	require.NoError(t, err)
	resp := c.Send(context.Background(), RequestSpec{Path: "/"})
	require.True(t, resp.Delivered(), resp.FaultDetail())
	assert.True(t, resp.JSON("ok").Bool())
}

func TestTLSConfig(t *testing.T) {
	assert.Nil(t, TLSConfig(false, "", ""))
	cfg := TLSConfig(false, "tls1.2", "1.3")
	require.NotNil(t, cfg)
	assert.Equal(t, uint16(0x0303), cfg.MinVersion)
	assert.Equal(t, uint16(0x0304), cfg.MaxVersion)
}
