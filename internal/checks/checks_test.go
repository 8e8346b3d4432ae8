package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/fakeapi"
	"github.com/loykin/pushprobe/internal/httpc"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func client(t *testing.T, base string) *httpc.Client {
	t.Helper()
	c, err := httpc.New(httpc.Options{BaseURL: base, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func fakeBackend(t *testing.T, opts fakeapi.BackendOptions) (*fakeapi.Backend, *httpc.Client) {
	t.Helper()
	b := fakeapi.NewBackend(opts)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return b, client(t, srv.URL)
}

func run(t *testing.T, s step.Step) step.Outcome {
	t.Helper()
	o, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.Name(), o.Name)
	return o
}

func TestHealth_Passes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"status":"OK","uptime":120}`))
	}))
	defer srv.Close()

	o := run(t, Health(constants.StepBackendHealth, client(t, srv.URL), ""))
	assert.True(t, o.Passed)
	assert.Equal(t, step.Details{"status": "OK", "uptime": float64(120)}, o.Detail)
}

func TestHealth_FailsWithoutSuccessFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"message":"db down"}`))
	}))
	defer srv.Close()

	o := run(t, Health(constants.StepHealthCheck, client(t, srv.URL), "/health"))
	assert.False(t, o.Passed)
	assert.Equal(t, step.Details{"status": 503, "message": "db down"}, o.Detail)
}

func TestHealth_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	o := run(t, Health(constants.StepBackendHealth, client(t, base), ""))
	assert.False(t, o.Passed)
	assert.Contains(t, o.Detail, "connection")
}

func TestHealth_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>502 Bad Gateway</html>`))
	}))
	defer srv.Close()

	o := run(t, Health(constants.StepBackendHealth, client(t, srv.URL), ""))
	assert.False(t, o.Passed)
	d := o.Detail.(step.Details)
	assert.Equal(t, true, d["malformed"])
}

func TestHealth_MalformedBodyTruncatedOnRuneBoundary(t *testing.T) {
	page := "<html>" + strings.Repeat("서버 점검 중 ", 40) + "</html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	o := run(t, Health(constants.StepBackendHealth, client(t, srv.URL), ""))
	assert.False(t, o.Passed)
	body := o.Detail.(step.Details)["body"].(string)
	assert.True(t, utf8.ValidString(body))
	assert.Equal(t, 203, utf8.RuneCountInString(body))
	assert.True(t, strings.HasSuffix(body, "..."))
}

func TestAdminBookings_StatusBreakdown(t *testing.T) {
	_, c := fakeBackend(t, fakeapi.BackendOptions{Bookings: []fakeapi.Booking{
		{ID: "1", Phone: "1", Status: "pending"},
		{ID: "2", Phone: "2", Status: "pending"},
		{ID: "3", Phone: "3", Status: "completed"},
	}})
	o := run(t, AdminBookings(c, nil))
	require.True(t, o.Passed)
	d := o.Detail.(step.Details)
	assert.Equal(t, 3, d["count"])
	assert.Equal(t, map[string]int{"pending": 2, "completed": 1}, d["byStatus"])
	assert.EqualValues(t, 1, d["totalPages"])
}

func TestAdminBookings_WithJWT(t *testing.T) {
	_, c := fakeBackend(t, fakeapi.BackendOptions{JWTSecret: "k", AdminRole: "admin"})

	o := run(t, AdminBookings(c, nil))
	assert.False(t, o.Passed)

	m, err := auth.JWTConfig{Secret: "k", Role: "admin"}.Method()
	require.NoError(t, err)
	o = run(t, AdminBookings(c, m))
	assert.True(t, o.Passed)
}

func TestUserBookings_NotFoundIsNotAFault(t *testing.T) {
	_, c := fakeBackend(t, fakeapi.BackendOptions{})
	o := run(t, &UserBookings{Client: c, Phones: []string{"0000000000"}})
	assert.False(t, o.Passed)
	assert.Equal(t, "no bookings found", o.Detail)

	o = run(t, &UserBookings{Client: c, Phones: []string{"0000000000"}, AllowEmpty: true})
	assert.True(t, o.Passed)
}

func TestUserBookings_SumsAcrossPhones(t *testing.T) {
	_, c := fakeBackend(t, fakeapi.BackendOptions{Bookings: []fakeapi.Booking{
		{ID: "1", Phone: "6371448994", Status: "pending"},
		{ID: "2", Phone: "6371448994", Status: "accepted"},
	}})
	o := run(t, &UserBookings{Client: c, Phones: []string{"6371448994", "9178160538"}})
	require.True(t, o.Passed)
	d := o.Detail.(step.Details)
	assert.Equal(t, 2, d["total"])
	phones := d["phones"].(map[string]any)
	assert.Equal(t, 2, phones["6371448994"])
	assert.Equal(t, "no bookings found", phones["9178160538"])
}

func TestUserBookings_NoPhonesIsFault(t *testing.T) {
	_, c := fakeBackend(t, fakeapi.BackendOptions{})
	_, err := (&UserBookings{Client: c}).Execute(context.Background())
	assert.Error(t, err)
}

func TestTestNotification(t *testing.T) {
	b, c := fakeBackend(t, fakeapi.BackendOptions{})
	n := Notification{Title: "Final Integration Test", Message: "verification", Type: "final_integration_test"}
	o := run(t, TestNotification(constants.StepNotificationSystem, c, nil, n))
	require.True(t, o.Passed)
	require.Len(t, b.Sent(), 1)
	assert.Equal(t, b.Sent()[0].ID, o.Detail.(step.Details)["notificationId"])

	o = run(t, TestNotification(constants.StepBookingSimulation, c, nil, Notification{}))
	assert.False(t, o.Passed)
}

func TestBookingEndpoint_UnauthorizedCountsAsPass(t *testing.T) {
	_, c := fakeBackend(t, fakeapi.BackendOptions{JWTSecret: "k"})
	o := run(t, BookingEndpoint(c, nil))
	assert.True(t, o.Passed)
	assert.Equal(t, "endpoint exists (requires authentication)", o.Detail)
}

func TestBookingEndpoint_WithCredentials(t *testing.T) {
	_, c := fakeBackend(t, fakeapi.BackendOptions{JWTSecret: "k"})
	good, _ := auth.JWTConfig{Secret: "k"}.Method()
	o := run(t, BookingEndpoint(c, good))
	assert.True(t, o.Passed)

	bad, _ := auth.JWTConfig{Secret: "wrong"}.Method()
	o = run(t, BookingEndpoint(c, bad))
	assert.False(t, o.Passed, "401 with credentials means they were rejected")
}

func TestWebsocket(t *testing.T) {
	_, c := fakeBackend(t, fakeapi.BackendOptions{})
	o := run(t, Websocket(c))
	assert.True(t, o.Passed)
}

func TestRegistration(t *testing.T) {
	_, c := fakeBackend(t, fakeapi.BackendOptions{})
	assert.True(t, run(t, RegistrationAccepted(c, DefaultRegistration)).Passed)
	o := run(t, RegistrationAccepted(c, DefaultRegistration))
	assert.True(t, o.Passed)
	assert.Equal(t, "user already exists", o.Detail)

	o = run(t, RegistrationRejected(c, InvalidRegistration))
	require.True(t, o.Passed)
	d := o.Detail.(step.Details)
	assert.Equal(t, 5, d["errors"])
	assert.Equal(t, []string{"address", "email", "name", "password", "phone"}, d["fields"])

	o = run(t, RegistrationRejected(c, Registration{Name: "x", Email: "other@example.com", Password: "longenough", Phone: "1234567890", Address: "a"}))
	assert.False(t, o.Passed)
}

func fakeProvider(t *testing.T) (*fakeapi.Provider, *httpc.Client) {
	t.Helper()
	p := fakeapi.NewProvider(fakeapi.ProviderOptions{AppID: "app-1", APIKey: "os_v2_app_goodkey", Players: 5, Messageable: 4})
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)
	return p, client(t, srv.URL)
}

func providerKey(t *testing.T, key string) auth.Method {
	t.Helper()
	m, err := auth.ProviderKeyConfig{Key: key}.Method()
	require.NoError(t, err)
	return m
}

func TestProviderDirect_Success(t *testing.T) {
	p, c := fakeProvider(t)
	msg := ProviderMessage{Heading: "Final System Verification", Contents: "All systems are working", Type: "final_system_verification"}
	o := run(t, ProviderDirect(c, providerKey(t, "os_v2_app_goodkey"), "app-1", msg))
	require.True(t, o.Passed)
	d := o.Detail.(step.Details)
	assert.NotEmpty(t, d["id"])
	assert.EqualValues(t, 4, d["recipients"])

	sent := p.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "final_system_verification", sent[0].Data["type"])
	_, err := time.Parse(time.RFC3339Nano, sent[0].Data["timestamp"].(string))
	assert.NoError(t, err)
	assert.Equal(t, []string{"All"}, sent[0].Segments)
}

func TestProviderDirect_InvalidKey(t *testing.T) {
	_, c := fakeProvider(t)
	o := run(t, ProviderDirect(c, providerKey(t, "os_v2_app_badkey"), "app-1", ProviderMessage{Contents: "x"}))
	assert.False(t, o.Passed)
	assert.Equal(t, []any{"invalid key"}, o.Detail)
}

func TestProviderAppInfo(t *testing.T) {
	_, c := fakeProvider(t)
	o := run(t, ProviderAppInfo(c, providerKey(t, "os_v2_app_goodkey"), "app-1"))
	require.True(t, o.Passed)
	d := o.Detail.(step.Details)
	assert.EqualValues(t, 5, d["players"])
	assert.EqualValues(t, 4, d["messageable_players"])

	o = run(t, ProviderAppInfo(c, providerKey(t, "os_v2_app_goodkey"), "missing"))
	assert.False(t, o.Passed)
}

func TestCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	o := run(t, &Command{StepName: "ok", Path: "sh", Args: []string{"-c", "echo fine"}})
	assert.True(t, o.Passed)

	o = run(t, &Command{StepName: "bad", Path: "sh", Args: []string{"-c", "echo 'Some tests failed.'; exit 1"}})
	assert.False(t, o.Passed)
	d := o.Detail.(step.Details)
	assert.Equal(t, 1, d["exitCode"])
	assert.Equal(t, []string{"Some tests failed."}, d["output"])

	o = run(t, &Command{StepName: "slow", Path: "sh", Args: []string{"-c", "sleep 5"}, Timeout: 100 * time.Millisecond})
	assert.False(t, o.Passed)
	assert.Contains(t, o.Detail, "timeout")

	_, err := (&Command{StepName: "missing", Path: "/nonexistent/flutter"}).Execute(context.Background())
	assert.Error(t, err)
}

func TestFlutterTests(t *testing.T) {
	c := FlutterTests("app").(*Command)
	assert.Equal(t, constants.StepFlutterTests, c.Name())
	assert.Equal(t, "flutter test test/notification_integration_test.dart --verbose", c.CommandLine())
}
