package suite

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/pushprobe/internal/auth"
	"github.com/loykin/pushprobe/internal/checks"
	"github.com/loykin/pushprobe/internal/constants"
	"github.com/loykin/pushprobe/internal/fakeapi"
	"github.com/loykin/pushprobe/internal/httpc"
	"github.com/loykin/pushprobe/internal/runner"
	"github.com/loykin/pushprobe/internal/step"
	"github.com/loykin/pushprobe/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAppID = "f6dbfa0d-0000-4fce-9e63-c85c5b200d5d"
	testKey   = "os_v2_app_testkey0123456789"
)

type fixture struct {
	env      Env
	backend  *fakeapi.Backend
	provider *fakeapi.Provider
}

func newClient(t *testing.T, base string) *httpc.Client {
	t.Helper()
	c, err := httpc.New(httpc.Options{BaseURL: base, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := fakeapi.NewBackend(fakeapi.BackendOptions{Bookings: []fakeapi.Booking{
		{ID: "b1", Phone: "6371448994", Service: "AC Repair", Status: "pending"},
		{ID: "b2", Phone: "9178160538", Service: "Plumbing", Status: "confirmed"},
	}})
	p := fakeapi.NewProvider(fakeapi.ProviderOptions{AppID: testAppID, APIKey: testKey, Players: 3, Messageable: 2})
	bs := httptest.NewServer(b.Handler())
	ps := httptest.NewServer(p.Handler())
	t.Cleanup(bs.Close)
	t.Cleanup(ps.Close)

	key, err := auth.ProviderKeyConfig{Key: testKey}.Method()
	require.NoError(t, err)

	return &fixture{
		backend:  b,
		provider: p,
		env: Env{
			Backend:     newClient(t, bs.URL),
			Local:       newClient(t, bs.URL),
			Provider:    newClient(t, ps.URL),
			ProviderKey: key,
			AppID:       testAppID,
			Phones:      []string{"6371448994", "9178160538"},
		},
	}
}

func names(steps []step.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name()
	}
	return out
}

func TestRegistry_BuiltinNames(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"comprehensive", "deployment", "existing-local", "final", "flutter",
		"local", "notification", "provider", "validation",
	}, r.Names())
}

func TestBuiltinsAreValid(t *testing.T) {
	for _, d := range Builtins {
		assert.NoError(t, d.Validate(), d.Name)
	}
}

func TestBuild_FinalOrder(t *testing.T) {
	f := newFixture(t)
	r, _ := NewRegistry()
	s, err := r.Build("final", f.env)
	require.NoError(t, err)
	assert.Nil(t, s.Service)
	assert.Empty(t, s.RunnerOptions(supervisor.New()))
	assert.Equal(t, []string{
		constants.StepBackendHealth,
		constants.StepAdminBookings,
		constants.StepUserBookings,
		constants.StepNotificationSystem,
		constants.StepBookingSimulation,
		constants.StepProviderDirect,
	}, names(s.Steps))
}

func TestRun_FinalAgainstFakes(t *testing.T) {
	f := newFixture(t)
	r, _ := NewRegistry()
	s, err := r.Build("final", f.env)
	require.NoError(t, err)

	rs, err := runner.New().Run(context.Background(), s.Steps)
	require.NoError(t, err)
	require.Equal(t, len(s.Steps), rs.Len())
	for _, o := range rs.Outcomes() {
		assert.True(t, o.Passed, "%s: %v", o.Name, o.Detail)
	}

	sent := f.backend.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, DefaultNotifications.System.Type, sent[0].Type)
	assert.Equal(t, DefaultNotifications.Booking.Type, sent[1].Type)

	msgs := f.provider.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, DefaultProviderMessage.Heading, msgs[0].Headings["en"])
	assert.Equal(t, "production_ready", msgs[0].Data["status"])
}

func TestRun_ValidationAgainstFake(t *testing.T) {
	f := newFixture(t)
	r, _ := NewRegistry()
	s, err := r.Build("validation", f.env)
	require.NoError(t, err)

	rs, err := runner.New().Run(context.Background(), s.Steps)
	require.NoError(t, err)
	assert.True(t, rs.AllPassed())

	// a second run hits the duplicate user path, which still passes
	rs, err = runner.New().Run(context.Background(), s.Steps)
	require.NoError(t, err)
	o, ok := rs.Get(constants.StepRegistration)
	require.True(t, ok)
	assert.True(t, o.Passed)
	assert.Equal(t, "user already exists", o.Detail)
}

func TestRun_ProviderWrongKey(t *testing.T) {
	f := newFixture(t)
	bad, err := auth.ProviderKeyConfig{Key: "os_v2_app_wrong"}.Method()
	require.NoError(t, err)
	f.env.ProviderKey = bad

	r, _ := NewRegistry()
	s, err := r.Build("provider", f.env)
	require.NoError(t, err)
	rs, err := runner.New().Run(context.Background(), s.Steps)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, 0, rs.Passed())

	o, _ := rs.Get(constants.StepProviderDirect)
	assert.Equal(t, []any{"invalid key"}, o.Detail)
}

func TestBuild_ExistingLocalUsesLocalClient(t *testing.T) {
	f := newFixture(t)
	f.env.Backend = nil
	r, _ := NewRegistry()
	s, err := r.Build("existing-local", f.env)
	require.NoError(t, err)
	assert.Equal(t, []string{constants.StepHealthCheck, constants.StepNotificationEndpoint, constants.StepProviderDirect}, names(s.Steps))

	rs, err := runner.New().Run(context.Background(), s.Steps)
	require.NoError(t, err)
	assert.True(t, rs.AllPassed())
	require.Len(t, f.backend.Sent(), 1)
	assert.Equal(t, DefaultNotifications.Endpoint.Title, f.backend.Sent()[0].Title)
}

func TestBuild_Errors(t *testing.T) {
	f := newFixture(t)
	r, _ := NewRegistry()

	_, err := r.Build("nope", f.env)
	assert.ErrorContains(t, err, "unknown suite")

	_, err = r.Build("local", f.env)
	assert.ErrorContains(t, err, "requires service.command")

	env := f.env
	env.Backend = nil
	_, err = r.Build("final", env)
	assert.ErrorContains(t, err, "no backend client")

	env = f.env
	env.AppID = ""
	_, err = r.Build("provider", env)
	assert.ErrorContains(t, err, "app id")

	env = f.env
	env.Phones = nil
	_, err = r.Build("deployment", env)
	assert.ErrorContains(t, err, "phone")
}

func TestCustomSuiteWithExtraCheck(t *testing.T) {
	f := newFixture(t)
	extra, err := checks.Definition{
		Name:   "bookingsForFirstPhone",
		Path:   "/api/bookings/user/{{.phone}}",
		Expect: []string{"success"},
	}.Build(map[string]checks.Target{"backend": {Client: f.env.Backend}}, map[string]string{"phone": "6371448994"})
	require.NoError(t, err)
	f.env.Extra = []step.Step{extra}

	r, err := NewRegistry(Definition{
		Name:  "smoke",
		Steps: []string{constants.StepBackendHealth, "bookingsForFirstPhone", constants.StepWebsocket},
	})
	require.NoError(t, err)
	s, err := r.Build("smoke", f.env)
	require.NoError(t, err)

	rs, err := runner.New().Run(context.Background(), s.Steps)
	require.NoError(t, err)
	assert.True(t, rs.AllPassed())
	assert.Equal(t, "bookingsForFirstPhone", rs.Outcomes()[1].Name)

	_, err = NewRegistry(Definition{Name: "broken", Steps: []string{"a", "a"}})
	assert.ErrorContains(t, err, "duplicate step")
}

func TestCustomSuiteOverridesBuiltin(t *testing.T) {
	r, err := NewRegistry(Definition{Name: "final", Steps: []string{constants.StepWebsocket}})
	require.NoError(t, err)
	d, ok := r.Lookup("final")
	require.True(t, ok)
	assert.Equal(t, []string{constants.StepWebsocket}, d.Steps)
}

func TestDefinitionValidate(t *testing.T) {
	cases := map[string]Definition{
		"name is required":       {Steps: []string{"x"}},
		"invalid target":         {Name: "a", Target: "remote", Steps: []string{"x"}},
		"must target local":      {Name: "a", Managed: true, Steps: []string{"x"}},
		"no steps":               {Name: "a"},
		"recorded automatically": {Name: "a", Steps: []string{constants.StepServerStart}},
		"empty step name":        {Name: "a", Steps: []string{" "}},
	}
	for want, d := range cases {
		assert.ErrorContains(t, d.Validate(), want)
	}
	assert.NoError(t, Definition{Name: "a", Target: "LOCAL", Managed: true, Steps: []string{"x"}}.Validate())
}
