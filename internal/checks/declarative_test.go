package checks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loykin/pushprobe/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefinition_FromYAML(t *testing.T) {
	var gotBody map[string]any
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Probe")
		if r.Method == http.MethodPost {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &gotBody)
		}
		switch r.URL.Path {
		case "/api/bookings/user/6371448994":
			_, _ = w.Write([]byte(`{"success":true,"bookings":[{"status":"pending"},{"status":"done"}]}`))
		case "/api/echo":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"ok":true,"kind":"booking"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	doc := `
- name: userBookingsCount
  path: /api/bookings/user/{{.phone}}
  headers:
    X-Probe: "{{.run}}"
  expect: ["success", "bookings.#"]
  detail_from:
    count: "bookings.#"
    first: "bookings.0.status"
- name: echo
  method: post
  path: /api/echo
  body:
    phone: "{{.phone}}"
    nested: {n: 1}
  result_code: ["201"]
  expect: ["kind==booking"]
`
	var defs []Definition
	require.NoError(t, yaml.Unmarshal([]byte(doc), &defs))
	targets := map[string]Target{"backend": {Client: client(t, srv.URL)}}
	vars := map[string]string{"phone": "6371448994", "run": "r1"}

	steps, err := BuildAll(defs, targets, vars)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	o := run(t, steps[0])
	require.True(t, o.Passed, "%v", o.Detail)
	assert.Equal(t, "r1", gotHeader)
	d := o.Detail.(step.Details)
	assert.EqualValues(t, 2, d["count"])
	assert.Equal(t, "pending", d["first"])

	o = run(t, steps[1])
	require.True(t, o.Passed, "%v", o.Detail)
	assert.Equal(t, "6371448994", gotBody["phone"])
	assert.EqualValues(t, 1, gotBody["nested"].(map[string]any)["n"])
}

func TestDefinition_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"count":0}`))
	}))
	defer srv.Close()
	targets := map[string]Target{"backend": {Client: client(t, srv.URL)}}

	cases := []struct {
		name string
		def  Definition
	}{
		{"falsy flag", Definition{Name: "a", Path: "/x", Expect: []string{"success"}}},
		{"zero number", Definition{Name: "b", Path: "/x", Expect: []string{"count"}}},
		{"missing path", Definition{Name: "c", Path: "/x", Expect: []string{"nope"}}},
		{"wrong value", Definition{Name: "d", Path: "/x", Expect: []string{"success==true"}}},
		{"status not allowed", Definition{Name: "e", Path: "/x", ResultCode: []string{"201"}}},
		{"detail missing fail", Definition{Name: "f", Path: "/x", DetailFrom: map[string]string{"id": "id"}, DetailMissing: "fail"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := tc.def.Build(targets, nil)
			require.NoError(t, err)
			assert.False(t, run(t, s).Passed)
		})
	}
}

func TestDefinition_BuildErrors(t *testing.T) {
	targets := map[string]Target{"backend": {Client: client(t, "http://localhost:1")}}
	bad := []Definition{
		{Path: "/x"},
		{Name: "a", Target: "provider", Path: "/x"},
		{Name: "b", Method: "DELETE", Path: "/x"},
		{Name: "c", Path: "/x/{{.missing}}"},
		{Name: "d", Path: "/x", ResultCode: []string{"ok"}},
	}
	for _, d := range bad {
		_, err := d.Build(targets, map[string]string{})
		assert.Error(t, err, "%+v", d)
	}
}
