package step

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc_Execute(t *testing.T) {
	s := New("backendHealth", func(context.Context) (bool, any, error) {
		return true, Details{"status": "OK"}, nil
	})
	assert.Equal(t, "backendHealth", s.Name())

	o, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "backendHealth", o.Name)
	assert.True(t, o.Passed)
	assert.Equal(t, Details{"status": "OK"}, o.Detail)
}

func TestFunc_ExecuteError(t *testing.T) {
	boom := errors.New("boom")
	s := New("x", func(context.Context) (bool, any, error) { return false, nil, boom })
	_, err := s.Execute(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPassFail(t *testing.T) {
	assert.True(t, Pass("a", nil).Passed)
	assert.False(t, Fail("a", "no").Passed)
	assert.Equal(t, "no", Fail("a", "no").Detail)
	assert.Equal(t, Outcome{Name: "b", Passed: true}, Result("b", true, nil))
}
