package runner

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/leapstack-labs/queryrunner/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner is a minimal QueryRunner that records the configuration it was built with.
type stubRunner struct {
	typ string
	cfg map[string]any
}

func (s *stubRunner) Name() string                                   { return "Stub" }
func (s *stubRunner) Type() string                                   { return s.typ }
func (s *stubRunner) ConfigurationSchema() *core.ConfigurationSchema { return stubSchema() }
func (s *stubRunner) Enabled() bool                                  { return true }
func (s *stubRunner) AnnotateQuery() bool                            { return false }
func (s *stubRunner) GetSchema(context.Context, bool) ([]core.TableSchema, error) {
	return nil, nil
}
func (s *stubRunner) RunQuery(context.Context, string, *core.User) (string, error) {
	return `{"columns":[],"rows":[]}`, nil
}

func stubSchema() *core.ConfigurationSchema {
	s := core.NewConfigurationSchema()
	s.Properties["host"] = core.Property{Type: core.PropertyString}
	s.Properties["schema"] = core.Property{Type: core.PropertyString, Default: "default"}
	s.Required = []string{"host"}
	return s
}

func stubDescriptor(typ string, availability Availability) Descriptor {
	return Descriptor{
		Type:         typ,
		Name:         "Stub " + typ,
		Availability: availability,
		Schema:       stubSchema(),
		Factory: func(cfg map[string]any, _ *slog.Logger) (QueryRunner, error) {
			return &stubRunner{typ: typ, cfg: cfg}, nil
		},
	}
}

func TestUnknownRunnerError_Error(t *testing.T) {
	err := &UnknownRunnerError{
		Type:      "fake_db",
		Available: []string{"drill"},
	}

	msg := err.Error()

	assert.Contains(t, msg, "fake_db", "error should mention the unknown type")
	assert.Contains(t, msg, "drill", "error should list available runners")
	assert.Contains(t, msg, "queryrunner.yaml", "error should mention config file")
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry(nil)

	require.NoError(t, reg.Register(stubDescriptor("stub", Available())))

	assert.True(t, reg.IsRegistered("stub"))
	assert.True(t, reg.IsRegistered("STUB"), "lookup should be case-insensitive")

	d, ok := reg.Get("stub")
	require.True(t, ok)
	assert.Equal(t, "Stub stub", d.Name)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(stubDescriptor("stub", Available())))

	second := stubDescriptor("Stub", Unavailable("other"))
	second.Name = "Replacement"
	err := reg.Register(second)

	var dup *DuplicateRunnerError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "stub", dup.Type)

	d, _ := reg.Get("stub")
	assert.Equal(t, "Stub stub", d.Name, "existing entry must be kept")
	assert.True(t, d.Enabled())
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	reg := NewRegistry(nil)

	err := reg.Register(Descriptor{Type: "", Factory: stubDescriptor("x", Available()).Factory})
	require.Error(t, err)
	assert.Equal(t, "runner type not specified", err.Error())

	err = reg.Register(Descriptor{Type: "nofactory"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no factory")
}

func TestRegistry_ListAndActive(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(stubDescriptor("zeta", Available())))
	require.NoError(t, reg.Register(stubDescriptor("alpha", Unavailable("driver missing"))))
	require.NoError(t, reg.Register(stubDescriptor("mid", Available())))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Types())

	var active []string
	for _, d := range reg.Active() {
		active = append(active, d.Type)
	}
	assert.Equal(t, []string{"mid", "zeta"}, active, "disabled runners are excluded from the active set")
	assert.Len(t, reg.List(), 3, "Active must not modify the registry")
}

func TestRegistry_New(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(stubDescriptor("stub", Available())))
	require.NoError(t, reg.Register(stubDescriptor("off", Unavailable("driver \"drill\" not linked"))))

	t.Run("applies defaults", func(t *testing.T) {
		qr, err := reg.New("stub", map[string]any{"host": "localhost"})
		require.NoError(t, err)
		stub := qr.(*stubRunner)
		assert.Equal(t, "default", stub.cfg["schema"])
	})

	t.Run("empty type", func(t *testing.T) {
		_, err := reg.New("", nil)
		require.Error(t, err)
		assert.Equal(t, "runner type not specified", err.Error())
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := reg.New("mysql", nil)
		var unknown *UnknownRunnerError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, []string{"off", "stub"}, unknown.Available)
	})

	t.Run("disabled runner", func(t *testing.T) {
		_, err := reg.New("off", map[string]any{"host": "h"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfigurationUnavailable))
		assert.Contains(t, err.Error(), "not linked")
	})

	t.Run("invalid configuration", func(t *testing.T) {
		_, err := reg.New("stub", map[string]any{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid stub configuration")
		assert.Contains(t, err.Error(), `"host" is required`)
	})

	t.Run("factory error", func(t *testing.T) {
		d := stubDescriptor("broken", Available())
		d.Factory = func(map[string]any, *slog.Logger) (QueryRunner, error) {
			return nil, assert.AnError
		}
		require.NoError(t, reg.Register(d))

		_, err := reg.New("broken", map[string]any{"host": "h"})
		require.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "failed to create broken runner")
	})
}

func TestAvailability_String(t *testing.T) {
	assert.Equal(t, "available", Available().String())
	assert.Equal(t, "unavailable", Unavailable("").String())
	assert.Equal(t, "unavailable: no driver", Unavailable("no driver").String())
}
