package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vumi/msgstore/internal/storeerr"
)

func TestVersionOfDefaultsToZero(t *testing.T) {
	require.Equal(t, 0, VersionOf(map[string]any{"foo": "bar"}))
}

func TestVersionOfAcceptsJSONNumericKinds(t *testing.T) {
	require.Equal(t, 2, VersionOf(map[string]any{VersionField: 2}))
	require.Equal(t, 2, VersionOf(map[string]any{VersionField: int64(2)}))
	require.Equal(t, 2, VersionOf(map[string]any{VersionField: float64(2)}))
}

func TestApplyForwardWalksEachStep(t *testing.T) {
	m := Migrators{Forward: map[int]Step{
		0: func(raw map[string]any) (map[string]any, error) {
			raw["added_in_v1"] = true
			return raw, nil
		},
		1: func(raw map[string]any) (map[string]any, error) {
			raw["added_in_v2"] = true
			return raw, nil
		},
	}}

	out, err := m.ApplyForward(map[string]any{"k": "v"}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, VersionOf(out))
	require.Equal(t, true, out["added_in_v1"])
	require.Equal(t, true, out["added_in_v2"])
}

func TestApplyForwardNoopWhenAlreadyCurrent(t *testing.T) {
	m := Migrators{}
	raw := map[string]any{VersionField: 3}
	out, err := m.ApplyForward(raw, 3)
	require.NoError(t, err)
	require.Equal(t, raw, out)
}

func TestApplyForwardMissingStepIsFatal(t *testing.T) {
	m := Migrators{Forward: map[int]Step{}}
	_, err := m.ApplyForward(map[string]any{}, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, storeerr.ErrMigrationFailed))
}

func TestApplyForwardRejectsNewerThanTarget(t *testing.T) {
	m := Migrators{}
	_, err := m.ApplyForward(map[string]any{VersionField: 5}, 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, storeerr.ErrMigrationFailed))
}

func TestApplyReverseWalksEachStep(t *testing.T) {
	m := Migrators{Reverse: map[int]Step{
		2: func(raw map[string]any) (map[string]any, error) {
			delete(raw, "added_in_v2")
			return raw, nil
		},
	}}
	raw := map[string]any{VersionField: 2, "added_in_v2": true}
	out, err := m.ApplyReverse(raw, 1)
	require.NoError(t, err)
	require.Equal(t, 1, VersionOf(out))
	_, stillPresent := out["added_in_v2"]
	require.False(t, stillPresent)
}

func TestApplyReverseMissingStepIsFatal(t *testing.T) {
	m := Migrators{Reverse: map[int]Step{}}
	_, err := m.ApplyReverse(map[string]any{VersionField: 1}, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, storeerr.ErrMigrationFailed))
}
