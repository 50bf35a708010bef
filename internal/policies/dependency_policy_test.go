package policies

import (
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipeline-bundles/internal/core"
	"pipeline-bundles/internal/types"
)

func TestDependencyFailurePolicyModes(t *testing.T) {
	policy, err := NewDependencyFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, types.DependencyFailureAbort, policy.Mode)

	policy, err = NewDependencyFailurePolicy(" Aggregate ")
	require.NoError(t, err)
	assert.Equal(t, types.DependencyFailureAggregate, policy.Mode)

	_, err = NewDependencyFailurePolicy("retry")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestDependencyFailurePolicyAbort(t *testing.T) {
	policy, err := NewDependencyFailurePolicy("abort")
	require.NoError(t, err)
	ref := types.EnvironmentReference{Environment: "shot_step", Role: types.RoleEngine, Name: "tk-maya"}

	require.NoError(t, policy.Handle(ref, nil))
	stop := policy.Handle(ref, core.FetchError("sgd:git:repo:v1.0.0", "clone failed", nil))
	require.Error(t, stop)
	assert.True(t, core.IsKind(stop, core.ErrorKindFetch))
	assert.Contains(t, stop.Error(), `engine dependency "tk-maya" in environment shot_step`)
	assert.NoError(t, policy.Err())
}

func TestDependencyFailurePolicyAggregate(t *testing.T) {
	policy, err := NewDependencyFailurePolicy("aggregate")
	require.NoError(t, err)

	first := core.FetchError("sgd:git:a:v1.0.0", "clone failed", nil)
	second := core.ManifestError("sgd:git:b:v1.0.0", "no manifest", nil)
	require.NoError(t, policy.Handle(types.EnvironmentReference{Environment: "project", Role: types.RoleApplication, Name: "a"}, first))
	require.NoError(t, policy.Handle(types.EnvironmentReference{Environment: "project", Role: types.RoleFramework, Name: "b"}, second))
	assert.Equal(t, 2, policy.Failures())

	joined := policy.Err()
	require.Error(t, joined)
	assert.True(t, errors.Is(joined, first))
	assert.True(t, errors.Is(joined, second))
}
