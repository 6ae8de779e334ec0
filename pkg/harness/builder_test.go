package harness

import (
	"testing"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/scenario"
	"github.com/stretchr/testify/require"
)

func oneValidatorTopology() scenario.Topology {
	return scenario.Topology{
		Validators: []scenario.NodeDescriptor{{Role: scenario.RoleValidator, Index: 0}},
	}
}

func TestBuildRequiresRunDuration(t *testing.T) {
	_, err := NewScenarioBuilder().TopologyWith(oneValidatorTopology()).Build()
	require.Error(t, err)
	require.IsType(t, &BuildError{}, err)
}

func TestBuildRequiresTopology(t *testing.T) {
	_, err := NewScenarioBuilder().WithRunDuration(time.Minute).Build()
	require.Error(t, err)
}

func TestBuildSucceedsWithTopologyAndDuration(t *testing.T) {
	s, err := NewScenarioBuilder().
		TopologyWith(oneValidatorTopology()).
		WithRunDuration(time.Minute).
		Build()
	require.NoError(t, err)
	require.False(t, s.RequiresNodeControl())
}

func TestEnableNodeControlPreservesPriorConfiguration(t *testing.T) {
	s, err := NewScenarioBuilder().
		TopologyWith(oneValidatorTopology()).
		WithRunDuration(time.Minute).
		EnableNodeControl().
		Build()
	require.NoError(t, err)
	require.True(t, s.RequiresNodeControl())
	require.Len(t, s.Topology().Validators, 1)
	require.Equal(t, time.Minute, s.RunDuration())
}

func TestTopologyRejectsZeroValidators(t *testing.T) {
	_, err := NewScenarioBuilder().
		TopologyWith(scenario.Topology{}).
		WithRunDuration(time.Minute).
		Build()
	require.Error(t, err)
}
