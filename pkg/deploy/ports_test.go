package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jihwankim/nomos-harness/pkg/config"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

func testHarnessConfig() config.HarnessConfig {
	return config.HarnessConfig{
		BaseNetworkPort: 18000,
		BaseDAPort:      18100,
		BaseBlendPort:   18200,
		BaseAPIPort:     18300,
		BaseTestingPort: 18400,
	}
}

func TestResolvedTopologyFillsZeroPorts(t *testing.T) {
	topo := scenario.Topology{
		Validators: []scenario.NodeDescriptor{
			{Role: scenario.RoleValidator, Index: 0},
			{Role: scenario.RoleValidator, Index: 1},
		},
		Executors: []scenario.NodeDescriptor{
			{Role: scenario.RoleExecutor, Index: 0},
		},
	}

	resolved := resolvedTopology(topo, testHarnessConfig())

	assert.Equal(t, 18300, resolved.Validators[0].APIPort)
	assert.Equal(t, 18301, resolved.Validators[1].APIPort)
	assert.Equal(t, 18300+executorPortOffset, resolved.Executors[0].APIPort)
	assert.NotEqual(t, resolved.Validators[0].APIPort, resolved.Executors[0].APIPort)
}

func TestResolvedTopologyPreservesExplicitPorts(t *testing.T) {
	topo := scenario.Topology{
		Validators: []scenario.NodeDescriptor{
			{Role: scenario.RoleValidator, Index: 0, APIPort: 9999},
		},
	}

	resolved := resolvedTopology(topo, testHarnessConfig())

	assert.Equal(t, 9999, resolved.Validators[0].APIPort)
	// Unset fields on the same node still get filled in.
	assert.Equal(t, 18000, resolved.Validators[0].NetworkPort)
}
