package deploy

import (
	"github.com/jihwankim/nomos-harness/pkg/config"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// resolvedTopology returns a copy of t with every node's zero-valued ports
// filled in from cfg's per-role base ports (base + role-relative index), so
// a scenario built without caring about transport details still gets a
// deployable topology. A scenario that set its own ports (e.g. to avoid a
// collision) is left untouched.
func resolvedTopology(t scenario.Topology, cfg config.HarnessConfig) scenario.Topology {
	out := t
	out.Validators = make([]scenario.NodeDescriptor, len(t.Validators))
	for i, v := range t.Validators {
		out.Validators[i] = fillPorts(v, i, cfg)
	}
	out.Executors = make([]scenario.NodeDescriptor, len(t.Executors))
	for i, e := range t.Executors {
		// Offset executors past the validator port range so a single-host
		// deploy (the local backend) never double-binds a port when both
		// roles are present.
		out.Executors[i] = fillPorts(e, executorPortOffset+i, cfg)
	}
	return out
}

// executorPortOffset pushes executor ports well past any realistic
// validator count so the two ranges never overlap on a single host.
const executorPortOffset = 1000

func fillPorts(d scenario.NodeDescriptor, index int, cfg config.HarnessConfig) scenario.NodeDescriptor {
	if d.NetworkPort == 0 {
		d.NetworkPort = cfg.BaseNetworkPort + index
	}
	if d.DAPort == 0 {
		d.DAPort = cfg.BaseDAPort + index
	}
	if d.BlendPort == 0 {
		d.BlendPort = cfg.BaseBlendPort + index
	}
	if d.APIPort == 0 {
		d.APIPort = cfg.BaseAPIPort + index
	}
	if d.TestingPort == 0 {
		d.TestingPort = cfg.BaseTestingPort + index
	}
	return d
}
