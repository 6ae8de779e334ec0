// Package deploy implements the Deployer abstraction (C8): the interface
// that turns a built Scenario into a running Runner, and the three backends
// (local, compose, Kubernetes-via-Helm) that share the post-deploy assembly
// path described in §4.8 while differing only in how they stand up nodes and
// supply (or withhold) node control.
package deploy

import (
	"context"
	"fmt"

	"github.com/jihwankim/nomos-harness/pkg/core/runner"
	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// Deployer turns a built scenario into a Runner bound to a live cluster.
// Deploy's contract (§4.8): stand up every node, construct clients and
// telemetry, start the block feed, construct a NodeControlHandle if Caps
// requires one, and package everything into a Runner backed by a
// CleanupStack that tears down exactly what this call stood up.
type Deployer[Caps scenario.Capability] interface {
	Deploy(ctx context.Context, sc *harness.Scenario[Caps]) (*runner.Runner, error)
}

// DeployError is the taxonomy member for every deployer-specific failure:
// unsupported topology/capability, backend unavailable, workspace setup
// failed, image missing, readiness timeout (§7). Every variant reaching a
// caller satisfies this type via errors.As.
type DeployError struct {
	Backend string
	Op      string
	Err     error
}

func (e *DeployError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deploy(%s): %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("deploy(%s): %s", e.Backend, e.Op)
}

func (e *DeployError) Unwrap() error { return e.Err }

func deployErrorf(backend, op string, err error) error {
	return &DeployError{Backend: backend, Op: op, Err: err}
}

// capabilityAware is satisfied by every Scenario[Caps] instantiation
// regardless of Caps (the method itself is Caps-independent — see
// harness.Scenario.RequiresNodeControl).
type capabilityAware interface {
	RequiresNodeControl() bool
}

// rejectUnsupportedNodeControl implements testable property #2 (§8):
// deploying a node-control-requiring scenario against a backend that cannot
// supply a NodeControlHandle fails at Deploy time, never at run time.
func rejectUnsupportedNodeControl(backend string, sc capabilityAware) error {
	if sc.RequiresNodeControl() {
		return deployErrorf(backend, "capability", fmt.Errorf("backend does not support node control"))
	}
	return nil
}
