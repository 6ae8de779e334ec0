// Package harness ties the scenario data model (pkg/scenario) and the run
// context (pkg/runtime/runcontext) together: the Workload/Expectation
// contracts, the capability-typed Scenario/Builder (C6), and the errors
// raised before any side effect is observed by the cluster.
package harness

import (
	"context"

	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// Expectation is a pluggable observer (C4). StartCapture is called once,
// before any workload runs, and typically subscribes to the block feed.
// Evaluate is called after the run window ends (or all workloads complete).
type Expectation interface {
	Name() string
	StartCapture(ctx context.Context, rc *runcontext.RunContext) error
	Evaluate(ctx context.Context, rc *runcontext.RunContext) error
}

// Workload is a pluggable producer of cluster load (C5). Init runs
// synchronously after deployment and before any workload's Start, so an Init
// error aborts the run before any workload side effect reaches the cluster;
// Start runs until completion or cancellation by the runner's deadline.
type Workload interface {
	Name() string
	Expectations() []Expectation
	Init(topology scenario.Topology, metrics scenario.RunMetrics) error
	Start(ctx context.Context, rc *runcontext.RunContext) error
}
