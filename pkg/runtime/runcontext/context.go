// Package runcontext defines the RunContext (C3): the immutable bundle of
// collaborators shared by every workload and expectation during one run.
package runcontext

import (
	"time"

	"github.com/jihwankim/nomos-harness/pkg/runtime/blockfeed"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodecontrol"
	"github.com/jihwankim/nomos-harness/pkg/runtime/telemetry"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// RunContext is constructed exactly once per run, by a Deployer, and is
// never mutated afterward. It is safe to share by reference across every
// workload and expectation goroutine.
type RunContext struct {
	topology    scenario.Topology
	wallets     scenario.WalletConfig
	clients     *nodeclient.Cluster
	feed        *blockfeed.Feed
	telemetry   *telemetry.Sink
	nodeControl nodecontrol.Handle
	runDuration time.Duration
	runMetrics  scenario.RunMetrics
}

// Option configures a RunContext at construction time; deployers compose
// these rather than poking at exported fields (there are none).
type Option func(*RunContext)

func WithNodeControl(h nodecontrol.Handle) Option {
	return func(rc *RunContext) { rc.nodeControl = h }
}

// New builds a RunContext. runDuration and blockIntervalHint feed
// scenario.ComputeRunMetrics to derive the expected-consensus-blocks metric
// exposed via RunMetrics().
func New(
	topology scenario.Topology,
	clients *nodeclient.Cluster,
	feed *blockfeed.Feed,
	sink *telemetry.Sink,
	runDuration time.Duration,
	blockIntervalHint time.Duration,
	opts ...Option,
) *RunContext {
	rc := &RunContext{
		topology:    topology,
		clients:     clients,
		feed:        feed,
		telemetry:   sink,
		runDuration: runDuration,
		runMetrics:  scenario.ComputeRunMetrics(runDuration, blockIntervalHint),
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// WithWallets attaches the scenario's genesis wallet configuration; deployers
// set this from Scenario.Wallets() before handing the context to the runner.
func WithWallets(w scenario.WalletConfig) Option {
	return func(rc *RunContext) { rc.wallets = w }
}

func (rc *RunContext) Topology() scenario.Topology     { return rc.topology }
func (rc *RunContext) Wallets() scenario.WalletConfig  { return rc.wallets }
func (rc *RunContext) Clients() *nodeclient.Cluster    { return rc.clients }
func (rc *RunContext) BlockFeed() *blockfeed.Feed      { return rc.feed }
func (rc *RunContext) Telemetry() *telemetry.Sink      { return rc.telemetry }
func (rc *RunContext) RunDuration() time.Duration      { return rc.runDuration }
func (rc *RunContext) RunMetrics() scenario.RunMetrics { return rc.runMetrics }

// NodeControl returns the node-control handle and whether one is present.
// Workloads that require it (chaos restart) must check ok; the scenario
// builder's capability typing should make ok==false unreachable in practice
// for a scenario that actually declares NodeControlCapability, but workloads
// still check defensively rather than trusting the type system across a
// process boundary (e.g. a hand-built RunContext in a test).
func (rc *RunContext) NodeControl() (nodecontrol.Handle, bool) {
	if rc.nodeControl == nil {
		return nil, false
	}
	return rc.nodeControl, true
}
