package harness

import (
	"time"

	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// draft holds the mutable state shared by Builder and ChaosBuilder. Both
// builder types are thin, differently-shaped fluent facades over the same
// draft; EnableNodeControl hands the same draft to a ChaosBuilder so nothing
// already configured is lost.
type draft struct {
	topology        *scenario.Topology
	runDuration     time.Duration
	haveRunDuration bool
	wallets         scenario.WalletConfig
	workloads       []Workload
	expectations    []Expectation
	nodeControl     bool
	walletsErr      error
}

func (d *draft) validateCommon() error {
	if d.topology == nil {
		return buildErrorf("missing topology")
	}
	if err := d.topology.Validate(); err != nil {
		return buildErrorf("%v", err)
	}
	if !d.haveRunDuration {
		return buildErrorf("missing run duration")
	}
	return nil
}

// Builder is the base fluent builder producing Scenario[scenario.NoCapability].
// Defaults are never implicit: a missing run duration or topology is a
// BuildError, never silently defaulted.
type Builder struct{ d *draft }

// NewScenarioBuilder starts a new builder with the base (no-node-control)
// capability set.
func NewScenarioBuilder() *Builder {
	return &Builder{d: &draft{}}
}

// TopologyWith sets the scenario's topology.
func (b *Builder) TopologyWith(t scenario.Topology) *Builder {
	b.d.topology = &t
	return b
}

// WithRunDuration sets the run duration. Required: omitting this call makes
// Build fail.
func (b *Builder) WithRunDuration(d time.Duration) *Builder {
	b.d.runDuration = d
	b.d.haveRunDuration = true
	return b
}

// Wallets configures the genesis wallet with userCount deterministic
// accounts summing to exactly totalFunds.
func (b *Builder) Wallets(totalFunds uint64, userCount int) *Builder {
	wc, err := scenario.WalletConfigUniform(totalFunds, userCount)
	if err != nil {
		// Deferred to Build(): the wallet config is left empty and the
		// error is stashed on the draft for Build to return.
		b.d.wallets = scenario.WalletConfig{}
		b.d.walletsErr = err
		return b
	}
	b.d.wallets = wc
	return b
}

// ExpectConsensusLiveness adds the consensus-liveness expectation at the
// scenario level (as opposed to one contributed by a workload).
func (b *Builder) ExpectConsensusLiveness(e Expectation) *Builder {
	b.d.expectations = append(b.d.expectations, e)
	return b
}

// TransactionsWith adds a pre-built transaction workload.
func (b *Builder) TransactionsWith(w Workload) *Builder {
	b.d.workloads = append(b.d.workloads, w)
	return b
}

// DAWith adds a pre-built data-availability workload.
func (b *Builder) DAWith(w Workload) *Builder {
	b.d.workloads = append(b.d.workloads, w)
	return b
}

// EnableNodeControl upgrades the builder to one whose Caps requires node
// control, unlocking Chaos/ChaosWith. Everything already configured on b is
// preserved.
func (b *Builder) EnableNodeControl() *ChaosBuilder {
	b.d.nodeControl = true
	return &ChaosBuilder{d: b.d}
}

// Build validates and freezes the draft into a Scenario[scenario.NoCapability].
func (b *Builder) Build() (*Scenario[scenario.NoCapability], error) {
	if b.d.walletsErr != nil {
		return nil, buildErrorf("%v", b.d.walletsErr)
	}
	if err := b.d.validateCommon(); err != nil {
		return nil, err
	}
	return &Scenario[scenario.NoCapability]{
		caps:         scenario.NoCapability{},
		topology:     *b.d.topology,
		workloads:    b.d.workloads,
		expectations: b.d.expectations,
		runDuration:  b.d.runDuration,
		wallets:      b.d.wallets,
	}, nil
}

// ChaosBuilder is returned by Builder.EnableNodeControl; only it exposes
// Chaos/ChaosWith, so a chaos-restart workload can never be attached to a
// scenario that was not built through this path — the compiler enforces the
// "chaos needs node control" rule named in §4.6, because ChaosWith simply
// does not exist on *Builder.
type ChaosBuilder struct{ d *draft }

func (b *ChaosBuilder) TopologyWith(t scenario.Topology) *ChaosBuilder {
	b.d.topology = &t
	return b
}

func (b *ChaosBuilder) WithRunDuration(d time.Duration) *ChaosBuilder {
	b.d.runDuration = d
	b.d.haveRunDuration = true
	return b
}

func (b *ChaosBuilder) Wallets(totalFunds uint64, userCount int) *ChaosBuilder {
	wc, err := scenario.WalletConfigUniform(totalFunds, userCount)
	if err != nil {
		b.d.walletsErr = err
		return b
	}
	b.d.wallets = wc
	return b
}

func (b *ChaosBuilder) ExpectConsensusLiveness(e Expectation) *ChaosBuilder {
	b.d.expectations = append(b.d.expectations, e)
	return b
}

func (b *ChaosBuilder) TransactionsWith(w Workload) *ChaosBuilder {
	b.d.workloads = append(b.d.workloads, w)
	return b
}

func (b *ChaosBuilder) DAWith(w Workload) *ChaosBuilder {
	b.d.workloads = append(b.d.workloads, w)
	return b
}

// ChaosWith adds a pre-built chaos-restart workload. Only reachable once
// EnableNodeControl has been called.
func (b *ChaosBuilder) ChaosWith(w Workload) *ChaosBuilder {
	b.d.workloads = append(b.d.workloads, w)
	return b
}

// Build validates and freezes the draft into a Scenario[scenario.NodeControlCapability].
func (b *ChaosBuilder) Build() (*Scenario[scenario.NodeControlCapability], error) {
	if b.d.walletsErr != nil {
		return nil, buildErrorf("%v", b.d.walletsErr)
	}
	if err := b.d.validateCommon(); err != nil {
		return nil, err
	}
	return &Scenario[scenario.NodeControlCapability]{
		caps:         scenario.NodeControlCapability{},
		topology:     *b.d.topology,
		workloads:    b.d.workloads,
		expectations: b.d.expectations,
		runDuration:  b.d.runDuration,
		wallets:      b.d.wallets,
	}, nil
}
