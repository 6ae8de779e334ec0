package harness

import (
	"time"

	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// Scenario is immutable once built (C6). Caps is a compile-time capability
// witness. Deployer implementations are generic over Caps too; a backend
// that cannot supply the capability rejects the Scenario in Deploy, before
// standing anything up (see pkg/deploy).
type Scenario[Caps scenario.Capability] struct {
	caps        Caps
	topology    scenario.Topology
	workloads   []Workload
	expectations []Expectation
	runDuration time.Duration
	wallets     scenario.WalletConfig
}

func (s *Scenario[Caps]) Topology() scenario.Topology           { return s.topology }
func (s *Scenario[Caps]) Workloads() []Workload                 { return s.workloads }
func (s *Scenario[Caps]) Expectations() []Expectation           { return s.expectations }
func (s *Scenario[Caps]) RunDuration() time.Duration            { return s.runDuration }
func (s *Scenario[Caps]) Wallets() scenario.WalletConfig        { return s.wallets }
func (s *Scenario[Caps]) Capabilities() Caps                    { return s.caps }
func (s *Scenario[Caps]) RequiresNodeControl() bool             { return s.caps.RequiresNodeControl() }
