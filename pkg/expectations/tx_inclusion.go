package expectations

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/jihwankim/nomos-harness/pkg/runtime/blockfeed"
	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

const minTxInclusionRatio = 0.5

// TxInclusion passes when at least half of the planned self-transfer
// transactions land an output to one of the tracked wallet keys (§4.4.2).
type TxInclusion struct {
	TxsPerBlock uint64
	UserLimit   int

	observed atomic.Uint64
	expected uint64
	captured bool
	sub      *blockfeed.Subscription
}

// NewTxInclusion builds the expectation with the same rate/user-limit
// parameters configured on the transaction workload it accompanies.
func NewTxInclusion(txsPerBlock uint64, userLimit int) *TxInclusion {
	return &TxInclusion{TxsPerBlock: txsPerBlock, UserLimit: userLimit}
}

func (e *TxInclusion) Name() string { return "tx_inclusion" }

// StartCapture plans the same way the transaction workload does, tracks the
// first `planned` wallet public keys, and spawns a capture goroutine over a
// fresh block-feed subscription.
func (e *TxInclusion) StartCapture(ctx context.Context, rc *runcontext.RunContext) error {
	if e.captured {
		return nil
	}

	wallets := rc.Wallets().Accounts
	if len(wallets) == 0 {
		return fmt.Errorf("%s: requires seeded wallet accounts", e.Name())
	}

	available := scenario.LimitedUserCount(e.UserLimit, len(wallets))
	planned, _, err := scenario.SubmissionPlan(rc.RunDuration(), rc.RunMetrics().BlockIntervalHint, e.TxsPerBlock, available)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Name(), err)
	}

	tracked := make(map[[32]byte]struct{}, planned)
	for _, acc := range wallets[:planned] {
		tracked[acc.PublicKey] = struct{}{}
	}

	e.expected = uint64(planned)
	e.sub = rc.BlockFeed().Subscribe()
	go e.capture(tracked)
	e.captured = true
	return nil
}

func (e *TxInclusion) capture(tracked map[[32]byte]struct{}) {
	for {
		rec, ok := e.sub.Recv()
		if !ok {
			return
		}
		if rec.Block.IsGenesis {
			continue
		}
		for _, op := range rec.Block.Ops {
			if op.Kind != scenario.OpLedgerOutput {
				continue
			}
			if _, hit := tracked[op.OutputKey]; hit {
				e.observed.Add(1)
			}
		}
	}
}

// Evaluate passes iff observed >= ceil(planned * 0.5).
func (e *TxInclusion) Evaluate(ctx context.Context, rc *runcontext.RunContext) error {
	if !e.captured {
		return fmt.Errorf("%s: not captured", e.Name())
	}
	observed := e.observed.Load()
	required := uint64(math.Ceil(float64(e.expected) * minTxInclusionRatio))
	if observed >= required {
		return nil
	}
	return fmt.Errorf("%s: observed %d inclusions below required %d (planned %d)", e.Name(), observed, required, e.expected)
}
