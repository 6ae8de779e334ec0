// Package blockfeed tails one node's consensus tip and broadcasts confirmed
// blocks, in ancestor-first order, to every subscriber.
package blockfeed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// PollInterval is the scanner's sleep between catch-up passes.
const PollInterval = time.Second

// Source is the minimal node surface the scanner needs. nodeclient.Client
// satisfies it.
type Source interface {
	Tip(ctx context.Context) (scenario.HeaderID, uint64, error)
	Block(ctx context.Context, id scenario.HeaderID) (*scenario.Block, error)
}

// Stats is a BlockStats-equivalent: a monotonically increasing counter of
// transactions observed across every block the scanner has emitted.
type Stats struct {
	totalTransactions atomic.Uint64
}

func (s *Stats) recordBlock(b *scenario.Block) {
	var txs uint64
	for _, op := range b.Ops {
		if op.Kind == scenario.OpLedgerOutput {
			txs++
		}
	}
	if txs > 0 {
		s.totalTransactions.Add(txs)
	}
}

// TotalTransactions returns the running total of transaction outputs seen.
func (s *Stats) TotalTransactions() uint64 { return s.totalTransactions.Load() }

// Feed is a handle to a running scanner goroutine and its broadcast broker.
type Feed struct {
	broker *broker
	stats  *Stats
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe creates an independent receiver. Safe to call at any point in the
// feed's lifetime; subscribers created before Start returns still observe
// the full sequence from the feed's start-up barrier onward.
func (f *Feed) Subscribe() *Subscription {
	return f.broker.subscribe()
}

// Stats exposes the feed's running counters.
func (f *Feed) Stats() *Stats { return f.stats }

// Cleanup stops the scanner goroutine and closes every subscriber channel.
// Implements the CleanupGuard contract (C9): safe to call more than once.
func (f *Feed) Cleanup(ctx context.Context) error {
	f.cancel()
	<-f.done
	f.broker.close()
	return nil
}

// SpawnBlockFeed performs one synchronous catch-up against source before
// returning, then starts the long-lived scanner goroutine. heightBudget
// bounds how far back a single catch-up pass will walk parents (0 means
// "use a sane default" — see scanner.go).
func SpawnBlockFeed(ctx context.Context, source Source, log *reporting.Logger, heightBudget uint64) (*Feed, error) {
	scanCtx, cancel := context.WithCancel(ctx)

	f := &Feed{
		broker: newBroker(),
		stats:  &Stats{},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	sc := &scanner{
		source:       source,
		feed:         f,
		seen:         make(map[scenario.HeaderID]struct{}),
		heightBudget: heightBudget,
		log:          log,
	}

	// Start-up barrier: one synchronous catch-up so a subscriber created
	// immediately after Spawn returns sees the node's current history.
	if err := sc.catchUp(ctx); err != nil {
		cancel()
		close(f.done)
		return nil, err
	}

	go func() {
		defer close(f.done)
		sc.run(scanCtx)
	}()

	return f, nil
}
