package blockfeed

import (
	"context"
	"errors"

	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// defaultHeightBudget bounds a single catch-up walk when the caller does not
// specify one, so a scanner that falls far behind a fast chain does not walk
// back to genesis every poll.
const defaultHeightBudget = 4096

// scanner owns all mutable catch-up state; it is read/written only from the
// single goroutine spawned in feed.go, so it needs no internal locking.
type scanner struct {
	source       Source
	feed         *Feed
	seen         map[scenario.HeaderID]struct{}
	heightBudget uint64
	log          *reporting.Logger
}

// run is the long-lived poll loop: catch up, sleep, repeat. It never returns
// except via ctx cancellation; node errors during catch-up are logged and
// retried on the next tick.
func (s *scanner) run(ctx context.Context) {
	ticker := newInterruptibleTicker(PollInterval)
	defer ticker.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.c:
		}

		if err := s.catchUp(ctx); err != nil {
			if s.log != nil {
				s.log.Debug("block feed catch-up failed, will retry next poll", "error", err.Error())
			}
		}
	}
}

// catchUp queries the current tip, walks parents back until it hits a seen
// block, a self-reference, or its height budget, then emits the gathered
// blocks in ancestor-first order.
func (s *scanner) catchUp(ctx context.Context) error {
	tipID, _, err := s.source.Tip(ctx)
	if err != nil {
		return err
	}
	if _, ok := s.seen[tipID]; ok {
		return nil
	}

	var stack []*scenario.Block
	current := tipID
	remaining := s.heightBudget
	if remaining == 0 {
		remaining = defaultHeightBudget
	}

	for {
		if _, ok := s.seen[current]; ok {
			break
		}
		block, err := s.fetchBlockWithRetry(ctx, current)
		if err != nil {
			return err
		}
		if block == nil {
			break
		}
		stack = append(stack, block)
		if block.IsGenesis || block.Parent == current {
			// Genesis, or a self-referencing parent: stop walking.
			break
		}
		if remaining == 0 {
			break
		}
		remaining--
		current = block.Parent
	}

	for i := len(stack) - 1; i >= 0; i-- {
		block := stack[i]
		if _, ok := s.seen[block.Header]; ok {
			continue
		}
		s.seen[block.Header] = struct{}{}
		s.feed.stats.recordBlock(block)
		s.feed.broker.publish(&scenario.BlockRecord{Header: block.Header, Block: block})
	}
	return nil
}

// fetchBlockWithRetry fetches a block, retrying once on decode/transport
// error before surfacing it for diagnostics.
func (s *scanner) fetchBlockWithRetry(ctx context.Context, id scenario.HeaderID) (*scenario.Block, error) {
	block, err := s.source.Block(ctx, id)
	if err == nil {
		return block, nil
	}
	block, err2 := s.source.Block(ctx, id)
	if err2 == nil {
		return block, nil
	}
	return nil, errors.Join(err, err2)
}
