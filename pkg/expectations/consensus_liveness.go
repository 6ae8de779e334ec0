// Package expectations implements the concrete expectation contracts (§4.4):
// consensus liveness, transaction inclusion, and DA inclusion.
package expectations

import (
	"context"
	"fmt"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
)

const (
	minProgressBlocks = 5
	requestRetries    = 5
	requestRetryDelay = 2 * time.Second
	maxLagAllowance   = 5
)

// ConsensusLiveness fails unless every node's best height ends within a lag
// window of the observed maximum, and the maximum itself clears a progress
// floor (§4.4.1).
type ConsensusLiveness struct {
	LagAllowance int
}

// NewConsensusLiveness builds the expectation with its configured (not yet
// clamped) lag allowance.
func NewConsensusLiveness(lagAllowance int) *ConsensusLiveness {
	return &ConsensusLiveness{LagAllowance: lagAllowance}
}

func (e *ConsensusLiveness) Name() string { return "consensus_liveness" }

// StartCapture is a no-op: this expectation only samples at Evaluate time.
func (e *ConsensusLiveness) StartCapture(ctx context.Context, rc *runcontext.RunContext) error {
	return nil
}

type nodeHeight struct {
	label  string
	height uint64
}

func (e *ConsensusLiveness) Evaluate(ctx context.Context, rc *runcontext.RunContext) error {
	clients := rc.Clients().AllClients()
	if len(clients) == 0 {
		return fmt.Errorf("%s: no node clients to evaluate", e.Name())
	}

	results := make([]nodeHeight, 0, len(clients))
	type outcome struct {
		nodeHeight
		err error
	}
	out := make(chan outcome, len(clients))
	for _, c := range clients {
		go func(c *nodeclient.Client) {
			height, _, err := fetchHeightWithRetry(ctx, c, requestRetries, requestRetryDelay)
			out <- outcome{nodeHeight{label: c.Node.String(), height: height}, err}
		}(c)
	}
	var firstErr error
	for range clients {
		o := <-out
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		results = append(results, o.nodeHeight)
	}
	if len(results) == 0 {
		return fmt.Errorf("%s: every node failed consensus_info after %d retries: %w", e.Name(), requestRetries, firstErr)
	}

	targetHint := rc.RunMetrics().ExpectedConsensusBlocks

	var maxH uint64
	for _, r := range results {
		if r.height > maxH {
			maxH = r.height
		}
	}

	// target degrades to the observed max height whenever the scenario's
	// expected-blocks hint is unset or turns out to be unreachable given
	// what was actually observed.
	target := targetHint
	if target == 0 || target > maxH {
		target = maxH
	}

	lagAllowance := clampInt(int(target/10), e.LagAllowance, maxLagAllowance)

	if maxH < minProgressBlocks {
		return fmt.Errorf("%s: max observed height %d below progress floor %d", e.Name(), maxH, minProgressBlocks)
	}
	for _, r := range results {
		if r.height+uint64(lagAllowance) < target {
			return fmt.Errorf("%s: node %s height %d lags target %d beyond allowance %d", e.Name(), r.label, r.height, target, lagAllowance)
		}
	}
	return nil
}

// clampInt mirrors clamp(value, lo, hi) from the reference: value is first
// floored at lo, then ceilinged at hi.
func clampInt(value, lo, hi int) int {
	if value < lo {
		value = lo
	}
	if value > hi {
		value = hi
	}
	return value
}

func fetchHeightWithRetry(ctx context.Context, c *nodeclient.Client, retries int, delay time.Duration) (uint64, any, error) {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		height, tip, err := c.ConsensusInfo(ctx)
		if err == nil {
			return height, tip, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return 0, nil, lastErr
}
