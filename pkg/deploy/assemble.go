package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/core/cleanup"
	"github.com/jihwankim/nomos-harness/pkg/core/runner"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/blockfeed"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodecontrol"
	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
	"github.com/jihwankim/nomos-harness/pkg/runtime/telemetry"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// blockFeedStartRetries/Delay implement §4.8 step 4: "retry up to 5x2s on
// startup failure" when spawning the block feed against the chosen source
// validator.
const (
	blockFeedStartRetries = 5
	blockFeedStartDelay   = 2 * time.Second
)

// postDeployInputs bundles everything the three backends produce in their
// own step-1/step-5 work; assemble does the backend-agnostic remainder of
// §4.8 (steps 2-6) identically for all three.
type postDeployInputs struct {
	Backend           string
	Topology          scenario.Topology
	Wallets           scenario.WalletConfig
	Validators        []*nodeclient.Client
	Executors         []*nodeclient.Client
	BlockIntervalHint time.Duration
	PrometheusURL     string
	PrometheusTimeout time.Duration
	RunDuration       time.Duration
	NodeControl       nodecontrol.Handle // nil if the backend/capability doesn't supply one
	Log               *reporting.Logger
	Stack             *cleanup.Stack
}

// assemble performs §4.8 steps 2-6: build NodeClients (already built by the
// caller, here just wrapped into a Cluster), the telemetry sink, the block
// feed (with its own cleanup guard), and the RunContext, then returns a
// Runner wrapping the accumulated CleanupStack.
func assemble(ctx context.Context, in postDeployInputs) (*runner.Runner, error) {
	cluster := &nodeclient.Cluster{Validators: in.Validators, Executors: in.Executors}

	sink, err := telemetry.New(in.PrometheusURL, in.PrometheusTimeout)
	if err != nil {
		return nil, deployErrorf(in.Backend, "telemetry", err)
	}
	if client := sink.Client(); client != nil {
		// Telemetry is purely observational (§6); an unreachable Prometheus
		// is logged, never fatal to the deploy.
		if terr := client.TestConnection(ctx); terr != nil {
			in.Log.Warn("prometheus unreachable", "url", in.PrometheusURL, "error", terr)
		}
	}

	feedSource, err := pickFeedSource(in.Validators)
	if err != nil {
		return nil, deployErrorf(in.Backend, "block-feed-source", err)
	}

	feed, err := spawnBlockFeedWithRetry(ctx, feedSource, in.Log)
	if err != nil {
		return nil, deployErrorf(in.Backend, "block-feed", err)
	}
	in.Stack.Push("block-feed", feed)

	var opts []runcontext.Option
	opts = append(opts, runcontext.WithWallets(in.Wallets))
	if in.NodeControl != nil {
		opts = append(opts, runcontext.WithNodeControl(in.NodeControl))
	}

	rc := runcontext.New(in.Topology, cluster, feed, sink, in.RunDuration, in.BlockIntervalHint, opts...)
	return runner.New(rc, in.Stack, in.Log), nil
}

// pickFeedSource selects the validator the block feed tails (§4.8 step 4:
// "one healthy validator"). Deployers always ensure at least one validator
// client exists (topology.Validate requires at least one validator).
func pickFeedSource(validators []*nodeclient.Client) (*nodeclient.Client, error) {
	if len(validators) == 0 {
		return nil, fmt.Errorf("no validator client available to source the block feed")
	}
	return validators[0], nil
}

func spawnBlockFeedWithRetry(ctx context.Context, source blockfeed.Source, log *reporting.Logger) (*blockfeed.Feed, error) {
	var lastErr error
	for attempt := 0; attempt < blockFeedStartRetries; attempt++ {
		feed, err := blockfeed.SpawnBlockFeed(ctx, source, log, 0)
		if err == nil {
			return feed, nil
		}
		lastErr = err
		if log != nil {
			log.Warn("block feed start-up failed, retrying", "attempt", attempt+1, "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(blockFeedStartDelay):
		}
	}
	return nil, fmt.Errorf("block feed did not start after %d attempts: %w", blockFeedStartRetries, lastErr)
}
