package workloads

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jihwankim/nomos-harness/pkg/expectations"
	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/blockfeed"
	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

const (
	daPublishRetries    = 5
	daPublishRetryDelay = 2 * time.Second
	daBlobChunkSize     = 256
)

// DataAvailability inscribes a deterministic set of channels and publishes
// randomised blobs on each in parallel, so the aggregate blob rate matches
// blob_rate_per_block over the run (§4.5.2). Channel flows run concurrently
// via an errgroup.Group, per the spec's explicit "one flow per channel, in
// parallel" instruction (see DESIGN.md for the Open Question this settles).
type DataAvailability struct {
	ChannelRatePerBlock float64
	HeadroomPct         int
	BlobRatePerBlock    float64
	Log                 *reporting.Logger
}

// NewDataAvailability builds the workload.
func NewDataAvailability(channelRatePerBlock float64, headroomPct int, blobRatePerBlock float64, log *reporting.Logger) *DataAvailability {
	return &DataAvailability{
		ChannelRatePerBlock: channelRatePerBlock,
		HeadroomPct:         headroomPct,
		BlobRatePerBlock:    blobRatePerBlock,
		Log:                 log,
	}
}

func (w *DataAvailability) Name() string { return "data_availability" }

func (w *DataAvailability) Expectations() []harness.Expectation {
	return []harness.Expectation{expectations.NewDAInclusion(w.ChannelRatePerBlock, w.HeadroomPct, w.BlobRatePerBlock)}
}

// Init is a no-op: the DA plan only depends on run metrics, which are final
// only once Start receives a RunContext.
func (w *DataAvailability) Init(topology scenario.Topology, metrics scenario.RunMetrics) error {
	return nil
}

func (w *DataAvailability) Start(ctx context.Context, rc *runcontext.RunContext) error {
	channels, _, perChannelTarget := scenario.DAPlan(w.ChannelRatePerBlock, w.HeadroomPct, w.BlobRatePerBlock, rc.RunMetrics().ExpectedConsensusBlocks)

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range channels {
		ch := ch
		g.Go(func() error {
			return w.runChannel(gctx, rc, ch, perChannelTarget)
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%s: %w", w.Name(), err)
	}
	return nil
}

// runChannel drives one channel's flow: inscribe, then publish+await
// per_channel_target blobs, strictly sequential within the channel.
func (w *DataAvailability) runChannel(ctx context.Context, rc *runcontext.RunContext, channel scenario.ChannelID, target int) error {
	sub := rc.BlockFeed().Subscribe()
	defer sub.Close()

	clients := rc.Clients().AllClients()
	msgID, err := nodeclient.TryAllClients(ctx, clients, func(ctx context.Context, c *nodeclient.Client) (scenario.MsgID, error) {
		return c.SubmitInscription(ctx, channel, deterministicInscription(channel))
	})
	if err != nil {
		return fmt.Errorf("channel %d: inscribe: %w", channel, err)
	}
	if err := waitForChannelOp(sub, scenario.OpChannelInscribe, channel, msgID); err != nil {
		return fmt.Errorf("channel %d: await inscribe: %w", channel, err)
	}

	executors := rc.Clients().ExecutorClients()
	if len(executors) == 0 {
		executors = clients
	}

	for i := 0; i < target; i++ {
		blobID, err := publishBlobWithRetry(ctx, executors, channel, randomBlobPayload())
		if err != nil {
			return fmt.Errorf("channel %d: publish blob %d/%d: %w", channel, i+1, target, err)
		}
		if err := waitForChannelOp(sub, scenario.OpChannelBlob, channel, blobID); err != nil {
			return fmt.Errorf("channel %d: await blob %d/%d: %w", channel, i+1, target, err)
		}
		if w.Log != nil {
			w.Log.Debug("published blob", "channel", channel, "index", i)
		}
	}
	return nil
}

// publishBlobWithRetry publishes through a randomised executor order,
// retrying the full order up to daPublishRetries times with a fixed delay
// between passes.
func publishBlobWithRetry(ctx context.Context, executors []*nodeclient.Client, channel scenario.ChannelID, payload []byte) (scenario.MsgID, error) {
	order := rand.Perm(len(executors))
	var lastErr error
	for attempt := 0; attempt < daPublishRetries; attempt++ {
		for _, idx := range order {
			msgID, err := executors[idx].PublishBlob(ctx, channel, payload)
			if err == nil {
				return msgID, nil
			}
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return scenario.MsgID{}, ctx.Err()
		case <-time.After(daPublishRetryDelay):
		}
	}
	return scenario.MsgID{}, fmt.Errorf("all executors failed after %d attempts: %w", daPublishRetries, lastErr)
}

// waitForChannelOp blocks on sub until a block carries the given op kind,
// channel and msg id. Lag signals are skipped silently; only the broadcast
// channel closing is treated as a failure (§4.5.2).
func waitForChannelOp(sub *blockfeed.Subscription, kind scenario.LedgerOpKind, channel scenario.ChannelID, msgID scenario.MsgID) error {
	for {
		rec, ok := sub.Recv()
		if !ok {
			return fmt.Errorf("block feed closed while awaiting channel op")
		}
		if rec.Block.IsGenesis {
			continue
		}
		for _, op := range rec.Block.Ops {
			if op.Kind == kind && op.Channel == channel && op.MsgID == msgID {
				return nil
			}
		}
	}
}

func deterministicInscription(channel scenario.ChannelID) []byte {
	body, _ := json.Marshal(struct {
		Channel scenario.ChannelID `json:"channel"`
		Kind    string             `json:"kind"`
	}{channel, "channel_inscribe"})
	return body
}

// randomBlobPayload returns a 1-8 chunk random payload (§4.5.2 step 3a).
func randomBlobPayload() []byte {
	chunks := 1 + rand.Intn(8)
	payload := make([]byte, chunks*daBlobChunkSize)
	rand.Read(payload) //nolint:gosec
	return payload
}
