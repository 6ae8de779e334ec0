package expectations

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/jihwankim/nomos-harness/pkg/runtime/blockfeed"
	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

const minDAInclusionRatio = 0.8

// DAInclusion passes when at least 80% of the planned channels saw an
// inscription and at least 80% of the expected blob total was observed in
// confirmed blocks (§4.4.3).
type DAInclusion struct {
	ChannelRatePerBlock float64
	HeadroomPct         int
	BlobRatePerBlock    float64

	mu              sync.Mutex
	inscribed       map[scenario.ChannelID]bool
	blobsPerChannel map[scenario.ChannelID]int

	channels      []scenario.ChannelID
	expectedBlobs int
	captured      bool
	sub           *blockfeed.Subscription
}

// NewDAInclusion builds the expectation with the same channel/blob rate
// parameters configured on the data-availability workload it accompanies.
func NewDAInclusion(channelRatePerBlock float64, headroomPct int, blobRatePerBlock float64) *DAInclusion {
	return &DAInclusion{
		ChannelRatePerBlock: channelRatePerBlock,
		HeadroomPct:         headroomPct,
		BlobRatePerBlock:    blobRatePerBlock,
	}
}

func (e *DAInclusion) Name() string { return "da_inclusion" }

// StartCapture derives the same deterministic channel plan the DA workload
// uses (scenario.DAPlan) and spawns a capture goroutine over a fresh
// block-feed subscription.
func (e *DAInclusion) StartCapture(ctx context.Context, rc *runcontext.RunContext) error {
	if e.captured {
		return nil
	}

	channels, expectedBlobs, _ := scenario.DAPlan(e.ChannelRatePerBlock, e.HeadroomPct, e.BlobRatePerBlock, rc.RunMetrics().ExpectedConsensusBlocks)
	e.channels = channels
	e.expectedBlobs = expectedBlobs
	e.inscribed = make(map[scenario.ChannelID]bool, len(channels))
	e.blobsPerChannel = make(map[scenario.ChannelID]int, len(channels))

	planned := make(map[scenario.ChannelID]struct{}, len(channels))
	for _, ch := range channels {
		planned[ch] = struct{}{}
	}

	e.sub = rc.BlockFeed().Subscribe()
	go e.capture(planned)
	e.captured = true
	return nil
}

func (e *DAInclusion) capture(planned map[scenario.ChannelID]struct{}) {
	for {
		rec, ok := e.sub.Recv()
		if !ok {
			return
		}
		if rec.Block.IsGenesis {
			continue
		}
		e.mu.Lock()
		for _, op := range rec.Block.Ops {
			if _, tracked := planned[op.Channel]; !tracked {
				continue
			}
			switch op.Kind {
			case scenario.OpChannelInscribe:
				e.inscribed[op.Channel] = true
			case scenario.OpChannelBlob:
				e.blobsPerChannel[op.Channel]++
			}
		}
		e.mu.Unlock()
	}
}

// Evaluate passes iff both the channel-inscription ratio and the blob
// ratio clear minDAInclusionRatio.
func (e *DAInclusion) Evaluate(ctx context.Context, rc *runcontext.RunContext) error {
	if !e.captured {
		return fmt.Errorf("%s: not captured", e.Name())
	}

	e.mu.Lock()
	inscribedCount := len(e.inscribed)
	totalBlobs := 0
	for _, n := range e.blobsPerChannel {
		totalBlobs += n
	}
	e.mu.Unlock()

	requiredChannels := uint64(math.Ceil(float64(len(e.channels)) * minDAInclusionRatio))
	if uint64(inscribedCount) < requiredChannels {
		return fmt.Errorf("%s: %d/%d channels inscribed, below required %d", e.Name(), inscribedCount, len(e.channels), requiredChannels)
	}

	requiredBlobs := uint64(math.Ceil(float64(e.expectedBlobs) * minDAInclusionRatio))
	if uint64(totalBlobs) < requiredBlobs {
		return fmt.Errorf("%s: %d/%d blobs observed, below required %d", e.Name(), totalBlobs, e.expectedBlobs, requiredBlobs)
	}
	return nil
}
