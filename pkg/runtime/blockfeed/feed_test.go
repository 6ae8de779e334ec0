package blockfeed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/scenario"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory chain: a linear list of blocks, with Tip always
// returning the last one. Tests mutate chain under mu and call grow to
// extend it, simulating new confirmations between scanner polls.
type fakeSource struct {
	mu    sync.Mutex
	chain []*scenario.Block
}

func newFakeSource(genesisAndHeight int) *fakeSource {
	fs := &fakeSource{}
	var parent scenario.HeaderID
	for i := 0; i < genesisAndHeight; i++ {
		h := headerAt(i)
		blk := &scenario.Block{Header: h, Parent: parent, Height: uint64(i), IsGenesis: i == 0}
		fs.chain = append(fs.chain, blk)
		parent = h
	}
	return fs
}

func headerAt(i int) scenario.HeaderID {
	var h scenario.HeaderID
	h[0] = byte(i)
	h[1] = byte(i >> 8)
	return h
}

func (fs *fakeSource) grow(n int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	parent := fs.chain[len(fs.chain)-1].Header
	start := len(fs.chain)
	for i := 0; i < n; i++ {
		h := headerAt(start + i)
		blk := &scenario.Block{Header: h, Parent: parent, Height: uint64(start + i)}
		fs.chain = append(fs.chain, blk)
		parent = h
	}
}

func (fs *fakeSource) Tip(ctx context.Context) (scenario.HeaderID, uint64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	tip := fs.chain[len(fs.chain)-1]
	return tip.Header, tip.Height, nil
}

func (fs *fakeSource) Block(ctx context.Context, id scenario.HeaderID) (*scenario.Block, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, b := range fs.chain {
		if b.Header == id {
			return b, nil
		}
	}
	return nil, nil
}

func TestSpawnBlockFeedEmitsAncestorFirst(t *testing.T) {
	src := newFakeSource(5)
	feed, err := SpawnBlockFeed(context.Background(), src, nil, 0)
	require.NoError(t, err)
	defer feed.Cleanup(context.Background())

	sub := feed.Subscribe()
	defer sub.Close()

	var heights []uint64
	for i := 0; i < 5; i++ {
		rec, ok := sub.Recv()
		require.True(t, ok)
		heights = append(heights, rec.Block.Height)
	}
	require.Equal(t, []uint64{0, 1, 2, 3, 4}, heights)
}

func TestBlockFeedDoesNotReemitSeenAncestors(t *testing.T) {
	src := newFakeSource(3)
	feed, err := SpawnBlockFeed(context.Background(), src, nil, 0)
	require.NoError(t, err)
	defer feed.Cleanup(context.Background())

	sub := feed.Subscribe()
	defer sub.Close()
	for i := 0; i < 3; i++ {
		_, ok := sub.Recv()
		require.True(t, ok)
	}

	src.grow(2)
	require.NoError(t, pollOnce(feed, src))

	rec, ok := sub.Recv()
	require.True(t, ok)
	require.Equal(t, uint64(3), rec.Block.Height)
	rec, ok = sub.Recv()
	require.True(t, ok)
	require.Equal(t, uint64(4), rec.Block.Height)
}

// pollOnce drives a second catch-up synchronously via a throwaway scanner
// sharing the feed's broker/seen-set semantics is not exposed, so instead we
// just wait long enough for the running scanner's own poll loop to notice
// the grown chain.
func pollOnce(feed *Feed, src *fakeSource) error {
	time.Sleep(PollInterval + 200*time.Millisecond)
	return nil
}

func TestSubscribeBeforeStartSeesEverythingFromSpawn(t *testing.T) {
	src := newFakeSource(1)
	feed, err := SpawnBlockFeed(context.Background(), src, nil, 0)
	require.NoError(t, err)
	defer feed.Cleanup(context.Background())

	sub := feed.Subscribe()
	defer sub.Close()

	src.grow(3)
	time.Sleep(PollInterval + 200*time.Millisecond)

	var total int
	for total < 3 {
		select {
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for records, got %d", total)
		default:
		}
		if _, ok := sub.Recv(); ok {
			total++
		}
	}
}

func TestCleanupClosesSubscribers(t *testing.T) {
	src := newFakeSource(1)
	feed, err := SpawnBlockFeed(context.Background(), src, nil, 0)
	require.NoError(t, err)

	sub := feed.Subscribe()
	require.NoError(t, feed.Cleanup(context.Background()))

	_, ok := sub.Recv()
	require.False(t, ok, "subscriber should observe channel closed after cleanup")

	// Calling Cleanup twice must not panic (idempotence, property #5).
	require.NoError(t, feed.Cleanup(context.Background()))
}

func TestStatsCountsTransactionOutputs(t *testing.T) {
	src := newFakeSource(1)
	src.chain[0].Ops = []scenario.LedgerOp{{Kind: scenario.OpLedgerOutput}, {Kind: scenario.OpLedgerOutput}}
	feed, err := SpawnBlockFeed(context.Background(), src, nil, 0)
	require.NoError(t, err)
	defer feed.Cleanup(context.Background())

	require.Equal(t, uint64(2), feed.Stats().TotalTransactions())
}
