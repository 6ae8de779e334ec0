package blockfeed

import (
	"sync"

	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// subscriberBufferSize is the per-subscriber channel capacity. The spec's
// capacity >= 1024 requirement is about the aggregate broadcast, not any one
// Go channel; each subscriber gets its own bounded mailbox and a slow
// subscriber has its oldest unread record dropped rather than ever blocking
// the scanner goroutine.
const subscriberBufferSize = 1024

type subscriberEntry struct {
	ch     chan *scenario.BlockRecord
	lagged bool
}

// broker is the in-process fan-out: one producer (the scanner), N
// subscribers. Go's standard library has no broadcast channel, so this
// mirrors the shape of a broadcast::Sender/Receiver pair with a map of
// per-subscriber buffered channels instead.
type broker struct {
	mu          sync.Mutex
	subscribers map[int]*subscriberEntry
	nextID      int
	closed      bool
}

func newBroker() *broker {
	return &broker{subscribers: make(map[int]*subscriberEntry)}
}

// Subscription is an independent receiver of BlockRecords, created via
// Feed.Subscribe. A Subscription created before Feed.Start returns observes
// every record emitted from that point on (the start-up catch-up barrier in
// feed.go guarantees there is already a fixed "now" to observe from).
type Subscription struct {
	id int
	b  *broker
}

// Recv blocks for the next record, or returns ok=false once the feed has
// been cancelled and this subscription's channel has drained.
func (s *Subscription) Recv() (*scenario.BlockRecord, bool) {
	s.b.mu.Lock()
	entry, ok := s.b.subscribers[s.id]
	s.b.mu.Unlock()
	if !ok {
		return nil, false
	}
	rec, ok := <-entry.ch
	return rec, ok
}

// Lagged reports whether this subscriber has missed one or more records
// since the last call to Lagged, because its mailbox filled while it was
// slow to drain. Non-fatal by contract (see §4.1/§9): callers count, they
// don't replay.
func (s *Subscription) Lagged() bool {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	entry, ok := s.b.subscribers[s.id]
	if !ok {
		return false
	}
	lagged := entry.lagged
	entry.lagged = false
	return lagged
}

// Close unsubscribes; it is safe to call more than once.
func (s *Subscription) Close() {
	s.b.unsubscribe(s.id)
}

func (b *broker) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	entry := &subscriberEntry{ch: make(chan *scenario.BlockRecord, subscriberBufferSize)}
	if b.closed {
		close(entry.ch)
		return &Subscription{id: id, b: b}
	}
	b.subscribers[id] = entry
	return &Subscription{id: id, b: b}
}

func (b *broker) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if entry, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(entry.ch)
	}
}

// publish fans a record out to every current subscriber. A subscriber whose
// mailbox is full has its pending oldest record dropped to make room, and is
// marked lagged, so the scanner goroutine never blocks on a slow consumer.
func (b *broker) publish(rec *scenario.BlockRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, entry := range b.subscribers {
		select {
		case entry.ch <- rec:
		default:
			select {
			case <-entry.ch:
			default:
			}
			select {
			case entry.ch <- rec:
			default:
			}
			entry.lagged = true
		}
	}
}

// close shuts every subscriber channel down; called once when the scanner
// goroutine is cancelled.
func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, entry := range b.subscribers {
		delete(b.subscribers, id)
		close(entry.ch)
	}
}
