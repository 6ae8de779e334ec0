package blockfeed

import "time"

// interruptibleTicker wraps time.Ticker so the scanner loop can select on a
// tick channel without leaking the underlying timer.
type interruptibleTicker struct {
	t *time.Ticker
	c <-chan time.Time
}

func newInterruptibleTicker(d time.Duration) *interruptibleTicker {
	t := time.NewTicker(d)
	return &interruptibleTicker{t: t, c: t.C}
}

func (it *interruptibleTicker) stop() { it.t.Stop() }
