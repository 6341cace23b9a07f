// Package bitclock provides the periodic bit clock that paces the bit sampler of the receiver.
//
// The clock is started by the edge classifier once a frame start has been recognized
// and stopped by the bit sampler when the frame is complete.
package bitclock

import (
	"sync"
	"time"
)

// DefaultPeriod is the bit clock period of the link.
const DefaultPeriod = 833 * time.Microsecond

// Ticker is a wall clock bit clock backed by a time.Ticker.
type Ticker struct {
	period time.Duration

	mu     sync.Mutex
	ticker *time.Ticker
}

// NewTicker creates a stopped wall clock bit clock.
func NewTicker(period time.Duration) *Ticker {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Ticker{period: period}
}

// Start (re)starts the clock; the first tick fires one period later.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ticker != nil {
		t.ticker.Reset(t.period)
		return
	}
	t.ticker = time.NewTicker(t.period)
}

// Stop stops the clock. Ticks not yet received are dropped.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	t.ticker = nil
}

// C returns the tick channel of the running clock, or nil if the clock is stopped.
// A nil channel blocks forever, so it can be used directly in a select statement.
func (t *Ticker) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ticker == nil {
		return nil
	}
	return t.ticker.C
}

// Running reports whether the clock is started.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticker != nil
}

// Period returns the tick period.
func (t *Ticker) Period() time.Duration {
	return t.period
}
