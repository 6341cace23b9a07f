package bitclock

import "time"

// Timeline is a virtual bit clock driven by event timestamps instead of wall time.
// The owner moves the time forward with Advance before it handles an event;
// Advance fires every tick that is due up to that point in time.
//
// Timeline is not safe for concurrent use.
type Timeline struct {
	period  time.Duration
	now     time.Duration
	next    time.Duration
	running bool
}

// NewTimeline creates a stopped virtual bit clock at time zero.
func NewTimeline(period time.Duration) *Timeline {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Timeline{period: period}
}

// Start (re)starts the clock at the current virtual time.
func (t *Timeline) Start() {
	t.running = true
	t.next = t.now + t.period
}

// Stop stops the clock.
func (t *Timeline) Stop() {
	t.running = false
}

// Running reports whether the clock is started.
func (t *Timeline) Running() bool {
	return t.running
}

// Now returns the current virtual time.
func (t *Timeline) Now() time.Duration {
	return t.now
}

// Period returns the tick period.
func (t *Timeline) Period() time.Duration {
	return t.period
}

// Advance moves the virtual time to now and calls tick for every tick that is due.
// tick may stop the clock. Time never moves backwards.
func (t *Timeline) Advance(now time.Duration, tick func()) {
	for t.running && t.next <= now {
		t.now = t.next
		t.next += t.period
		tick()
	}

	if now > t.now {
		t.now = now
	}
}
