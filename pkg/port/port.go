// Package port holds the definition of a physical line event and of the capture counter
// that timestamps it.
package port

import (
	"fmt"
	"time"
)

// EventType indicates the type of change to the line active state.
//
// Note that for active low lines a low line level results in a high active
// state.
type EventType int

const (
	_ EventType = iota
	// RisingEdge indicates an inactive to active event (low to high).
	RisingEdge
	// FallingEdge indicates an active to inactive event (high to low).
	FallingEdge
)

// String returns the name of the edge type.
func (t EventType) String() string {
	switch t {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is a detected edge of the comparator output.
type Event struct {
	// Timestamp indicates the time the event was detected.
	Timestamp time.Duration
	// The type of state change event this structure represents.
	Type EventType
}

// Capture emulates the free-running input capture counter of the receiver.
// The counter runs at Clock Hz and wraps to zero when it reaches MaxCount.
type Capture struct {
	// Clock is the counter frequency in Hz.
	Clock int64
	// MaxCount is the counter modulus.
	MaxCount uint32
}

// Count returns the counter value latched at timestamp ts.
func (c Capture) Count(ts time.Duration) uint32 {
	if c.MaxCount == 0 {
		return 0
	}

	// split the multiplication to stay inside int64 for long uptimes
	sec := int64(ts / time.Second)
	nsec := int64(ts % time.Second)
	ticks := uint64(sec)*uint64(c.Clock) + uint64(nsec)*uint64(c.Clock)/uint64(time.Second)
	return uint32(ticks % uint64(c.MaxCount))
}

// Duration converts a number of counter ticks to a time duration.
func (c Capture) Duration(counts uint32) time.Duration {
	if c.Clock == 0 {
		return 0
	}
	return time.Duration(int64(counts) * int64(time.Second) / c.Clock)
}

// Counts converts a time duration to a number of counter ticks.
func (c Capture) Counts(d time.Duration) uint32 {
	return uint32(int64(d) * c.Clock / int64(time.Second))
}
