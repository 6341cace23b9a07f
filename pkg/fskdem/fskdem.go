// Package fskdem is the timing based FSK demodulator of the link.
//
// The comparator output of the line toggles once per tone half-period. Every edge is
// latched by a wrapping capture counter; the difference between two latches is the tone
// duration. A long duration (low tone) is a logical 1, a short duration (high tone) a
// logical 0. A frame is a start sequence of short tones followed by 8 data bits (MSB first)
// and one parity bit, each bit lasting one period of the bit clock.
//
// The demodulator is driven by two event sources:
//   - OnEdge is called for every edge with the latched counter value (edge classifier).
//   - OnTick is called for every tick of the bit clock (bit sampler).
//
// Both methods may run on different goroutines. The frame state is an atomic value changed
// by compare-and-swap, the tone duration is an atomic single-slot cell; everything else is
// owned by exactly one of the two sides.
package fskdem

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"fsklink/pkg/port"
	"fsklink/pkg/queue"
)

const (
	// MaxCount is the modulus of the capture counter.
	MaxCount = 50000
	// F0Threshold separates the two tone classes: durations above are a logical 1.
	F0Threshold = 14000
	// F1Threshold is a tighter bound of the high tone. It is not used by the slicer.
	F1Threshold = 19000
	// StartMargin is added to F0Threshold to qualify a start tone.
	StartMargin = 3000
	// CaptureClock is the frequency of the capture counter in Hz.
	CaptureClock = 50_000_000
)

var (
	// ErrParity is returned by OnTick when a completed frame fails the parity check.
	ErrParity = errors.New("parity check failed")
	// ErrQueueFull is returned by OnTick when a valid byte is dropped because the queue is full.
	ErrQueueFull = errors.New("receive queue full")
)

// Clock is the periodic bit clock. The edge classifier starts it, the bit sampler stops it.
type Clock interface {
	Start()
	Stop()
}

// ClockMode selects how the receiver generates bit clock ticks.
type ClockMode int

const (
	// WallClock ticks with a time.Ticker.
	WallClock ClockMode = iota
	// EventClock ticks on a virtual timeline advanced by the event timestamps.
	EventClock
)

// String returns the configuration name of the clock mode.
func (m ClockMode) String() string {
	switch m {
	case WallClock:
		return "wallclock"
	case EventClock:
		return "eventclock"
	default:
		return fmt.Sprintf("ClockMode(%d)", int(m))
	}
}

// ParseClockMode returns the clock mode with the configuration name s.
func ParseClockMode(s string) (ClockMode, error) {
	switch strings.ToLower(s) {
	case "", "wallclock":
		return WallClock, nil
	case "eventclock":
		return EventClock, nil
	default:
		return WallClock, fmt.Errorf("unknown clock mode %q", s)
	}
}

// Config holds the demodulator parameters.
type Config struct {
	// Capture describes the capture counter (clock and modulus).
	Capture port.Capture
	// F0Threshold is the slicer threshold in counter ticks.
	F0Threshold uint32
	// F1Threshold is carried for the high tone bound, unused by the slicer.
	F1Threshold uint32
	// StartMargin is added to F0Threshold to qualify a start tone.
	StartMargin uint32
	// QueueSize is the capacity of the decoded byte queue.
	QueueSize int
	// BitPeriod is the period of the bit clock.
	BitPeriod time.Duration
	// ClockMode selects the bit clock implementation of a Receiver.
	ClockMode ClockMode
}

// DefaultConfig returns the parameters of the link.
func DefaultConfig() Config {
	return Config{
		Capture:     port.Capture{Clock: CaptureClock, MaxCount: MaxCount},
		F0Threshold: F0Threshold,
		F1Threshold: F1Threshold,
		StartMargin: StartMargin,
		QueueSize:   queue.DefaultCapacity,
		BitPeriod:   833 * time.Microsecond,
		ClockMode:   WallClock,
	}
}

// Stats are the counters of a demodulator.
type Stats struct {
	// Starts is the number of frames whose start sequence was recognized.
	Starts uint64 `json:"starts"`
	// Frames is the number of bytes put into the queue.
	Frames uint64 `json:"frames"`
	// ParityErrors is the number of frames dropped because of a parity fault.
	ParityErrors uint64 `json:"parityErrors"`
	// Overruns is the number of valid bytes dropped because the queue was full.
	Overruns uint64 `json:"overruns"`
	// Buffered is the number of bytes waiting in the queue.
	Buffered int `json:"buffered"`
}

// Demodulator holds the complete receive state of one link.
type Demodulator struct {
	config Config
	clock  Clock
	queue  *queue.Queue

	// state is the frame state shared by both sides.
	state atomic.Int32
	// timeDiff is the last measured tone duration, written by OnEdge and read by OnTick.
	timeDiff atomic.Uint32
	// errorFlag is set when a frame fails the parity check.
	errorFlag atomic.Bool

	// lastCapture and edgesSeen belong to the edge side.
	lastCapture uint32
	edgesSeen   int

	// acc belongs to the tick side.
	acc accumulator

	starts       atomic.Uint64
	frames       atomic.Uint64
	parityErrors atomic.Uint64
	overruns     atomic.Uint64
}

// New creates a demodulator in state StartDetect with an empty queue.
// Zero values in c are replaced by the defaults.
func New(c Config, clock Clock) *Demodulator {
	d := DefaultConfig()
	if c.Capture.Clock == 0 {
		c.Capture.Clock = d.Capture.Clock
	}
	if c.Capture.MaxCount == 0 {
		c.Capture.MaxCount = d.Capture.MaxCount
	}
	if c.F0Threshold == 0 {
		c.F0Threshold = d.F0Threshold
	}
	if c.F1Threshold == 0 {
		c.F1Threshold = d.F1Threshold
	}
	if c.StartMargin == 0 {
		c.StartMargin = d.StartMargin
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.BitPeriod <= 0 {
		c.BitPeriod = d.BitPeriod
	}

	dem := &Demodulator{
		config: c,
		clock:  clock,
		queue:  queue.New(c.QueueSize),
	}
	dem.state.Store(int32(StartDetect))
	return dem
}

// Config returns the effective parameters.
func (d *Demodulator) Config() Config {
	return d.config
}

// IsDataReady reports whether a decoded byte is waiting.
func (d *Demodulator) IsDataReady() bool {
	return d.queue.FillLevel() > 0
}

// GetNextValue removes and returns the oldest decoded byte.
// It returns 0 if no byte is waiting, check IsDataReady first.
func (d *Demodulator) GetNextValue() byte {
	return d.queue.Get()
}

// GetNextArray moves up to len(b) decoded bytes into b and returns how many were moved.
func (d *Demodulator) GetNextArray(b []byte) int {
	return d.queue.GetNextArray(b)
}

// ErrorFlag reports whether a frame failed the parity check since the last ClearErrorFlag.
func (d *Demodulator) ErrorFlag() bool {
	return d.errorFlag.Load()
}

// ClearErrorFlag resets the error flag and returns its previous value.
func (d *Demodulator) ClearErrorFlag() bool {
	return d.errorFlag.Swap(false)
}

// ToneDuration returns the last measured tone duration in counter ticks.
func (d *Demodulator) ToneDuration() uint32 {
	return d.timeDiff.Load()
}

// Stats returns a snapshot of the counters.
func (d *Demodulator) Stats() Stats {
	return Stats{
		Starts:       d.starts.Load(),
		Frames:       d.frames.Load(),
		ParityErrors: d.parityErrors.Load(),
		Overruns:     d.overruns.Load(),
		Buffered:     d.queue.FillLevel(),
	}
}
