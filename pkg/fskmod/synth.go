package fskmod

import (
	"time"

	"fsklink/pkg/parity"
	"fsklink/pkg/port"
)

// Synthesizer generates the line edges of FSK frames on a continuous timeline.
//
// A frame is laid out as
//
//	idle   IdleSlots bit periods of mark tone
//	start  StartEdges edges of space tone; the receiver starts its bit clock on the last one
//	data   8 bit slots, MSB first, mark tone for 1 and space tone for 0
//	parity 1 bit slot carrying parity.Bit of the data byte
//	idle   IdleSlots bit periods of mark tone
//
// Within a slot the edges are aligned to the end of the slot, so the last edge before
// the receiver samples the slot is one full half-period of the slot's tone.
type Synthesizer struct {
	mark      time.Duration
	space     time.Duration
	bitPeriod time.Duration
	guard     time.Duration
	idleSlots int

	// now is the time of the last generated edge.
	now   time.Duration
	level bool
}

// NewSynthesizer creates a synthesizer for config c whose timeline starts at zero.
func NewSynthesizer(c Config) *Synthesizer {
	c = c.withDefaults()
	return &Synthesizer{
		mark:      halfPeriod(c.Mark),
		space:     halfPeriod(c.Space),
		bitPeriod: c.BitPeriod,
		guard:     c.BitPeriod / 16,
		idleSlots: c.IdleSlots,
	}
}

// Now returns the timestamp of the last generated edge.
func (s *Synthesizer) Now() time.Duration {
	return s.now
}

// Frame returns the edges of a frame carrying b with a valid parity bit.
func (s *Synthesizer) Frame(b byte) []port.Event {
	return s.FrameWithParity(b, parity.Bit(b))
}

// FrameWithParity returns the edges of a frame carrying b and the given parity bit.
func (s *Synthesizer) FrameWithParity(b byte, parityBit bool) []port.Event {
	var events []port.Event

	events = s.idle(events)
	for i := 0; i < StartEdges; i++ {
		events = s.edge(events, s.now+s.space)
	}

	slotStart := s.now
	for i := 0; i < 9; i++ {
		bit := parityBit
		if i < 8 {
			bit = b&(1<<(7-i)) != 0
		}
		events = s.slot(events, slotStart, bit)
		slotStart += s.bitPeriod
	}

	return s.idle(events)
}

// Frames returns the edges of consecutive frames carrying data.
func (s *Synthesizer) Frames(data []byte) []port.Event {
	var events []port.Event
	for _, b := range data {
		events = append(events, s.Frame(b)...)
	}
	return events
}

// idle appends mark tone edges for idleSlots bit periods.
func (s *Synthesizer) idle(events []port.Event) []port.Event {
	end := s.now + time.Duration(s.idleSlots)*s.bitPeriod
	for s.now+s.mark <= end {
		events = s.edge(events, s.now+s.mark)
	}
	return events
}

// slot appends the edges of one bit slot that starts at start.
func (s *Synthesizer) slot(events []port.Event, start time.Duration, bit bool) []port.Event {
	h := s.space
	if bit {
		h = s.mark
	}

	last := start + s.bitPeriod - s.guard
	first := last
	for first-h > start {
		first -= h
	}

	for t := first; t <= last; t += h {
		events = s.edge(events, t)
	}
	return events
}

func (s *Synthesizer) edge(events []port.Event, t time.Duration) []port.Event {
	s.now = t
	s.level = !s.level

	evt := port.Event{Timestamp: t, Type: port.FallingEdge}
	if s.level {
		evt.Type = port.RisingEdge
	}
	return append(events, evt)
}

func halfPeriod(frequency float64) time.Duration {
	return time.Duration(float64(time.Second) / (2 * frequency))
}
