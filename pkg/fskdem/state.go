package fskdem

import "fmt"

// State is the frame state shared by the edge classifier and the bit sampler.
type State int32

const (
	// StartDetect waits for a tone that qualifies as frame start.
	StartDetect State = iota
	// InitWait counts the edges of the start sequence.
	InitWait
	// ReadState samples data and parity bits on every bit clock tick.
	ReadState
	// Reset validates and publishes the received byte on the next tick.
	Reset
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StartDetect:
		return "StartDetect"
	case InitWait:
		return "InitWait"
	case ReadState:
		return "ReadState"
	case Reset:
		return "Reset"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// State returns the current frame state.
func (d *Demodulator) State() State {
	return State(d.state.Load())
}

// transition changes the state from -> to. It fails if the other side changed the state meanwhile.
func (d *Demodulator) transition(from, to State) bool {
	return d.state.CompareAndSwap(int32(from), int32(to))
}

func (d *Demodulator) startClock() {
	if d.clock != nil {
		d.clock.Start()
	}
}

func (d *Demodulator) stopClock() {
	if d.clock != nil {
		d.clock.Stop()
	}
}
