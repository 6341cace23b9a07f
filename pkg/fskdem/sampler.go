package fskdem

import (
	"fmt"

	"fsklink/pkg/parity"
)

// accumulator collects the bits of one frame.
type accumulator struct {
	// output holds the data bits, MSB first.
	output byte
	// bitCounter is the number of data bits received.
	bitCounter int
	// parityBit is the received parity bit.
	parityBit bool
}

func (a *accumulator) clear() {
	*a = accumulator{}
}

// OnTick is the bit sampler. It is called for every tick of the bit clock.
//
// In ReadState every tick takes one bit: a tone longer than F0Threshold is a 1.
// After 8 data bits the next tick takes the parity bit and moves to Reset.
// In Reset the bit clock is stopped, the byte is checked and queued.
// In any other state the bit clock is stopped and the frame is dropped.
//
// OnTick returns ErrParity if the frame was dropped because of a parity fault and
// ErrQueueFull if a valid byte could not be queued.
func (d *Demodulator) OnTick() error {
	bit := d.timeDiff.Load() > d.config.F0Threshold

	switch s := d.State(); s {
	case ReadState:
		if d.acc.bitCounter == 8 {
			d.acc.parityBit = bit
			d.acc.bitCounter = 0
			d.transition(ReadState, Reset)
			return nil
		}
		if bit {
			d.acc.output |= 1 << (7 - d.acc.bitCounter)
		} else {
			d.acc.output &^= 1 << (7 - d.acc.bitCounter)
		}
		d.acc.bitCounter++
		return nil

	case Reset:
		d.stopClock()
		err := d.publish(d.acc.output, d.acc.parityBit)
		d.acc.clear()
		d.transition(Reset, StartDetect)
		return err

	default:
		d.stopClock()
		d.acc.clear()
		d.transition(s, StartDetect)
		return nil
	}
}

func (d *Demodulator) publish(b byte, parityBit bool) error {
	if !parity.IsOddParityValid(b, parityBit) {
		d.errorFlag.Store(true)
		d.parityErrors.Add(1)
		return fmt.Errorf("%w: byte %#02x, parity %v", ErrParity, b, parityBit)
	}

	if !d.queue.Put(b) {
		d.overruns.Add(1)
		return fmt.Errorf("%w: byte %#02x dropped", ErrQueueFull, b)
	}

	d.frames.Add(1)
	return nil
}
