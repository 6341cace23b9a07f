package fskdem

import (
	"errors"
	"io"
	"sync"
	"time"

	"fsklink/pkg/bitclock"
	"fsklink/pkg/port"

	"github.com/womat/debug"
)

// faultBuffer is the number of faults kept for a slow reader of Faults().
const faultBuffer = 16

// Receiver wires a demodulator to a line event source and a bit clock.
// Edges and ticks are handled one after the other by a single goroutine.
// Decoded bytes are read with Read, IsDataReady/GetNextValue or GetNextArray.
type Receiver struct {
	*Demodulator

	// capture converts event timestamps to counter values.
	capture port.Capture
	// rx receives the line events.
	rx <-chan port.Event
	// ticker is the bit clock in WallClock mode.
	ticker *bitclock.Ticker
	// timeline is the bit clock in EventClock mode.
	timeline *bitclock.Timeline

	// faults receives parity and overrun errors.
	faults chan error
	// drained is closed when the event source is closed and the bit clock has stopped.
	drained chan struct{}
	// quit stops the handler
	quit chan struct{}
	// done signals that run() is terminated
	done      chan struct{}
	closeOnce sync.Once
}

// NewReceiver creates the demodulator for config c, connects it to the event channel
// and starts decoding.
func NewReceiver(c <-chan port.Event, config Config) *Receiver {
	r := &Receiver{
		rx:      c,
		faults:  make(chan error, faultBuffer),
		drained: make(chan struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	var clock Clock
	switch config.ClockMode {
	case EventClock:
		r.timeline = bitclock.NewTimeline(config.BitPeriod)
		clock = r.timeline
	default:
		r.ticker = bitclock.NewTicker(config.BitPeriod)
		clock = r.ticker
	}

	r.Demodulator = New(config, clock)
	r.capture = r.Demodulator.Config().Capture

	debug.InfoLog.Printf("fsk receiver started (threshold %d, bit clock %v)", r.config.F0Threshold, r.config.BitPeriod)
	go r.run()
	return r
}

// Read moves the decoded bytes into b.
// It returns io.EOF if no byte is waiting.
func (r *Receiver) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	n := r.GetNextArray(b)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Faults returns the channel of frame errors (ErrParity, ErrQueueFull).
// Faults are dropped if the channel is full.
func (r *Receiver) Faults() <-chan error {
	return r.faults
}

// Drained is closed when the event source has been closed and no frame is in progress.
func (r *Receiver) Drained() <-chan struct{} {
	return r.drained
}

// Close stops decoding and waits until the handler is terminated.
func (r *Receiver) Close() error {
	r.closeOnce.Do(func() {
		close(r.quit)
		<-r.done
	})
	return nil
}

// run receives line events and bit clock ticks and hands them to the demodulator.
func (r *Receiver) run() {
	defer close(r.done)
	defer r.stopClock()

	for {
		select {
		case <-r.quit:
			return
		case evt, open := <-r.rx:
			if !open {
				debug.DebugLog.Print("line event source closed")
				r.rx = nil
				r.checkDrained()
				continue
			}
			r.handleEvent(evt)
		case <-r.tickerC():
			r.tick()
			r.checkDrained()
		}
	}
}

func (r *Receiver) handleEvent(evt port.Event) {
	if r.timeline != nil {
		r.timeline.Advance(evt.Timestamp, r.tick)
	}

	prev := r.State()
	r.OnEdge(r.capture.Count(evt.Timestamp))
	if s := r.State(); s != prev {
		debug.TraceLog.Printf("%v edge, duration %d: %v -> %v", evt.Type, r.ToneDuration(), prev, s)
	}
}

func (r *Receiver) tick() {
	err := r.OnTick()
	switch {
	case err == nil:
		return
	case errors.Is(err, ErrParity):
		debug.DebugLog.Print(err)
	default:
		debug.ErrorLog.Print(err)
	}

	select {
	case r.faults <- err:
	default:
	}
}

func (r *Receiver) tickerC() <-chan time.Time {
	if r.ticker == nil {
		return nil
	}
	return r.ticker.C()
}

func (r *Receiver) clockRunning() bool {
	if r.ticker != nil {
		return r.ticker.Running()
	}
	return false
}

// checkDrained closes drained once the source is closed and the wall clock is idle.
// A virtual clock cannot tick without events, so it is idle by definition.
func (r *Receiver) checkDrained() {
	if r.rx != nil || r.clockRunning() {
		return
	}

	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
}
