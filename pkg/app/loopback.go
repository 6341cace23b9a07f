package app

import (
	"errors"
	"fmt"
	"time"

	"fsklink/pkg/app/config"
	"fsklink/pkg/fskdem"
	"fsklink/pkg/fskmod"
	"fsklink/pkg/tone"

	"github.com/womat/debug"
)

// ErrTimeout is returned if the link doesn't deliver in time.
var ErrTimeout = errors.New("timeout")

// calibrationPattern alternates both tones in every bit slot.
var calibrationPattern = []byte{0x55, 0xaa}

// Loopback sends data through a loopback modulator into a receiver and returns the received bytes.
// Frames failing the parity check or dropped by a full receive queue are missing in the result.
func Loopback(c *config.Config, data []byte, timeout time.Duration) ([]byte, fskdem.Stats, error) {
	if len(data) == 0 {
		return nil, fskdem.Stats{}, nil
	}

	m := fskmod.New(modulatorConfig(c))
	r := fskdem.NewReceiver(m.C, demodulatorConfig(c, fskdem.EventClock))
	defer func() {
		_ = r.Close()
		_ = m.Close()
	}()

	m.PutArray(data)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	var received []byte
	buf := make([]byte, len(data))
	for {
		// the stats are read before the queue, so the last bytes are never missed
		s := r.Stats()
		n := r.GetNextArray(buf)
		received = append(received, buf[:n]...)

		if s.Frames+s.ParityErrors+s.Overruns >= uint64(len(data)) {
			n = r.GetNextArray(buf)
			received = append(received, buf[:n]...)
			return received, r.Stats(), nil
		}

		select {
		case <-deadline.C:
			return received, r.Stats(), fmt.Errorf("loopback of %d bytes: %w", len(data), ErrTimeout)
		case <-poll.C:
		}
	}
}

// Calibrate measures the tone half-periods of the configured line.
// In simulation mode a test pattern is sent through the loopback modulator.
func Calibrate(c *config.Config, samples int, timeout time.Duration) (tone.Calibration, error) {
	src, err := openSource(c)
	if err != nil {
		return tone.Calibration{}, err
	}
	defer func() { _ = src.Close() }()

	if src.modulator != nil {
		// a pattern frame has more than 16 edges
		for i := 0; i <= samples/16; i += len(calibrationPattern) {
			src.modulator.PutArray(calibrationPattern)
		}
	}

	collector := tone.NewCollector(c.Capture.Port(), samples)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for full := false; !full; {
		select {
		case evt, open := <-src.events:
			if !open {
				full = true
				break
			}
			full = collector.Add(evt)
		case <-deadline.C:
			debug.ErrorLog.Printf("calibration timeout, %d samples collected", len(collector.Samples()))
			full = true
		}
	}

	return collector.Calibrate()
}
