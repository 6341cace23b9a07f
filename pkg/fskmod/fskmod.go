// Package fskmod is the transmit side of the link.
//
// Tone synthesis is done by hardware. The Modulator in this package is a loopback
// transmitter: it queues the bytes like the hardware transmitter does and emits the
// edge timing the receiver would see on the line, which is used to simulate the link.
package fskmod

import (
	"sync"
	"time"

	"fsklink/pkg/port"
	"fsklink/pkg/queue"

	"github.com/womat/debug"
)

const (
	// MarkFrequency is the tone of a logical 1 in Hz.
	MarkFrequency = 1200
	// SpaceFrequency is the tone of a logical 0 in Hz.
	SpaceFrequency = 2200
	// StartEdges is the number of space tone edges that announce a frame.
	StartEdges = 3
	// DefaultIdleSlots is the number of mark tone bit periods around each frame.
	DefaultIdleSlots = 3
)

// Transmitter accepts bytes for transmission.
type Transmitter interface {
	// PutArray queues data for transmission. Bytes that do not fit into the
	// transmit queue are dropped.
	PutArray(data []byte)
}

// Config holds the modulation parameters.
type Config struct {
	// Mark is the frequency of a logical 1 in Hz.
	Mark float64
	// Space is the frequency of a logical 0 in Hz.
	Space float64
	// BitPeriod is the duration of one bit slot.
	BitPeriod time.Duration
	// IdleSlots is the number of mark tone bit periods before and after each frame.
	IdleSlots int
	// QueueSize is the capacity of the transmit queue.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.Mark <= 0 {
		c.Mark = MarkFrequency
	}
	if c.Space <= 0 {
		c.Space = SpaceFrequency
	}
	if c.BitPeriod <= 0 {
		c.BitPeriod = 833 * time.Microsecond
	}
	if c.IdleSlots < 2 {
		c.IdleSlots = DefaultIdleSlots
	}
	if c.QueueSize <= 0 {
		c.QueueSize = queue.DefaultCapacity
	}
	return c
}

// Modulator is the loopback transmitter.
type Modulator struct {
	// C is the channel to send the generated line events.
	// It is closed by Close.
	C chan port.Event

	synth *Synthesizer
	tx    *queue.Queue
	// pl serializes the producers of the transmit queue.
	pl sync.Mutex

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// New creates a loopback modulator and starts the transmit handler.
func New(c Config) *Modulator {
	c = c.withDefaults()
	m := &Modulator{
		C:     make(chan port.Event),
		synth: NewSynthesizer(c),
		tx:    queue.New(c.QueueSize),
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go m.run()
	return m
}

// PutArray queues data for transmission.
func (m *Modulator) PutArray(data []byte) {
	m.pl.Lock()
	n := m.tx.PutArray(data)
	m.pl.Unlock()

	if n < len(data) {
		debug.ErrorLog.Printf("transmit queue full, %d of %d bytes dropped", len(data)-n, len(data))
	}

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of bytes waiting for transmission.
func (m *Modulator) Pending() int {
	return m.tx.FillLevel()
}

// Close stops the transmit handler and closes C. Pending bytes are discarded.
func (m *Modulator) Close() error {
	m.once.Do(func() {
		close(m.quit)
		<-m.done
		close(m.C)
	})
	return nil
}

// run waits for queued bytes and sends the line events of their frames to C.
func (m *Modulator) run() {
	defer close(m.done)

	buf := make([]byte, 64)
	for {
		select {
		case <-m.quit:
			return
		case <-m.wake:
		}

		for n := m.tx.GetNextArray(buf); n > 0; n = m.tx.GetNextArray(buf) {
			for _, b := range buf[:n] {
				debug.TraceLog.Printf("transmit %#02x", b)
				for _, evt := range m.synth.Frame(b) {
					select {
					case m.C <- evt:
					case <-m.quit:
						return
					}
				}
			}
		}
	}
}
