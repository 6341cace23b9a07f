package app

import (
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"

	"fsklink/pkg/fskdem"
	"fsklink/pkg/queue"

	"github.com/womat/debug"
)

const (
	// pollInterval is the interval of checking the receive queue.
	pollInterval = 10 * time.Millisecond
	// recentSize is the number of received bytes kept for the data web service.
	recentSize = 256
)

// Data is the message of received bytes.
type Data struct {
	TimeStamp time.Time // time the bytes were taken from the receive queue
	Received  uint64    // number of bytes received since start
	Text      string    // received bytes
	Hex       string    // received bytes, hex encoded
}

// Stats is the message of the link statistics.
type Stats struct {
	TimeStamp    time.Time
	State        string       // frame state of the demodulator
	ErrorFlag    bool         // a frame failed the parity check since the last fault message
	ToneDuration uint32       // last measured tone duration in counter ticks
	Demodulator  fskdem.Stats // frame counters
	DroppedEdges uint64       // line events lost before reaching the demodulator
	Pending      int          // bytes waiting for the loopback modulator
}

// Fault is the message of a frame error.
type Fault struct {
	TimeStamp time.Time
	Error     string
}

// service waits in an endless loop for received bytes and frame errors.
//  It writes the bytes to the output, toggles the activity led and sends the bytes to the mqtt broker.
//  It's designed to run in a separate go function, see app.start()
func (app *App) service() {
	buf := make([]byte, recentSize)
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-app.quit:
			return
		case err := <-app.receiver.Faults():
			app.fault(err)
		case <-poll.C:
			for {
				n, err := app.receiver.Read(buf)
				if err == io.EOF {
					break
				}
				app.received(buf[:n])
			}
			app.validateStats()
		}
	}
}

// received forwards the bytes taken from the receive queue.
func (app *App) received(b []byte) {
	debug.DebugLog.Printf("received %q", b)

	if _, err := app.output.Write(b); err != nil {
		debug.ErrorLog.Printf("write output: %v", err)
	}

	for range b {
		app.led.Toggle()
	}

	d := app.recent.add(b)
	app.mqtt.Publish(app.topic("data"), d)
}

// fault reports a parity or overrun error.
func (app *App) fault(err error) {
	if errors.Is(err, fskdem.ErrParity) {
		app.receiver.ClearErrorFlag()
	}

	app.mqtt.Publish(app.topic("fault"), Fault{TimeStamp: time.Now(), Error: err.Error()})
}

// validateStats sends the statistics to mqtt if the interval is exceeded or a frame error has occurred.
func (app *App) validateStats() {
	s := app.stats()

	app.mqttStats.Lock()
	defer app.mqttStats.Unlock()

	m := app.mqttStats.data
	deltaT := s.TimeStamp.Sub(m.TimeStamp)
	deltaErr := s.Demodulator.ParityErrors != m.Demodulator.ParityErrors ||
		s.Demodulator.Overruns != m.Demodulator.Overruns ||
		s.DroppedEdges != m.DroppedEdges

	if deltaT >= app.config.MQTT.Interval || deltaErr {
		app.mqtt.Publish(app.topic("stats"), s)
		app.mqttStats.data = s
	}
}

// stats collects the current link statistics.
func (app *App) stats() Stats {
	return Stats{
		TimeStamp:    time.Now(),
		State:        app.receiver.State().String(),
		ErrorFlag:    app.receiver.ErrorFlag(),
		ToneDuration: app.receiver.ToneDuration(),
		Demodulator:  app.receiver.Stats(),
		DroppedEdges: app.source.droppedEdges(),
		Pending:      app.source.pending(),
	}
}

func (app *App) topic(name string) string {
	if app.config.MQTT.Topic == "" {
		return ""
	}
	return app.config.MQTT.Topic + "/" + name
}

// recent keeps the last received bytes in a ring.
type recent struct {
	sync.Mutex
	q        *queue.Queue
	received uint64
	last     time.Time
}

func newRecent(size int) *recent {
	return &recent{q: queue.New(size)}
}

// add appends b, drops the oldest bytes if the ring is full and returns the message of b.
func (r *recent) add(b []byte) Data {
	r.Lock()
	defer r.Unlock()

	for _, v := range b {
		if r.q.IsFull() {
			r.q.Get()
		}
		r.q.Put(v)
	}
	r.received += uint64(len(b))
	r.last = time.Now()

	return Data{TimeStamp: r.last, Received: r.received, Text: string(b), Hex: hex.EncodeToString(b)}
}

// data returns the message of all kept bytes.
func (r *recent) data() Data {
	r.Lock()
	defer r.Unlock()

	b := make([]byte, r.q.FillLevel())
	for i := range b {
		b[i] = r.q.ReadValue(i)
	}
	return Data{TimeStamp: r.last, Received: r.received, Text: string(b), Hex: hex.EncodeToString(b)}
}
