package app

import (
	"fsklink/pkg/app/config"
	"fsklink/pkg/fskdem"
	"fsklink/pkg/fskmod"
	"fsklink/pkg/port"
	"fsklink/pkg/raspberry"

	"github.com/womat/debug"
)

// source is the line event source of the receiver.
type source struct {
	events    <-chan port.Event
	clockMode fskdem.ClockMode

	// chip and line are set for a gpio line
	chip *raspberry.Chip
	line *raspberry.Line

	// modulator is set in simulation mode
	modulator *fskmod.Modulator
}

// openSource opens the configured gpio line or, in simulation mode, a loopback modulator.
func openSource(c *config.Config) (*source, error) {
	if c.Simulate {
		m := fskmod.New(modulatorConfig(c))
		debug.InfoLog.Print("simulation mode, receiving from loopback modulator")

		// the modulator timestamps are not related to the wall clock
		return &source{events: m.C, clockMode: fskdem.EventClock, modulator: m}, nil
	}

	mode, err := fskdem.ParseClockMode(c.Demodulator.ClockModeStr)
	if err != nil {
		return nil, err
	}

	chip, err := raspberry.Open(c.Gpio.Chip)
	if err != nil {
		return nil, err
	}

	line, err := chip.NewLine(c.Gpio.Line, c.Gpio.Terminator)
	if err != nil {
		_ = chip.Close()
		return nil, err
	}

	debug.InfoLog.Printf("receiving from %v line %v", c.Gpio.Chip, c.Gpio.Line)
	return &source{events: line.Events(), clockMode: mode, chip: chip, line: line}, nil
}

// droppedEdges returns the number of edges lost by the gpio line.
func (s *source) droppedEdges() uint64 {
	if s.line == nil {
		return 0
	}
	return s.line.Dropped()
}

// pending returns the number of bytes waiting for the loopback modulator.
func (s *source) pending() int {
	if s.modulator == nil {
		return 0
	}
	return s.modulator.Pending()
}

func (s *source) Close() error {
	if s.modulator != nil {
		return s.modulator.Close()
	}

	err := s.line.Close()
	if e := s.chip.Close(); err == nil {
		err = e
	}
	return err
}

// activity is the led which signals received bytes.
type activity interface {
	Toggle()
	Close() error
}

type noLed struct{}

func (noLed) Toggle()      {}
func (noLed) Close() error { return nil }

// openLed opens the activity led on BCM pin p. A negative pin or an unavailable gpio
// memory disables the led.
func openLed(p int) activity {
	if p < 0 {
		return noLed{}
	}

	l, err := raspberry.OpenLed(p)
	if err != nil {
		debug.ErrorLog.Printf("can't open led on gpio %v: %v", p, err)
		return noLed{}
	}
	return l
}
