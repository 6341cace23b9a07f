//go:build linux

// Package raspberry is the watcher for gpio ports
package raspberry

import (
	"sync/atomic"

	"fsklink/pkg/port"

	"github.com/warthog618/gpiod"
	"github.com/womat/debug"
)

// Chip represents a single GPIO chip that controls a set of lines.
type Chip struct {
	gpiodChip *gpiod.Chip
}

// Line represents a single requested line.
type Line struct {
	gpiodLine *gpiod.Line
	// dropped counts the edges lost because C was full
	dropped atomic.Uint64
	// send edge changes to channel
	C chan port.Event
}

// Open opens the GPIO character device name, e.g. gpiochip0.
func Open(name string) (*Chip, error) {
	c, err := gpiod.NewChip(name)
	if err != nil {
		return nil, err
	}
	return &Chip{gpiodChip: c}, nil
}

// NewLine requests control of a single line on a chip.
//   If granted, control is maintained until the Line is closed.
//   Both edges of the line are sent to channel C with the kernel timestamp of the edge.
//   Edges are dropped if the receiver of C falls behind by more than EventBuffer edges.
func (c *Chip) NewLine(gpio int, terminator string) (*Line, error) {
	var err error

	line := &Line{
		C: make(chan port.Event, EventBuffer)}

	// handler runs in the gpiod watcher and must not block
	handler := func(evt gpiod.LineEvent) {
		e := port.Event{Timestamp: evt.Timestamp, Type: port.FallingEdge}
		if evt.Type == gpiod.LineEventRisingEdge {
			e.Type = port.RisingEdge
		}

		select {
		case line.C <- e:
		default:
			if line.dropped.Add(1) == 1 {
				debug.ErrorLog.Printf("line %v: receiver too slow, edges dropped", gpio)
			}
		}
	}

	switch terminator {
	case "pullup":
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullUp)
	case "pulldown":
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullDown)
	case "none":
		line.gpiodLine, err = c.gpiodChip.RequestLine(gpio, gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput)
	default:
		return nil, ErrInvalidParam
	}

	if err != nil {
		return nil, err
	}
	return line, nil
}

// Events returns the channel of line events.
func (l *Line) Events() <-chan port.Event {
	return l.C
}

// Dropped returns the number of edges lost because the channel was full.
func (l *Line) Dropped() uint64 {
	return l.dropped.Load()
}

// Close releases the Chip.
//
// It does not release any lines which may be requested - they must be closed
// independently.
func (c *Chip) Close() error {
	return c.gpiodChip.Close()
}

// Close releases all resources held by the requested line and closes C.
//
// Note that this includes waiting for any running event handler to return.
// As a consequence the Close must not be called from the context of the event
// handler - the Close should be called from a different goroutine.
func (l *Line) Close() error {
	if err := l.gpiodLine.Close(); err != nil {
		return err
	}
	close(l.C)
	return nil
}
