//go:build !linux

// Package raspberry is the watcher for gpio ports
package raspberry

import (
	"fsklink/pkg/port"
)

// Chip is not available on this platform.
type Chip struct{}

// Line is not available on this platform.
type Line struct {
	C chan port.Event
}

// Led is not available on this platform.
type Led struct{}

// Open returns ErrNotSupported.
func Open(string) (*Chip, error) {
	return nil, ErrNotSupported
}

// NewLine returns ErrNotSupported.
func (c *Chip) NewLine(int, string) (*Line, error) {
	return nil, ErrNotSupported
}

// Close does nothing.
func (c *Chip) Close() error { return nil }

// Events returns the channel of line events.
func (l *Line) Events() <-chan port.Event { return l.C }

// Dropped returns zero.
func (l *Line) Dropped() uint64 { return 0 }

// Close does nothing.
func (l *Line) Close() error { return nil }

// OpenLed returns ErrNotSupported.
func OpenLed(int) (*Led, error) {
	return nil, ErrNotSupported
}

// Toggle does nothing.
func (l *Led) Toggle() {}

// Close does nothing.
func (l *Led) Close() error { return nil }
