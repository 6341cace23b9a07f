//go:build linux

package raspberry

import (
	"github.com/warthog618/gpio"
)

// Led is an output pin driven through the gpio memory map.
type Led struct {
	pin *gpio.Pin
}

// OpenLed maps the GPIO memory range from /dev/gpiomem and configures the BCM pin p as output.
// The led is switched off.
func OpenLed(p int) (*Led, error) {
	if p < 0 {
		return nil, ErrInvalidParam
	}
	if err := gpio.Open(); err != nil {
		return nil, err
	}

	pin := gpio.NewPin(p)
	pin.Output()
	pin.Low()
	return &Led{pin: pin}, nil
}

// Toggle inverts the led.
func (l *Led) Toggle() {
	l.pin.Toggle()
}

// Close switches the led off and unmaps the GPIO memory.
func (l *Led) Close() error {
	l.pin.Low()
	return gpio.Close()
}
