package raspberry

import "errors"

// EventBuffer is the number of line events buffered for the receiver.
const EventBuffer = 1024

var (
	ErrInvalidParam = errors.New("invalid parameters")
	ErrNotSupported = errors.New("gpio is not supported on this platform")
)
