package fskdem

// ToneDuration returns the number of counter ticks between two latches of a counter
// that wraps at maxCount. The result is always below maxCount for inputs below maxCount.
func ToneDuration(current, last, maxCount uint32) uint32 {
	if current >= last {
		return current - last
	}
	return maxCount - last + current
}

// OnEdge is the edge classifier. It is called for every edge of the line with the
// latched counter value.
//
//	StartDetect: a tone shorter than F0Threshold+StartMargin moves to InitWait.
//	InitWait:    the second edge seen moves to ReadState and starts the bit clock.
//	ReadState, Reset: nothing, the bit sampler owns these states.
func (d *Demodulator) OnEdge(count uint32) {
	diff := ToneDuration(count, d.lastCapture, d.config.Capture.MaxCount)
	d.timeDiff.Store(diff)

	switch s := d.State(); s {
	case StartDetect:
		if diff < d.config.F0Threshold+d.config.StartMargin {
			if d.transition(StartDetect, InitWait) {
				d.edgesSeen = 0
			}
		}
	case InitWait:
		if d.edgesSeen == 1 {
			if d.transition(InitWait, ReadState) {
				d.starts.Add(1)
				d.startClock()
			}
			d.edgesSeen = 0
			break
		}
		d.edgesSeen++
	case ReadState, Reset:
	default:
		d.transition(s, StartDetect)
	}

	d.lastCapture = count
}
