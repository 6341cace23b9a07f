// Package tone estimates the half-periods of the two FSK tones from measured edge durations.
//
// The receiver slices with a fixed threshold; the estimate is used to check (and configure)
// that threshold for a given line.
package tone

import (
	"errors"
	"sort"

	"fsklink/pkg/fskdem"
	"fsklink/pkg/port"
)

const (
	// minSamples is the minimum number of durations needed for an estimate.
	minSamples = 8
	// maxIterations bounds the refinement of the cluster centers.
	maxIterations = 16
)

var (
	// ErrNoSamples is returned if fewer than minSamples durations are available.
	ErrNoSamples = errors.New("not enough tone samples")
	// ErrSingleTone is returned if all durations belong to the same tone.
	ErrSingleTone = errors.New("only one tone found")
)

// Calibration is the result of a tone estimate, all values in capture counter ticks.
type Calibration struct {
	// Space is the median half-period of the short (high) tone.
	Space uint32 `json:"space"`
	// Mark is the median half-period of the long (low) tone.
	Mark uint32 `json:"mark"`
	// Threshold is the midpoint between Space and Mark.
	Threshold uint32 `json:"threshold"`
	// Samples is the number of durations used.
	Samples int `json:"samples"`
}

// Calibrate estimates the tone half-periods from edge durations.
// samples is sorted in place.
//
// Edges around a tone change have durations between the two half-periods, so the
// estimate splits the samples into a short and a long cluster around two centers and
// uses the median of each cluster, which ignores these transition durations.
func Calibrate(samples []uint32) (Calibration, error) {
	if len(samples) < minSamples {
		return Calibration{}, ErrNoSamples
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	// drop the lowest and highest sample
	samples = samples[1 : len(samples)-1]

	space := samples[len(samples)/4]
	mark := samples[len(samples)*3/4]
	for i := 0; i < maxIterations; i++ {
		// samples is sorted, so each cluster is a contiguous range
		mid := space + (mark-space)/2
		split := sort.Search(len(samples), func(j int) bool { return samples[j] > mid })
		if split == 0 || split == len(samples) {
			return Calibration{}, ErrSingleTone
		}

		s, m := median(samples[:split]), median(samples[split:])
		if s == space && m == mark {
			break
		}
		space, mark = s, m
	}

	// a single tone has no second cluster worth the name
	if uint64(mark)*4 < uint64(space)*5 {
		return Calibration{}, ErrSingleTone
	}

	return Calibration{
		Space:     space,
		Mark:      mark,
		Threshold: space + (mark-space)/2,
		Samples:   len(samples),
	}, nil
}

func median(sorted []uint32) uint32 {
	return sorted[len(sorted)/2]
}

// Collector turns line events into edge durations.
type Collector struct {
	capture port.Capture
	limit   int
	last    uint32
	started bool
	samples []uint32
}

// NewCollector creates a collector that keeps up to limit durations.
func NewCollector(capture port.Capture, limit int) *Collector {
	if limit < minSamples {
		limit = minSamples
	}
	return &Collector{
		capture: capture,
		limit:   limit,
		samples: make([]uint32, 0, limit),
	}
}

// Add records the duration since the previous event. It returns true when the collector is full.
func (c *Collector) Add(evt port.Event) bool {
	count := c.capture.Count(evt.Timestamp)
	if c.started && len(c.samples) < c.limit {
		c.samples = append(c.samples, fskdem.ToneDuration(count, c.last, c.capture.MaxCount))
	}

	c.started = true
	c.last = count
	return len(c.samples) >= c.limit
}

// Samples returns the recorded durations.
func (c *Collector) Samples() []uint32 {
	return c.samples
}

// Calibrate estimates the tone half-periods from the recorded durations.
func (c *Collector) Calibrate() (Calibration, error) {
	samples := make([]uint32, len(c.samples))
	copy(samples, c.samples)
	return Calibrate(samples)
}
