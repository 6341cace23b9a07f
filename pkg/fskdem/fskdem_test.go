package fskdem

import (
	"math/rand"
	"sync"
	"testing"

	"fsklink/pkg/bitclock"
	"fsklink/pkg/parity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	markDuration  = 20833 // 1200 Hz half period at 50 MHz
	spaceDuration = 11364 // 2200 Hz half period at 50 MHz
)

// line latches edges on a wrapping counter, like the capture timer does.
type line struct {
	d     *Demodulator
	count uint32
}

func (l *line) edge(duration uint32) {
	l.count = (l.count + duration) % MaxCount
	l.d.OnEdge(l.count)
}

func (l *line) start(t *testing.T) {
	l.edge(15000)
	require.Equal(t, InitWait, l.d.State())
	l.edge(15000)
	require.Equal(t, InitWait, l.d.State())
	l.edge(15000)
	require.Equal(t, ReadState, l.d.State())
}

// bits sends one edge per bit and samples it with one tick.
func (l *line) bits(t *testing.T, b byte, parityBit bool) error {
	for i := 7; i >= 0; i-- {
		l.bit(b&(1<<i) != 0)
		require.NoError(t, l.d.OnTick())
	}
	l.bit(parityBit)
	require.NoError(t, l.d.OnTick())
	require.Equal(t, Reset, l.d.State())

	return l.d.OnTick()
}

func (l *line) bit(v bool) {
	if v {
		l.edge(markDuration)
	} else {
		l.edge(spaceDuration)
	}
}

func newTestDemodulator(c Config) (*Demodulator, *bitclock.Manual, *line) {
	clock := new(bitclock.Manual)
	d := New(c, clock)
	return d, clock, &line{d: d}
}

func TestToneDuration(t *testing.T) {
	tt := []struct {
		name     string
		current  uint32
		last     uint32
		expected uint32
	}{
		{"forward", 30000, 15000, 15000},
		{"equal", 100, 100, 0},
		{"wrapped", 1000, 49000, 2000},
		{"wrapped to zero", 0, 49999, 1},
		{"first edge", 20833, 0, 20833},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ToneDuration(tc.current, tc.last, MaxCount))
		})
	}
}

func TestToneDuration_WrapProperty(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		last := uint32(r.Intn(MaxCount))
		current := uint32(r.Intn(MaxCount))
		diff := ToneDuration(current, last, MaxCount)

		assert.Less(t, diff, uint32(MaxCount))
		if current < last {
			assert.Equal(t, MaxCount-last+current, diff)
		}
		assert.Equal(t, current, (last+diff)%MaxCount)
	}
}

func TestDemodulator_Scenario(t *testing.T) {
	d, clock, l := newTestDemodulator(DefaultConfig())

	l.start(t)
	assert.True(t, clock.Running())
	assert.Equal(t, 1, clock.Starts())

	require.NoError(t, l.bits(t, 0xB2, parity.Bit(0xB2)))
	assert.Equal(t, StartDetect, d.State())
	assert.False(t, clock.Running())

	require.True(t, d.IsDataReady())
	assert.Equal(t, byte(0xB2), d.GetNextValue())
	assert.False(t, d.IsDataReady())
	assert.False(t, d.ErrorFlag())

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Starts)
	assert.Equal(t, uint64(1), stats.Frames)
	assert.Equal(t, 0, stats.Buffered)
}

func TestDemodulator_AllBytes(t *testing.T) {
	d, _, l := newTestDemodulator(DefaultConfig())

	for v := 0; v < 256; v++ {
		b := byte(v)
		l.start(t)
		require.NoError(t, l.bits(t, b, parity.Bit(b)))
		require.True(t, d.IsDataReady(), "byte %#02x", b)
		require.Equal(t, b, d.GetNextValue())
	}
	assert.False(t, d.ErrorFlag())
	assert.Equal(t, uint64(256), d.Stats().Frames)
}

func TestDemodulator_ParityFault(t *testing.T) {
	d, clock, l := newTestDemodulator(DefaultConfig())

	l.start(t)
	err := l.bits(t, 0xB2, !parity.Bit(0xB2))
	assert.ErrorIs(t, err, ErrParity)

	assert.False(t, d.IsDataReady())
	assert.Equal(t, byte(0), d.GetNextValue())
	assert.True(t, d.ErrorFlag())
	assert.Equal(t, StartDetect, d.State())
	assert.False(t, clock.Running())
	assert.Equal(t, uint64(1), d.Stats().ParityErrors)

	assert.True(t, d.ClearErrorFlag())
	assert.False(t, d.ErrorFlag())

	// the next frame starts fresh
	l.start(t)
	require.NoError(t, l.bits(t, 0x55, parity.Bit(0x55)))
	assert.Equal(t, byte(0x55), d.GetNextValue())
}

func TestDemodulator_QueueFull(t *testing.T) {
	c := DefaultConfig()
	c.QueueSize = 1
	d, _, l := newTestDemodulator(c)

	l.start(t)
	require.NoError(t, l.bits(t, 0x11, parity.Bit(0x11)))

	l.start(t)
	err := l.bits(t, 0x22, parity.Bit(0x22))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.False(t, d.ErrorFlag())

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.Frames)
	assert.Equal(t, uint64(1), stats.Overruns)
	assert.Equal(t, 1, stats.Buffered)
	assert.Equal(t, byte(0x11), d.GetNextValue())
}

func TestDemodulator_StartDetect(t *testing.T) {
	tt := []struct {
		name     string
		duration uint32
		expected State
	}{
		{"mark tone is ignored", markDuration, StartDetect},
		{"at the start bound", F0Threshold + StartMargin, StartDetect},
		{"just below the start bound", F0Threshold + StartMargin - 1, InitWait},
		{"space tone qualifies", spaceDuration, InitWait},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			d, clock, l := newTestDemodulator(DefaultConfig())
			l.edge(markDuration)
			require.Equal(t, StartDetect, d.State())

			l.edge(tc.duration)
			assert.Equal(t, tc.expected, d.State())
			assert.Equal(t, tc.duration, d.ToneDuration())
			assert.False(t, clock.Running())
		})
	}
}

func TestDemodulator_InitWaitCountsEdges(t *testing.T) {
	d, clock, l := newTestDemodulator(DefaultConfig())

	l.edge(spaceDuration)
	require.Equal(t, InitWait, d.State())

	// any edge counts, the duration does not matter any more
	l.edge(markDuration)
	assert.Equal(t, InitWait, d.State())
	assert.False(t, clock.Running())

	l.edge(markDuration)
	assert.Equal(t, ReadState, d.State())
	assert.True(t, clock.Running())

	// edges do not change ReadState and Reset
	l.edge(spaceDuration)
	assert.Equal(t, ReadState, d.State())
	d.state.Store(int32(Reset))
	l.edge(spaceDuration)
	assert.Equal(t, Reset, d.State())
}

func TestDemodulator_ResetIsIdempotent(t *testing.T) {
	for _, duration := range []uint32{0, spaceDuration, F0Threshold, F0Threshold + 1, markDuration, MaxCount - 1} {
		d, clock, l := newTestDemodulator(DefaultConfig())
		l.edge(duration)
		clock.Start()
		d.state.Store(int32(Reset))
		d.acc = accumulator{output: 0xB2, bitCounter: 3, parityBit: true}

		_ = d.OnTick()

		assert.Equal(t, StartDetect, d.State(), "duration %d", duration)
		assert.Equal(t, accumulator{}, d.acc, "duration %d", duration)
		assert.False(t, clock.Running())
	}
}

func TestDemodulator_TickOutsideFrame(t *testing.T) {
	for _, s := range []State{StartDetect, InitWait, State(42)} {
		t.Run(s.String(), func(t *testing.T) {
			d, clock, _ := newTestDemodulator(DefaultConfig())
			clock.Start()
			d.state.Store(int32(s))
			d.acc = accumulator{output: 0xFF, bitCounter: 5, parityBit: true}

			require.NoError(t, d.OnTick())

			assert.Equal(t, StartDetect, d.State())
			assert.Equal(t, accumulator{}, d.acc)
			assert.False(t, clock.Running())
			assert.False(t, d.IsDataReady())
		})
	}
}

func TestDemodulator_InvalidStateOnEdge(t *testing.T) {
	d, _, l := newTestDemodulator(DefaultConfig())
	d.state.Store(42)

	l.edge(spaceDuration)
	assert.Equal(t, StartDetect, d.State())
}

func TestDemodulator_UnknownStateString(t *testing.T) {
	assert.Equal(t, "State(42)", State(42).String())
	assert.Equal(t, "ReadState", ReadState.String())
}

func TestNew_Defaults(t *testing.T) {
	d := New(Config{}, nil)
	assert.Equal(t, DefaultConfig(), d.Config())
	assert.Equal(t, StartDetect, d.State())

	// a demodulator without clock still decodes
	l := &line{d: d}
	l.start(t)
	require.NoError(t, l.bits(t, 0x0F, parity.Bit(0x0F)))
	assert.Equal(t, byte(0x0F), d.GetNextValue())
}

func TestDemodulator_ConcurrentSides(t *testing.T) {
	d, _, l := newTestDemodulator(DefaultConfig())
	r := rand.New(rand.NewSource(2))
	durations := make([]uint32, 5000)
	for i := range durations {
		durations[i] = uint32(r.Intn(MaxCount))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, duration := range durations {
			l.edge(duration)
		}
	}()
	go func() {
		defer wg.Done()
		for range durations {
			_ = d.OnTick()
		}
	}()
	wg.Wait()

	s := d.State()
	assert.True(t, s >= StartDetect && s <= Reset, "state %v", s)
	stats := d.Stats()
	assert.Equal(t, uint64(stats.Buffered), stats.Frames)
}

func TestParseClockMode(t *testing.T) {
	tt := []struct {
		in       string
		expected ClockMode
		err      bool
	}{
		{"", WallClock, false},
		{"wallclock", WallClock, false},
		{"EventClock", EventClock, false},
		{"sundial", WallClock, true},
	}
	for _, tc := range tt {
		t.Run(tc.in, func(t *testing.T) {
			m, err := ParseClockMode(tc.in)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, m)
		})
	}
}
