package port

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCapture_Count(t *testing.T) {
	c := Capture{Clock: 50_000_000, MaxCount: 50000}

	tt := []struct {
		name     string
		ts       time.Duration
		expected uint32
	}{
		{"zero", 0, 0},
		{"one tick", 20 * time.Nanosecond, 1},
		{"mark half period", 416667 * time.Nanosecond, 20833},
		{"wrap", time.Millisecond, 0},
		{"after wrap", time.Millisecond + 100*time.Microsecond, 5000},
		{"long uptime", 3*time.Hour + 300*time.Microsecond, 15000},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, c.Count(tc.ts))
		})
	}
}

func TestCapture_Conversions(t *testing.T) {
	c := Capture{Clock: 50_000_000, MaxCount: 50000}

	assert.Equal(t, uint32(14000), c.Counts(280*time.Microsecond))
	assert.Equal(t, 280*time.Microsecond, c.Duration(14000))
	assert.Equal(t, uint32(0), Capture{}.Count(time.Second))
	assert.Equal(t, time.Duration(0), Capture{}.Duration(10))
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "rising", RisingEdge.String())
	assert.Equal(t, "falling", FallingEdge.String())
	assert.Equal(t, "EventType(7)", EventType(7).String())
}
