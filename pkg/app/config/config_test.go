package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/womat/debug"
)

const testConfig = `
gpio:
  chip: gpiochip1
  line: 22
  terminator: pullup
  led: 9
demodulator:
  f0threshold: 13000
  bitclock: 1000
  clockmode: eventclock
simulate: true
output: none
debug:
  flag: debug
webserver:
  webservices:
    send: true
mqtt:
  connection: tcp://127.0.0.1:1883
  interval: 5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "fsklink.yaml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	return name
}

func TestLoadConfig(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, testConfig)
	require.NoError(t, c.LoadConfig())

	assert.Equal(t, GpioConfig{Chip: "gpiochip1", Line: 22, Terminator: "pullup", Led: 9}, c.Gpio)
	assert.Equal(t, uint32(13000), c.Demodulator.F0Threshold)
	// defaults survive a partial section
	assert.Equal(t, uint32(19000), c.Demodulator.F1Threshold)
	assert.Equal(t, uint32(3000), c.Demodulator.StartMargin)
	assert.Equal(t, int64(50_000_000), c.Capture.Clock)
	assert.Equal(t, time.Millisecond, c.Demodulator.BitClock)
	assert.Equal(t, "eventclock", c.Demodulator.ClockModeStr)
	assert.True(t, c.Simulate)
	assert.Equal(t, "none", c.Output)
	assert.Equal(t, debug.Warning|debug.Info|debug.Error|debug.Fatal|debug.Debug, c.Debug.Flag)
	assert.NotNil(t, c.Debug.File)
	assert.True(t, c.Webserver.Webservices["send"])
	assert.Equal(t, 5*time.Second, c.MQTT.Interval)
	assert.Equal(t, "tcp://127.0.0.1:1883", c.MQTT.Connection)
}

func TestLoadConfig_FlagOverridesDebug(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, testConfig)
	c.Flag.Debug = "trace"
	require.NoError(t, c.LoadConfig())
	assert.Equal(t, debug.Full, c.Debug.Flag)
	assert.NoError(t, c.Debug.File.Close())
}

func TestLoadConfig_Errors(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	assert.Error(t, c.LoadConfig())

	c = NewConfig()
	c.Flag.ConfigFile = writeConfig(t, "gpio: [")
	assert.Error(t, c.LoadConfig())

	c = NewConfig()
	c.Flag.ConfigFile = writeConfig(t, "debug:\n  flag: loud\n")
	assert.Error(t, c.LoadConfig())
}

func TestNewConfig_Defaults(t *testing.T) {
	c := NewConfig()
	c.derive()

	assert.Equal(t, 833*time.Microsecond, c.Demodulator.BitClock)
	assert.Equal(t, time.Minute, c.MQTT.Interval)
	assert.Equal(t, uint32(50000), c.Capture.MaxCount)
	assert.Equal(t, -1, c.Gpio.Led)
	assert.False(t, c.Webserver.Webservices["send"])
}

func TestCaptureConfig_Port(t *testing.T) {
	p := NewConfig().Capture.Port()
	assert.Equal(t, int64(50_000_000), p.Clock)
	assert.Equal(t, uint32(50000), p.MaxCount)
	assert.Equal(t, time.Millisecond, p.Duration(50000))
}
