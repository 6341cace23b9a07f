package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"fsklink/pkg/port"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// Config holds the application configuration. Attention!
// To make it possible to overwrite fields with the -overwrite command
// line option each of the struct fields must be in the format
// first letter uppercase -> followed by CamelCase as in the config file.
// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Flag        FlagConfig        `yaml:"-"`
	Gpio        GpioConfig        `yaml:"gpio"`
	Capture     CaptureConfig     `yaml:"capture"`
	Demodulator DemodulatorConfig `yaml:"demodulator"`
	Modulator   ModulatorConfig   `yaml:"modulator"`
	// Simulate replaces the gpio line by the loopback modulator.
	Simulate bool `yaml:"simulate"`
	// Output receives the decoded bytes: stdout, stderr, none or a file name.
	Output    string          `yaml:"output"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Debug      string
	ConfigFile string
}

// GpioConfig defines the receive line and the activity led.
type GpioConfig struct {
	Chip string `yaml:"chip"`
	Line int    `yaml:"line"`
	// Terminator is the line bias: pullup, pulldown or none.
	Terminator string `yaml:"terminator"`
	// Led is the BCM number of the activity led, a negative number disables the led.
	Led int `yaml:"led"`
}

// CaptureConfig defines the emulated input capture counter.
type CaptureConfig struct {
	Clock    int64  `yaml:"clock"`
	MaxCount uint32 `yaml:"maxcount"`
}

// Port returns the capture counter of the receiver.
func (c CaptureConfig) Port() port.Capture {
	return port.Capture{Clock: c.Clock, MaxCount: c.MaxCount}
}

// DemodulatorConfig defines the demodulator thresholds and the bit clock.
type DemodulatorConfig struct {
	F0Threshold  uint32        `yaml:"f0threshold"`
	F1Threshold  uint32        `yaml:"f1threshold"`
	StartMargin  uint32        `yaml:"startmargin"`
	QueueSize    int           `yaml:"queuesize"`
	BitClock     time.Duration `yaml:"-"`
	BitClockInt  int           `yaml:"bitclock"`
	ClockModeStr string        `yaml:"clockmode"`
}

// ModulatorConfig defines the tones of the loopback modulator.
type ModulatorConfig struct {
	Mark      float64 `yaml:"mark"`
	Space     float64 `yaml:"space"`
	IdleSlots int     `yaml:"idleslots"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection  string        `yaml:"connection"`
	Interval    time.Duration `yaml:"-"`
	IntervalInt int           `yaml:"interval"`
	Topic       string        `yaml:"topic"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		Flag: FlagConfig{},
		Gpio: GpioConfig{
			Chip:       "gpiochip0",
			Line:       17,
			Terminator: "none",
			Led:        -1,
		},
		Capture: CaptureConfig{
			Clock:    50_000_000,
			MaxCount: 50000,
		},
		Demodulator: DemodulatorConfig{
			F0Threshold:  14000,
			F1Threshold:  19000,
			StartMargin:  3000,
			QueueSize:    1000,
			BitClockInt:  833,
			ClockModeStr: "wallclock",
		},
		Modulator: ModulatorConfig{
			Mark:      1200,
			Space:     2200,
			IdleSlots: 3,
		},
		Output: "stdout",
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
				"stats":   true,
				"send":    false,
			},
		},
		MQTT: MQTTConfig{
			IntervalInt: 60,
			Topic:       "/fsklink",
		},
	}
}

func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("debug configuration %q: %w", c.Debug.FileString, err)
	}

	c.derive()
	return nil
}

// derive computes the fields which are not part of the configuration file.
func (c *Config) derive() {
	c.MQTT.Interval = time.Duration(c.MQTT.IntervalInt) * time.Second
	c.Demodulator.BitClock = time.Duration(c.Demodulator.BitClockInt) * time.Microsecond
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	default:
		return fmt.Errorf("unknown debug level %q", c.Debug.FlagString)
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = nopCloser{os.Stderr}
	case "stdout":
		c.Debug.File = nopCloser{os.Stdout}
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}

// nopCloser keeps the standard streams open when the debug file is closed.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
