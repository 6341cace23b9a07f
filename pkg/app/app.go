package app

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"
	"time"

	"fsklink/pkg/app/config"
	"fsklink/pkg/fskdem"
	"fsklink/pkg/fskmod"
	"fsklink/pkg/mqtt"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// source delivers the line events, either from the gpio line or from the loopback modulator
	source *source

	// led is toggled for every received byte
	led activity

	// receiver is the fsk demodulator connected to source
	receiver *fskdem.Receiver

	// transmitter accepts bytes to send, nil if the link has no transmit path
	transmitter fskmod.Transmitter

	// output receives the decoded bytes
	output io.WriteCloser

	// recent holds the last received bytes
	recent *recent

	// mqttStats is the last statistics sent to the mqtt broker
	mqttStats struct {
		sync.Mutex
		data Stats
	}

	// started is the start time of the application
	started time.Time

	// quit stops the service loop
	quit chan struct{}
	// wg waits for the service loop
	wg   sync.WaitGroup
	once sync.Once
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:    fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:   mqtt.New(),
		led:    noLed{},
		recent: newRecent(recentSize),

		started: time.Now(),
		quit:    make(chan struct{}),
	}, err
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	app.start()

	return nil
}

// start runs the service loop in its own go function.
func (app *App) start() {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.service()
	}()
}

// init initializes the application.
func (app *App) init() (err error) {
	if app.output, err = openOutput(app.config.Output); err != nil {
		debug.ErrorLog.Printf("can't open output %q: %v", app.config.Output, err)
		return err
	}

	if app.source, err = openSource(app.config); err != nil {
		debug.ErrorLog.Printf("can't open line: %v", err)
		return err
	}
	if app.source.modulator != nil {
		app.transmitter = app.source.modulator
	}

	app.led = openLed(app.config.Gpio.Led)

	app.receiver = fskdem.NewReceiver(app.source.events, demodulatorConfig(app.config, app.source.clockMode))

	if err = app.mqtt.Connect(app.config.MQTT.Connection, MODULE); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initRoutes and initDefaultRoutes should be always called last because it may access things like app.api
	// which must be initialized before in initAPI()
	app.initDefaultRoutes()

	return nil
}

// Close stops the service loop and releases the line, the led and the broker connection.
func (app *App) Close() error {
	app.once.Do(func() {
		if app.quit != nil {
			close(app.quit)
		}
	})
	app.wg.Wait()

	if app.receiver != nil {
		_ = app.receiver.Close()
	}
	if app.source != nil {
		_ = app.source.Close()
	}
	if app.led != nil {
		_ = app.led.Close()
	}
	if app.output != nil {
		_ = app.output.Close()
	}
	if app.mqtt != nil {
		_ = app.mqtt.Close()
	}
	if app.web != nil {
		_ = app.web.Shutdown()
	}
	return nil
}

// demodulatorConfig converts the demodulator section of the configuration.
func demodulatorConfig(c *config.Config, mode fskdem.ClockMode) fskdem.Config {
	return fskdem.Config{
		Capture:     c.Capture.Port(),
		F0Threshold: c.Demodulator.F0Threshold,
		F1Threshold: c.Demodulator.F1Threshold,
		StartMargin: c.Demodulator.StartMargin,
		QueueSize:   c.Demodulator.QueueSize,
		BitPeriod:   c.Demodulator.BitClock,
		ClockMode:   mode,
	}
}

// modulatorConfig converts the modulator section of the configuration.
func modulatorConfig(c *config.Config) fskmod.Config {
	return fskmod.Config{
		Mark:      c.Modulator.Mark,
		Space:     c.Modulator.Space,
		BitPeriod: c.Demodulator.BitClock,
		IdleSlots: c.Modulator.IdleSlots,
		QueueSize: c.Demodulator.QueueSize,
	}
}

// openOutput opens the destination of the decoded bytes.
func openOutput(name string) (io.WriteCloser, error) {
	switch name {
	case "", "none":
		return nopCloser{io.Discard}, nil
	case "stdout":
		return nopCloser{os.Stdout}, nil
	case "stderr":
		return nopCloser{os.Stderr}, nil
	default:
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		return f, nil
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
