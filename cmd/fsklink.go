package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"fsklink/pkg/app"
	"fsklink/pkg/app/config"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
)

const defaultConfigFile = "/opt/womat/config/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	var timeout time.Duration
	var samples int

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "FSK receiver for a comparator output on a gpio line",
		Version: app.VERSION,
		Description: "Demodulate the FSK signal of a gpio line and write the received bytes to the output and to mqtt" +
			"\n the tone of every half period is measured from the edge timestamps of the line," +
			"\n a frame is a start sequence, 8 data bits (MSB first) and an odd parity bit.",
		UsageText: "fsklink [--config <file>] [--debug standard|debug|trace] [command]" +
			"\n\nEXAMPLE:" +
			"\n\tstart the receiver and use the configuration file fsklink.yaml" +
			"\n\t\tfsklink --config /opt/womat/fsklink.yaml" +
			"\n\tsend a text through the loopback modulator" +
			"\n\t\tfsklink send 'hello world'",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "debug", Aliases: []string{"d"}, Destination: &cfg.Flag.Debug, Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
		},
		Before: func(ctx *cli.Context) error {
			if err := cfg.LoadConfig(); err != nil {
				return err
			}

			debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
			return nil
		},
		After: func(ctx *cli.Context) error {
			if cfg.Debug.File != nil {
				debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
				_ = cfg.Debug.File.Close()
			}
			return nil
		},
		Action: func(ctx *cli.Context) error {
			a, err := app.New(cfg)
			defer func() {
				debug.InfoLog.Printf("closing app %s", app.Version())
				_ = a.Close()
			}()

			if err != nil {
				return err
			}

			debug.InfoLog.Printf("starting app %s", app.Version())
			if err = a.Run(); err != nil {
				return err
			}

			// capture exit signals to ensure resources are released on exit.
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			// wait for am os.Interrupt signal (CTRL C)
			sig := <-quit
			debug.InfoLog.Printf("Got %s signal. Aborting...", sig)

			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "send a text through the loopback modulator and print the received bytes",
				ArgsUsage: "TEXT",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Destination: &timeout, Value: 10 * time.Second, Usage: "maximum `DURATION` of the transmission"},
				},
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 1 {
						return cli.Exit("send expects exactly one TEXT argument", 2)
					}

					received, stats, err := app.Loopback(cfg, []byte(ctx.Args().First()), timeout)
					fmt.Printf("received: %q\n", received)
					fmt.Printf("frames: %d, parity errors: %d, overruns: %d\n", stats.Frames, stats.ParityErrors, stats.Overruns)
					return err
				},
			},
			{
				Name:  "calibrate",
				Usage: "measure the tone half periods of the line",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "samples", Aliases: []string{"n"}, Destination: &samples, Value: 500, Usage: "number of edge durations to collect"},
					&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Destination: &timeout, Value: 10 * time.Second, Usage: "maximum `DURATION` of the measurement"},
				},
				Action: func(ctx *cli.Context) error {
					c, err := app.Calibrate(cfg, samples, timeout)
					if err != nil {
						return err
					}

					fmt.Printf("space half period: %d counts (%v)\n", c.Space, cfg.Capture.Port().Duration(c.Space))
					fmt.Printf("mark half period:  %d counts (%v)\n", c.Mark, cfg.Capture.Port().Duration(c.Mark))
					fmt.Printf("threshold:         %d counts, configured %d\n", c.Threshold, cfg.Demodulator.F0Threshold)
					fmt.Printf("samples:           %d\n", c.Samples)
					return nil
				},
			},
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	err := cliApp.Run(os.Args)
	if err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
	return
}
