// Package cli contains the ev3drive command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Global flags.
	flagConfig      = "config"
	flagDebug       = "debug"
	flagSim         = "sim"
	flagMetricsAddr = "metrics-addr"

	// Command flags.
	flagSteering  = "steering"
	flagPower     = "power"
	flagLeft      = "left"
	flagRight     = "right"
	flagPort      = "port"
	flagSeconds   = "seconds"
	flagRotations = "rotations"
	flagDegrees   = "degrees"
	flagCoast     = "coast"
)

var runFlags = []cli.Flag{
	&cli.Float64Flag{
		Name:  flagSeconds,
		Usage: "run for `SECONDS`, then stop",
	},
	&cli.Float64Flag{
		Name:  flagRotations,
		Usage: "run until the faster motor has turned by `N` rotations",
	},
	&cli.IntFlag{
		Name:  flagDegrees,
		Usage: "run until the faster motor has turned by `N` degrees, added to --rotations",
	},
	&cli.BoolFlag{
		Name:  flagCoast,
		Usage: "let the motors coast instead of braking when done",
	},
}

// NewApp returns the ev3drive application writing its results to out.
func NewApp(out io.Writer) *cli.App {
	var env *environment

	return &cli.App{
		Name:            "ev3drive",
		Usage:           "drive EV3 motors with the move blocks",
		HideHelpCommand: true,
		Writer:          out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load drive configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  flagSim,
				Usage: "drive a simulated brick",
			},
			&cli.StringFlag{
				Name:  flagMetricsAddr,
				Usage: "serve Prometheus metrics on `ADDR`",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			env, err = newEnvironment(c, out)
			return err
		},
		After: func(c *cli.Context) error {
			if env == nil {
				return nil
			}
			return env.Close()
		},
		Commands: []*cli.Command{
			{
				Name:  "steer",
				Usage: "drive both motors with a steering and a power",
				Flags: append([]cli.Flag{
					&cli.Float64Flag{
						Name:  flagSteering,
						Usage: "steering in [-100, 100], positive turns right",
					},
					&cli.Float64Flag{
						Name:     flagPower,
						Usage:    "power in [-100, 100]",
						Required: true,
					},
				}, runFlags...),
				Action: func(c *cli.Context) error {
					return env.steer(c)
				},
			},
			{
				Name:  "tank",
				Usage: "drive both motors with independent powers",
				Flags: append([]cli.Flag{
					&cli.Float64Flag{
						Name:     flagLeft,
						Usage:    "left power in [-100, 100]",
						Required: true,
					},
					&cli.Float64Flag{
						Name:     flagRight,
						Usage:    "right power in [-100, 100]",
						Required: true,
					},
				}, runFlags...),
				Action: func(c *cli.Context) error {
					return env.tank(c)
				},
			},
			{
				Name:  "motor",
				Usage: "drive a single motor",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     flagPort,
						Usage:    "output `PORT` of the motor, A to D",
						Required: true,
					},
					&cli.Float64Flag{
						Name:     flagPower,
						Usage:    "power in [-100, 100]",
						Required: true,
					},
				}, runFlags...),
				Action: func(c *cli.Context) error {
					return env.single(c)
				},
			},
			{
				Name:  "measure",
				Usage: "print the rotation and power of both drive motors",
				Action: func(c *cli.Context) error {
					return env.measure(c)
				},
			},
			{
				Name:  "off",
				Usage: "stop both drive motors",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagCoast,
						Usage: "let the motors coast instead of braking",
					},
				},
				Action: func(c *cli.Context) error {
					return env.off(c)
				},
			},
		},
	}
}
