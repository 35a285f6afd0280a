// Package cli contains the pinctl command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagDebug        = "debug"
	flagLogFile      = "log-file"
	flagLogFileSize  = "log-file-size"
	flagConfig       = "config"
	flagConfigurable = "configurable"
	flagCapability   = "capability"
	flagWatch        = "watch"
	flagName         = "name"
	flagOp           = "op"
	flagValue        = "value"
	flagDelay        = "delay"
	flagBypass       = "bypass"
	flagFake         = "fake"

	opRaise = "raise"
	opLower = "lower"
	opSet   = "set"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	p := &pinctl{}
	return &cli.App{
		Name:            "pinctl",
		Usage:           "inspect and drive the pins of a GPIO header",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotating it as it grows",
			},
			&cli.StringFlag{
				Name:  flagLogFileSize,
				Value: "10MiB",
				Usage: "rotate the log file once it reaches this `SIZE`",
			},
		},
		Before: p.before,
		After:  p.after,
		Commands: []*cli.Command{
			{
				Name:  "pins",
				Usage: "print the header catalog",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagConfigurable,
						Usage: "only list general purpose pins",
					},
					&cli.StringFlag{
						Name:  flagCapability,
						Usage: "only list general purpose pins with this alternate function, e.g. spi-mosi",
					},
				},
				Action: p.pinsAction,
			},
			{
				Name:  "check",
				Usage: "validate a config and build it on fake hardware",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagConfig,
						Aliases:  []string{"c"},
						Usage:    "load configuration from `FILE`",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  flagWatch,
						Usage: "check again every time the file changes",
					},
				},
				Action: p.checkAction,
			},
			{
				Name:      "servo",
				Usage:     "raise, lower or set a configured servo",
				UsageText: "pinctl servo --config <file> --name <servo> --op raise|lower|set [--value <v>] [--delay <d>] [--bypass]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagConfig,
						Aliases:  []string{"c"},
						Usage:    "load configuration from `FILE`",
						Required: true,
					},
					&cli.StringFlag{
						Name:     flagName,
						Usage:    "servo to drive",
						Required: true,
					},
					&cli.StringFlag{
						Name:     flagOp,
						Usage:    "one of raise, lower or set",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  flagValue,
						Usage: "target value for set",
					},
					&cli.DurationFlag{
						Name:  flagDelay,
						Usage: "wait this long before moving",
					},
					&cli.BoolFlag{
						Name:  flagBypass,
						Usage: "write the absolute extremes or the raw value instead of the configured range",
					},
					&cli.BoolFlag{
						Name:  flagFake,
						Usage: "drive fake hardware instead of the configured backend",
					},
				},
				Action: p.servoAction,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of config files",
				Action: p.schemaAction,
			},
		},
	}
}
