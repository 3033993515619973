// Package cli contains the bestman command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	generalFlagConfig   = "config"
	generalFlagDebug    = "debug"
	generalFlagLogLevel = "log-level"
	generalFlagRecord   = "record"

	navigateFlagX         = "goal-x"
	navigateFlagY         = "goal-y"
	navigateFlagYaw       = "yaw"
	navigateFlagThreshold = "threshold"

	armFlagX     = "goal-x"
	armFlagY     = "goal-y"
	armFlagZ     = "goal-z"
	armFlagSteps = "steps"

	kitchenFlagFixture = "fixture"
	kitchenFlagDrawer  = "drawer"
	kitchenFlagClose   = "close"

	plotFlagOutput = "output"
)

var app = &cli.App{
	Name:            "bestman",
	Usage:           "drive a simulated mobile manipulator",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    generalFlagConfig,
			Aliases: []string{"c"},
			Value:   "etc/configs/bestman.yaml",
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  generalFlagLogLevel,
			Value: "info",
			Usage: "minimum level of logged entries: debug, info, warn or error",
		},
		&cli.BoolFlag{
			Name:  generalFlagRecord,
			Usage: "record the run to the visualizer output directory",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "info",
			Usage:  "print the robot description",
			Action: InfoAction,
		},
		{
			Name:  "navigate",
			Usage: "drive the base to a position on the ground",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:     navigateFlagX,
					Aliases:  []string{"x"},
					Required: true,
				},
				&cli.Float64Flag{
					Name:     navigateFlagY,
					Aliases:  []string{"y"},
					Required: true,
				},
				&cli.Float64Flag{
					Name:  navigateFlagYaw,
					Usage: "final heading in radians",
				},
				&cli.Float64Flag{
					Name:  navigateFlagThreshold,
					Value: 0.05,
					Usage: "position error above which the goal counts as missed",
				},
			},
			Action: NavigateAction,
		},
		{
			Name:  "arm",
			Usage: "move the end effector to a world position",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:     armFlagX,
					Aliases:  []string{"x"},
					Required: true,
				},
				&cli.Float64Flag{
					Name:     armFlagY,
					Aliases:  []string{"y"},
					Required: true,
				},
				&cli.Float64Flag{
					Name:     armFlagZ,
					Aliases:  []string{"z"},
					Required: true,
				},
				&cli.IntFlag{
					Name:  armFlagSteps,
					Value: 10,
					Usage: "number of interpolated poses",
				},
			},
			Action: ArmAction,
		},
		{
			Name:  "kitchen",
			Usage: "open or close a drawer of a kitchen fixture",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     kitchenFlagFixture,
					Required: true,
					Usage:    "fixture name, A through E",
				},
				&cli.IntFlag{
					Name:     kitchenFlagDrawer,
					Required: true,
				},
				&cli.BoolFlag{
					Name:  kitchenFlagClose,
					Usage: "close the drawer instead of opening it",
				},
			},
			Action: KitchenAction,
		},
		{
			Name:  "plot",
			Usage: "draw a top down map of the scene",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:  plotFlagOutput,
					Value: "map.png",
				},
			},
			Action: PlotAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
