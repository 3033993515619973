// Package base drives a mobile base through waypoints with a distance controller and stepped
// rotations.
package base

import (
	"github.com/bestman-robotics/bestman/control"
)

const (
	// DefaultStepSize is the yaw increment, in radians, of a gradual rotation.
	DefaultStepSize = 0.02
	// DefaultMaxIterations bounds the control loop of a single waypoint.
	DefaultMaxIterations = 10000
	// DefaultWaypointThreshold is how close the base must get to intermediate waypoints.
	DefaultWaypointThreshold = 0.01
	// DefaultNavigationThreshold is the final position error above which navigation warns.
	DefaultNavigationThreshold = 0.05

	// syncInterval is how many control iterations pass between engine ticks.
	syncInterval = 20
	// instantRotationTicks settle the engine after a non gradual rotation.
	instantRotationTicks = 5
	// navigationSettleTicks settle the engine after the final rotation.
	navigationSettleTicks = 10
)

// DistanceController turns a measured distance into a control output.
type DistanceController interface {
	SetGoal(setpoint float64)
	Calculate(measurement float64) float64
}

var _ DistanceController = (*control.PID)(nil)

// Config tunes a Navigator.
type Config struct {
	StepSize      float64 `json:"step_size" mapstructure:"step_size"`
	MaxIterations int     `json:"max_iterations" mapstructure:"max_iterations"`
	// EnablePlot draws the followed path as debug lines.
	EnablePlot bool `json:"enable_plot" mapstructure:"enable_plot"`
}

func (cfg *Config) setDefaults() {
	if cfg.StepSize <= 0 {
		cfg.StepSize = DefaultStepSize
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
}

// Result reports how a motion ended. Missing a threshold is not an error: Reached is false and
// Error holds the remaining distance.
type Result struct {
	Reached bool
	Error   float64
}
