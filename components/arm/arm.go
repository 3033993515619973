// Package arm moves a simulated manipulator through joint targets, Cartesian goals and planned
// joint trajectories.
package arm

import (
	"github.com/pkg/errors"
)

const (
	// DefaultMoveSteps is the number of interpolated poses between the start and goal of MoveToPose.
	DefaultMoveSteps = 10
	// DefaultIKThreshold is the end effector position error above which MoveToPose warns.
	DefaultIKThreshold = 0.1
	// DefaultTrajectoryThreshold is the per joint error above which ExecuteTrajectory warns.
	DefaultTrajectoryThreshold = 0.1
	// DefaultIKMaxIterations bounds each inverse kinematics solve.
	DefaultIKMaxIterations = 1000
	// DefaultIKResidualThreshold ends an inverse kinematics solve early.
	DefaultIKResidualThreshold = 1e-4

	resetSettleTicks = 10
	moveSettleTicks  = 40
	rotateTolerance  = 0.01
	maxRotateTicks   = 2400
)

// Config describes which joints and links of a body form the arm.
type Config struct {
	JointIndices        []int     `json:"arm_joints_idx" mapstructure:"arm_joints_idx"`
	EndEffectorLink     int       `json:"end_effector_index" mapstructure:"end_effector_index"`
	TCPLink             int       `json:"tcp_link" mapstructure:"tcp_link"`
	TCPHeight           float64   `json:"tcp_height" mapstructure:"tcp_height"`
	ResetJointPositions []float64 `json:"arm_reset_jointValues" mapstructure:"arm_reset_jointValues"`
	// EnablePlot draws executed trajectories as debug lines.
	EnablePlot bool `json:"enable_plot" mapstructure:"enable_plot"`
}

// Validate checks the arm description without looking at the body.
func (cfg Config) Validate() error {
	if len(cfg.JointIndices) == 0 {
		return errors.New("arm_joints_idx must list at least one joint")
	}
	seen := map[int]bool{}
	for _, idx := range cfg.JointIndices {
		if seen[idx] {
			return errors.Errorf("arm_joints_idx lists joint %d twice", idx)
		}
		seen[idx] = true
	}
	if len(cfg.ResetJointPositions) != 0 && len(cfg.ResetJointPositions) != len(cfg.JointIndices) {
		return errors.Errorf("arm_reset_jointValues has %d values for %d joints",
			len(cfg.ResetJointPositions), len(cfg.JointIndices))
	}
	return nil
}

// Result reports how a motion ended. Reached is false when the error exceeded the threshold.
type Result struct {
	Reached bool
	// Error is the end effector position error for Cartesian moves and the largest joint error
	// for trajectories.
	Error float64
	// MeanJointError and JointsOverThreshold are set for trajectories.
	MeanJointError      float64
	JointsOverThreshold int
}
