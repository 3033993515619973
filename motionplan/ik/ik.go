// Package ik solves inverse kinematics for articulated bodies loaded in a sim.Engine.
package ik

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/bestman-robotics/bestman/sim"
	"github.com/bestman-robotics/bestman/spatialmath"
)

const (
	// DefaultMaxIterations bounds a solve when the request leaves it unset.
	DefaultMaxIterations = 1000
	// DefaultResidualThreshold is the residual below which a solve stops early.
	DefaultResidualThreshold = 1e-4
)

// Kinematics is the part of an engine a solver reads.
type Kinematics interface {
	NumJoints(id sim.BodyID) (int, error)
	JointInfo(id sim.BodyID, joint int) (sim.JointInfo, error)
	JointState(id sim.BodyID, joint int) (sim.JointState, error)
	ForwardKinematics(id sim.BodyID, link int, positions []float64) (spatialmath.Pose, error)
}

// Request asks for joint positions placing a link at a target. Limits, ranges and the rest pose
// are given per movable joint in index order; missing entries fall back to the URDF limits and
// the current joint positions. A nil Orientation solves for position only.
type Request struct {
	Body              sim.BodyID
	EndEffectorLink   int
	Position          r3.Vector
	Orientation       *quat.Number
	LowerLimits       []float64
	UpperLimits       []float64
	JointRanges       []float64
	RestPose          []float64
	MaxIterations     int
	ResidualThreshold float64
}

// Target returns the requested pose. A position only request keeps the identity orientation.
func (r Request) Target() spatialmath.Pose {
	if r.Orientation == nil {
		return spatialmath.NewPoseFromPoint(r.Position)
	}
	return spatialmath.NewPose(r.Position, *r.Orientation)
}

// Solution holds the positions of every movable joint in index order.
type Solution struct {
	Positions  []float64
	Residual   float64
	Iterations int
	Converged  bool
}

// Solver computes joint positions for a requested end effector pose.
type Solver interface {
	Solve(ctx context.Context, req Request) (*Solution, error)
}

func (r Request) validate(numJoints int) error {
	if r.EndEffectorLink < 0 || r.EndEffectorLink >= numJoints {
		return errors.Errorf("end effector link %d out of range for body %d with %d links", r.EndEffectorLink, r.Body, numJoints)
	}
	if r.MaxIterations < 0 {
		return errors.Errorf("max iterations must not be negative, got %d", r.MaxIterations)
	}
	if r.ResidualThreshold < 0 {
		return errors.Errorf("residual threshold must not be negative, got %v", r.ResidualThreshold)
	}
	return nil
}
