package ik

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"

	"github.com/bestman-robotics/bestman/spatialmath"
)

// StateMetric scores a pose against a goal. Lower is better.
type StateMetric func(spatialmath.Pose) float64

// NewSquaredNormMetric sums the squared position error and the squared rotation angle to the
// goal.
func NewSquaredNormMetric(goal spatialmath.Pose) StateMetric {
	return func(p spatialmath.Pose) float64 {
		delta := goal.Point().Sub(p.Point())
		angle := spatialmath.AngleBetween(p.Orientation(), goal.Orientation())
		return delta.Norm2() + angle*angle
	}
}

// NewPositionOnlyMetric reports the squared point-wise distance between two poses without regard
// for orientation.
func NewPositionOnlyMetric(goal spatialmath.Pose) StateMetric {
	return func(p spatialmath.Pose) float64 {
		return goal.Point().Sub(p.Point()).Norm2()
	}
}

// JointMetric is the euclidean distance between two joint configurations.
func JointMetric(from, to []float64) float64 {
	return floats.Distance(from, to, 2)
}

// poseError is the world frame twist that takes current to goal: a position error followed by
// a rotation vector when orientation is constrained.
func poseError(current, goal spatialmath.Pose, withOrientation bool) []float64 {
	dp := goal.Point().Sub(current.Point())
	if !withOrientation {
		return []float64{dp.X, dp.Y, dp.Z}
	}
	dr := rotationError(current.Orientation(), goal.Orientation())
	return []float64{dp.X, dp.Y, dp.Z, dr.X, dr.Y, dr.Z}
}

func rotationError(current, goal quat.Number) r3.Vector {
	return spatialmath.QuatToR3AA(quat.Mul(goal, quat.Conj(current)))
}
