package spatialmath

import (
	"github.com/golang/geo/r3"

	"github.com/bestman-robotics/bestman/utils"
)

// Lerp linearly interpolates between two points.
func Lerp(a, b r3.Vector, by float64) r3.Vector {
	return a.Mul(1 - by).Add(b.Mul(by))
}

// Interpolate returns the pose a fraction by of the way from a to b: the position is linearly
// interpolated and the orientation spherically interpolated. by=0 yields a and by=1 yields b.
func Interpolate(a, b Pose, by float64) Pose {
	if by <= 0 {
		return a
	}
	if by >= 1 {
		return b
	}
	return NewPose(Lerp(a.Point(), b.Point(), by), Slerp(a.Orientation(), b.Orientation(), by))
}

// InterpolatePath samples steps poses evenly over [0, 1] between a and b, both ends included.
func InterpolatePath(a, b Pose, steps int) []Pose {
	samples := utils.Linspace(0, 1, steps)
	path := make([]Pose, 0, len(samples))
	for _, by := range samples {
		path = append(path, Interpolate(a, b, by))
	}
	return path
}
