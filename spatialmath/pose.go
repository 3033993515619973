// Package spatialmath defines the pose and orientation math used by the navigation and arm controllers.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

const defaultPoseEpsilon = 1e-6

// Pose is a position and an orientation. Poses are values: every method returns a new Pose and
// the orientation is always kept a unit quaternion.
type Pose struct {
	position    r3.Vector
	orientation quat.Number
}

// NewPose builds a pose from a point and an orientation. The orientation is normalized; the zero
// quaternion is treated as no rotation.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return Pose{position: point, orientation: Normalize(orientation)}
}

// NewPoseFromPoint returns a pose at point with no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{position: point, orientation: quat.Number{Real: 1}}
}

// NewPoseFromEuler builds a pose from a point and roll/pitch/yaw angles.
func NewPoseFromEuler(point r3.Vector, ea EulerAngles) Pose {
	return NewPose(point, ea.Quaternion())
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return NewPoseFromPoint(r3.Vector{})
}

// NewPoseFromSlices builds a pose from a 3-element position and an orientation given either as
// roll/pitch/yaw (3 elements) or as a quaternion in x, y, z, w order (4 elements), which is the
// layout configuration files and URDF tooling use.
func NewPoseFromSlices(position, orientation []float64) (Pose, error) {
	if len(position) != 3 {
		return Pose{}, errors.Errorf("position must have 3 elements, got %d", len(position))
	}
	point := r3.Vector{X: position[0], Y: position[1], Z: position[2]}
	switch len(orientation) {
	case 0:
		return NewPoseFromPoint(point), nil
	case 3:
		return NewPoseFromEuler(point, EulerAngles{Roll: orientation[0], Pitch: orientation[1], Yaw: orientation[2]}), nil
	case 4:
		q := quat.Number{Real: orientation[3], Imag: orientation[0], Jmag: orientation[1], Kmag: orientation[2]}
		if Norm(q) == 0 {
			return Pose{}, errors.New("quaternion orientation must be non-zero")
		}
		return NewPose(point, q), nil
	default:
		return Pose{}, errors.Errorf("orientation must have 3 (euler) or 4 (quaternion) elements, got %d", len(orientation))
	}
}

// Point returns the position.
func (p Pose) Point() r3.Vector {
	return p.position
}

// Orientation returns the unit quaternion orientation.
func (p Pose) Orientation() quat.Number {
	if p.orientation == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return p.orientation
}

// EulerAngles returns the orientation as roll/pitch/yaw.
func (p Pose) EulerAngles() *EulerAngles {
	return QuatToEulerAngles(p.Orientation())
}

// X returns the x coordinate.
func (p Pose) X() float64 { return p.position.X }

// Y returns the y coordinate.
func (p Pose) Y() float64 { return p.position.Y }

// Z returns the z coordinate.
func (p Pose) Z() float64 { return p.position.Z }

// Yaw returns the rotation about +Z in radians.
func (p Pose) Yaw() float64 {
	return p.EulerAngles().Yaw
}

// QuaternionXYZW returns the orientation laid out as x, y, z, w.
func (p Pose) QuaternionXYZW() [4]float64 {
	q := p.Orientation()
	return [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real}
}

// WithPoint returns a copy of the pose moved to point.
func (p Pose) WithPoint(point r3.Vector) Pose {
	return Pose{position: point, orientation: p.Orientation()}
}

// WithOrientation returns a copy of the pose with a new orientation.
func (p Pose) WithOrientation(orientation quat.Number) Pose {
	return NewPose(p.position, orientation)
}

// Distance returns the euclidean distance between the positions of two poses.
func (p Pose) Distance(other Pose) float64 {
	return p.position.Sub(other.position).Norm()
}

// Transform maps a point expressed in this pose's frame into the parent frame.
func (p Pose) Transform(point r3.Vector) r3.Vector {
	return RotateVector(p.Orientation(), point).Add(p.position)
}

func (p Pose) String() string {
	ea := p.EulerAngles()
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f Roll:%.4f Pitch:%.4f Yaw:%.4f}",
		p.position.X, p.position.Y, p.position.Z, ea.Roll, ea.Pitch, ea.Yaw)
}

// Compose returns the pose b expressed in the frame that a is expressed in, i.e. a·b.
func Compose(a, b Pose) Pose {
	return NewPose(a.Transform(b.position), quat.Mul(a.Orientation(), b.Orientation()))
}

// PoseInverse returns the pose that undoes p.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(p.Orientation())
	return NewPose(RotateVector(inv, p.position.Mul(-1)), inv)
}

// PoseBetween returns the pose that takes a to b, i.e. inv(a)·b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseAlmostEqual reports whether two poses agree in position and rotation within 1e-6.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, defaultPoseEpsilon)
}

// PoseAlmostEqualEps reports whether two poses agree in position and rotation within epsilon.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	if a.Distance(b) > epsilon {
		return false
	}
	return math.Abs(AngleBetween(a.Orientation(), b.Orientation())) <= math.Max(epsilon, 1e-6)
}
