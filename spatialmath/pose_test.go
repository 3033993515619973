package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

// a 45 degree rotation around the x axis in the representations used by the toolkit
var (
	th    = math.Pi / 4.
	q45x  = quat.Number{Real: math.Cos(th / 2.), Imag: math.Sin(th / 2.), Jmag: 0, Kmag: 0}
	aa45x = &R4AA{th, 1., 0., 0.}
	ea45x = &EulerAngles{Roll: th, Pitch: 0, Yaw: 0}
)

func TestEulerAngles(t *testing.T) {
	q := ea45x.Quaternion()
	test.That(t, q.Real, test.ShouldAlmostEqual, q45x.Real)
	test.That(t, q.Imag, test.ShouldAlmostEqual, q45x.Imag)
	test.That(t, q.Jmag, test.ShouldAlmostEqual, q45x.Jmag)
	test.That(t, q.Kmag, test.ShouldAlmostEqual, q45x.Kmag)

	ea := QuatToEulerAngles(q45x)
	test.That(t, ea.Roll, test.ShouldAlmostEqual, ea45x.Roll)
	test.That(t, ea.Pitch, test.ShouldAlmostEqual, ea45x.Pitch)
	test.That(t, ea.Yaw, test.ShouldAlmostEqual, ea45x.Yaw)
}

func TestEulerRoundTrip(t *testing.T) {
	for _, ea := range []EulerAngles{
		{0.1, -0.2, 0.3},
		{-1.2, 0.7, 2.5},
		{0, 0, -math.Pi / 2},
		{math.Pi / 3, -math.Pi / 5, 3},
	} {
		q := ea.Quaternion()
		test.That(t, Norm(q), test.ShouldAlmostEqual, 1)
		back := QuatToEulerAngles(q)
		test.That(t, back.Roll, test.ShouldAlmostEqual, ea.Roll)
		test.That(t, back.Pitch, test.ShouldAlmostEqual, ea.Pitch)
		test.That(t, back.Yaw, test.ShouldAlmostEqual, ea.Yaw)
	}
}

func TestAxisAngles(t *testing.T) {
	q := aa45x.ToQuat()
	test.That(t, QuaternionAlmostEqual(q, q45x, 1e-9), test.ShouldBeTrue)
	aa := QuatToR4AA(q45x)
	test.That(t, aa.Theta, test.ShouldAlmostEqual, th)
	test.That(t, aa.RX, test.ShouldAlmostEqual, 1)
	test.That(t, QuatToR4AA(Flip(q45x)).Theta, test.ShouldAlmostEqual, th)
	test.That(t, QuatToR4AA(quat.Number{Real: 1}), test.ShouldResemble, NewR4AA())
}

func TestYawQuaternion(t *testing.T) {
	for _, yaw := range []float64{0, 0.5, -2, math.Pi / 2} {
		q := YawQuaternion(yaw)
		test.That(t, QuatToEulerAngles(q).Yaw, test.ShouldAlmostEqual, yaw)
		test.That(t, OrientationAlmostEqual(q, (&EulerAngles{Yaw: yaw}).Quaternion()), test.ShouldBeTrue)
	}
}

func TestNewPoseFromSlices(t *testing.T) {
	p, err := NewPoseFromSlices([]float64{1, 2, 3}, []float64{0, 0, math.Pi / 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Point(), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, p.Yaw(), test.ShouldAlmostEqual, math.Pi/2)

	xyzw := p.QuaternionXYZW()
	p2, err := NewPoseFromSlices([]float64{1, 2, 3}, xyzw[:])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, PoseAlmostEqual(p, p2), test.ShouldBeTrue)

	p3, err := NewPoseFromSlices([]float64{0, 0, 0}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, PoseAlmostEqual(p3, NewZeroPose()), test.ShouldBeTrue)

	_, err = NewPoseFromSlices([]float64{0, 0}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPoseFromSlices([]float64{0, 0, 0}, []float64{1, 2})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPoseFromSlices([]float64{0, 0, 0}, []float64{0, 0, 0, 0})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPoseNormalizesOrientation(t *testing.T) {
	p := NewPose(r3.Vector{}, quat.Number{Real: 2})
	test.That(t, p.Orientation(), test.ShouldResemble, quat.Number{Real: 1})
	test.That(t, Pose{}.Orientation(), test.ShouldResemble, quat.Number{Real: 1})
}

func TestComposeAndInverse(t *testing.T) {
	a := NewPoseFromEuler(r3.Vector{X: 1, Y: 0, Z: 0}, EulerAngles{Yaw: math.Pi / 2})
	b := NewPoseFromPoint(r3.Vector{X: 1, Y: 0, Z: 0})

	c := Compose(a, b)
	test.That(t, c.X(), test.ShouldAlmostEqual, 1)
	test.That(t, c.Y(), test.ShouldAlmostEqual, 1)
	test.That(t, c.Yaw(), test.ShouldAlmostEqual, math.Pi/2)

	test.That(t, PoseAlmostEqual(Compose(a, PoseInverse(a)), NewZeroPose()), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Compose(a, PoseBetween(a, c)), c), test.ShouldBeTrue)
}

func TestRotateVector(t *testing.T) {
	v := RotateVector(YawQuaternion(math.Pi/2), r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, v.X, test.ShouldAlmostEqual, 0)
	test.That(t, v.Y, test.ShouldAlmostEqual, 1)
	test.That(t, v.Z, test.ShouldAlmostEqual, 0)
}
