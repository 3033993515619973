package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// slerpLinearThreshold is the quaternion dot product above which slerp falls back to normalized
// linear interpolation, where sin(θ) is too small to divide by.
const slerpLinearThreshold = 0.9995

// Norm returns the norm of the quaternion, i.e. the sqrt of the sum of the squares of the imaginary parts.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// Normalize scales a quaternion to unit length. The zero quaternion maps to the identity.
func Normalize(q quat.Number) quat.Number {
	n := Norm(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// Flip will multiply a quaternion by -1, returning a quaternion representing the same orientation but in the opposing octant.
func Flip(q quat.Number) quat.Number {
	return quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}

// QuaternionAlmostEqual is an equality test for all the float components of a quaternion. Quaternions have double coverage, q == -q,
// and this function will *not* account for this. Use OrientationAlmostEqual unless you're certain this is what you want.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	return math.Abs(a.Real-b.Real) < tol &&
		math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol &&
		math.Abs(a.Kmag-b.Kmag) < tol
}

// OrientationAlmostEqual reports whether two unit quaternions describe the same rotation, accounting for double coverage.
func OrientationAlmostEqual(a, b quat.Number) bool {
	return QuaternionAlmostEqual(a, b, 1e-6) || QuaternionAlmostEqual(a, Flip(b), 1e-6)
}

// Dot returns the four dimensional dot product of two quaternions.
func Dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// Slerp spherically interpolates between two unit quaternions along the shorter arc. by=0 returns a
// and by=1 returns b (or -b, which is the same rotation).
func Slerp(a, b quat.Number, by float64) quat.Number {
	a, b = Normalize(a), Normalize(b)
	if by <= 0 {
		return a
	}
	if by >= 1 {
		return b
	}
	dot := Dot(a, b)
	if dot < 0 {
		b = Flip(b)
		dot = -dot
	}
	if dot > slerpLinearThreshold {
		return Normalize(quat.Add(quat.Scale(1-by, a), quat.Scale(by, b)))
	}
	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-by)*theta) / sinTheta
	wb := math.Sin(by*theta) / sinTheta
	return Normalize(quat.Add(quat.Scale(wa, a), quat.Scale(wb, b)))
}

// RotateVector rotates v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// AngleBetween returns the angle in radians of the rotation that takes a to b, in [0, π].
func AngleBetween(a, b quat.Number) float64 {
	rel := quat.Mul(quat.Conj(Normalize(a)), Normalize(b))
	vec := math.Sqrt(rel.Imag*rel.Imag + rel.Jmag*rel.Jmag + rel.Kmag*rel.Kmag)
	return 2 * math.Atan2(vec, math.Abs(rel.Real))
}
