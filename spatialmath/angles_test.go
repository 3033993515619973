package spatialmath

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestNormalizeAngle(t *testing.T) {
	for _, tc := range []struct {
		in, out float64
	}{
		{0, 0},
		{math.Pi / 2, math.Pi / 2},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
		{2 * math.Pi, 0},
		{-7.5, -7.5 + 2*math.Pi},
	} {
		test.That(t, NormalizeAngle(tc.in), test.ShouldAlmostEqual, tc.out)
	}
}

func TestShortestAngularDistance(t *testing.T) {
	test.That(t, ShortestAngularDistance(0, math.Pi/2), test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, ShortestAngularDistance(math.Pi/2, 0), test.ShouldAlmostEqual, -math.Pi/2)
	// crossing the ±π seam takes the short way round
	test.That(t, ShortestAngularDistance(3, -3), test.ShouldAlmostEqual, 2*math.Pi-6)
	test.That(t, ShortestAngularDistance(-3, 3), test.ShouldAlmostEqual, 6-2*math.Pi)

	angles := []float64{-6, -3.1, -2, -0.4, 0, 0.3, 1.7, 2.9, 3.14, 9}
	for _, a := range angles {
		for _, b := range angles {
			d := ShortestAngularDistance(a, b)
			test.That(t, d, test.ShouldBeGreaterThan, -math.Pi)
			test.That(t, d, test.ShouldBeLessThanOrEqualTo, math.Pi)
			if math.Abs(math.Abs(d)-math.Pi) > 1e-9 {
				test.That(t, d, test.ShouldAlmostEqual, -ShortestAngularDistance(b, a))
			}
			// applying the distance lands on the target angle
			test.That(t, NormalizeAngle(a+d), test.ShouldAlmostEqual, NormalizeAngle(b))
		}
	}
}
