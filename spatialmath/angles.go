package spatialmath

import "math"

// NormalizeAngle wraps an angle in radians to the interval (-π, π].
func NormalizeAngle(angle float64) float64 {
	wrapped := math.Mod(angle+math.Pi, 2*math.Pi)
	if wrapped < 0 {
		wrapped += 2 * math.Pi
	}
	wrapped -= math.Pi
	if wrapped <= -math.Pi {
		return math.Pi
	}
	return wrapped
}

// ShortestAngularDistance returns the signed angle that rotates from to to along the shorter arc,
// in (-π, π]. Positive values are counter-clockwise.
func ShortestAngularDistance(from, to float64) float64 {
	return NormalizeAngle(to - from)
}
