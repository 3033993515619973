// Package utils contains small helpers shared across the toolkit.
package utils

import (
	"math"
	"strconv"
	"strings"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Square returns n*n.
func Square(n float64) float64 {
	return n * n
}

// Linspace returns n evenly spaced samples over [start, stop], both ends included. A single sample
// is start; n <= 0 yields nil.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	// avoid accumulated rounding on the last sample
	out[n-1] = stop
	return out
}

// SpaceDelimitedStringToFloatSlice is a helper method to split up space-delimited fields in a string and converts them to floats.
// Fields that fail to parse become NaN.
func SpaceDelimitedStringToFloatSlice(s string) []float64 {
	var converted []float64
	slice := strings.Fields(s)
	for _, value := range slice {
		value, err := strconv.ParseFloat(value, 64)
		if err != nil {
			value = math.NaN()
		}
		converted = append(converted, value)
	}
	return converted
}
