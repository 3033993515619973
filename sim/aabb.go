package sim

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/bestman-robotics/bestman/spatialmath"
)

// AABB is an axis aligned bounding box.
type AABB struct {
	Min r3.Vector
	Max r3.Vector
}

// EmptyAABB returns a box that contains nothing and grows to fit whatever is merged into it.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// NewOrientedAABB returns the world box enclosing a box of the given half extents at a pose.
func NewOrientedAABB(pose spatialmath.Pose, halfExtents r3.Vector) AABB {
	center := pose.Point()
	q := pose.Orientation()
	ex := spatialmath.RotateVector(q, r3.Vector{X: halfExtents.X})
	ey := spatialmath.RotateVector(q, r3.Vector{Y: halfExtents.Y})
	ez := spatialmath.RotateVector(q, r3.Vector{Z: halfExtents.Z})
	half := ex.Abs().Add(ey.Abs()).Add(ez.Abs())
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

// IsEmpty reports whether the box contains no points.
func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Merge returns the smallest box enclosing both boxes.
func (b AABB) Merge(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return AABB{
		Min: r3.Vector{X: math.Min(b.Min.X, o.Min.X), Y: math.Min(b.Min.Y, o.Min.Y), Z: math.Min(b.Min.Z, o.Min.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, o.Max.X), Y: math.Max(b.Max.Y, o.Max.Y), Z: math.Max(b.Max.Z, o.Max.Z)},
	}
}

// Size returns the extents of the box.
func (b AABB) Size() r3.Vector {
	if b.IsEmpty() {
		return r3.Vector{}
	}
	return b.Max.Sub(b.Min)
}

// Center returns the middle of the box.
func (b AABB) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Contains reports whether the point lies inside or on the box.
func (b AABB) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// IntersectRay returns the distance along a ray to its first hit with the box and the outward
// normal of the face hit. dir does not need to be normalized; the distance is in units of dir.
func (b AABB) IntersectRay(origin, dir r3.Vector) (float64, r3.Vector, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	var normal r3.Vector
	axes := [3]struct{ o, d, lo, hi float64 }{
		{origin.X, dir.X, b.Min.X, b.Max.X},
		{origin.Y, dir.Y, b.Min.Y, b.Max.Y},
		{origin.Z, dir.Z, b.Min.Z, b.Max.Z},
	}
	for i, a := range axes {
		if a.d == 0 {
			if a.o < a.lo || a.o > a.hi {
				return 0, r3.Vector{}, false
			}
			continue
		}
		t1, t2 := (a.lo-a.o)/a.d, (a.hi-a.o)/a.d
		sign := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1
		}
		if t1 > tmin {
			tmin = t1
			normal = axisVector(i, sign)
		}
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, r3.Vector{}, false
		}
	}
	if tmax < 0 {
		return 0, r3.Vector{}, false
	}
	if tmin < 0 {
		return 0, normal, true
	}
	return tmin, normal, true
}

func axisVector(axis int, sign float64) r3.Vector {
	switch axis {
	case 0:
		return r3.Vector{X: sign}
	case 1:
		return r3.Vector{Y: sign}
	default:
		return r3.Vector{Z: sign}
	}
}
