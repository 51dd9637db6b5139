package core

import (
	"math"

	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

// Vec3 is a grid-space vector: X and Y in cell units, Z in metres of height.
type Vec3 struct {
	X, Y, Z float64
}

func vecOf(p model.Position) Vec3 {
	return Vec3{X: p.X, Y: p.Y, Z: p.Height}
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Distance returns the 3-D Euclidean distance between two node positions,
// including the height difference.
func Distance(a, b model.Position) float64 {
	return vecOf(a).DistanceTo(vecOf(b))
}

// offAxisDistance returns the planar perpendicular distance from p to the
// infinite line through origin and target. A degenerate line (both ends on
// the same planar point) reports +Inf so nothing is treated as occluding it.
func offAxisDistance(origin, target, p model.Position) float64 {
	dx := target.X - origin.X
	dy := target.Y - origin.Y
	denom := math.Hypot(dx, dy)
	if denom == 0 {
		return math.Inf(1)
	}
	num := math.Abs(dy*p.X - dx*p.Y + target.X*origin.Y - target.Y*origin.X)
	return num / denom
}

// losHeightAt projects p onto the 3-D segment origin->target and returns the
// height of the line of sight at that projection.
func losHeightAt(origin, target, p model.Position) float64 {
	u := vecOf(target).Sub(vecOf(origin))
	pq := vecOf(p).Sub(vecOf(origin))
	uu := u.Dot(u)
	if uu == 0 {
		return origin.Height
	}
	t := u.Dot(pq) / uu
	return origin.Height + u.Z*t
}
