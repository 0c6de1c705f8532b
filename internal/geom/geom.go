// Package geom holds the 2D helpers shared by track generation, perception
// and collision: closed polygons, clamped segment projection, sidedness and
// segment intersection.
package geom

import (
	"math"

	"github.com/golang/geo/r2"
)

// NoHit is the distance reported for a ray that meets no boundary segment.
// Every coordinate lives roughly inside [-1.5, 1.5], so it is far beyond any
// real distance.
const NoHit = 9999.0

const epsilon = 1e-12

// Polygon is a closed vertex ring; segment i joins vertex i to vertex
// (i+1) mod len.
type Polygon []r2.Point

// Segment returns the endpoints of segment i, wrapping the last vertex to the
// first.
func (p Polygon) Segment(i int) (r2.Point, r2.Point) {
	next := i + 1
	if next == len(p) {
		next = 0
	}
	return p[i], p[next]
}

// Clone returns an independent copy of the ring.
func (p Polygon) Clone() Polygon {
	return append(Polygon(nil), p...)
}

// Scale multiplies every vertex radially from the origin.
func (p Polygon) Scale(factor float64) Polygon {
	out := make(Polygon, len(p))
	for i, v := range p {
		out[i] = v.Mul(factor)
	}
	return out
}

// ClosestPoint projects q onto segment ab with the projection parameter
// clamped to [0, 1]. ok is false for a zero-length segment.
func ClosestPoint(q, a, b r2.Point) (r2.Point, bool) {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq < epsilon {
		return r2.Point{}, false
	}
	t := q.Sub(a).Dot(ab) / lenSq
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.Mul(t)), true
}

// SegmentDistance is the distance from q to segment ab, or +Inf when the
// segment is degenerate.
func SegmentDistance(q, a, b r2.Point) float64 {
	closest, ok := ClosestPoint(q, a, b)
	if !ok {
		return math.Inf(1)
	}
	return q.Sub(closest).Norm()
}

// NearestSegment returns the index of the segment of poly closest to q and
// that distance. Ties keep the lowest index.
func NearestSegment(q r2.Point, poly Polygon) (int, float64) {
	best := 0
	bestDist := math.Inf(1)
	for i := range poly {
		a, b := poly.Segment(i)
		d := SegmentDistance(q, a, b)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best, bestDist
}

// Side is the signed cross product (Bx-Ax)(Ay-Py) - (Ax-Px)(By-Ay). For a
// counter-clockwise ring it is negative when q lies inside the ring relative
// to segment ab and positive when q lies outside.
func Side(q, a, b r2.Point) float64 {
	return b.Sub(a).Cross(a.Sub(q))
}

// Intersect intersects segment p1p2 with segment p3p4 and returns the
// distance from p1 to the crossing point. Parallel or degenerate pairs do
// not intersect.
func Intersect(p1, p2, p3, p4 r2.Point) (float64, bool) {
	den := (p1.X-p2.X)*(p3.Y-p4.Y) - (p1.Y-p2.Y)*(p3.X-p4.X)
	if math.Abs(den) < epsilon {
		return 0, false
	}
	t := ((p1.X-p3.X)*(p3.Y-p4.Y) - (p1.Y-p3.Y)*(p3.X-p4.X)) / den
	u := ((p1.X-p3.X)*(p1.Y-p2.Y) - (p1.Y-p3.Y)*(p1.X-p2.X)) / den
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return p2.Sub(p1).Mul(t).Norm(), true
}

// RayDistance is the shortest distance from the ray origin to any segment of
// poly that the ray from->to crosses, or NoHit.
func RayDistance(from, to r2.Point, poly Polygon) float64 {
	shortest := NoHit
	for i := range poly {
		a, b := poly.Segment(i)
		if d, ok := Intersect(from, to, a, b); ok && d < shortest {
			shortest = d
		}
	}
	return shortest
}

// Rotate applies a counter-clockwise rotation by angle radians.
func Rotate(v r2.Point, angle float64) r2.Point {
	sin, cos := math.Sincos(angle)
	return r2.Point{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// Unit normalizes v, falling back to the given direction when v has no
// length.
func Unit(v, fallback r2.Point) r2.Point {
	if n := v.Norm(); n > epsilon {
		return v.Mul(1 / n)
	}
	return fallback.Normalize()
}
