package agent

import (
	"math"

	"github.com/golang/geo/r2"

	"trackevo/internal/geom"
	"trackevo/internal/track"
)

// RaySide tags which perceived minimum a ray feeds.
type RaySide int

const (
	RaySideRight RaySide = iota
	RaySideLeft
)

func (s RaySide) String() string {
	if s == RaySideLeft {
		return "left"
	}
	return "right"
}

// Ray is one perception sample.
type Ray struct {
	From     r2.Point
	To       r2.Point
	Side     RaySide
	Distance float64
}

// castRays lays numRays origins evenly across the car width in local space,
// rotates them by the heading angle and extends each one rayLength along the
// heading. Rays in the upper half of the index range are tagged left.
func (c *Car) castRays() []Ray {
	theta := math.Atan2(-c.heading.X, c.heading.Y)
	sin, cos := math.Sincos(theta)
	spacing := c.width / float64(c.numRays-1)
	reach := c.heading.Mul(c.rayLength)

	rays := make([]Ray, c.numRays)
	for i := range rays {
		local := -c.width/2 + spacing*float64(i)
		from := c.position.Add(r2.Point{X: local * cos, Y: local * sin})
		side := RaySideRight
		if i >= c.numRays/2 {
			side = RaySideLeft
		}
		rays[i] = Ray{From: from, To: from.Add(reach), Side: side, Distance: geom.NoHit}
	}
	return rays
}

// Perceive measures the shortest wall distance on each side of the car
// against both rings. A side without any hit keeps geom.NoHit.
func (c *Car) Perceive(t *track.Track) {
	left, right := geom.NoHit, geom.NoHit
	rays := c.castRays()
	for i := range rays {
		r := &rays[i]
		r.Distance = min(
			geom.RayDistance(r.From, r.To, t.Inner()),
			geom.RayDistance(r.From, r.To, t.Outer()),
		)
		switch r.Side {
		case RaySideLeft:
			left = min(left, r.Distance)
		default:
			right = min(right, r.Distance)
		}
	}
	c.rays = rays
	c.leftMin = left
	c.rightMin = right
}
