package agent

import "github.com/golang/geo/r2"

// DebugView is a read-only snapshot for overlays and text stats. It never
// shares memory with the car.
type DebugView struct {
	ID          string
	Position    r2.Point
	Heading     r2.Point
	Speed       float64
	Width       float64
	Height      float64
	Alive       bool
	LeftMin     float64
	RightMin    float64
	Distance    int
	TimeAliveMS uint64
	Rays        []Ray
}

func (c *Car) DebugView() DebugView {
	return DebugView{
		ID:          c.id,
		Position:    c.position,
		Heading:     c.heading,
		Speed:       c.speed,
		Width:       c.width,
		Height:      c.height,
		Alive:       c.alive,
		LeftMin:     c.leftMin,
		RightMin:    c.rightMin,
		Distance:    c.distance,
		TimeAliveMS: c.timeAlive,
		Rays:        append([]Ray(nil), c.rays...),
	}
}

// Outline returns the car triangle (nose, rear right, rear left) in world
// coordinates.
func (v DebugView) Outline() [3]r2.Point {
	forward := v.Heading.Mul(v.Height / 2)
	across := v.Heading.Ortho().Mul(v.Width / 2)
	rear := v.Position.Sub(forward)
	return [3]r2.Point{
		v.Position.Add(forward),
		rear.Sub(across),
		rear.Add(across),
	}
}
