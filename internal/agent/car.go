package agent

import (
	"fmt"

	"github.com/golang/geo/r2"

	"trackevo/internal/geom"
	"trackevo/internal/model"
	"trackevo/internal/track"
)

const (
	DefaultNumRays   = 4
	DefaultRayLength = 1.0
)

// Pose is a car's kinematic state.
type Pose struct {
	Position r2.Point
	Heading  r2.Point
	Speed    float64
}

type Config struct {
	ID     string
	Pose   Pose
	Width  float64
	Height float64
	Genome model.Genome
	// NumRays is the number of perception rays spread across the car width.
	// Zero selects DefaultNumRays.
	NumRays int
	// RayLength is how far each ray reaches. Zero selects DefaultRayLength.
	RayLength float64
}

// Car is a single vehicle agent. It is owned by exactly one population
// generation and is not safe for concurrent use.
type Car struct {
	id        string
	position  r2.Point
	heading   r2.Point
	speed     float64
	width     float64
	height    float64
	genome    model.Genome
	numRays   int
	rayLength float64

	alive     bool
	leftMin   float64
	rightMin  float64
	rays      []Ray
	passed    []bool
	distance  int
	timeAlive uint64
}

func NewCar(cfg Config) (*Car, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("car id is required")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("car size must be > 0: width=%v height=%v", cfg.Width, cfg.Height)
	}
	numRays := cfg.NumRays
	if numRays == 0 {
		numRays = DefaultNumRays
	}
	if numRays < 2 {
		return nil, fmt.Errorf("car needs at least 2 rays, got %d", numRays)
	}
	rayLength := cfg.RayLength
	if rayLength == 0 {
		rayLength = DefaultRayLength
	}
	if rayLength < 0 {
		return nil, fmt.Errorf("ray length must be > 0: %v", rayLength)
	}

	return &Car{
		id:        cfg.ID,
		position:  cfg.Pose.Position,
		heading:   geom.Unit(cfg.Pose.Heading, r2.Point{X: 1}),
		speed:     cfg.Pose.Speed,
		width:     cfg.Width,
		height:    cfg.Height,
		genome:    cfg.Genome,
		numRays:   numRays,
		rayLength: rayLength,
		alive:     true,
		leftMin:   geom.NoHit,
		rightMin:  geom.NoHit,
	}, nil
}

func (c *Car) ID() string {
	return c.id
}

func (c *Car) Position() r2.Point {
	return c.position
}

func (c *Car) Heading() r2.Point {
	return c.heading
}

func (c *Car) Speed() float64 {
	return c.speed
}

func (c *Car) Size() (float64, float64) {
	return c.width, c.height
}

func (c *Car) Genome() model.Genome {
	return c.genome
}

func (c *Car) Alive() bool {
	return c.alive
}

// DistanceTraveled counts the inner segments the car has been nearest to at
// least once. It is capped at the track segment count.
func (c *Car) DistanceTraveled() int {
	return c.distance
}

// TimeAlive is the accumulated tick time in milliseconds.
func (c *Car) TimeAlive() uint64 {
	return c.timeAlive
}

// Perception returns the last perceived left and right wall distances.
func (c *Car) Perception() (left, right float64) {
	return c.leftMin, c.rightMin
}

// Update advances the car by one tick of dtMS milliseconds. Dead cars and
// zero-length ticks are no-ops.
func (c *Car) Update(dtMS uint64, t *track.Track) {
	if !c.alive || dtMS == 0 {
		return
	}
	if c.CheckCollision(t) {
		c.alive = false
		return
	}

	c.Perceive(t)
	c.steer()
	c.throttle()

	c.position = c.position.Add(c.heading.Mul(c.speed * float64(dtMS) / 1000))
	c.timeAlive += dtMS
}

// CheckCollision reports whether the car has crossed to the wrong side of
// either ring. The nearest inner segment is also marked as passed, so
// progress is sampled exactly as often as collisions are.
func (c *Car) CheckCollision(t *track.Track) bool {
	inner, outer := t.Inner(), t.Outer()

	closestInner, _ := geom.NearestSegment(c.position, inner)
	a, b := inner.Segment(closestInner)
	sideInner := geom.Side(c.position, a, b)
	c.markPassed(closestInner, len(inner))

	closestOuter, _ := geom.NearestSegment(c.position, outer)
	a, b = outer.Segment(closestOuter)
	sideOuter := geom.Side(c.position, a, b)

	return sideInner < 0 || sideOuter > 0
}

func (c *Car) markPassed(segment, total int) {
	if c.passed == nil {
		c.passed = make([]bool, total)
	}
	if !c.passed[segment] {
		c.passed[segment] = true
		c.distance++
	}
}

// steer turns toward the side with more room. Left is checked first, so a
// tie favors a left-triggered turn.
func (c *Car) steer() {
	trigger := c.genome.TurnTrigger()
	switch {
	case c.leftMin < trigger:
		c.turn(c.genome.TurnAngle())
	case c.rightMin < trigger:
		c.turn(-c.genome.TurnAngle())
	}
}

func (c *Car) turn(angle float64) {
	c.heading = geom.Unit(geom.Rotate(c.heading, angle), c.heading)
}

// throttle applies the accelerate and brake rules independently; both may
// fire on the same tick.
func (c *Car) throttle() {
	nearest := min(c.leftMin, c.rightMin)
	if nearest < c.genome.AccelTrigger() {
		c.speed += c.genome.AccelIncrement()
	}
	if nearest < c.genome.BrakeTrigger() {
		c.speed += c.genome.BrakeIncrement()
	}
}
