package track

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/r2"

	"trackevo/internal/geom"
)

// ErrTooFewPoints is returned when a track is requested with fewer than three
// boundary points.
var ErrTooFewPoints = errors.New("track requires at least 3 points")

// Config controls procedural generation.
type Config struct {
	// Points is the vertex count of each boundary ring.
	Points int
	// Variability jiggles every vertex radially by a factor drawn from
	// [1-Variability, 1+Variability].
	Variability float64
	// Width scales the outer ring: outer[i] = inner[i] * (1 + Width).
	Width float64
}

// Track is an immutable closed circuit between an inner and an outer ring.
// Both rings share vertex count and angular ordering, so index i names the
// same angular position on each.
type Track struct {
	inner geom.Polygon
	outer geom.Polygon
	width float64
}

// New generates a track. Vertices are placed counter-clockwise at angle
// 2*pi*i/Points on the unit circle and then scaled radially, which keeps the
// winding that collision sidedness relies on.
func New(cfg Config, rng *rand.Rand) (*Track, error) {
	if cfg.Points < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, cfg.Points)
	}
	if !(cfg.Variability >= 0 && cfg.Variability < 1) {
		return nil, fmt.Errorf("track variability must be in [0, 1): %v", cfg.Variability)
	}
	if !(cfg.Width > 0) {
		return nil, fmt.Errorf("track width must be > 0: %v", cfg.Width)
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}

	inner := make(geom.Polygon, cfg.Points)
	for i := range inner {
		angle := 2 * math.Pi * float64(i) / float64(cfg.Points)
		jiggle := 1 - cfg.Variability + 2*rng.Float64()*cfg.Variability
		inner[i] = r2.Point{X: math.Cos(angle), Y: math.Sin(angle)}.Mul(jiggle)
	}

	return &Track{
		inner: inner,
		outer: inner.Scale(1 + cfg.Width),
		width: cfg.Width,
	}, nil
}

// Boundaries returns copies of the inner and outer rings for drawing.
func (t *Track) Boundaries() ([]r2.Point, []r2.Point) {
	return t.inner.Clone(), t.outer.Clone()
}

// Inner exposes the inner ring without copying. Callers must not modify it.
func (t *Track) Inner() geom.Polygon {
	return t.inner
}

// Outer exposes the outer ring without copying. Callers must not modify it.
func (t *Track) Outer() geom.Polygon {
	return t.outer
}

// Segments is the number of segments per ring.
func (t *Track) Segments() int {
	return len(t.inner)
}

func (t *Track) Width() float64 {
	return t.width
}

// Centerline returns the point midway between inner[i] and outer[i].
func (t *Track) Centerline(i int) r2.Point {
	return t.inner[i].Add(t.outer[i]).Mul(0.5)
}

// Tangent is the unit direction of inner segment i.
func (t *Track) Tangent(i int) r2.Point {
	a, b := t.inner.Segment(i)
	return geom.Unit(b.Sub(a), r2.Point{X: 1})
}

// Bounds is the bounding rectangle of the outer ring.
func (t *Track) Bounds() r2.Rect {
	return r2.RectFromPoints(t.outer...)
}
