package viewer

import (
	"math"

	"github.com/golang/geo/r2"

	"trackevo/internal/agent"
	"trackevo/internal/geom"
	"trackevo/internal/track"
)

// Kind classifies what a cell shows so the screen layer can style it.
type Kind int

const (
	KindEmpty Kind = iota
	KindInner
	KindOuter
	KindRayLeft
	KindRayRight
	KindCar
	KindDeadCar
)

type Glyph struct {
	Rune rune
	Kind Kind
}

// Canvas is a character grid independent of any terminal.
type Canvas struct {
	cols, rows int
	cells      []Glyph
}

func NewCanvas(cols, rows int) *Canvas {
	cols, rows = max(cols, 0), max(rows, 0)
	return &Canvas{cols: cols, rows: rows, cells: make([]Glyph, cols*rows)}
}

func (c *Canvas) Size() (int, int) {
	return c.cols, c.rows
}

func (c *Canvas) At(col, row int) Glyph {
	if !c.inside(col, row) {
		return Glyph{}
	}
	return c.cells[row*c.cols+col]
}

func (c *Canvas) inside(col, row int) bool {
	return col >= 0 && col < c.cols && row >= 0 && row < c.rows
}

func (c *Canvas) set(col, row int, g Glyph) {
	if c.inside(col, row) {
		c.cells[row*c.cols+col] = g
	}
}

// Viewport maps world coordinates onto a canvas. Terminal cells are about
// twice as tall as wide, so one row covers twice the world height of a
// column.
type Viewport struct {
	cols, rows int
	origin     r2.Point
	scale      float64
}

const cellAspect = 2.0

// NewViewport fits bounds into cols x rows with a one cell margin, keeping
// the world aspect ratio.
func NewViewport(bounds r2.Rect, cols, rows int) Viewport {
	usableCols := float64(max(cols-2, 1))
	usableRows := float64(max(rows-2, 1))
	size := bounds.Size()
	scale := math.Inf(1)
	if size.X > 0 {
		scale = usableCols / size.X
	}
	if size.Y > 0 {
		scale = min(scale, usableRows*cellAspect/size.Y)
	}
	if math.IsInf(scale, 1) {
		scale = 1
	}
	return Viewport{cols: cols, rows: rows, origin: bounds.Center(), scale: scale}
}

// Project returns the cell for a world point. Y grows upward in the world and
// downward on screen.
func (v Viewport) Project(p r2.Point) (int, int) {
	d := p.Sub(v.origin)
	col := float64(v.cols)/2 + d.X*v.scale
	row := float64(v.rows)/2 - d.Y*v.scale/cellAspect
	return int(math.Floor(col)), int(math.Floor(row))
}

func (c *Canvas) line(v Viewport, a, b r2.Point, g Glyph) {
	c0, r0 := v.Project(a)
	c1, r1 := v.Project(b)
	steps := max(abs(c1-c0), abs(r1-r0))
	if steps == 0 {
		c.set(c0, r0, g)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		col := int(math.Round(float64(c0) + t*float64(c1-c0)))
		row := int(math.Round(float64(r0) + t*float64(r1-r0)))
		c.set(col, row, g)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Scene is one frame worth of world state.
type Scene struct {
	Track    *track.Track
	Cars     []agent.DebugView
	ShowRays bool
}

// Draw clears the canvas and renders the scene: track rings first, then
// rays, then cars so cars stay visible on top.
func Draw(c *Canvas, v Viewport, scene Scene) {
	clear(c.cells)
	if scene.Track != nil {
		drawRing(c, v, scene.Track.Inner(), Glyph{Rune: '·', Kind: KindInner})
		drawRing(c, v, scene.Track.Outer(), Glyph{Rune: '·', Kind: KindOuter})
	}
	if scene.ShowRays {
		for _, car := range scene.Cars {
			if !car.Alive {
				continue
			}
			for _, ray := range car.Rays {
				g := Glyph{Rune: '.', Kind: KindRayRight}
				if ray.Side == agent.RaySideLeft {
					g.Kind = KindRayLeft
				}
				end := ray.To
				if ray.Distance < geom.NoHit {
					end = ray.From.Add(ray.To.Sub(ray.From).Normalize().Mul(ray.Distance))
				}
				c.line(v, ray.From, end, g)
			}
		}
	}
	for _, car := range scene.Cars {
		col, row := v.Project(car.Position)
		if car.Alive {
			c.set(col, row, Glyph{Rune: headingArrow(car.Heading), Kind: KindCar})
		} else {
			c.set(col, row, Glyph{Rune: 'x', Kind: KindDeadCar})
		}
	}
}

func drawRing(c *Canvas, v Viewport, ring []r2.Point, g Glyph) {
	for i := range ring {
		c.line(v, ring[i], ring[(i+1)%len(ring)], g)
	}
}

var arrows = [8]rune{'→', '↗', '↑', '↖', '←', '↙', '↓', '↘'}

// headingArrow picks the arrow closest to the heading angle.
func headingArrow(h r2.Point) rune {
	angle := math.Atan2(h.Y, h.X)
	sector := int(math.Round(angle/(math.Pi/4))) % 8
	if sector < 0 {
		sector += 8
	}
	return arrows[sector]
}
