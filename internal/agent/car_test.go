package agent

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"

	"trackevo/internal/geom"
	"trackevo/internal/model"
	"trackevo/internal/track"
)

const (
	testCarWidth  = 0.035
	testCarHeight = 0.065
)

func regularTrack(t *testing.T, points int) *track.Track {
	t.Helper()
	tr, err := track.New(track.Config{Points: points, Variability: 0, Width: 0.1}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new track: %v", err)
	}
	return tr
}

func newTestCar(t *testing.T, pose Pose, genome model.Genome) *Car {
	t.Helper()
	c, err := NewCar(Config{ID: "car-0", Pose: pose, Width: testCarWidth, Height: testCarHeight, Genome: genome})
	if err != nil {
		t.Fatalf("new car: %v", err)
	}
	return c
}

func TestNewCarValidation(t *testing.T) {
	cases := []Config{
		{ID: "", Width: 1, Height: 1},
		{ID: "a", Width: 0, Height: 1},
		{ID: "a", Width: 1, Height: -1},
		{ID: "a", Width: 1, Height: 1, NumRays: 1},
		{ID: "a", Width: 1, Height: 1, RayLength: -1},
	}
	for _, cfg := range cases {
		if _, err := NewCar(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestNewCarNormalizesHeading(t *testing.T) {
	c := newTestCar(t, Pose{Heading: r2.Point{X: 3, Y: 4}}, model.Genome{})
	if math.Abs(c.Heading().Norm()-1) > 1e-12 {
		t.Fatalf("expected unit heading, got %v", c.Heading())
	}
	if !c.Alive() {
		t.Fatal("new car should be alive")
	}
	if left, right := c.Perception(); left != geom.NoHit || right != geom.NoHit {
		t.Fatalf("expected no perception yet, got %f %f", left, right)
	}
}

func TestStationaryCarOnInnerVertexNeverCollides(t *testing.T) {
	tr := regularTrack(t, 8)
	start := tr.Inner()[0]
	c := newTestCar(t, Pose{Position: start, Heading: tr.Tangent(0), Speed: 0}, model.Genome{})

	for i := 0; i < 100; i++ {
		c.Update(16, tr)
		if !c.Alive() {
			t.Fatalf("car collided on tick %d", i)
		}
	}
	if c.Position() != start {
		t.Fatalf("stationary car moved: %v", c.Position())
	}
	if c.TimeAlive() != 1600 {
		t.Fatalf("expected 1600ms alive, got %d", c.TimeAlive())
	}
	if c.DistanceTraveled() != 1 {
		t.Fatalf("expected one passed segment, got %d", c.DistanceTraveled())
	}
}

func TestOutwardCarCrossesOuterBoundary(t *testing.T) {
	tr := regularTrack(t, 8)
	start := tr.Inner()[0].Mul(1.05)
	c := newTestCar(t, Pose{Position: start, Heading: r2.Point{X: 1}, Speed: 1}, model.Genome{})

	c.Update(16, tr)
	if !c.Alive() {
		t.Fatal("car should start inside the track")
	}
	ticks := 1
	for c.Alive() && ticks < 50 {
		c.Update(16, tr)
		ticks++
	}
	if c.Alive() {
		t.Fatalf("car still alive after %d ticks at %v", ticks, c.Position())
	}

	frozen := c.Position()
	timeAlive := c.TimeAlive()
	c.Update(16, tr)
	if c.Position() != frozen || c.TimeAlive() != timeAlive {
		t.Fatal("dead car kept updating")
	}
}

func TestUpdateWithZeroDeltaIsIdempotent(t *testing.T) {
	tr := regularTrack(t, 8)
	genome := model.Genome{5, 0.3, 5, 0.2, 5, -0.1}
	c := newTestCar(t, Pose{Position: tr.Centerline(2), Heading: tr.Tangent(2), Speed: 0.2}, genome)

	before := c.DebugView()
	for i := 0; i < 10; i++ {
		c.Update(0, tr)
	}
	after := c.DebugView()
	if after.Position != before.Position || after.Heading != before.Heading {
		t.Fatalf("pose changed: %+v -> %+v", before, after)
	}
	if after.Distance != before.Distance || after.Alive != before.Alive || after.Speed != before.Speed {
		t.Fatalf("state changed: %+v -> %+v", before, after)
	}
}

func TestCenterlinePointsNeverCollide(t *testing.T) {
	for _, points := range []int{3, 8, 24} {
		tr := regularTrack(t, points)
		for i := 0; i < tr.Segments(); i++ {
			c := newTestCar(t, Pose{Position: tr.Centerline(i), Heading: tr.Tangent(i)}, model.Genome{})
			if c.CheckCollision(tr) {
				t.Fatalf("points=%d centerline %d collided", points, i)
			}
			a, b := tr.Inner().Segment(i)
			mid := a.Add(b).Mul(0.5).Mul(1 + tr.Width()/2)
			c = newTestCar(t, Pose{Position: mid, Heading: tr.Tangent(i)}, model.Genome{})
			if c.CheckCollision(tr) {
				t.Fatalf("points=%d segment midpoint %d collided", points, i)
			}
		}
	}
}

func TestFarOutsidePointsAlwaysCollide(t *testing.T) {
	tr, err := track.New(track.Config{Points: 16, Variability: 0.1, Width: 0.1}, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatalf("new track: %v", err)
	}
	rng := rand.New(rand.NewSource(12))
	for i := 0; i < 200; i++ {
		angle := rng.Float64() * 2 * math.Pi
		p := r2.Point{X: math.Cos(angle), Y: math.Sin(angle)}.Mul(3 + rng.Float64())
		c := newTestCar(t, Pose{Position: p, Heading: r2.Point{X: 1}}, model.Genome{})
		if !c.CheckCollision(tr) {
			t.Fatalf("point %v outside outer ring did not collide", p)
		}
	}
	c := newTestCar(t, Pose{Position: r2.Point{}, Heading: r2.Point{X: 1}}, model.Genome{})
	if !c.CheckCollision(tr) {
		t.Fatal("point inside inner ring did not collide")
	}
}

func TestCollisionMarksEachSegmentOnce(t *testing.T) {
	tr := regularTrack(t, 8)
	c := newTestCar(t, Pose{Position: tr.Centerline(3), Heading: tr.Tangent(3)}, model.Genome{})
	for i := 0; i < 5; i++ {
		c.CheckCollision(tr)
	}
	if c.DistanceTraveled() != 1 {
		t.Fatalf("expected a single passed segment, got %d", c.DistanceTraveled())
	}
	c.position = tr.Centerline(5)
	c.CheckCollision(tr)
	if c.DistanceTraveled() != 2 {
		t.Fatalf("expected two passed segments, got %d", c.DistanceTraveled())
	}
}

func TestPerceptionTagsRaysBySide(t *testing.T) {
	tr := regularTrack(t, 8)
	for _, numRays := range []int{2, 4, 5} {
		c, err := NewCar(Config{
			ID:      "car",
			Pose:    Pose{Position: tr.Centerline(0), Heading: tr.Tangent(0)},
			Width:   testCarWidth,
			Height:  testCarHeight,
			NumRays: numRays,
		})
		if err != nil {
			t.Fatalf("new car: %v", err)
		}
		c.Perceive(tr)
		view := c.DebugView()
		if len(view.Rays) != numRays {
			t.Fatalf("rays=%d: got %d rays", numRays, len(view.Rays))
		}
		for i, r := range view.Rays {
			want := RaySideRight
			if i >= numRays/2 {
				want = RaySideLeft
			}
			if r.Side != want {
				t.Fatalf("rays=%d: ray %d tagged %s want %s", numRays, i, r.Side, want)
			}
			if math.Abs(r.To.Sub(r.From).Norm()-DefaultRayLength) > 1e-9 {
				t.Fatalf("ray %d has wrong length", i)
			}
		}
		first, last := view.Rays[0].From, view.Rays[numRays-1].From
		if math.Abs(first.Sub(last).Norm()-testCarWidth) > 1e-9 {
			t.Fatalf("rays=%d: origins do not span the car width", numRays)
		}
		left, right := c.Perception()
		if left >= geom.NoHit || right >= geom.NoHit {
			t.Fatalf("rays=%d: expected walls on both sides, got left=%f right=%f", numRays, left, right)
		}
	}
}

func TestPerceptionWithoutWallsReportsNoHit(t *testing.T) {
	tr := regularTrack(t, 8)
	c, err := NewCar(Config{
		ID:        "car",
		Pose:      Pose{Heading: r2.Point{X: 1}},
		Width:     testCarWidth,
		Height:    testCarHeight,
		RayLength: 0.25,
	})
	if err != nil {
		t.Fatalf("new car: %v", err)
	}
	c.Perceive(tr)
	if left, right := c.Perception(); left != geom.NoHit || right != geom.NoHit {
		t.Fatalf("expected NoHit, got left=%f right=%f", left, right)
	}
}

func TestSteeringPrefersLeft(t *testing.T) {
	genome := model.Genome{model.GeneTurnTrigger: 0.5, model.GeneTurnAngle: 0.1}
	cases := []struct {
		name        string
		left, right float64
		wantAngle   float64
	}{
		{name: "left only", left: 0.2, right: geom.NoHit, wantAngle: 0.1},
		{name: "right only", left: geom.NoHit, right: 0.2, wantAngle: -0.1},
		{name: "both favors left", left: 0.3, right: 0.1, wantAngle: 0.1},
		{name: "neither", left: 0.6, right: 0.7, wantAngle: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestCar(t, Pose{Heading: r2.Point{X: 1}}, genome)
			c.leftMin, c.rightMin = tc.left, tc.right
			c.steer()
			got := math.Atan2(c.Heading().Y, c.Heading().X)
			if math.Abs(got-tc.wantAngle) > 1e-12 {
				t.Fatalf("heading angle: got=%f want=%f", got, tc.wantAngle)
			}
			if math.Abs(c.Heading().Norm()-1) > 1e-12 {
				t.Fatal("heading not renormalized")
			}
		})
	}
}

func TestThrottleAppliesAccelerateAndBrakeTogether(t *testing.T) {
	genome := model.Genome{
		model.GeneAccelTrigger:   0.5,
		model.GeneAccelIncrement: 0.3,
		model.GeneBrakeTrigger:   0.4,
		model.GeneBrakeIncrement: -0.1,
	}
	c := newTestCar(t, Pose{Heading: r2.Point{X: 1}, Speed: 1}, genome)
	c.leftMin, c.rightMin = geom.NoHit, 0.2
	c.throttle()
	if math.Abs(c.Speed()-1.2) > 1e-12 {
		t.Fatalf("expected both rules to fire, speed=%f", c.Speed())
	}

	c.leftMin, c.rightMin = 0.45, geom.NoHit
	c.throttle()
	if math.Abs(c.Speed()-1.5) > 1e-12 {
		t.Fatalf("expected only acceleration, speed=%f", c.Speed())
	}
}

func TestSpeedIsNotClamped(t *testing.T) {
	genome := model.Genome{model.GeneBrakeTrigger: 1, model.GeneBrakeIncrement: -1}
	c := newTestCar(t, Pose{Heading: r2.Point{X: 1}, Speed: 0.1}, genome)
	c.leftMin, c.rightMin = 0.5, 0.5
	c.throttle()
	if c.Speed() >= 0 {
		t.Fatalf("expected negative speed, got %f", c.Speed())
	}
}

func TestDebugViewIsDetached(t *testing.T) {
	tr := regularTrack(t, 8)
	c := newTestCar(t, Pose{Position: tr.Centerline(1), Heading: tr.Tangent(1)}, model.Genome{})
	c.Perceive(tr)
	view := c.DebugView()
	view.Rays[0].Distance = -1
	if c.rays[0].Distance == -1 {
		t.Fatal("debug view shares ray storage with the car")
	}

	outline := view.Outline()
	nose := outline[0].Sub(view.Position)
	if nose.Dot(view.Heading) <= 0 {
		t.Fatal("nose should point along the heading")
	}
}
