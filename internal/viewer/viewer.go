package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"

	"trackevo/internal/agent"
	"trackevo/internal/evo"
	"trackevo/internal/model"
)

const (
	frameInterval    = 16 * time.Millisecond
	DefaultTickMS    = 16
	maxTicksPerFrame = 16
)

type Options struct {
	// TickMS is the simulated time advanced per tick. Zero selects
	// DefaultTickMS.
	TickMS   uint64
	ShowRays bool
}

var styles = map[Kind]tcell.Style{
	KindEmpty:    tcell.StyleDefault,
	KindInner:    tcell.StyleDefault.Foreground(tcell.ColorGray),
	KindOuter:    tcell.StyleDefault.Foreground(tcell.ColorWhite),
	KindRayLeft:  tcell.StyleDefault.Foreground(tcell.ColorBlue),
	KindRayRight: tcell.StyleDefault.Foreground(tcell.ColorYellow),
	KindCar:      tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true),
	KindDeadCar:  tcell.StyleDefault.Foreground(tcell.ColorRed),
}

// Viewer renders a live population into a terminal screen and owns the
// frame loop. All population calls happen on the loop goroutine.
type Viewer struct {
	screen     tcell.Screen
	population *evo.Population
	opts       Options

	paused        bool
	ticksPerFrame int
	best          int
	last          model.GenerationStats
	haveLast      bool
}

func New(screen tcell.Screen, population *evo.Population, opts Options) *Viewer {
	if opts.TickMS == 0 {
		opts.TickMS = DefaultTickMS
	}
	return &Viewer{
		screen:        screen,
		population:    population,
		opts:          opts,
		ticksPerFrame: 1,
	}
}

// Run initializes the screen and loops until the user quits or ctx is done.
// The screen is finalized before Run returns.
func (v *Viewer) Run(ctx context.Context) error {
	if err := v.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer v.screen.Fini()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	defer close(done)
	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	v.render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !v.handleEvent(ev) {
				return nil
			}
			v.render()
		case <-ticker.C:
			v.step()
			v.render()
		}
	}
}

func (v *Viewer) step() {
	if v.paused || v.population.Done() {
		return
	}
	for i := 0; i < v.ticksPerFrame; i++ {
		before := v.population.Completed()
		v.population.Tick(v.opts.TickMS)
		if v.population.Completed() > before {
			v.last, v.haveLast = v.population.LastGeneration()
			v.best = max(v.best, v.last.MaxDistance)
		}
	}
}

// handleEvent applies one input event. It returns false when the viewer
// should exit.
func (v *Viewer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				v.paused = !v.paused
			case 'r':
				v.opts.ShowRays = !v.opts.ShowRays
			case '+', '=':
				v.ticksPerFrame = min(v.ticksPerFrame*2, maxTicksPerFrame)
			case '-':
				v.ticksPerFrame = max(v.ticksPerFrame/2, 1)
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *Viewer) render() {
	cols, rows := v.screen.Size()
	if cols <= 0 || rows <= 1 {
		return
	}
	v.screen.Clear()

	cars := v.population.Cars()
	views := make([]agent.DebugView, 0, len(cars))
	for _, car := range cars {
		views = append(views, car.DebugView())
	}

	canvas := NewCanvas(cols, rows-1)
	tr := v.population.Track()
	Draw(canvas, NewViewport(tr.Bounds(), cols, rows-1), Scene{Track: tr, Cars: views, ShowRays: v.opts.ShowRays})
	for row := 0; row < rows-1; row++ {
		for col := 0; col < cols; col++ {
			g := canvas.At(col, row)
			if g.Kind == KindEmpty {
				continue
			}
			v.screen.SetContent(col, row, g.Rune, nil, styles[g.Kind])
		}
	}

	drawText(v.screen, 0, rows-1, tcell.StyleDefault.Reverse(true), v.status(cols))
	v.screen.Show()
}

func (v *Viewer) status(width int) string {
	state := "running"
	switch {
	case v.population.Done():
		state = "done"
	case v.paused:
		state = "paused"
	}
	line := fmt.Sprintf(" gen %d  alive %d/%d  t=%s ms  best %d  x%d  %s",
		v.population.Generation(),
		v.population.Alive(),
		len(v.population.Cars()),
		humanize.Comma(int64(v.population.ElapsedMS())),
		v.best,
		v.ticksPerFrame,
		state,
	)
	if v.haveLast {
		line += fmt.Sprintf("  last: max %d total %d (%s)", v.last.MaxDistance, v.last.TotalDistance, v.last.EndReason)
	}
	line += "  [space] pause [r] rays [+/-] speed [q] quit"
	runes := []rune(line)
	if len(runes) > width {
		runes = runes[:width]
	}
	return string(runes)
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
