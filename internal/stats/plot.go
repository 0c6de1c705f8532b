package stats

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"trackevo/internal/model"
)

var (
	maxDistanceColor  = color.RGBA{R: 200, G: 40, B: 40, A: 255}
	meanDistanceColor = color.RGBA{R: 40, G: 90, B: 200, A: 255}
)

// WriteHistoryPlot renders max and mean distance per generation to path. The
// image format follows the file extension.
func WriteHistoryPlot(path, title string, history []model.GenerationStats) error {
	if len(history) == 0 {
		return fmt.Errorf("history is empty")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s - Distance by Generation", title)
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Segments passed"

	meanSeries := MeanDistanceSeries(history)
	maxPts := make(plotter.XYs, 0, len(history))
	meanPts := make(plotter.XYs, 0, len(history))
	for i, s := range history {
		maxPts = append(maxPts, plotter.XY{X: float64(s.Generation), Y: float64(s.MaxDistance)})
		meanPts = append(meanPts, plotter.XY{X: float64(s.Generation), Y: meanSeries[i]})
	}

	maxLine, err := plotter.NewLine(maxPts)
	if err != nil {
		return err
	}
	maxLine.Color = maxDistanceColor
	maxLine.Width = vg.Points(1.5)
	p.Add(maxLine)
	p.Legend.Add("max", maxLine)

	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return err
	}
	meanLine.Color = meanDistanceColor
	meanLine.Width = vg.Points(1)
	p.Add(meanLine)
	p.Legend.Add("mean", meanLine)

	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}
