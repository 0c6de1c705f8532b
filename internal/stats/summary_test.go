package stats

import (
	"math"
	"testing"

	"trackevo/internal/model"
)

func TestSummarizeHistory(t *testing.T) {
	summary := Summarize(sampleHistory())

	if summary.Generations != 3 || summary.BestDistance != 5 || summary.BestGeneration != 1 {
		t.Fatalf("unexpected best: %+v", summary)
	}
	if summary.InitialMaxDistance != 2 || summary.FinalMaxDistance != 4 || summary.Improvement != 2 {
		t.Fatalf("unexpected improvement: %+v", summary)
	}
	if math.Abs(summary.MeanMaxDistance-11.0/3) > 1e-12 {
		t.Fatalf("unexpected mean max distance: %f", summary.MeanMaxDistance)
	}
	// Sample standard deviation of {2, 5, 4}.
	if math.Abs(summary.StdMaxDistance-math.Sqrt(7.0/3)) > 1e-12 {
		t.Fatalf("unexpected std: %f", summary.StdMaxDistance)
	}
	if math.Abs(summary.MeanDistance-(2+3+3.5)/3) > 1e-12 {
		t.Fatalf("unexpected mean distance: %f", summary.MeanDistance)
	}
	if summary.TimeoutGenerations != 1 || summary.AllDeadGenerations != 2 {
		t.Fatalf("unexpected end reasons: %+v", summary)
	}
	if math.Abs(summary.SurvivorRate-1.0/12) > 1e-12 {
		t.Fatalf("unexpected survivor rate: %f", summary.SurvivorRate)
	}
}

func TestSummarizeEdgeCases(t *testing.T) {
	if got := Summarize(nil); got != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", got)
	}

	single := Summarize([]model.GenerationStats{{MaxDistance: 3, TotalDistance: 3, Population: 1, EndReason: model.EndAllDead}})
	if single.StdMaxDistance != 0 || math.IsNaN(single.MeanMaxDistance) {
		t.Fatalf("single generation summary not finite: %+v", single)
	}

	empty := Summarize([]model.GenerationStats{{Generation: 0}})
	if empty.MeanDistance != 0 || empty.SurvivorRate != 0 {
		t.Fatalf("empty population should not divide by zero: %+v", empty)
	}
}

func TestMeanDistanceSeries(t *testing.T) {
	series := MeanDistanceSeries(sampleHistory())
	want := []float64{2, 3, 3.5}
	for i := range want {
		if series[i] != want[i] {
			t.Fatalf("series[%d]=%f want %f", i, series[i], want[i])
		}
	}
}
