package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"trackevo/internal/model"
)

// Summary condenses a run's generation history.
type Summary struct {
	Generations        int     `json:"generations"`
	BestDistance       int     `json:"best_distance"`
	BestGeneration     int     `json:"best_generation"`
	InitialMaxDistance int     `json:"initial_max_distance"`
	FinalMaxDistance   int     `json:"final_max_distance"`
	MeanMaxDistance    float64 `json:"mean_max_distance"`
	StdMaxDistance     float64 `json:"std_max_distance"`
	MeanDistance       float64 `json:"mean_distance"`
	Improvement        int     `json:"improvement"`
	TimeoutGenerations int     `json:"timeout_generations"`
	AllDeadGenerations int     `json:"all_dead_generations"`
	SurvivorRate       float64 `json:"survivor_rate"`
}

func Summarize(history []model.GenerationStats) Summary {
	if len(history) == 0 {
		return Summary{}
	}

	maxDistances := make([]float64, len(history))
	meanDistances := make([]float64, 0, len(history))
	survivors, cars := 0, 0
	summary := Summary{Generations: len(history)}
	for i, s := range history {
		maxDistances[i] = float64(s.MaxDistance)
		if s.Population > 0 {
			meanDistances = append(meanDistances, float64(s.TotalDistance)/float64(s.Population))
		}
		survivors += s.Survivors
		cars += s.Population
		switch s.EndReason {
		case model.EndTimeout:
			summary.TimeoutGenerations++
		case model.EndAllDead:
			summary.AllDeadGenerations++
		}
	}

	bestIdx := floats.MaxIdx(maxDistances)
	summary.BestDistance = history[bestIdx].MaxDistance
	summary.BestGeneration = history[bestIdx].Generation
	summary.InitialMaxDistance = history[0].MaxDistance
	summary.FinalMaxDistance = history[len(history)-1].MaxDistance
	summary.Improvement = summary.FinalMaxDistance - summary.InitialMaxDistance
	summary.MeanMaxDistance, summary.StdMaxDistance = stat.MeanStdDev(maxDistances, nil)
	if len(history) == 1 {
		summary.StdMaxDistance = 0
	}
	if len(meanDistances) > 0 {
		summary.MeanDistance = stat.Mean(meanDistances, nil)
	}
	if cars > 0 {
		summary.SurvivorRate = float64(survivors) / float64(cars)
	}
	return summary
}

// MeanDistanceSeries is the per-generation average distance.
func MeanDistanceSeries(history []model.GenerationStats) []float64 {
	series := make([]float64, len(history))
	for i, s := range history {
		if s.Population > 0 {
			series[i] = float64(s.TotalDistance) / float64(s.Population)
		}
	}
	return series
}
