package evo

import (
	"math/rand"

	"github.com/golang/geo/r2"

	"trackevo/internal/agent"
	"trackevo/internal/geom"
	"trackevo/internal/model"
	"trackevo/internal/track"
)

// MutationRate is the per-gene probability of a perturbation.
const MutationRate = 0.5

// MaxSpawnSpeed bounds the initial speed of a spawned car.
const MaxSpawnSpeed = 0.15

// Gene blocks copied wholesale by Crossover.
var (
	steeringBlock = []int{model.GeneTurnTrigger, model.GeneTurnAngle}
	throttleBlock = []int{
		model.GeneAccelTrigger,
		model.GeneAccelIncrement,
		model.GeneBrakeTrigger,
		model.GeneBrakeIncrement,
	}
)

// RandomGenome draws an initial genome. Every gene is U(0,1) except the brake
// increment, which is negated.
func RandomGenome(rng *rand.Rand) model.Genome {
	var g model.Genome
	for i := range g {
		g[i] = rng.Float64()
	}
	g[model.GeneBrakeIncrement] = -g[model.GeneBrakeIncrement]
	return g
}

// Crossover builds a child from two parents. The steering block and the
// throttle block each come from one parent picked by a fair coin.
func Crossover(rng *rand.Rand, a, b model.Genome) model.Genome {
	var child model.Genome
	for _, block := range [][]int{steeringBlock, throttleBlock} {
		src := a
		if rng.Intn(2) == 1 {
			src = b
		}
		for _, gene := range block {
			child[gene] = src[gene]
		}
	}
	return child
}

// MutationDelta maps a uniform draw u in [0,1) to a perturbation in
// [-0.5, 0.5) scaled down by generation+1.
func MutationDelta(u float64, generation int) float64 {
	return (-0.5 + u) / float64(generation+1)
}

// Mutate perturbs each gene independently with probability MutationRate.
func Mutate(rng *rand.Rand, g model.Genome, generation int) model.Genome {
	for i := range g {
		if rng.Float64() < MutationRate {
			g[i] += MutationDelta(rng.Float64(), generation)
		}
	}
	return g
}

// SpawnPose places a car at a random vertex, pushed radially into the track
// band, with a random heading and a small speed.
func SpawnPose(rng *rand.Rand, t *track.Track) agent.Pose {
	v := rng.Intn(t.Segments())
	offset := 1 + t.Width()*(0.2+0.6*rng.Float64())
	position := t.Inner()[v].Mul(offset)
	heading := r2.Point{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1}
	return agent.Pose{
		Position: position,
		Heading:  geom.Unit(heading, t.Tangent(v)),
		Speed:    rng.Float64() * MaxSpawnSpeed,
	}
}
