package evo

import (
	"fmt"
	"math/rand"
	"sort"

	"trackevo/internal/model"
)

// Candidate is a finished car as seen by parent selection.
type Candidate struct {
	ID          string
	Genome      model.Genome
	Distance    int
	TimeAliveMS uint64
}

// Selector chooses one parent from a finished generation.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, pool []Candidate) (Candidate, error)
}

// Fitter returns the better of two candidates: longer distance first, then
// longer time alive. Equal candidates resolve to the challenger.
func Fitter(best, challenger Candidate) Candidate {
	if best.Distance > challenger.Distance {
		return best
	}
	if best.Distance == challenger.Distance && best.TimeAliveMS > challenger.TimeAliveMS {
		return best
	}
	return challenger
}

// DefaultTournamentSize is max(3, n/3) clamped to the pool size.
func DefaultTournamentSize(n int) int {
	return min(max(3, n/3), n)
}

// TournamentSelector shuffles the pool and keeps a running best over the
// first TournamentSize entries.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, pool []Candidate) (Candidate, error) {
	if rng == nil {
		return Candidate{}, fmt.Errorf("random source is required")
	}
	if len(pool) == 0 {
		return Candidate{}, fmt.Errorf("selection pool is empty")
	}

	size := s.TournamentSize
	if size <= 0 {
		size = DefaultTournamentSize(len(pool))
	}
	if size > len(pool) {
		size = len(pool)
	}

	order := rng.Perm(len(pool))
	best := pool[order[0]]
	for _, idx := range order[1:size] {
		best = Fitter(best, pool[idx])
	}
	return best, nil
}

// EliteSelector picks uniformly from the top fifth of the pool.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickParent(rng *rand.Rand, pool []Candidate) (Candidate, error) {
	if rng == nil {
		return Candidate{}, fmt.Errorf("random source is required")
	}
	if len(pool) == 0 {
		return Candidate{}, fmt.Errorf("selection pool is empty")
	}
	ranked := rankCandidates(pool)
	eliteCount := max(1, len(ranked)/5)
	return ranked[rng.Intn(eliteCount)], nil
}

// rankCandidates returns a copy of pool ordered best first. Ties keep pool
// order.
func rankCandidates(pool []Candidate) []Candidate {
	ranked := append([]Candidate(nil), pool...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance > ranked[j].Distance
		}
		return ranked[i].TimeAliveMS > ranked[j].TimeAliveMS
	})
	return ranked
}
