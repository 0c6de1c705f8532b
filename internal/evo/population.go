package evo

import (
	"fmt"
	"math/rand"

	"trackevo/internal/agent"
	"trackevo/internal/model"
	"trackevo/internal/track"
)

const (
	DefaultSettleMS            = 1000
	DefaultGenerationCeilingMS = 15000
	// TopGenomeLimit bounds the hall of fame kept across generations.
	TopGenomeLimit = 10

	OperationSeed      = "seed"
	OperationCrossover = "crossover+mutate"
)

type Config struct {
	// Generations is the number of evolution steps to run. Zero runs forever.
	Generations    int
	PopulationSize int
	CarWidth       float64
	CarHeight      float64
	NumRays        int
	RayLength      float64
	// SettleMS is how long every car must have been dead before the
	// generation ends. Zero selects DefaultSettleMS.
	SettleMS uint64
	// GenerationCeilingMS caps the simulated length of one generation. Zero
	// selects DefaultGenerationCeilingMS.
	GenerationCeilingMS uint64
	// Selector picks parents. Nil selects a TournamentSelector.
	Selector Selector
	Seed     int64
	// OnGeneration, if set, is called after every evolution step.
	OnGeneration func(model.GenerationStats)
}

// Population runs the generational loop over a shared immutable track. It is
// driven entirely by Tick and is not safe for concurrent use.
type Population struct {
	cfg      Config
	track    *track.Track
	rng      *rand.Rand
	selector Selector

	generation int
	cars       []*agent.Car
	elapsedMS  uint64
	deadMS     uint64

	history []model.GenerationStats
	lineage []model.LineageRecord
	top     []model.TopGenomeRecord
	done    bool
	err     error
}

func NewPopulation(cfg Config, t *track.Track) (*Population, error) {
	if t == nil {
		return nil, fmt.Errorf("track is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0")
	}
	if cfg.CarWidth <= 0 || cfg.CarHeight <= 0 {
		return nil, fmt.Errorf("car size must be > 0: width=%v height=%v", cfg.CarWidth, cfg.CarHeight)
	}
	if cfg.SettleMS == 0 {
		cfg.SettleMS = DefaultSettleMS
	}
	if cfg.GenerationCeilingMS == 0 {
		cfg.GenerationCeilingMS = DefaultGenerationCeilingMS
	}
	selector := cfg.Selector
	if selector == nil {
		selector = TournamentSelector{}
	}

	p := &Population{
		cfg:      cfg,
		track:    t,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		selector: selector,
		cars:     make([]*agent.Car, 0, cfg.PopulationSize),
	}
	if cfg.Generations > 0 {
		p.history = make([]model.GenerationStats, 0, cfg.Generations)
	}

	for i := 0; i < cfg.PopulationSize; i++ {
		id := carID(0, i)
		car, err := p.newCar(id, RandomGenome(p.rng))
		if err != nil {
			return nil, err
		}
		p.cars = append(p.cars, car)
		p.lineage = append(p.lineage, model.LineageRecord{
			VersionedRecord: currentVersion(),
			GenomeID:        id,
			Generation:      0,
			Operation:       OperationSeed,
		})
	}
	return p, nil
}

func carID(generation, index int) string {
	return fmt.Sprintf("g%d-i%d", generation, index)
}

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: model.CurrentSchemaVersion, CodecVersion: model.CurrentCodecVersion}
}

func (p *Population) newCar(id string, genome model.Genome) (*agent.Car, error) {
	return agent.NewCar(agent.Config{
		ID:        id,
		Pose:      SpawnPose(p.rng, p.track),
		Width:     p.cfg.CarWidth,
		Height:    p.cfg.CarHeight,
		Genome:    genome,
		NumRays:   p.cfg.NumRays,
		RayLength: p.cfg.RayLength,
	})
}

// Tick advances every car by deltaMS and runs an evolution step when the
// generation has ended. A zero delta does nothing.
func (p *Population) Tick(deltaMS uint64) {
	if p.done || deltaMS == 0 {
		return
	}

	allDead := true
	for _, car := range p.cars {
		car.Update(deltaMS, p.track)
		if car.Alive() {
			allDead = false
		}
	}
	p.elapsedMS += deltaMS
	if allDead {
		p.deadMS += deltaMS
	} else {
		p.deadMS = 0
	}

	switch {
	case allDead && p.deadMS >= p.cfg.SettleMS:
		p.evolve(model.EndAllDead)
	case p.elapsedMS >= p.cfg.GenerationCeilingMS:
		p.evolve(model.EndTimeout)
	}
}

func (p *Population) evolve(reason string) {
	stats := model.GenerationStats{
		Generation: p.generation,
		Population: len(p.cars),
		EndReason:  reason,
		RuntimeMS:  p.elapsedMS,
	}
	pool := make([]Candidate, 0, len(p.cars))
	for _, car := range p.cars {
		distance := car.DistanceTraveled()
		stats.TotalDistance += distance
		stats.MaxDistance = max(stats.MaxDistance, distance)
		stats.TotalTimeMS += car.TimeAlive()
		if car.Alive() {
			stats.Survivors++
		}
		pool = append(pool, Candidate{
			ID:          car.ID(),
			Genome:      car.Genome(),
			Distance:    distance,
			TimeAliveMS: car.TimeAlive(),
		})
	}
	p.history = append(p.history, stats)
	p.recordTop(pool)

	if p.cfg.Generations > 0 && len(p.history) >= p.cfg.Generations {
		p.done = true
	} else if err := p.breed(pool); err != nil {
		p.err = err
		p.done = true
	}

	if p.cfg.OnGeneration != nil {
		p.cfg.OnGeneration(stats)
	}
}

func (p *Population) breed(pool []Candidate) error {
	next := p.generation + 1
	children := make([]*agent.Car, 0, p.cfg.PopulationSize)
	for i := 0; i < p.cfg.PopulationSize; i++ {
		a, err := p.selector.PickParent(p.rng, pool)
		if err != nil {
			return fmt.Errorf("generation %d: select parent: %w", p.generation, err)
		}
		b, err := p.selector.PickParent(p.rng, pool)
		if err != nil {
			return fmt.Errorf("generation %d: select parent: %w", p.generation, err)
		}
		genome := Mutate(p.rng, Crossover(p.rng, a.Genome, b.Genome), p.generation)

		id := carID(next, i)
		car, err := p.newCar(id, genome)
		if err != nil {
			return fmt.Errorf("generation %d: spawn %s: %w", next, id, err)
		}
		children = append(children, car)
		p.lineage = append(p.lineage, model.LineageRecord{
			VersionedRecord: currentVersion(),
			GenomeID:        id,
			ParentA:         a.ID,
			ParentB:         b.ID,
			Generation:      next,
			Operation:       OperationCrossover,
		})
	}

	p.cars = children
	p.generation = next
	p.elapsedMS = 0
	p.deadMS = 0
	return nil
}

func (p *Population) recordTop(pool []Candidate) {
	merged := make([]Candidate, 0, len(p.top)+len(pool))
	for _, rec := range p.top {
		merged = append(merged, Candidate{
			ID:          rec.GenomeID,
			Genome:      rec.Genome,
			Distance:    rec.Distance,
			TimeAliveMS: rec.TimeAliveMS,
		})
	}
	merged = append(merged, pool...)
	ranked := rankCandidates(merged)
	if len(ranked) > TopGenomeLimit {
		ranked = ranked[:TopGenomeLimit]
	}

	p.top = p.top[:0]
	for i, c := range ranked {
		p.top = append(p.top, model.TopGenomeRecord{
			VersionedRecord: currentVersion(),
			Rank:            i + 1,
			GenomeID:        c.ID,
			Distance:        c.Distance,
			TimeAliveMS:     c.TimeAliveMS,
			Genome:          c.Genome,
		})
	}
}

// Generation is the zero-based index of the generation currently driving.
func (p *Population) Generation() int {
	return p.generation
}

// ElapsedMS is the simulated time spent in the current generation.
func (p *Population) ElapsedMS() uint64 {
	return p.elapsedMS
}

func (p *Population) Track() *track.Track {
	return p.track
}

// Cars returns the current generation. The slice is a copy; the cars are
// live and must only be read between ticks.
func (p *Population) Cars() []*agent.Car {
	return append([]*agent.Car(nil), p.cars...)
}

// Alive counts the cars still driving.
func (p *Population) Alive() int {
	n := 0
	for _, car := range p.cars {
		if car.Alive() {
			n++
		}
	}
	return n
}

func (p *Population) History() []model.GenerationStats {
	return append([]model.GenerationStats(nil), p.history...)
}

// Completed is the number of finished generations.
func (p *Population) Completed() int {
	return len(p.history)
}

// LastGeneration returns the stats of the most recent finished generation.
func (p *Population) LastGeneration() (model.GenerationStats, bool) {
	if len(p.history) == 0 {
		return model.GenerationStats{}, false
	}
	return p.history[len(p.history)-1], true
}

func (p *Population) Lineage() []model.LineageRecord {
	return append([]model.LineageRecord(nil), p.lineage...)
}

// TopGenomes is the best TopGenomeLimit cars over all finished generations.
func (p *Population) TopGenomes() []model.TopGenomeRecord {
	return append([]model.TopGenomeRecord(nil), p.top...)
}

func (p *Population) SelectorName() string {
	return p.selector.Name()
}

// Done reports whether the configured number of generations has finished or
// breeding failed.
func (p *Population) Done() bool {
	return p.done
}

func (p *Population) Err() error {
	return p.err
}
