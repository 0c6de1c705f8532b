package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"trackevo/internal/evo"
	"trackevo/internal/model"
	"trackevo/internal/storage"
	"trackevo/internal/track"
)

// DefaultTickMS is the fixed step used by headless runs, about 60 Hz.
const DefaultTickMS = 16

type Command string

const (
	CommandPause    Command = "pause"
	CommandContinue Command = "continue"
	CommandStop     Command = "stop"
)

type Config struct {
	Store storage.Store
}

type EvolutionConfig struct {
	RunID      string
	Track      *track.Track
	Population evo.Config
	// TickMS is the simulated step per tick. Zero selects DefaultTickMS.
	TickMS uint64
	// Control receives pause, continue and stop commands while the run is
	// active. A buffered channel is created when nil.
	Control chan Command
	// OnGeneration is called after every evolution step, after any hook set
	// on Population.
	OnGeneration func(model.GenerationStats)
}

type EvolutionResult struct {
	History      []model.GenerationStats
	TopGenomes   []model.TopGenomeRecord
	Lineage      []model.LineageRecord
	BestDistance int
	// Stopped is set when a stop command ended the run early.
	Stopped bool
}

// Polis owns the store and drives headless evolution runs.
type Polis struct {
	store storage.Store

	mu      sync.RWMutex
	started bool
	runs    map[string]chan Command
}

func NewPolis(cfg Config) *Polis {
	return &Polis{
		store: cfg.Store,
		runs:  make(map[string]chan Command),
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Store() storage.Store {
	return p.store
}

// Stop asks every active run to stop and marks the polis as stopped.
func (p *Polis) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, control := range p.runs {
		select {
		case control <- CommandStop:
		default:
		}
	}
	p.started = false
}

// Reset stops active runs, drops persisted state when the store supports it
// and re-initializes the store.
func (p *Polis) Reset(ctx context.Context) error {
	p.Stop()
	if resetter, ok := p.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	return p.Init(ctx)
}

// Pause, Continue and StopRun forward a command to an active run.
func (p *Polis) Pause(runID string) error {
	return p.sendCommand(runID, CommandPause)
}

func (p *Polis) Continue(runID string) error {
	return p.sendCommand(runID, CommandContinue)
}

func (p *Polis) StopRun(runID string) error {
	return p.sendCommand(runID, CommandStop)
}

func (p *Polis) sendCommand(runID string, cmd Command) error {
	p.mu.RLock()
	control, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	select {
	case control <- cmd:
		return nil
	default:
		return fmt.Errorf("run %s control queue is full", runID)
	}
}

func (p *Polis) registerRunControl(runID string, control chan Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	p.runs[runID] = control
	return nil
}

func (p *Polis) unregisterRunControl(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, runID)
}

// RunEvolution ticks a population at a fixed step until it finishes, is
// stopped, or ctx is cancelled, then persists history, top genomes and
// lineage under the run id. Cancellation returns ctx.Err() and persists
// nothing.
func (p *Polis) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.RunID == "" {
		return EvolutionResult{}, fmt.Errorf("run id is required")
	}
	if cfg.Track == nil {
		return EvolutionResult{}, fmt.Errorf("track is required")
	}
	if cfg.Population.Generations <= 0 {
		return EvolutionResult{}, fmt.Errorf("headless runs need generations > 0, got %d", cfg.Population.Generations)
	}
	if !p.Started() {
		return EvolutionResult{}, fmt.Errorf("polis is not initialized")
	}
	tickMS := cfg.TickMS
	if tickMS == 0 {
		tickMS = DefaultTickMS
	}

	control := cfg.Control
	if control == nil {
		control = make(chan Command, 16)
	}
	if err := p.registerRunControl(cfg.RunID, control); err != nil {
		return EvolutionResult{}, err
	}
	defer p.unregisterRunControl(cfg.RunID)

	popCfg := cfg.Population
	if inner, outer := popCfg.OnGeneration, cfg.OnGeneration; outer != nil {
		popCfg.OnGeneration = func(s model.GenerationStats) {
			if inner != nil {
				inner(s)
			}
			outer(s)
		}
	}
	population, err := evo.NewPopulation(popCfg, cfg.Track)
	if err != nil {
		return EvolutionResult{}, err
	}

	stopped, err := drive(ctx, population, tickMS, control)
	if err != nil {
		return EvolutionResult{}, err
	}
	if err := population.Err(); err != nil {
		return EvolutionResult{}, err
	}

	result := EvolutionResult{
		History:    population.History(),
		TopGenomes: population.TopGenomes(),
		Lineage:    population.Lineage(),
		Stopped:    stopped,
	}
	for _, s := range result.History {
		result.BestDistance = max(result.BestDistance, s.MaxDistance)
	}

	if err := p.store.SaveGenerationHistory(ctx, cfg.RunID, result.History); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveTopGenomes(ctx, cfg.RunID, result.TopGenomes); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveLineage(ctx, cfg.RunID, result.Lineage); err != nil {
		return EvolutionResult{}, err
	}
	return result, nil
}

var errStopped = errors.New("run stopped")

// drive is the headless tick loop. Commands are drained between ticks; while
// paused it blocks until a command or cancellation arrives.
func drive(ctx context.Context, population *evo.Population, tickMS uint64, control <-chan Command) (bool, error) {
	paused := false
	apply := func(cmd Command) error {
		switch cmd {
		case CommandPause:
			paused = true
		case CommandContinue:
			paused = false
		case CommandStop:
			return errStopped
		}
		return nil
	}

	for !population.Done() {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		select {
		case cmd := <-control:
			if err := apply(cmd); err != nil {
				return true, nil
			}
			continue
		default:
		}

		if paused {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case cmd := <-control:
				if err := apply(cmd); err != nil {
					return true, nil
				}
			}
			continue
		}

		population.Tick(tickMS)
	}
	return false, nil
}
