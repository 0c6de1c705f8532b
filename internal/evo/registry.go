package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

const DefaultSelection = "tournament"

var (
	ErrSelectorExists   = errors.New("selector already registered")
	ErrSelectorNotFound = errors.New("selector not found")
)

// SelectorFactory builds a selector for a population of the given size.
// tournamentSize is the caller override, zero meaning the default.
type SelectorFactory func(tournamentSize int) Selector

var selectorRegistry = struct {
	mu sync.RWMutex
	m  map[string]SelectorFactory
}{
	m: builtinSelectors(),
}

func builtinSelectors() map[string]SelectorFactory {
	return map[string]SelectorFactory{
		"tournament": func(tournamentSize int) Selector {
			return TournamentSelector{TournamentSize: tournamentSize}
		},
		"elite": func(int) Selector {
			return EliteSelector{}
		},
	}
}

func RegisterSelector(name string, factory SelectorFactory) error {
	if name == "" {
		return errors.New("selector name is required")
	}
	if factory == nil {
		return errors.New("selector factory is required")
	}

	selectorRegistry.mu.Lock()
	defer selectorRegistry.mu.Unlock()

	if _, exists := selectorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrSelectorExists, name)
	}
	selectorRegistry.m[name] = factory
	return nil
}

// ResolveSelector builds the named selector. An empty name selects
// DefaultSelection.
func ResolveSelector(name string, tournamentSize int) (Selector, error) {
	if name == "" {
		name = DefaultSelection
	}
	if tournamentSize < 0 {
		return nil, fmt.Errorf("tournament size must be >= 0: %d", tournamentSize)
	}

	selectorRegistry.mu.RLock()
	factory, ok := selectorRegistry.m[name]
	selectorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, name)
	}
	return factory(tournamentSize), nil
}

func ListSelectors() []string {
	selectorRegistry.mu.RLock()
	defer selectorRegistry.mu.RUnlock()

	names := make([]string, 0, len(selectorRegistry.m))
	for name := range selectorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetSelectorRegistryForTests() {
	selectorRegistry.mu.Lock()
	defer selectorRegistry.mu.Unlock()
	selectorRegistry.m = builtinSelectors()
}
