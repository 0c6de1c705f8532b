package evo

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveBuiltinSelectors(t *testing.T) {
	resetSelectorRegistryForTests()
	t.Cleanup(resetSelectorRegistryForTests)

	selector, err := ResolveSelector("", 0)
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if selector.Name() != DefaultSelection {
		t.Fatalf("unexpected default selector: %s", selector.Name())
	}

	selector, err = ResolveSelector("tournament", 5)
	if err != nil {
		t.Fatalf("resolve tournament: %v", err)
	}
	if ts, ok := selector.(TournamentSelector); !ok || ts.TournamentSize != 5 {
		t.Fatalf("expected tournament size override, got %#v", selector)
	}

	selector, err = ResolveSelector("elite", 0)
	if err != nil {
		t.Fatalf("resolve elite: %v", err)
	}
	if selector.Name() != "elite" {
		t.Fatalf("unexpected selector: %s", selector.Name())
	}

	if diff := cmp.Diff([]string{"elite", "tournament"}, ListSelectors()); diff != "" {
		t.Fatalf("selector list mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveSelectorErrors(t *testing.T) {
	resetSelectorRegistryForTests()
	t.Cleanup(resetSelectorRegistryForTests)

	if _, err := ResolveSelector("roulette", 0); !errors.Is(err, ErrSelectorNotFound) {
		t.Fatalf("expected ErrSelectorNotFound, got: %v", err)
	}
	if _, err := ResolveSelector("tournament", -1); err == nil {
		t.Fatal("expected negative tournament size error")
	}
}

func TestRegisterSelector(t *testing.T) {
	resetSelectorRegistryForTests()
	t.Cleanup(resetSelectorRegistryForTests)

	if err := RegisterSelector("", func(int) Selector { return EliteSelector{} }); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := RegisterSelector("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if err := RegisterSelector("elite", func(int) Selector { return EliteSelector{} }); !errors.Is(err, ErrSelectorExists) {
		t.Fatalf("expected ErrSelectorExists, got: %v", err)
	}
	if err := RegisterSelector("best-of-all", func(int) Selector { return TournamentSelector{TournamentSize: 1 << 20} }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := ResolveSelector("best-of-all", 0); err != nil {
		t.Fatalf("resolve registered selector: %v", err)
	}
}
