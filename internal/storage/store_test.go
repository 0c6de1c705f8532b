package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"trackevo/internal/model"
)

func currentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func sampleRun(id, createdAt string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: currentVersion(),
		ID:              id,
		CreatedAtUTC:    createdAt,
		Seed:            3,
		Population:      10,
		Generations:     4,
		TrackPoints:     16,
		BestDistance:    9,
		Selection:       "tournament",
	}
}

// exerciseStore runs the round trips every backend must support.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	older := sampleRun("run-a", "2026-01-01T00:00:00Z")
	newer := sampleRun("run-b", "2026-02-01T00:00:00Z")
	for _, run := range []model.RunRecord{older, newer} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}
	got, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(older, got); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}
	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%v err=%v", ok, err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if diff := cmp.Diff([]model.RunRecord{newer, older}, runs); diff != "" {
		t.Fatalf("run list mismatch (-want +got):\n%s", diff)
	}

	history := []model.GenerationStats{
		{Generation: 0, MaxDistance: 3, TotalDistance: 12, TotalTimeMS: 4000, Population: 10, EndReason: model.EndAllDead, RuntimeMS: 2100},
		{Generation: 1, MaxDistance: 9, TotalDistance: 40, TotalTimeMS: 90000, Population: 10, Survivors: 2, EndReason: model.EndTimeout, RuntimeMS: 15008},
	}
	if err := store.SaveGenerationHistory(ctx, "run-a", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	gotHistory, ok, err := store.GetGenerationHistory(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(history, gotHistory); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	top := []model.TopGenomeRecord{{
		VersionedRecord: currentVersion(),
		Rank:            1,
		GenomeID:        "g1-i4",
		Distance:        9,
		TimeAliveMS:     15008,
		Genome:          model.Genome{0.1, 0.2, 0.3, 0.4, 0.5, -0.6},
	}}
	if err := store.SaveTopGenomes(ctx, "run-a", top); err != nil {
		t.Fatalf("save top genomes: %v", err)
	}
	gotTop, ok, err := store.GetTopGenomes(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get top genomes: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(top, gotTop); diff != "" {
		t.Fatalf("top genomes mismatch (-want +got):\n%s", diff)
	}

	lineage := []model.LineageRecord{
		{VersionedRecord: currentVersion(), GenomeID: "g0-i0", Generation: 0, Operation: "seed"},
		{VersionedRecord: currentVersion(), GenomeID: "g1-i0", ParentA: "g0-i0", ParentB: "g0-i0", Generation: 1, Operation: "crossover+mutate"},
	}
	if err := store.SaveLineage(ctx, "run-a", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	gotLineage, ok, err := store.GetLineage(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get lineage: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(lineage, gotLineage); diff != "" {
		t.Fatalf("lineage mismatch (-want +got):\n%s", diff)
	}

	if _, ok, err := store.GetLineage(ctx, "run-b"); err != nil || ok {
		t.Fatalf("expected no lineage for run-b, ok=%v err=%v", ok, err)
	}
}
