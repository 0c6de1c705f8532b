package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"trackevo/pkg/trackevo"
)

func writeConfig(t *testing.T, payload map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run_config.json")
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunRequestFromConfig(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"generations":           12,
		"population_size":       40,
		"track_points":          30,
		"track_variability":     0.2,
		"track_width":           0.25,
		"car_width":             0.03,
		"car_height":            0.06,
		"seed":                  77,
		"num_rays":              6,
		"ray_length":            0.8,
		"generation_ceiling_ms": 9000,
		"settle_ms":             500,
		"tick_ms":               20,
		"tournament_size":       5,
		"selection":             "elite",
		"unknown_key":           "ignored",
	})

	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	want := trackevo.RunRequest{
		Generations:         12,
		PopulationSize:      40,
		TrackPoints:         30,
		TrackVariability:    0.2,
		TrackWidth:          0.25,
		CarWidth:            0.03,
		CarHeight:           0.06,
		Seed:                77,
		NumRays:             6,
		RayLength:           0.8,
		GenerationCeilingMS: 9000,
		SettleMS:            500,
		TickMS:              20,
		TournamentSize:      5,
		Selection:           "elite",
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRunRequestFromConfigIgnoresWrongTypes(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"generations": "many",
		"settle_ms":   -5,
		"selection":   7,
	})
	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.Generations != 0 || req.SettleMS != 0 || req.Selection != "" {
		t.Fatalf("mistyped fields should be ignored: %+v", req)
	}
}

func TestLoadOrDefaultRunRequestErrors(t *testing.T) {
	if _, err := loadOrDefaultRunRequest(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected missing config error")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadOrDefaultRunRequest(bad); err == nil {
		t.Fatal("expected parse error")
	}
	req, err := loadOrDefaultRunRequest("")
	if err != nil || req.Generations != 0 {
		t.Fatalf("empty path should give an empty request: %+v %v", req, err)
	}
}

func TestBuildRunRequestFlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"population_size": 40,
		"seed":            77,
		"selection":       "elite",
	})

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	values := simulationFlags(fs, trackevo.DefaultGenerations)
	if err := fs.Parse([]string{"--seed", "5", "--ceiling-ms", "400"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	req, err := buildRunRequest(fs, path, values())
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.Seed != 5 || req.GenerationCeilingMS != 400 {
		t.Fatalf("explicit flags should win: %+v", req)
	}
	if req.PopulationSize != 40 || req.Selection != "elite" {
		t.Fatalf("config values lost: %+v", req)
	}
	if req.Generations != 0 {
		t.Fatalf("unset flag defaults must not override config: %+v", req)
	}

	fs = flag.NewFlagSet("run", flag.ContinueOnError)
	values = simulationFlags(fs, trackevo.DefaultGenerations)
	if err := fs.Parse([]string{"--pop", "9"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	req, err = buildRunRequest(fs, "", values())
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.PopulationSize != 9 || req.Generations != trackevo.DefaultGenerations || req.Selection != "tournament" {
		t.Fatalf("without a config every flag should apply: %+v", req)
	}
}
