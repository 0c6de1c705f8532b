package main

import (
	"encoding/json"
	"fmt"
	"os"

	"trackevo/pkg/trackevo"
)

func loadRunRequestFromConfig(path string) (trackevo.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return trackevo.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return trackevo.RunRequest{}, err
	}

	var req trackevo.RunRequest
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["population_size"]); ok {
		req.PopulationSize = v
	}
	if v, ok := asInt(raw["track_points"]); ok {
		req.TrackPoints = v
	}
	if v, ok := asFloat64(raw["track_variability"]); ok {
		req.TrackVariability = v
	}
	if v, ok := asFloat64(raw["track_width"]); ok {
		req.TrackWidth = v
	}
	if v, ok := asFloat64(raw["car_width"]); ok {
		req.CarWidth = v
	}
	if v, ok := asFloat64(raw["car_height"]); ok {
		req.CarHeight = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["num_rays"]); ok {
		req.NumRays = v
	}
	if v, ok := asFloat64(raw["ray_length"]); ok {
		req.RayLength = v
	}
	if v, ok := asUint64(raw["generation_ceiling_ms"]); ok {
		req.GenerationCeilingMS = v
	}
	if v, ok := asUint64(raw["settle_ms"]); ok {
		req.SettleMS = v
	}
	if v, ok := asUint64(raw["tick_ms"]); ok {
		req.TickMS = v
	}
	if v, ok := asInt(raw["tournament_size"]); ok {
		req.TournamentSize = v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

// asUint64 rejects negative values instead of wrapping them.
func asUint64(v any) (uint64, bool) {
	n, ok := asInt64(v)
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags copies the named flag values onto req.
func overrideFromFlags(req *trackevo.RunRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "gens":
			req.Generations = v.(int)
		case "pop":
			req.PopulationSize = v.(int)
		case "track-points":
			req.TrackPoints = v.(int)
		case "track-variability":
			req.TrackVariability = v.(float64)
		case "track-width":
			req.TrackWidth = v.(float64)
		case "car-width":
			req.CarWidth = v.(float64)
		case "car-height":
			req.CarHeight = v.(float64)
		case "seed":
			req.Seed = v.(int64)
		case "rays":
			req.NumRays = v.(int)
		case "ray-length":
			req.RayLength = v.(float64)
		case "ceiling-ms":
			req.GenerationCeilingMS = v.(uint64)
		case "settle-ms":
			req.SettleMS = v.(uint64)
		case "tick-ms":
			req.TickMS = v.(uint64)
		case "tournament-size":
			req.TournamentSize = v.(int)
		case "selection":
			req.Selection = v.(string)
		}
	}
}

func loadOrDefaultRunRequest(configPath string) (trackevo.RunRequest, error) {
	if configPath == "" {
		return trackevo.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return trackevo.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
