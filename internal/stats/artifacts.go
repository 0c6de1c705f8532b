package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"trackevo/internal/model"
)

const (
	runIndexFile   = "run_index.json"
	configFile     = "config.json"
	historyFile    = "generation_history.json"
	historyCSVFile = "generation_history.csv"
	topGenomesFile = "top_genomes.json"
	lineageFile    = "lineage.json"
	summaryFile    = "summary.json"
	plotFile       = "history.png"
)

// RunConfig is the fully resolved configuration of one run.
type RunConfig struct {
	RunID               string  `json:"run_id"`
	Generations         int     `json:"generations"`
	PopulationSize      int     `json:"population_size"`
	TrackPoints         int     `json:"track_points"`
	TrackVariability    float64 `json:"track_variability"`
	TrackWidth          float64 `json:"track_width"`
	CarWidth            float64 `json:"car_width"`
	CarHeight           float64 `json:"car_height"`
	Seed                int64   `json:"seed"`
	NumRays             int     `json:"num_rays"`
	RayLength           float64 `json:"ray_length"`
	GenerationCeilingMS uint64  `json:"generation_ceiling_ms"`
	SettleMS            uint64  `json:"settle_ms"`
	TickMS              uint64  `json:"tick_ms"`
	TournamentSize      int     `json:"tournament_size"`
	Selection           string  `json:"selection"`
}

type RunArtifacts struct {
	Config     RunConfig               `json:"config"`
	History    []model.GenerationStats `json:"history"`
	TopGenomes []model.TopGenomeRecord `json:"top_genomes"`
	Lineage    []model.LineageRecord   `json:"lineage"`
}

type RunIndexEntry struct {
	RunID          string `json:"run_id"`
	PopulationSize int    `json:"population_size"`
	Generations    int    `json:"generations"`
	TrackPoints    int    `json:"track_points"`
	Seed           int64  `json:"seed"`
	Selection      string `json:"selection"`
	BestDistance   int    `json:"best_distance"`
	CreatedAtUTC   string `json:"created_at_utc"`
}

// WriteRunArtifacts writes every per-run file, including the derived summary
// and the history chart, under baseDir/<run id>.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, historyFile), artifacts.History); err != nil {
		return "", err
	}
	if err := WriteHistoryCSV(runDir, artifacts.History); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, topGenomesFile), artifacts.TopGenomes); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, lineageFile), artifacts.Lineage); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), Summarize(artifacts.History)); err != nil {
		return "", err
	}
	if len(artifacts.History) > 0 {
		if err := WriteHistoryPlot(filepath.Join(runDir, plotFile), artifacts.Config.RunID, artifacts.History); err != nil {
			return "", fmt.Errorf("plot history: %w", err)
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	entries, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Later appends win equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// readRunIndex returns entries in file order, which is append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportRunArtifacts copies a run directory to outDir/<run id>. The chart is
// optional since runs without history have none.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{configFile, historyFile, historyCSVFile, topGenomesFile, lineageFile, summaryFile}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	chartPath := filepath.Join(src, plotFile)
	if _, err := os.Stat(chartPath); err == nil {
		if err := copyFile(chartPath, filepath.Join(dst, plotFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadGenerationHistory(baseDir, runID string) ([]model.GenerationStats, bool, error) {
	var history []model.GenerationStats
	ok, err := readJSON(filepath.Join(baseDir, runID, historyFile), &history)
	return history, ok, err
}

func ReadTopGenomes(baseDir, runID string) ([]model.TopGenomeRecord, bool, error) {
	var top []model.TopGenomeRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, topGenomesFile), &top)
	return top, ok, err
}

func ReadLineage(baseDir, runID string) ([]model.LineageRecord, bool, error) {
	var lineage []model.LineageRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, lineageFile), &lineage)
	return lineage, ok, err
}

func ReadSummary(baseDir, runID string) (Summary, bool, error) {
	var summary Summary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

var historyCSVHeader = []string{
	"generation",
	"max_distance",
	"total_distance",
	"total_time_ms",
	"population",
	"survivors",
	"end_reason",
	"runtime_ms",
}

func WriteHistoryCSV(runDir string, history []model.GenerationStats) error {
	file, err := os.Create(filepath.Join(runDir, historyCSVFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(historyCSVHeader); err != nil {
		return err
	}
	for _, s := range history {
		if err := writer.Write([]string{
			strconv.Itoa(s.Generation),
			strconv.Itoa(s.MaxDistance),
			strconv.Itoa(s.TotalDistance),
			strconv.FormatUint(s.TotalTimeMS, 10),
			strconv.Itoa(s.Population),
			strconv.Itoa(s.Survivors),
			s.EndReason,
			strconv.FormatUint(s.RuntimeMS, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadHistoryCSV(baseDir, runID string) ([]model.GenerationStats, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, historyCSVFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(historyCSVHeader)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []model.GenerationStats{}, true, nil
		}
		return nil, false, err
	}

	history := make([]model.GenerationStats, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		s, err := parseHistoryRow(record)
		if err != nil {
			return nil, false, fmt.Errorf("history row %d: %w", len(history)+1, err)
		}
		history = append(history, s)
	}
	return history, true, nil
}

func parseHistoryRow(record []string) (model.GenerationStats, error) {
	var (
		s    model.GenerationStats
		errs []error
	)
	atoi := func(v string) int {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	atou := func(v string) uint64 {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	s.Generation = atoi(record[0])
	s.MaxDistance = atoi(record[1])
	s.TotalDistance = atoi(record[2])
	s.TotalTimeMS = atou(record[3])
	s.Population = atoi(record[4])
	s.Survivors = atoi(record[5])
	s.EndReason = record[6]
	s.RuntimeMS = atou(record[7])
	if len(errs) > 0 {
		return model.GenerationStats{}, errs[0]
	}
	return s, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
