package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-isatty"

	"trackevo/internal/agent"
	"trackevo/internal/evo"
	"trackevo/internal/model"
	"trackevo/internal/platform"
	"trackevo/internal/storage"
	"trackevo/internal/viewer"
	"trackevo/pkg/trackevo"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
	dbPath       = "trackevo.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "watch":
		return runWatch(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "lineage":
		return runLineage(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "plot":
		return runPlot(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// simulationFlags registers the flags shared by run and watch. The returned
// function reads their current values keyed by flag name.
func simulationFlags(fs *flag.FlagSet, defaultGenerations int) func() map[string]any {
	generations := fs.Int("gens", defaultGenerations, "generation count")
	population := fs.Int("pop", trackevo.DefaultPopulationSize, "population size")
	trackPoints := fs.Int("track-points", trackevo.DefaultTrackPoints, "vertices per track boundary ring")
	trackVariability := fs.Float64("track-variability", trackevo.DefaultTrackVariability, "radial jiggle of track vertices, in [0, 1)")
	trackWidth := fs.Float64("track-width", trackevo.DefaultTrackWidth, "outer ring scale over the inner ring")
	carWidth := fs.Float64("car-width", trackevo.DefaultCarWidth, "car width")
	carHeight := fs.Float64("car-height", trackevo.DefaultCarHeight, "car length")
	seed := fs.Int64("seed", 1, "rng seed")
	rays := fs.Int("rays", agent.DefaultNumRays, "perception rays per car (>= 2)")
	rayLength := fs.Float64("ray-length", agent.DefaultRayLength, "perception ray length")
	ceilingMS := fs.Uint64("ceiling-ms", evo.DefaultGenerationCeilingMS, "simulated time limit per generation")
	settleMS := fs.Uint64("settle-ms", evo.DefaultSettleMS, "time every car must be dead before a generation ends")
	tickMS := fs.Uint64("tick-ms", platform.DefaultTickMS, "simulated milliseconds per tick")
	tournamentSize := fs.Int("tournament-size", 0, "tournament width (0 uses max(3, pop/3))")
	selection := fs.String("selection", evo.DefaultSelection, "parent selection strategy: "+strings.Join(evo.ListSelectors(), "|"))

	return func() map[string]any {
		return map[string]any{
			"gens":              *generations,
			"pop":               *population,
			"track-points":      *trackPoints,
			"track-variability": *trackVariability,
			"track-width":       *trackWidth,
			"car-width":         *carWidth,
			"car-height":        *carHeight,
			"seed":              *seed,
			"rays":              *rays,
			"ray-length":        *rayLength,
			"ceiling-ms":        *ceilingMS,
			"settle-ms":         *settleMS,
			"tick-ms":           *tickMS,
			"tournament-size":   *tournamentSize,
			"selection":         *selection,
		}
	}
}

// buildRunRequest layers flags over an optional config file. Without a file
// every flag applies; with one only flags given on the command line do.
func buildRunRequest(fs *flag.FlagSet, configPath string, values map[string]any) (trackevo.RunRequest, error) {
	req, err := loadOrDefaultRunRequest(configPath)
	if err != nil {
		return trackevo.RunRequest{}, err
	}
	set := make(map[string]bool)
	if configPath == "" {
		for name := range values {
			set[name] = true
		}
	} else {
		fs.Visit(func(f *flag.Flag) {
			set[f.Name] = true
		})
	}
	overrideFromFlags(&req, set, values)
	return req, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPathFlag := fs.String("db-path", dbPath, "sqlite database path")
	quiet := fs.Bool("quiet", false, "suppress per-generation progress lines")
	values := simulationFlags(fs, trackevo.DefaultGenerations)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := buildRunRequest(fs, *configPath, values())
	if err != nil {
		return err
	}
	if !*quiet {
		req.OnGeneration = func(s model.GenerationStats) {
			fmt.Printf("generation=%d max_distance=%d total_distance=%d survivors=%d/%d end=%s runtime=%sms\n",
				s.Generation,
				s.MaxDistance,
				s.TotalDistance,
				s.Survivors,
				s.Population,
				s.EndReason,
				humanize.Comma(int64(s.RuntimeMS)),
			)
		}
	}

	client, err := trackevo.New(trackevo.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPathFlag,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	start := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s generations=%d best_distance=%d improvement=%d elapsed=%s artifacts=%s\n",
		summary.RunID,
		summary.Summary.Generations,
		summary.BestDistance,
		summary.Summary.Improvement,
		time.Since(start).Round(time.Millisecond),
		summary.ArtifactsDir,
	)
	return nil
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	showRays := fs.Bool("show-rays", false, "draw perception rays")
	values := simulationFlags(fs, 0)
	if err := fs.Parse(args); err != nil {
		return err
	}
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return errors.New("watch requires an interactive terminal")
	}

	req, err := buildRunRequest(fs, *configPath, values())
	if err != nil {
		return err
	}
	// Zero generations means watch until quit, so keep it through
	// normalization.
	generations := req.Generations
	req = trackevo.Normalize(req)
	req.Generations = generations

	population, err := trackevo.NewPopulation(req)
	if err != nil {
		return err
	}
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	v := viewer.New(screen, population, viewer.Options{TickMS: req.TickMS, ShowRays: *showRays})
	if err := v.Run(ctx); err != nil {
		return err
	}

	best := 0
	for _, s := range population.History() {
		best = max(best, s.MaxDistance)
	}
	fmt.Printf("watched generations=%d best_distance=%d selection=%s\n", population.Completed(), best, population.SelectorName())
	return population.Err()
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := openClient("memory", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	items, err := client.Runs(ctx, trackevo.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(items)
	}

	for _, item := range items {
		age := item.CreatedAtUTC
		if created, err := time.Parse(time.RFC3339Nano, item.CreatedAtUTC); err == nil {
			age = humanize.Time(created)
		}
		fmt.Printf("run_id=%s created=%q seed=%d pop=%d gens=%d track_points=%d selection=%s best_distance=%d\n",
			item.RunID,
			age,
			item.Seed,
			item.PopulationSize,
			item.Generations,
			item.TrackPoints,
			item.Selection,
			item.BestDistance,
		)
	}
	return nil
}

// runRefFlags registers the flags that pick a stored run.
func runRefFlags(fs *flag.FlagSet, defaultLimit int) (runID *string, latest *bool, limit *int, storeKind *string, dbPathFlag *string) {
	runID = fs.String("run-id", "", "run id")
	latest = fs.Bool("latest", false, "use the most recent run from the run index")
	limit = fs.Int("limit", defaultLimit, "max records to print (<=0 for all)")
	storeKind = fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPathFlag = fs.String("db-path", dbPath, "sqlite database path")
	return runID, latest, limit, storeKind, dbPathFlag
}

func openClient(storeKind, db string) (*trackevo.Client, error) {
	return trackevo.New(trackevo.Options{
		StoreKind:    storeKind,
		DBPath:       db,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
}

func checkRunRef(command, runID string, latest bool) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID, latest, limit, storeKind, db := runRefFlags(fs, 0)
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef("history", *runID, *latest); err != nil {
		return err
	}

	client, err := openClient(*storeKind, *db)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	history, err := client.History(ctx, trackevo.RunRef{RunID: *runID, Latest: *latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(history)
	}
	for _, s := range history {
		fmt.Printf("generation=%d max_distance=%d total_distance=%d total_time=%sms survivors=%d/%d end=%s\n",
			s.Generation,
			s.MaxDistance,
			s.TotalDistance,
			humanize.Comma(int64(s.TotalTimeMS)),
			s.Survivors,
			s.Population,
			s.EndReason,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID, latest, limit, storeKind, db := runRefFlags(fs, 5)
	jsonOut := fs.Bool("json", false, "emit top genomes as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef("top", *runID, *latest); err != nil {
		return err
	}

	client, err := openClient(*storeKind, *db)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	top, err := client.TopGenomes(ctx, trackevo.RunRef{RunID: *runID, Latest: *latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no top genomes")
		return nil
	}
	if *jsonOut {
		return writeJSON(top)
	}
	for _, item := range top {
		fmt.Printf("rank=%d distance=%d time_alive=%sms genome_id=%s %s\n",
			item.Rank,
			item.Distance,
			humanize.Comma(int64(item.TimeAliveMS)),
			item.GenomeID,
			formatGenome(item.Genome),
		)
	}
	return nil
}

func formatGenome(g model.Genome) string {
	parts := make([]string, 0, len(g))
	for i, v := range g {
		parts = append(parts, fmt.Sprintf("%s=%.4f", model.GeneNames[i], v))
	}
	return strings.Join(parts, " ")
}

func runLineage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lineage", flag.ContinueOnError)
	runID, latest, limit, storeKind, db := runRefFlags(fs, 20)
	jsonOut := fs.Bool("json", false, "emit lineage as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef("lineage", *runID, *latest); err != nil {
		return err
	}

	client, err := openClient(*storeKind, *db)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	lineage, err := client.Lineage(ctx, trackevo.RunRef{RunID: *runID, Latest: *latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(lineage)
	}
	for _, rec := range lineage {
		parents := "-"
		if rec.ParentA != "" {
			parents = rec.ParentA + "," + rec.ParentB
		}
		fmt.Printf("gen=%d genome_id=%s parents=%s op=%s\n", rec.Generation, rec.GenomeID, parents, rec.Operation)
	}
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	db := fs.String("db-path", dbPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := openClient(*storeKind, *db)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef("export", *runID, *latest); err != nil {
		return err
	}

	client, err := openClient("memory", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	exported, err := client.Export(ctx, trackevo.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runPlot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "plot the most recent run from run index")
	out := fs.String("out", "", "output PNG path (defaults to the run's history.png)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunRef("plot", *runID, *latest); err != nil {
		return err
	}

	client, err := openClient("memory", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	path, err := client.Plot(ctx, trackevo.PlotRequest{RunID: *runID, Latest: *latest, OutPath: *out})
	if err != nil {
		return err
	}

	fmt.Printf("plotted to=%s\n", path)
	return nil
}

func writeJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: trackevoctl <run|watch|runs|history|top|lineage|export|plot|reset> [flags]", msg)
}
