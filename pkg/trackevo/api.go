package trackevo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"trackevo/internal/agent"
	"trackevo/internal/evo"
	"trackevo/internal/model"
	"trackevo/internal/platform"
	"trackevo/internal/stats"
	"trackevo/internal/storage"
	"trackevo/internal/track"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "trackevo.db"

	// createdAtLayout is fixed width so run index timestamps sort as strings.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

	DefaultGenerations      = 50
	DefaultPopulationSize   = 30
	DefaultTrackPoints      = 24
	DefaultTrackVariability = 0.15
	DefaultTrackWidth       = 0.15
	DefaultCarWidth         = 0.035
	DefaultCarHeight        = 0.065
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store storage.Store
	polis *platform.Polis

	artifactsDir string
	exportsDir   string
}

// RunRequest configures one evolution run. Zero values select defaults.
type RunRequest struct {
	Generations         int
	PopulationSize      int
	TrackPoints         int
	TrackVariability    float64
	TrackWidth          float64
	CarWidth            float64
	CarHeight           float64
	Seed                int64
	NumRays             int
	RayLength           float64
	GenerationCeilingMS uint64
	SettleMS            uint64
	TickMS              uint64
	TournamentSize      int
	Selection           string
	// OnGeneration, if set, observes every finished generation.
	OnGeneration func(model.GenerationStats)
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	History      []model.GenerationStats
	BestDistance int
	Summary      stats.Summary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Seed           int64
	PopulationSize int
	Generations    int
	TrackPoints    int
	Selection      string
	BestDistance   int
}

// RunRef names a run either by id or as the most recent one.
type RunRef struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type PlotRequest struct {
	RunID  string
	Latest bool
	// OutPath defaults to history.png inside the run's artifacts directory.
	OutPath string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// Reset drops every stored run record. Artifacts on disk are left alone.
func (c *Client) Reset(ctx context.Context) error {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return err
	}
	return p.Reset(ctx)
}

// Normalize fills zero fields of req with defaults.
func Normalize(req RunRequest) RunRequest {
	if req.Generations == 0 {
		req.Generations = DefaultGenerations
	}
	if req.PopulationSize == 0 {
		req.PopulationSize = DefaultPopulationSize
	}
	if req.TrackPoints == 0 {
		req.TrackPoints = DefaultTrackPoints
	}
	if req.TrackVariability == 0 {
		req.TrackVariability = DefaultTrackVariability
	}
	if req.TrackWidth == 0 {
		req.TrackWidth = DefaultTrackWidth
	}
	if req.CarWidth == 0 {
		req.CarWidth = DefaultCarWidth
	}
	if req.CarHeight == 0 {
		req.CarHeight = DefaultCarHeight
	}
	if req.NumRays == 0 {
		req.NumRays = agent.DefaultNumRays
	}
	if req.RayLength == 0 {
		req.RayLength = agent.DefaultRayLength
	}
	if req.GenerationCeilingMS == 0 {
		req.GenerationCeilingMS = evo.DefaultGenerationCeilingMS
	}
	if req.SettleMS == 0 {
		req.SettleMS = evo.DefaultSettleMS
	}
	if req.TickMS == 0 {
		req.TickMS = platform.DefaultTickMS
	}
	if req.Selection == "" {
		req.Selection = evo.DefaultSelection
	}
	return req
}

// NewPopulation builds the track and population a run with req would use,
// without driving it. The terminal viewer steps it directly.
func NewPopulation(req RunRequest) (*evo.Population, error) {
	t, cfg, err := resolve(req)
	if err != nil {
		return nil, err
	}
	return evo.NewPopulation(cfg, t)
}

// resolve turns req into a track and a population configuration. The track
// and the population draw from separate generators derived from one seed.
func resolve(req RunRequest) (*track.Track, evo.Config, error) {
	t, err := track.New(track.Config{
		Points:      req.TrackPoints,
		Variability: req.TrackVariability,
		Width:       req.TrackWidth,
	}, rand.New(rand.NewSource(req.Seed)))
	if err != nil {
		return nil, evo.Config{}, err
	}
	selector, err := evo.ResolveSelector(req.Selection, req.TournamentSize)
	if err != nil {
		return nil, evo.Config{}, err
	}
	return t, evo.Config{
		Generations:         req.Generations,
		PopulationSize:      req.PopulationSize,
		CarWidth:            req.CarWidth,
		CarHeight:           req.CarHeight,
		NumRays:             req.NumRays,
		RayLength:           req.RayLength,
		SettleMS:            req.SettleMS,
		GenerationCeilingMS: req.GenerationCeilingMS,
		Selector:            selector,
		Seed:                req.Seed + 1,
	}, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req = Normalize(req)
	if req.Generations < 0 {
		return RunSummary{}, errors.New("generations must be > 0")
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	t, popCfg, err := resolve(req)
	if err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := uuid.NewString()

	result, err := p.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:        runID,
		Track:        t,
		Population:   popCfg,
		TickMS:       req.TickMS,
		OnGeneration: req.OnGeneration,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: model.CurrentSchemaVersion,
			CodecVersion:  model.CurrentCodecVersion,
		},
		ID:           runID,
		CreatedAtUTC: now.Format(createdAtLayout),
		Seed:         req.Seed,
		Population:   req.PopulationSize,
		Generations:  req.Generations,
		TrackPoints:  req.TrackPoints,
		BestDistance: result.BestDistance,
		Selection:    req.Selection,
	}); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:               runID,
			Generations:         req.Generations,
			PopulationSize:      req.PopulationSize,
			TrackPoints:         req.TrackPoints,
			TrackVariability:    req.TrackVariability,
			TrackWidth:          req.TrackWidth,
			CarWidth:            req.CarWidth,
			CarHeight:           req.CarHeight,
			Seed:                req.Seed,
			NumRays:             req.NumRays,
			RayLength:           req.RayLength,
			GenerationCeilingMS: req.GenerationCeilingMS,
			SettleMS:            req.SettleMS,
			TickMS:              req.TickMS,
			TournamentSize:      req.TournamentSize,
			Selection:           req.Selection,
		},
		History:    result.History,
		TopGenomes: result.TopGenomes,
		Lineage:    result.Lineage,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:          runID,
		PopulationSize: req.PopulationSize,
		Generations:    req.Generations,
		TrackPoints:    req.TrackPoints,
		Seed:           req.Seed,
		Selection:      req.Selection,
		BestDistance:   result.BestDistance,
		CreatedAtUTC:   now.Format(createdAtLayout),
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		History:      append([]model.GenerationStats(nil), result.History...),
		BestDistance: result.BestDistance,
		Summary:      stats.Summarize(result.History),
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Seed:           e.Seed,
			PopulationSize: e.PopulationSize,
			Generations:    e.Generations,
			TrackPoints:    e.TrackPoints,
			Selection:      e.Selection,
			BestDistance:   e.BestDistance,
		})
	}
	return out, nil
}

// History, TopGenomes and Lineage read from the store and fall back to the
// run's artifacts, which outlive an in-memory store.
func (c *Client) History(ctx context.Context, ref RunRef) ([]model.GenerationStats, error) {
	runID, err := c.resolveRun(ref, "history")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetGenerationHistory(ctx, runID)
	if err == nil && !ok {
		history, ok, err = stats.ReadGenerationHistory(c.artifactsDir, runID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("generation history not found for run id: %s", runID)
	}
	return limit(history, ref.Limit), nil
}

func (c *Client) TopGenomes(ctx context.Context, ref RunRef) ([]model.TopGenomeRecord, error) {
	runID, err := c.resolveRun(ref, "top genomes")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopGenomes(ctx, runID)
	if err == nil && !ok {
		top, ok, err = stats.ReadTopGenomes(c.artifactsDir, runID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top genomes not found for run id: %s", runID)
	}
	return limit(top, ref.Limit), nil
}

func (c *Client) Lineage(ctx context.Context, ref RunRef) ([]model.LineageRecord, error) {
	runID, err := c.resolveRun(ref, "lineage")
	if err != nil {
		return nil, err
	}
	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err == nil && !ok {
		lineage, ok, err = stats.ReadLineage(c.artifactsDir, runID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	return limit(lineage, ref.Limit), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRun(RunRef{RunID: req.RunID, Latest: req.Latest}, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Plot re-renders the history chart of a run from its stored artifacts and
// returns the written path.
func (c *Client) Plot(_ context.Context, req PlotRequest) (string, error) {
	runID, err := c.resolveRun(RunRef{RunID: req.RunID, Latest: req.Latest}, "plot")
	if err != nil {
		return "", err
	}
	history, ok, err := stats.ReadGenerationHistory(c.artifactsDir, runID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("generation history not found for run id: %s", runID)
	}
	out := req.OutPath
	if out == "" {
		out = filepath.Join(c.artifactsDir, runID, "history.png")
	}
	if err := stats.WriteHistoryPlot(out, "run "+runID, history); err != nil {
		return "", err
	}
	return filepath.Clean(out), nil
}

func (c *Client) resolveRun(ref RunRef, what string) (string, error) {
	if ref.RunID != "" && ref.Latest {
		return "", errors.New("use either run id or latest")
	}
	if ref.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if !ref.Latest {
		if ref.RunID == "" {
			return "", fmt.Errorf("%s requires run id or latest", what)
		}
		return ref.RunID, nil
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return append([]T(nil), items...)
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{Store: c.store})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}
