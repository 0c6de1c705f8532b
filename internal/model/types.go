package model

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Gene indices into a Genome.
const (
	GeneTurnTrigger = iota
	GeneTurnAngle
	GeneAccelTrigger
	GeneAccelIncrement
	GeneBrakeTrigger
	GeneBrakeIncrement
	NumGenes
)

// Genome is the six-parameter steering and throttle policy of one car.
type Genome [NumGenes]float64

func (g Genome) TurnTrigger() float64    { return g[GeneTurnTrigger] }
func (g Genome) TurnAngle() float64      { return g[GeneTurnAngle] }
func (g Genome) AccelTrigger() float64   { return g[GeneAccelTrigger] }
func (g Genome) AccelIncrement() float64 { return g[GeneAccelIncrement] }
func (g Genome) BrakeTrigger() float64   { return g[GeneBrakeTrigger] }
func (g Genome) BrakeIncrement() float64 { return g[GeneBrakeIncrement] }

// GeneNames labels genes in artifacts and CLI output.
var GeneNames = [NumGenes]string{
	"turn_trigger",
	"turn_angle",
	"accel_trigger",
	"accel_increment",
	"brake_trigger",
	"brake_increment",
}

// Generation end reasons.
const (
	EndAllDead = "all_dead"
	EndTimeout = "timeout"
)

// GenerationStats is the per-generation history entry.
type GenerationStats struct {
	Generation    int    `json:"generation"`
	MaxDistance   int    `json:"max_distance"`
	TotalDistance int    `json:"total_distance"`
	TotalTimeMS   uint64 `json:"total_time_ms"`
	Population    int    `json:"population"`
	Survivors     int    `json:"survivors"`
	EndReason     string `json:"end_reason"`
	RuntimeMS     uint64 `json:"runtime_ms"`
}

type LineageRecord struct {
	VersionedRecord
	GenomeID   string `json:"genome_id"`
	ParentA    string `json:"parent_a,omitempty"`
	ParentB    string `json:"parent_b,omitempty"`
	Generation int    `json:"generation"`
	Operation  string `json:"operation"`
}

type TopGenomeRecord struct {
	VersionedRecord
	Rank        int    `json:"rank"`
	GenomeID    string `json:"genome_id"`
	Distance    int    `json:"distance"`
	TimeAliveMS uint64 `json:"time_alive_ms"`
	Genome      Genome `json:"genome"`
}

// RunRecord summarizes one finished evolution run.
type RunRecord struct {
	VersionedRecord
	ID           string `json:"id"`
	CreatedAtUTC string `json:"created_at_utc"`
	Seed         int64  `json:"seed"`
	Population   int    `json:"population"`
	Generations  int    `json:"generations"`
	TrackPoints  int    `json:"track_points"`
	BestDistance int    `json:"best_distance"`
	Selection    string `json:"selection"`
}
