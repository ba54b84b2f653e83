package index

import (
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/marekgalovic/hnswdb/math"
)

// Levels are sampled from an exponential distribution and capped here.
const maxLevelCap int = 16

// Upper bound of every degree parameter, also enforced on loaded graphs.
const maxNeighborsCap int = 4096

var hnswSearchAlgorithmNames = [...]string{
	"Simple",
	"Heuristic",
}

type hnswSearchAlgorithm int

const (
	HnswSearchSimple hnswSearchAlgorithm = iota
	HnswSearchHeuristic
)

func (a hnswSearchAlgorithm) String() string {
	if a < 0 || int(a) >= len(hnswSearchAlgorithmNames) {
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
	return hnswSearchAlgorithmNames[a]
}

func ParseSearchAlgorithm(name string) (hnswSearchAlgorithm, error) {
	switch name {
	case "simple", "Simple":
		return HnswSearchSimple, nil
	case "heuristic", "Heuristic":
		return HnswSearchHeuristic, nil
	}
	return HnswSearchSimple, fmt.Errorf("%w: unknown search algorithm %q", ErrInvalidConfig, name)
}

// Options
type HnswOption interface {
	apply(*hnswConfig)
}

type hnswOption struct {
	applyFunc func(*hnswConfig)
}

func (opt *hnswOption) apply(config *hnswConfig) {
	opt.applyFunc(config)
}

func HnswLevelMultiplier(value float32) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.levelMultiplier = value
	}}
}

func HnswEf(value int) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.ef = value
	}}
}

func HnswEfConstruction(value int) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.efConstruction = value
	}}
}

func HnswM(value int) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.m = value
	}}
}

func HnswMmax(value int) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.mMax = value
	}}
}

func HnswMmax0(value int) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.mMax0 = value
	}}
}

func HnswSearchAlgorithm(value hnswSearchAlgorithm) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.searchAlgorithm = value
	}}
}

func HnswHeuristicExtendCandidates(value bool) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.heuristicExtendCandidates = value
	}}
}

// HnswHeuristicKeepPruned backfills an under-filled neighbor quota with the
// nearest candidates the diversity rule rejected.
func HnswHeuristicKeepPruned(value bool) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.heuristicKeepPruned = value
	}}
}

// HnswMaxElements caps the number of points. 0 means bounded only by the id space.
func HnswMaxElements(value uint64) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.maxElements = value
	}}
}

func HnswSeed(value int64) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.seed = value
	}}
}

func HnswWorkers(value int) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.workers = value
	}}
}

func HnswName(value string) HnswOption {
	return &hnswOption{func(config *hnswConfig) {
		config.name = value
	}}
}

type hnswConfig struct {
	searchAlgorithm           hnswSearchAlgorithm
	levelMultiplier           float32
	ef                        int
	efConstruction            int
	m                         int
	mMax                      int
	mMax0                     int
	heuristicExtendCandidates bool
	heuristicKeepPruned       bool

	// Runtime only, never persisted.
	maxElements uint64
	seed        int64
	workers     int
	name        string
}

func defaultHnswConfig() *hnswConfig {
	return &hnswConfig{
		searchAlgorithm:           HnswSearchHeuristic,
		levelMultiplier:           -1,
		ef:                        20,
		efConstruction:            200,
		m:                         16,
		mMax:                      -1,
		mMax0:                     -1,
		heuristicExtendCandidates: false,
		heuristicKeepPruned:       true,
		seed:                      time.Now().UnixNano(),
		workers:                   runtime.NumCPU(),
		name:                      "default",
	}
}

func newHnswConfig(options []HnswOption) (*hnswConfig, error) {
	config := defaultHnswConfig()
	for _, option := range options {
		option.apply(config)
	}

	if config.levelMultiplier == -1 && config.m > 1 {
		config.levelMultiplier = 1.0 / math.Log(float32(config.m))
	}
	if config.mMax == -1 {
		config.mMax = config.m
	}
	if config.mMax0 == -1 {
		config.mMax0 = 2 * config.m
	}

	return config, config.validate()
}

// applyRuntime applies options to a config restored from a dump. Graph
// shaping parameters are kept so that loaded edge lists stay within bounds.
func (this *hnswConfig) applyRuntime(options []HnswOption) error {
	restored := *this
	for _, option := range options {
		option.apply(this)
	}
	this.searchAlgorithm = restored.searchAlgorithm
	this.levelMultiplier = restored.levelMultiplier
	this.efConstruction = restored.efConstruction
	this.m = restored.m
	this.mMax = restored.mMax
	this.mMax0 = restored.mMax0
	this.heuristicExtendCandidates = restored.heuristicExtendCandidates
	this.heuristicKeepPruned = restored.heuristicKeepPruned
	return this.validate()
}

func (this *hnswConfig) validate() error {
	switch {
	case this.m < 2:
		return fmt.Errorf("%w: m must be at least 2, got %d", ErrInvalidConfig, this.m)
	case this.mMax < 1:
		return fmt.Errorf("%w: mMax must be positive, got %d", ErrInvalidConfig, this.mMax)
	case this.mMax0 < 1:
		return fmt.Errorf("%w: mMax0 must be positive, got %d", ErrInvalidConfig, this.mMax0)
	case this.m > maxNeighborsCap || this.mMax > maxNeighborsCap || this.mMax0 > maxNeighborsCap:
		return fmt.Errorf("%w: m, mMax and mMax0 must not exceed %d, got %d, %d, %d", ErrInvalidConfig, maxNeighborsCap, this.m, this.mMax, this.mMax0)
	case this.ef < 1:
		return fmt.Errorf("%w: ef must be positive, got %d", ErrInvalidConfig, this.ef)
	case this.efConstruction < 1:
		return fmt.Errorf("%w: efConstruction must be positive, got %d", ErrInvalidConfig, this.efConstruction)
	case !(this.levelMultiplier > 0):
		return fmt.Errorf("%w: levelMultiplier must be positive, got %f", ErrInvalidConfig, this.levelMultiplier)
	case this.searchAlgorithm != HnswSearchSimple && this.searchAlgorithm != HnswSearchHeuristic:
		return fmt.Errorf("%w: unknown search algorithm %d", ErrInvalidConfig, this.searchAlgorithm)
	}
	return nil
}

// maxNeighbors is the degree bound of a vertex at level.
func (this *hnswConfig) maxNeighbors(level int) int {
	if level == 0 {
		return this.mMax0
	}
	return this.mMax
}

// targetNeighbors is how many neighbors a new vertex selects at level.
func (this *hnswConfig) targetNeighbors(level int) int {
	if level == 0 {
		return this.mMax0
	}
	return math.MinInt(this.m, this.mMax)
}

func (this *hnswConfig) String() string {
	return fmt.Sprintf(
		"searchAlgorithm: %s, ef: %d, efConstruction: %d, m: %d, mMax: %d, mMax0: %d, levelMultiplier: %.4f, extendCandidates: %t, keepPruned: %t",
		this.searchAlgorithm,
		this.ef,
		this.efConstruction,
		this.m,
		this.mMax,
		this.mMax0,
		this.levelMultiplier,
		this.heuristicExtendCandidates,
		this.heuristicKeepPruned,
	)
}

func boolToUint8(value bool) uint8 {
	if value {
		return 1
	}
	return 0
}

func (this *hnswConfig) save(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint32(this.searchAlgorithm)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, this.levelMultiplier); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(this.ef)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(this.efConstruction)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(this.m)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(this.mMax)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, int32(this.mMax0)); err != nil {
		return err
	}
	flags := []uint8{boolToUint8(this.heuristicExtendCandidates), boolToUint8(this.heuristicKeepPruned)}
	return binary.Write(w, binary.BigEndian, flags)
}

func (this *hnswConfig) load(r io.Reader) error {
	var uint32Val uint32
	var int32Val int32
	var float32Val float32

	if err := binary.Read(r, binary.BigEndian, &uint32Val); err != nil {
		return err
	}
	this.searchAlgorithm = hnswSearchAlgorithm(uint32Val)

	if err := binary.Read(r, binary.BigEndian, &float32Val); err != nil {
		return err
	}
	this.levelMultiplier = float32Val

	for _, field := range []*int{&this.ef, &this.efConstruction, &this.m, &this.mMax, &this.mMax0} {
		if err := binary.Read(r, binary.BigEndian, &int32Val); err != nil {
			return err
		}
		*field = int(int32Val)
	}

	flags := make([]uint8, 2)
	if err := binary.Read(r, binary.BigEndian, flags); err != nil {
		return err
	}
	this.heuristicExtendCandidates = flags[0] == 1
	this.heuristicKeepPruned = flags[1] == 1

	return this.validate()
}
