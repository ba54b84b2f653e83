package hnswdb

import (
	"fmt"
	"os"

	"github.com/marekgalovic/hnswdb/index"
	"github.com/marekgalovic/hnswdb/index/space"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Name      string `yaml:"name"`
	Dimension int    `yaml:"dimension"`
	Space     string `yaml:"space"`
	DataDir   string `yaml:"dataDir"`
	Basename  string `yaml:"basename"`

	Algorithm        string  `yaml:"algorithm"`
	M                int     `yaml:"m"`
	Mmax             int     `yaml:"mMax"`
	Mmax0            int     `yaml:"mMax0"`
	Ef               int     `yaml:"ef"`
	EfConstruction   int     `yaml:"efConstruction"`
	LevelMultiplier  float32 `yaml:"levelMultiplier"`
	ExtendCandidates bool    `yaml:"extendCandidates"`
	KeepPruned       bool    `yaml:"keepPruned"`

	MaxElements uint64 `yaml:"maxElements"`
	Seed        int64  `yaml:"seed"`
	Workers     int    `yaml:"workers"`

	CompressGraph bool   `yaml:"compressGraph"`
	LoadMode      string `yaml:"loadMode"`
}

// NewConfig returns the defaults. Zero valued tuning fields defer to the index defaults.
func NewConfig() *Config {
	return &Config{
		Name:       "default",
		Space:      space.EuclideanKind.String(),
		DataDir:    "./hnswdb_data",
		Basename:   "index",
		Algorithm:  index.HnswSearchHeuristic.String(),
		KeepPruned: true,
		LoadMode:   index.LoadAuto.String(),
	}
}

// LoadConfig reads a YAML file on top of NewConfig defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	config := NewConfig()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("Invalid config %s: %w", path, err)
	}

	return config, config.Validate()
}

func (this *Config) Validate() error {
	if this.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", index.ErrInvalidConfig, this.Dimension)
	}
	if _, err := space.ParseKind(this.Space); err != nil {
		return fmt.Errorf("%w: %v", index.ErrInvalidConfig, err)
	}
	if _, err := index.ParseSearchAlgorithm(this.Algorithm); err != nil {
		return err
	}
	if _, err := index.ParseLoadMode(this.LoadMode); err != nil {
		return err
	}
	if this.Basename == "" {
		return fmt.Errorf("%w: basename must not be empty", index.ErrInvalidConfig)
	}
	return nil
}

func (this *Config) SpaceKind() space.Kind {
	kind, _ := space.ParseKind(this.Space)
	return kind
}

func (this *Config) IndexLoadMode() index.LoadMode {
	mode, _ := index.ParseLoadMode(this.LoadMode)
	return mode
}

// IndexOptions maps the config onto index options. Unset numeric fields are skipped.
func (this *Config) IndexOptions() []index.HnswOption {
	algorithm, _ := index.ParseSearchAlgorithm(this.Algorithm)
	options := []index.HnswOption{
		index.HnswName(this.Name),
		index.HnswSearchAlgorithm(algorithm),
		index.HnswHeuristicExtendCandidates(this.ExtendCandidates),
		index.HnswHeuristicKeepPruned(this.KeepPruned),
	}
	if this.M > 0 {
		options = append(options, index.HnswM(this.M))
	}
	if this.Mmax > 0 {
		options = append(options, index.HnswMmax(this.Mmax))
	}
	if this.Mmax0 > 0 {
		options = append(options, index.HnswMmax0(this.Mmax0))
	}
	if this.Ef > 0 {
		options = append(options, index.HnswEf(this.Ef))
	}
	if this.EfConstruction > 0 {
		options = append(options, index.HnswEfConstruction(this.EfConstruction))
	}
	if this.LevelMultiplier > 0 {
		options = append(options, index.HnswLevelMultiplier(this.LevelMultiplier))
	}
	if this.MaxElements > 0 {
		options = append(options, index.HnswMaxElements(this.MaxElements))
	}
	if this.Seed != 0 {
		options = append(options, index.HnswSeed(this.Seed))
	}
	if this.Workers > 0 {
		options = append(options, index.HnswWorkers(this.Workers))
	}
	return options
}
