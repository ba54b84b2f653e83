package commands

import (
	"github.com/marekgalovic/hnswdb"
	"github.com/marekgalovic/hnswdb/index"
	"github.com/marekgalovic/hnswdb/index/space"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func SetupLogging(c *cli.Context) error {
	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

func loadConfig(c *cli.Context) (*hnswdb.Config, error) {
	config, err := hnswdb.LoadConfig(c.Path("config"))
	if err != nil {
		return nil, err
	}
	if mode := c.String("mode"); mode != "" {
		config.LoadMode = mode
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}
	return config, nil
}

func loadIndex(config *hnswdb.Config) (*index.Hnsw[float32], error) {
	return index.Load[float32](config.DataDir, config.Basename, index.LoadOptions[float32]{
		Mode:    config.IndexLoadMode(),
		Options: config.IndexOptions(),
	})
}

func newIndex(config *hnswdb.Config) (*index.Hnsw[float32], error) {
	s, err := space.FromKind[float32](config.SpaceKind())
	if err != nil {
		return nil, err
	}
	return index.NewHnsw[float32](config.Dimension, s, config.IndexOptions()...)
}
