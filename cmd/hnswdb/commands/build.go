package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/marekgalovic/hnswdb/index"
	"github.com/marekgalovic/hnswdb/utils"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func Build(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}

	vectors, err := readFvecsFile(c.Path("input"), 0)
	if err != nil {
		return err
	}
	if len(vectors) > 0 && len(vectors[0]) != config.Dimension {
		return fmt.Errorf("%w: input has %d dimensions, config %d", index.ErrDimensionMismatch, len(vectors[0]), config.Dimension)
	}

	idx, err := newIndex(config)
	if err != nil {
		return err
	}
	defer idx.Close()
	log.Infof("Building %s from %d vectors", idx, len(vectors))

	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		batchSize = 1000
	}

	interrupt := utils.InterruptSignal()
	bar := progressbar.NewOptions(len(vectors),
		progressbar.OptionSetDescription("inserting"),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Print("\n") }),
	)

	startAt := time.Now()
	failed := 0
build:
	for start := 0; start < len(vectors); start += batchSize {
		select {
		case sig := <-interrupt:
			log.Warnf("Received %s, dumping %d inserted vectors", sig, idx.Len())
			break build
		default:
		}

		end := start + batchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		items := make([]index.InsertItem[float32], 0, end-start)
		for i := start; i < end; i++ {
			items = append(items, index.InsertItem[float32]{Vector: vectors[i], Id: uint64(i)})
		}

		if _, err := idx.ParallelInsert(items); err != nil {
			var batchErr *index.BatchError
			if !errors.As(err, &batchErr) {
				return err
			}
			failed += len(batchErr.Errors)
			log.Warn(err)
		}
		if err := bar.Add(end - start); err != nil {
			return err
		}
	}
	d := time.Since(startAt)
	log.Infof("Built in: %s (%.2f inserts/s, %d failed)", d, float64(idx.Len())/d.Seconds(), failed)

	mode := index.DumpFull
	if c.Bool("graph-only") {
		mode = index.DumpGraphOnly
	}
	basename, err := idx.FileDumpWithOptions(mode, config.DataDir, config.Basename, index.DumpOptions{CompressGraph: config.CompressGraph})
	if err != nil {
		return err
	}
	fmt.Printf("Dumped %d vectors to %s\n", idx.Len(), index.GraphPath(config.DataDir, basename))
	return nil
}
