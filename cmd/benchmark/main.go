package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/marekgalovic/hnswdb/index"
	"github.com/marekgalovic/hnswdb/index/space"
	"github.com/marekgalovic/hnswdb/math"
	"github.com/marekgalovic/hnswdb/utils"

	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func generate(c *cli.Context, r *rand.Rand, n, dim int) [][]float32 {
	result := make([][]float32, n)
	switch c.String("distribution") {
	case "normal":
		for i := range result {
			result[i] = math.RandomNormalVector(r, dim, 0, 1)
		}
	default:
		for i, vec := range math.RandomUniformVectors(r, n, dim) {
			result[i] = vec
		}
	}
	if c.Bool("normalize") {
		for i := range result {
			result[i] = math.Normalize(result[i])
		}
	}
	return result
}

func bruteForce(s space.Space[float32], data [][]float32, query []float32, k int) map[uint64]struct{} {
	type candidate struct {
		id       uint64
		distance float32
	}
	candidates := make([]candidate, len(data))
	for i, vec := range data {
		candidates[i] = candidate{uint64(i), s.Distance(query, vec)}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance == candidates[j].distance {
			return candidates[i].id < candidates[j].id
		}
		return candidates[i].distance < candidates[j].distance
	})

	result := make(map[uint64]struct{}, k)
	for i := 0; i < k && i < len(candidates); i++ {
		result[candidates[i].id] = struct{}{}
	}
	return result
}

func reportMemory() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warn(err)
		return
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn(err)
		return
	}
	info, err := p.MemoryInfo()
	if err != nil {
		log.Warn(err)
		return
	}
	log.Infof("Memory: rss %.1f MiB, system available %.1f MiB of %.1f MiB", float64(info.RSS)/(1<<20), float64(vm.Available)/(1<<20), float64(vm.Total)/(1<<20))
}

func run(c *cli.Context) error {
	n, dim, k := c.Int("n"), c.Int("dim"), c.Int("k")
	kind, err := space.ParseKind(c.String("space"))
	if err != nil {
		return err
	}
	s, err := space.FromKind[float32](kind)
	if err != nil {
		return err
	}

	r := rand.New(rand.NewSource(c.Int64("seed")))
	data := generate(c, r, n, dim)
	queries := generate(c, r, c.Int("queries"), dim)

	idx, err := index.NewHnsw[float32](dim, s,
		index.HnswM(c.Int("m")),
		index.HnswEfConstruction(c.Int("ef-construction")),
		index.HnswWorkers(c.Int("workers")),
		index.HnswSeed(c.Int64("seed")),
		index.HnswName("benchmark"),
	)
	if err != nil {
		return err
	}
	defer idx.Close()
	log.Infof("Index: %s", idx)

	batchSize := 10000
	bar := progressbar.Default(int64(n), "build")
	startAt := time.Now()
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		items := make([]index.InsertItem[float32], 0, end-start)
		for i := start; i < end; i++ {
			items = append(items, index.InsertItem[float32]{Vector: data[i], Id: uint64(i)})
		}
		if _, err := idx.ParallelInsert(items); err != nil {
			return err
		}
		bar.Add(end - start)
	}
	d := time.Since(startAt)
	log.Infof("Built in: %s (%.2f inserts/s)", d, float64(n)/d.Seconds())
	reportMemory()

	if err := idx.CheckInvariants(); err != nil {
		return err
	}
	if idx.Len() != n {
		return fmt.Errorf("Incomplete index: %d of %d", idx.Len(), n)
	}

	expected := make([]map[uint64]struct{}, len(queries))
	utils.ParallelFor(len(queries), c.Int("workers"), func(i int) error {
		expected[i] = bruteForce(s, data, queries[i], k)
		return nil
	})

	for _, ef := range c.IntSlice("ef") {
		startAt = time.Now()
		results, err := idx.ParallelSearch(context.Background(), queries, k, ef)
		if err != nil {
			return err
		}
		d = time.Since(startAt)

		hits := 0
		for i, result := range results {
			for _, id := range result.Ids() {
				if _, exists := expected[i][id]; exists {
					hits++
				}
			}
		}
		log.Infof("ef=%d: recall@%d %.4f, %.2f queries/s", ef, k, float64(hits)/float64(k*len(queries)), float64(len(queries))/d.Seconds())
	}

	if dir := c.Path("dump-dir"); dir != "" {
		startAt = time.Now()
		basename, err := idx.FileDump(index.DumpFull, dir, "benchmark")
		if err != nil {
			return err
		}
		log.Infof("Dumped in %s", time.Since(startAt))

		startAt = time.Now()
		loaded, err := index.Load[float32](dir, basename, index.LoadOptions[float32]{Mode: index.LoadMapped})
		if err != nil {
			return err
		}
		defer loaded.Close()
		log.Infof("Loaded in %s: %s", time.Since(startAt), loaded)
		reportMemory()
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "benchmark",
		Usage: "Measure build throughput and recall on synthetic data",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "n", Value: 100000},
			&cli.IntFlag{Name: "dim", Value: 32},
			&cli.IntFlag{Name: "queries", Value: 1000},
			&cli.IntFlag{Name: "k", Value: 10},
			&cli.IntSliceFlag{Name: "ef", Value: cli.NewIntSlice(10, 20, 50, 100, 200)},
			&cli.IntFlag{Name: "m", Value: 16},
			&cli.IntFlag{Name: "ef-construction", Value: 200},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU()},
			&cli.Int64Flag{Name: "seed", Value: 42},
			&cli.StringFlag{Name: "space", Value: "euclidean"},
			&cli.StringFlag{Name: "distribution", Value: "uniform", Usage: "uniform or normal"},
			&cli.BoolFlag{Name: "normalize", Usage: "Scale vectors to unit length"},
			&cli.PathFlag{Name: "dump-dir", Usage: "Dump and reload the index under this directory"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
