package commands

import (
	"github.com/urfave/cli/v2"
)

func configFlag() cli.Flag {
	return &cli.PathFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML index config", EnvVars: []string{"HNSWDB_CONFIG"}, Required: true}
}

func NewApp() *cli.App {
	return &cli.App{
		Name:  "hnswdb",
		Usage: "Build and query HNSW indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"HNSWDB_LOG_LEVEL"}},
		},
		Before: SetupLogging,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build an index from an fvecs file and dump it",
				Action: Build,
				Flags: []cli.Flag{
					configFlag(),
					&cli.PathFlag{Name: "input", Aliases: []string{"i"}, Usage: "fvecs file with the vectors", Required: true},
					&cli.IntFlag{Name: "batch-size", Value: 1000, Usage: "Vectors inserted per parallel batch"},
					&cli.BoolFlag{Name: "graph-only", Usage: "Dump only the graph"},
				},
			},
			{
				Name:   "search",
				Usage:  "Query a dumped index with vectors from an fvecs file",
				Action: Search,
				Flags: []cli.Flag{
					configFlag(),
					&cli.PathFlag{Name: "queries", Aliases: []string{"q"}, Usage: "fvecs file with the queries", Required: true},
					&cli.IntFlag{Name: "k", Value: 10},
					&cli.IntFlag{Name: "ef", Value: 0, Usage: "Beam width, 0 uses the configured ef"},
					&cli.IntFlag{Name: "limit", Value: 10, Usage: "Maximum number of queries"},
					&cli.StringFlag{Name: "mode", Usage: "Load mode override (resident, mapped, auto)"},
				},
			},
			{
				Name:   "info",
				Usage:  "Describe a dumped index",
				Action: Info,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "mode", Usage: "Load mode override (resident, mapped, auto)"},
				},
			},
		},
	}
}
