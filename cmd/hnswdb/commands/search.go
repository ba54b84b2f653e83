package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func Search(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}

	queries, err := readFvecsFile(c.Path("queries"), c.Int("limit"))
	if err != nil {
		return err
	}

	idx, err := loadIndex(config)
	if err != nil {
		return err
	}
	defer idx.Close()

	startAt := time.Now()
	results, err := idx.ParallelSearch(c.Context, queries, c.Int("k"), c.Int("ef"))
	if err != nil {
		log.Warn(err)
	}
	d := time.Since(startAt)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"query", "rank", "id", "internal id", "distance"})
	for i, result := range results {
		for rank, neighbour := range result {
			table.Append([]string{
				fmt.Sprintf("%d", i),
				fmt.Sprintf("%d", rank),
				fmt.Sprintf("%d", neighbour.Id),
				fmt.Sprintf("%d", neighbour.InternalId),
				fmt.Sprintf("%.6f", neighbour.Distance),
			})
		}
	}
	table.Render()

	log.Infof("Searched %d queries in %s (%.2f queries/s)", len(queries), d, float64(len(queries))/d.Seconds())
	return nil
}
