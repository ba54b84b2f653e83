package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

func Info(c *cli.Context) error {
	config, err := loadConfig(c)
	if err != nil {
		return err
	}

	idx, err := loadIndex(config)
	if err != nil {
		return err
	}
	defer idx.Close()

	fmt.Println(idx)
	if err := idx.CheckInvariants(); err != nil {
		fmt.Printf("Invariant violation: %v\n", err)
	}

	stats := idx.Stats()
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"level", "vertices", "edges", "avg degree"})
	for level := len(stats.VerticesPerLevel) - 1; level >= 0; level-- {
		table.Append([]string{
			fmt.Sprintf("%d", level),
			fmt.Sprintf("%d", stats.VerticesPerLevel[level]),
			fmt.Sprintf("%d", stats.EdgesPerLevel[level]),
			fmt.Sprintf("%.2f", stats.AvgDegree(level)),
		})
	}
	table.Render()
	return nil
}
