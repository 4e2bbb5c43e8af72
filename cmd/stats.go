package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yardeye/go-sentinel/stats"
)

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the accumulated detection statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			agg := stats.NewAggregator(settings.Paths.StatsFile)
			agg.RenderSummary(os.Stdout)
			return nil
		},
	}
}
