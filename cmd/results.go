package cmd

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ihmeuw/vivarium-compass-sam/sim/results"
)

var (
	resultsInput  string
	resultsOutput string
)

// resultsCmd aggregates a batch output directory into tidy CSV tables
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Aggregate run outputs into tidy CSV tables",
	Run: func(cmd *cobra.Command, args []string) {
		out := resultsOutput
		if out == "" {
			out = filepath.Join(resultsInput, "results")
		}
		kept, dropped, err := results.Aggregate(resultsInput, out)
		if err != nil {
			logrus.Fatalf("Aggregation failed: %v", err)
		}
		if dropped > 0 {
			logrus.Warnf("dropped %d runs whose draw and seed did not complete every scenario", dropped)
		}
		logrus.Infof("aggregated %d runs into %s", kept, out)
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsInput, "input", operator.Output, "Batch output directory to aggregate")
	resultsCmd.Flags().StringVar(&resultsOutput, "output", "", "Directory for the CSV tables (default: <input>/results)")

	rootCmd.AddCommand(resultsCmd)
}
