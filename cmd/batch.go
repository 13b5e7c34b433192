package cmd

import (
	"context"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/results"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

var (
	batchSpecPath    string
	batchArtifact    string
	batchOutput      string
	batchScenarios   []string
	batchDraws       []int
	batchSeeds       []int64
	batchParallelism int
)

// batchCmd runs the full scenario x draw x seed grid for one model
// specification. Runs are independent, so they execute in parallel up to
// --parallelism at a time. The keyspace file is written first; the results
// command later uses it to spot runs that never finished.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a scenario x draw x seed grid",
	Run: func(cmd *cobra.Command, args []string) {
		ms, err := spec.Load(batchSpecPath)
		if err != nil {
			logrus.Fatalf("Failed to load model specification: %v", err)
		}
		for _, scenario := range batchScenarios {
			if !spec.ValidScenario(scenario) {
				logrus.Fatalf("Unknown scenario %q", scenario)
			}
		}

		ks := &results.Keyspace{
			Scenarios:   batchScenarios,
			InputDraws:  batchDraws,
			RandomSeeds: batchSeeds,
		}
		if err := ks.Write(batchOutput); err != nil {
			logrus.Fatalf("Failed to write keyspace: %v", err)
		}

		g, ctx := errgroup.WithContext(context.Background())
		g.SetLimit(batchParallelism)
		for _, scenario := range batchScenarios {
			for _, draw := range batchDraws {
				for _, seed := range batchSeeds {
					scenario, draw, seed := scenario, draw, seed
					g.Go(func() error {
						s, err := sim.NewSimulator(ms, sim.Options{
							ArtifactPath: batchArtifact,
							InputDraw:    &draw,
							RandomSeed:   &seed,
							Scenario:     scenario,
						})
						if err != nil {
							return err
						}
						defer s.Close()
						obs, err := s.Run(ctx)
						if err != nil {
							return err
						}
						path, err := results.WriteObservation(batchOutput, obs)
						if err != nil {
							return err
						}
						logrus.Infof("wrote %s", path)
						return nil
					})
				}
			}
		}
		if err := g.Wait(); err != nil {
			logrus.Fatalf("Batch failed: %v", err)
		}
		logrus.Infof("completed %d runs under %s",
			len(batchScenarios)*len(batchDraws)*len(batchSeeds), batchOutput)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchSpecPath, "spec", "", "Path to the model specification YAML")
	_ = batchCmd.MarkFlagRequired("spec")

	batchCmd.Flags().StringVar(&batchArtifact, "artifact", operator.Artifact, "Input data artifact path (overrides the specification)")
	batchCmd.Flags().StringVar(&batchOutput, "output", operator.Output, "Directory for per-run outputs and the keyspace file")
	batchCmd.Flags().StringSliceVar(&batchScenarios, "scenarios", []string{"baseline"}, "Scenarios to run")
	batchCmd.Flags().IntSliceVar(&batchDraws, "draws", []int{0}, "Input draw numbers to run")
	batchCmd.Flags().Int64SliceVar(&batchSeeds, "seeds", []int64{0}, "Random seeds to run per draw")
	batchCmd.Flags().IntVar(&batchParallelism, "parallelism", runtime.NumCPU(), "Maximum simulations in flight")

	rootCmd.AddCommand(batchCmd)
}
