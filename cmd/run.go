package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/results"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

var (
	runSpecPath string
	runArtifact string
	runDraw     int
	runSeed     int64
	runScenario string
	runOutput   string
)

// runCmd executes one simulation from a model specification
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation from a model specification",
	Run: func(cmd *cobra.Command, args []string) {
		ms, err := spec.Load(runSpecPath)
		if err != nil {
			logrus.Fatalf("Failed to load model specification: %v", err)
		}

		opts := sim.Options{ArtifactPath: runArtifact, Scenario: runScenario}
		if cmd.Flags().Changed("draw") {
			opts.InputDraw = &runDraw
		}
		if cmd.Flags().Changed("seed") {
			opts.RandomSeed = &runSeed
		}

		s, err := sim.NewSimulator(ms, opts)
		if err != nil {
			logrus.Fatalf("Invalid model specification: %v", err)
		}
		defer s.Close()

		obs, err := s.Run(context.Background())
		if err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}

		if runOutput != "" {
			path, err := results.WriteObservation(runOutput, obs)
			if err != nil {
				logrus.Fatalf("Failed to write observation: %v", err)
			}
			logrus.Infof("wrote %s", path)
			return
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(obs); err != nil {
			logrus.Fatalf("Failed to encode observation: %v", err)
		}
	},
}

func init() {
	runCmd.Flags().StringVar(&runSpecPath, "spec", "", "Path to the model specification YAML")
	_ = runCmd.MarkFlagRequired("spec")

	runCmd.Flags().StringVar(&runArtifact, "artifact", operator.Artifact, "Input data artifact path (overrides the specification)")
	runCmd.Flags().IntVar(&runDraw, "draw", 0, "Input draw number (overrides the specification)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Random seed (overrides the specification)")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Intervention scenario (overrides the specification)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "Directory to file the observation under (default: print to stdout)")

	rootCmd.AddCommand(runCmd)
}
