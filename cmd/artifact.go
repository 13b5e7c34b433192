package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
)

var (
	artifactSource string
	artifactDB     string
)

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Build and inspect input data artifacts",
}

// artifactBuildCmd imports a directory of CSV tables into an artifact
var artifactBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Import <key>.csv tables and meta.yaml into an artifact database",
	Run: func(cmd *cobra.Command, args []string) {
		if artifactDB == "" {
			logrus.Fatalf("No artifact path; set --artifact or COMPASS_SAM_ARTIFACT")
		}
		n, err := artifact.BuildFromCSV(context.Background(), artifactSource, artifactDB)
		if err != nil {
			logrus.Fatalf("Build failed: %v", err)
		}
		logrus.Infof("imported %d tables into %s", n, artifactDB)
	},
}

// artifactKeysCmd lists the table keys an artifact holds
var artifactKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the table keys in an artifact",
	Run: func(cmd *cobra.Command, args []string) {
		if artifactDB == "" {
			logrus.Fatalf("No artifact path; set --artifact or COMPASS_SAM_ARTIFACT")
		}
		store, err := artifact.Open(artifactDB)
		if err != nil {
			logrus.Fatalf("Failed to open artifact: %v", err)
		}
		defer store.Close()
		keys, err := store.Keys(context.Background())
		if err != nil {
			logrus.Fatalf("Failed to list keys: %v", err)
		}
		for _, key := range keys {
			fmt.Println(key)
		}
	},
}

func init() {
	artifactBuildCmd.Flags().StringVar(&artifactSource, "from", "", "Directory of <key>.csv tables plus optional meta.yaml")
	_ = artifactBuildCmd.MarkFlagRequired("from")

	artifactCmd.PersistentFlags().StringVar(&artifactDB, "artifact", operator.Artifact, "Artifact database path")
	artifactCmd.AddCommand(artifactBuildCmd, artifactKeysCmd)
	rootCmd.AddCommand(artifactCmd)
}
