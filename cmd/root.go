package cmd

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// operatorEnv carries site-wide defaults so wrapper scripts need not repeat
// the same flags on every invocation. Flags always win over the environment.
type operatorEnv struct {
	Artifact string `env:"COMPASS_SAM_ARTIFACT"`
	Output   string `env:"COMPASS_SAM_OUTPUT" envDefault:"output"`
	Log      string `env:"COMPASS_SAM_LOG"    envDefault:"info"`
}

var operator = loadOperatorEnv()

func loadOperatorEnv() operatorEnv {
	var cfg operatorEnv
	if err := env.Parse(&cfg); err != nil {
		return operatorEnv{Output: "output", Log: "info"}
	}
	return cfg
}

var logLevel string

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "compass-sam",
	Short: "Individual-based simulation of childhood acute malnutrition",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", operator.Log, "Log level (trace, debug, info, warn, error, fatal, panic)")
}
