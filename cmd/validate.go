package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// validateCmd checks model specifications without running them
var validateCmd = &cobra.Command{
	Use:   "validate <spec.yaml>...",
	Short: "Check model specifications against the component registry",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		failed := false
		for _, path := range args {
			if err := validateSpec(path); err != nil {
				logrus.Errorf("%s: %v", path, err)
				failed = true
				continue
			}
			logrus.Infof("%s: ok", path)
		}
		if failed {
			os.Exit(1)
		}
	},
}

// validateSpec parses a specification, checks its structural invariants,
// and resolves every declared component against the registry.
func validateSpec(path string) error {
	ms, err := spec.Load(path)
	if err != nil {
		return err
	}
	if err := ms.Validate(); err != nil {
		return err
	}
	_, err = sim.ResolveComponents(ms.Components)
	return err
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
