package disease

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

func init() {
	sim.RegisterComponent("SIS", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("SIS takes exactly one argument, the cause name")
		}
		return NewSIS(call.Args[0]), nil
	})
}

// SIS is a susceptible-infected-susceptible cause model, the standard
// shape for the acute infectious causes: artifact-backed incidence,
// remission, prevalence, disability weight, excess mortality, and
// cause-specific mortality.
type SIS struct {
	cause   string
	machine *Machine
}

// NewSIS builds the two-state model for a cause.
func NewSIS(cause string) *SIS {
	prefix := "cause." + cause + "."
	infected := cause
	susceptible := "susceptible_to_" + cause
	return &SIS{
		cause: cause,
		machine: &Machine{
			Column: cause,
			States: []*State{
				{Name: susceptible},
				{
					Name:                infected,
					PrevalenceKey:       prefix + "prevalence",
					DisabilityWeightKey: prefix + "disability_weight",
					ExcessMortalityKey:  prefix + "excess_mortality_rate",
					CauseOfDeath:        cause,
				},
			},
			Transitions: []*Transition{
				{
					From:     susceptible,
					To:       infected,
					RateName: cause + ".incidence_rate",
					RateKey:  prefix + "incidence_rate",
				},
				{
					From:     infected,
					To:       susceptible,
					RateName: cause + ".remission_rate",
					RateKey:  prefix + "remission_rate",
				},
			},
			CSMRKey: prefix + "cause_specific_mortality_rate",
		},
	}
}

func (s *SIS) Name() string { return "disease_model." + s.cause }

func (s *SIS) Setup(b *sim.Builder) error {
	return s.machine.Setup(b)
}

// Model exposes the underlying machine for observers.
func (s *SIS) Model() *Machine { return s.machine }
