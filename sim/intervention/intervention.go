// Package intervention holds the scenario levers. The alternative
// scenarios scale up treatment coverage and the SQ-LNS prevention
// program from the scale-up start date; under the baseline scenario
// both components are inert, so every model specification can declare
// them unconditionally.
package intervention

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/params"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
	"github.com/ihmeuw/vivarium-compass-sam/sim/treatment"
)

type scenarioFlags struct {
	alternativeTreatment bool
	sqlns                bool
}

var scenarios = map[string]scenarioFlags{
	"baseline":          {},
	"wasting_treatment": {alternativeTreatment: true},
	"sqlns":             {alternativeTreatment: true, sqlns: true},
}

func flagsFor(name string) (scenarioFlags, error) {
	f, ok := scenarios[name]
	if !ok {
		return scenarioFlags{}, fmt.Errorf("intervention: unknown scenario %q", name)
	}
	return f, nil
}

func init() {
	sim.RegisterComponent("WastingTreatmentIntervention", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("WastingTreatmentIntervention takes no arguments")
		}
		return NewWastingTreatmentIntervention(), nil
	})
	sim.RegisterComponent("SQLNSIntervention", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("SQLNSIntervention takes no arguments")
		}
		return NewSQLNSIntervention(), nil
	})
}

// WastingTreatmentIntervention raises total treatment coverage to the
// alternative level by moving uncovered probability mass into the
// alternative program category.
type WastingTreatmentIntervention struct {
	clock  *sim.Clock
	params *sim.VectorPipeline
}

func NewWastingTreatmentIntervention() *WastingTreatmentIntervention {
	return &WastingTreatmentIntervention{}
}

func (w *WastingTreatmentIntervention) Name() string { return "wasting_treatment_intervention" }

func (w *WastingTreatmentIntervention) Setup(b *sim.Builder) error {
	flags, err := flagsFor(b.Scenario())
	if err != nil {
		return err
	}
	if !flags.alternativeTreatment {
		return nil
	}
	w.clock = b.Clock()
	w.params = b.Values().Vector(treatment.CoverageParamsPipeline)
	w.params.AddModifier(w.scaleUp)
	return nil
}

func (w *WastingTreatmentIntervention) scaleUp(i int, vals []float64) {
	if w.clock.Now().Before(params.ScaleUpStartDate) {
		return
	}
	un := w.params.Index(treatment.Uncovered)
	alt := w.params.Index(treatment.AlternativeProgram)
	base := w.params.Index(treatment.BaselineProgram)
	if un < 0 || alt < 0 || base < 0 {
		panic("intervention: treatment coverage parameters are missing the program categories")
	}
	delta := params.AlternativeTxCoverage - vals[base] - vals[alt]
	if delta <= 0 {
		return
	}
	vals[alt] += delta
	vals[un] -= delta
}

// SQLNSIntervention widens SQ-LNS coverage to the ramp-up level for
// children past the coverage start age.
type SQLNSIntervention struct {
	clock *sim.Clock
	age   sim.FloatCol

	propensity *sim.Pipeline
}

func NewSQLNSIntervention() *SQLNSIntervention { return &SQLNSIntervention{} }

func (s *SQLNSIntervention) Name() string { return "sq_lns_intervention" }

func (s *SQLNSIntervention) Setup(b *sim.Builder) error {
	flags, err := flagsFor(b.Scenario())
	if err != nil {
		return err
	}
	if !flags.sqlns {
		return nil
	}
	s.clock = b.Clock()
	if s.age, err = b.Population().FloatColumn(population.ColAge); err != nil {
		return err
	}
	s.propensity = b.Values().Pipeline(treatment.SQLNSPropensityPipeline)
	b.Values().Flag(treatment.SQLNSCoveragePipeline).AddModifier(s.widen)
	return nil
}

func (s *SQLNSIntervention) widen(i int, covered bool) bool {
	if covered {
		return true
	}
	if s.clock.Now().Before(params.ScaleUpStartDate) {
		return false
	}
	return s.age.Get(i) >= params.SQLNSCoverageStartAge &&
		s.propensity.Value(i) < params.SQLNSCoverageRampUp
}
