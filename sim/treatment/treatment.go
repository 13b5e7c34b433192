// Package treatment models the malnutrition treatment programs: the
// coverage of severe and moderate acute malnutrition treatment, and the
// small-quantity lipid-based nutrient supplement program that prevents
// wasting in covered children.
package treatment

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/risk"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// CoverageParamsPipeline carries the treatment coverage distribution.
// Interventions shift simulants between its categories.
const CoverageParamsPipeline = "wasting_treatment.exposure_parameters"

// Treatment coverage categories.
const (
	Uncovered          = "cat1"
	BaselineProgram    = "cat2"
	AlternativeProgram = "cat3"
)

func init() {
	sim.RegisterComponent("WastingTreatment", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("WastingTreatment takes exactly one argument, the treatment entity")
		}
		return NewWastingTreatment(call.Args[0])
	})
}

// WastingTreatment assigns each simulant a treatment coverage category
// from the entity's exposure distribution. The wasting model reads the
// category to route severe and moderate cases through treated or
// untreated remission.
type WastingTreatment struct {
	*risk.Risk
}

// NewWastingTreatment builds the coverage component for an entity like
// "risk_factor.wasting_treatment".
func NewWastingTreatment(entity string) (*WastingTreatment, error) {
	r, err := risk.NewRisk(entity)
	if err != nil {
		return nil, err
	}
	return &WastingTreatment{Risk: r}, nil
}
