package risk

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

func init() {
	sim.RegisterComponent("RiskEffect", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 2 {
			return nil, fmt.Errorf("RiskEffect takes exactly two arguments, the risk entity and the target measure")
		}
		return NewEffect(call.Args[0], call.Args[1])
	})
}

// Effect applies a risk's relative risks to a target rate pipeline. The
// attributable fraction joins the target's ".paf" pipeline so the
// underlying rate is deflated to its unexposed baseline, and each
// simulant's rate is then scaled by the relative risk of their current
// exposure category.
type Effect struct {
	riskType string
	riskName string
	target   string
	measure  string

	clock *sim.Clock
	pop   *sim.Table
	age   sim.FloatCol
	sex   sim.StringCol

	rr  *artifact.CategoryLookup
	paf *artifact.Lookup

	exposure *sim.CategoryPipeline
}

// NewEffect builds the effect of a risk entity on a target measure path
// like "cause.diarrheal_diseases.incidence_rate".
func NewEffect(entity, target string) (*Effect, error) {
	riskType, riskName, err := splitEntity(entity)
	if err != nil {
		return nil, err
	}
	_, targetName, measure, err := splitTarget(target)
	if err != nil {
		return nil, err
	}
	return &Effect{
		riskType: riskType,
		riskName: riskName,
		target:   targetName,
		measure:  measure,
	}, nil
}

func (e *Effect) Name() string {
	return "risk_effect." + e.riskName + "_on_" + e.target + "." + e.measure
}

func (e *Effect) Setup(b *sim.Builder) error {
	e.clock = b.Clock()
	e.pop = b.Population()

	var err error
	if e.age, err = e.pop.FloatColumn(population.ColAge); err != nil {
		return err
	}
	if e.sex, err = e.pop.StringColumn(population.ColSex); err != nil {
		return err
	}

	data, err := b.Data()
	if err != nil {
		return err
	}
	prefix := e.riskType + "." + e.riskName + "."
	if e.rr, err = data.CategoryLookup(b.Context(), prefix+"relative_risk."+e.target); err != nil {
		return fmt.Errorf("loading %s relative risk on %s: %w", e.riskName, e.target, err)
	}
	if e.paf, err = data.Lookup(b.Context(), prefix+"population_attributable_fraction."+e.target); err != nil {
		return fmt.Errorf("loading %s attributable fraction on %s: %w", e.riskName, e.target, err)
	}

	e.exposure = b.Values().Category(e.riskName + ".exposure")

	rate := e.target + "." + e.measure
	b.Values().Pipeline(rate + ".paf").AddModifier(func(i int, v float64) float64 {
		return v + e.paf.At(e.sex.Get(i), e.age.Get(i), e.year())
	})
	b.Values().Pipeline(rate).AddModifier(e.scale)
	return nil
}

// scale multiplies the target rate by the relative risk of the
// simulant's exposure category.
func (e *Effect) scale(i int, v float64) float64 {
	cat := e.exposure.Value(i)
	rr, err := e.rr.Value(cat, e.sex.Get(i), e.age.Get(i), e.year())
	if err != nil {
		panic(fmt.Sprintf("risk: %s exposure category %q has no relative risk on %s", e.riskName, cat, e.target))
	}
	return v * rr
}

func (e *Effect) year() float64 {
	return float64(e.clock.Now().Year())
}
