package observer

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

func init() {
	sim.RegisterComponent("CategoricalRiskObserver", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("CategoricalRiskObserver takes exactly one argument, the risk to observe")
		}
		return NewCategoricalRiskObserver(call.Args[0]), nil
	})
}

// CategoricalRiskObserver reports person time in each category of a
// categorical exposure, read from the risk's exposure pipeline at step
// preparation. The risk name is the short entity name, the same one the
// exposure pipeline carries: "child_wasting", "wasting_treatment".
type CategoricalRiskObserver struct {
	risk   string
	clock  *sim.Clock
	pop    *sim.Table
	strata *strata

	age     sim.FloatCol
	sex     sim.StringCol
	alive   sim.StringCol
	tracked sim.BoolCol

	exposure *sim.CategoryPipeline
	counts   counts
}

// NewCategoricalRiskObserver returns an observer for the named risk.
func NewCategoricalRiskObserver(risk string) *CategoricalRiskObserver {
	return &CategoricalRiskObserver{risk: risk}
}

func (o *CategoricalRiskObserver) Name() string { return "risk_observer." + o.risk }

func (o *CategoricalRiskObserver) Setup(b *sim.Builder) error {
	o.clock = b.Clock()
	o.pop = b.Population()
	o.counts = counts{}

	var err error
	if o.strata, err = newStrata(b, o.risk); err != nil {
		return err
	}
	if o.age, err = o.pop.FloatColumn(population.ColAge); err != nil {
		return err
	}
	if o.sex, err = o.pop.StringColumn(population.ColSex); err != nil {
		return err
	}
	if o.alive, err = o.pop.StringColumn(population.ColAlive); err != nil {
		return err
	}
	if o.tracked, err = o.pop.BoolColumn(population.ColTracked); err != nil {
		return err
	}

	o.exposure = b.Values().Category(o.risk + ".exposure")
	b.Listen(sim.PhasePrepare, sim.PriorityDefault, o.onPrepare)
	return nil
}

func (o *CategoricalRiskObserver) onPrepare(ev sim.Event) {
	dt := ev.Dt / sim.DaysPerYear
	year := o.clock.Now().Year()
	n := o.pop.Len()
	for i := 0; i < n; i++ {
		if !o.alive.Is(i, population.Alive) || !o.tracked.Get(i) {
			continue
		}
		measure := o.risk + "_" + o.exposure.Value(i) + "_person_time"
		o.counts.add(o.strata.label(measure, year, o.sex.Get(i), o.age.Get(i)), dt)
	}
}

// Report contributes the accumulated category person time.
func (o *CategoricalRiskObserver) Report(obs *sim.Observation) {
	o.counts.report(obs)
}
