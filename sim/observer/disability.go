package observer

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/disease"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

func init() {
	sim.RegisterComponent("DisabilityObserver", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("DisabilityObserver takes no arguments")
		}
		return NewDisabilityObserver(), nil
	})
}

// DisabilityObserver accrues years lived with disability from the shared
// disability weight pipeline. Accrual runs at metrics collection, after
// the step's transitions and deaths have settled, so the final step
// counts and a simulant contributes nothing for the step it dies in.
type DisabilityObserver struct {
	clock  *sim.Clock
	pop    *sim.Table
	strata *strata

	age     sim.FloatCol
	sex     sim.StringCol
	alive   sim.StringCol
	tracked sim.BoolCol

	disability *sim.Pipeline
	counts     counts
	total      float64
}

// NewDisabilityObserver returns the disability observer.
func NewDisabilityObserver() *DisabilityObserver { return &DisabilityObserver{} }

func (o *DisabilityObserver) Name() string { return "disability_observer" }

func (o *DisabilityObserver) Setup(b *sim.Builder) error {
	o.clock = b.Clock()
	o.pop = b.Population()
	o.counts = counts{}

	var err error
	if o.strata, err = newStrata(b, "disability"); err != nil {
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

	o.disability = b.Values().Pipeline(disease.DisabilityWeightPipeline)
	if !o.disability.Sourced() {
		o.disability.SetSource(func(int) float64 { return 0 })
	}
	b.Listen(sim.PhaseCollectMetrics, sim.PriorityDefault, o.onCollectMetrics)
	return nil
}

func (o *DisabilityObserver) onCollectMetrics(ev sim.Event) {
	dt := ev.Dt / sim.DaysPerYear
	year := o.clock.Now().Year()
	n := o.pop.Len()
	for i := 0; i < n; i++ {
		if !o.alive.Is(i, population.Alive) || !o.tracked.Get(i) {
			continue
		}
		ylds := o.disability.Value(i) * dt
		if ylds == 0 {
			continue
		}
		o.total += ylds
		o.counts.add(o.strata.label("ylds_due_to_all_causes", year, o.sex.Get(i), o.age.Get(i)), ylds)
	}
}

// Report contributes the accumulated YLD columns and their total.
func (o *DisabilityObserver) Report(obs *sim.Observation) {
	o.counts.report(obs)
	obs.Set("years_lived_with_disability", o.total)
}
