package observer

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/disease"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

func init() {
	sim.RegisterComponent("DiseaseObserver", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("DiseaseObserver takes exactly one argument, the cause to observe")
		}
		return NewDiseaseObserver(call.Args[0]), nil
	})
}

// DiseaseObserver reports state person time and transition counts for
// one disease model. Person time accrues at step preparation against the
// state each simulant entered the step with; transition counts compare
// the prepared snapshot with the post-step state at metrics collection.
type DiseaseObserver struct {
	cause  string
	clock  *sim.Clock
	pop    *sim.Table
	strata *strata

	age      sim.FloatCol
	sex      sim.StringCol
	alive    sim.StringCol
	tracked  sim.BoolCol
	state    sim.StringCol
	previous sim.StringCol

	counts counts
}

// NewDiseaseObserver returns an observer for the named cause. The
// manifest must also declare a disease model for it.
func NewDiseaseObserver(cause string) *DiseaseObserver {
	return &DiseaseObserver{cause: cause}
}

func (o *DiseaseObserver) Name() string { return "disease_observer." + o.cause }

func (o *DiseaseObserver) Setup(b *sim.Builder) error {
	comp, ok := b.Component("disease_model." + o.cause)
	if !ok {
		return fmt.Errorf("no disease model for %q is declared", o.cause)
	}
	modeled, ok := comp.(disease.Modeled)
	if !ok {
		return fmt.Errorf("component %q does not expose a state machine", comp.Name())
	}
	machine := modeled.Model()

	o.clock = b.Clock()
	o.pop = b.Population()
	o.counts = counts{}

	var err error
	if o.strata, err = newStrata(b, o.cause); err != nil {
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
	if o.state, err = o.pop.StringColumn(machine.StateColumn()); err != nil {
		return err
	}
	if o.previous, err = o.pop.StringColumn(machine.PreviousColumn()); err != nil {
		return err
	}
	b.Listen(sim.PhasePrepare, sim.PriorityDefault, o.onPrepare)
	b.Listen(sim.PhaseCollectMetrics, sim.PriorityDefault, o.onCollectMetrics)
	return nil
}

// onPrepare accrues person time. The state column has not moved yet this
// step, so the accrual binds to the state held entering the step and the
// year the step starts in.
func (o *DiseaseObserver) onPrepare(ev sim.Event) {
	dt := ev.Dt / sim.DaysPerYear
	year := o.clock.Now().Year()
	n := o.pop.Len()
	for i := 0; i < n; i++ {
		if !o.alive.Is(i, population.Alive) || !o.tracked.Get(i) {
			continue
		}
		o.counts.add(o.strata.label(o.state.Get(i)+"_person_time", year, o.sex.Get(i), o.age.Get(i)), dt)
	}
}

// onCollectMetrics counts transitions. Events bin by the event time,
// so a transition on a step crossing New Year lands in the new year.
func (o *DiseaseObserver) onCollectMetrics(ev sim.Event) {
	year := ev.Time.Year()
	n := o.pop.Len()
	for i := 0; i < n; i++ {
		prev, cur := o.previous.Get(i), o.state.Get(i)
		if prev == cur {
			continue
		}
		o.counts.add(o.strata.label(prev+"_to_"+cur+"_event_count", year, o.sex.Get(i), o.age.Get(i)), 1)
	}
}

// Report contributes the accumulated person time and event counts.
func (o *DiseaseObserver) Report(obs *sim.Observation) {
	o.counts.report(obs)
}
