package observer

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

func init() {
	sim.RegisterComponent("MortalityObserver", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("MortalityObserver takes no arguments")
		}
		return NewMortalityObserver(), nil
	})
}

// MortalityObserver reports deaths and years of life lost by cause of
// death, plus the closing population account. Everything it needs sits
// in the columns the mortality component maintains, so it reads the
// final population once instead of listening on the step cycle.
type MortalityObserver struct {
	clock  *sim.Clock
	pop    *sim.Table
	strata *strata

	age     sim.FloatCol
	sex     sim.StringCol
	alive   sim.StringCol
	tracked sim.BoolCol
	exit    sim.FloatCol
	cause   sim.StringCol
	ylls    sim.FloatCol
}

// NewMortalityObserver returns the mortality observer.
func NewMortalityObserver() *MortalityObserver { return &MortalityObserver{} }

func (o *MortalityObserver) Name() string { return "mortality_observer" }

func (o *MortalityObserver) Setup(b *sim.Builder) error {
	o.clock = b.Clock()
	o.pop = b.Population()

	var err error
	if o.strata, err = newStrata(b, "mortality"); err != nil {
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
	if o.exit, err = o.pop.FloatColumn(population.ColExitTime); err != nil {
		return err
	}
	if o.cause, err = o.pop.StringColumn(population.ColCauseOfDeath); err != nil {
		return err
	}
	if o.ylls, err = o.pop.FloatColumn(population.ColYLLs); err != nil {
		return err
	}
	return nil
}

// Report walks the final population. Deaths and YLLs bin by the
// simulant's sex, age at death, and the calendar year the death fell
// in; aging stops at death, so the age column still holds age at death.
func (o *MortalityObserver) Report(obs *sim.Observation) {
	var living, dead, untracked, ylls float64
	n := o.pop.Len()
	for i := 0; i < n; i++ {
		if !o.tracked.Get(i) {
			untracked++
			continue
		}
		if !o.alive.Is(i, population.Dead) {
			living++
			continue
		}
		dead++
		year := o.clock.TimeAt(o.exit.Get(i)).Year()
		cause := o.cause.Get(i)
		sex := o.sex.Get(i)
		age := o.age.Get(i)
		y := o.ylls.Get(i)
		ylls += y
		obs.Add(o.strata.label("death_due_to_"+cause, year, sex, age), 1)
		obs.Add(o.strata.label("ylls_due_to_"+cause, year, sex, age), y)
	}
	obs.Set("total_population_living", living)
	obs.Set("total_population_dead", dead)
	obs.Set("total_population_untracked", untracked)
	obs.Set("years_of_life_lost", ylls)
}
