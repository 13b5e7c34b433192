// Package population holds the demographic components: the starting
// cohort, aging and tracking, all-cause mortality, and births. Every
// other model component builds on the columns declared here.
package population

import (
	"fmt"
	"strconv"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// Canonical population columns. Components read them through table
// handles; only the components in this package write them.
const (
	ColAge          = "age"
	ColSex          = "sex"
	ColAlive        = "alive"
	ColTracked      = "tracked"
	ColEntranceTime = "entrance_time"
	ColExitTime     = "exit_time"
	ColCauseOfDeath = "cause_of_death"
	ColYLLs         = "years_of_life_lost"
)

// Values of the sex and alive columns.
const (
	SexMale   = "Male"
	SexFemale = "Female"

	Alive = "alive"
	Dead  = "dead"
)

// Artifact keys the demographic components read.
const (
	KeyStructure      = "population.structure"
	KeyLifeExpectancy = "population.theoretical_minimum_risk_life_expectancy"
	KeyACMR           = "cause.all_causes.cause_specific_mortality_rate"
	KeyLiveBirths     = "covariate.live_births_by_sex.estimate"
)

func init() {
	sim.RegisterComponent("BasePopulation", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("BasePopulation takes no arguments")
		}
		return NewBasePopulation(), nil
	})
}

// BasePopulation creates the starting cohort, assigns randomness keys,
// ages living simulants each step, and untracks simulants that age out
// of the cohort.
type BasePopulation struct {
	clock      *sim.Clock
	cfg        spec.PopulationConfig
	structure  *artifact.Lookup
	randomness *sim.RandomnessManager
	pop        *sim.Table

	age      sim.FloatCol
	sex      sim.StringCol
	alive    sim.StringCol
	tracked  sim.BoolCol
	entrance sim.FloatCol
	exit     sim.FloatCol

	ageStream *sim.Stream
	sexStream *sim.Stream
}

// NewBasePopulation returns the cohort component.
func NewBasePopulation() *BasePopulation { return &BasePopulation{} }

func (p *BasePopulation) Name() string { return "base_population" }

func (p *BasePopulation) Setup(b *sim.Builder) error {
	p.clock = b.Clock()
	p.cfg = b.Config().Population
	p.randomness = b.Randomness()

	data, err := b.Data()
	if err != nil {
		return err
	}
	p.structure, err = data.Lookup(b.Context(), KeyStructure)
	if err != nil {
		return fmt.Errorf("loading population structure: %w", err)
	}

	pop := b.Population()
	p.pop = pop
	p.age = pop.AddFloatColumn(ColAge, 0)
	p.sex = pop.AddStringColumn(ColSex, "")
	p.alive = pop.AddStringColumn(ColAlive, Alive)
	p.tracked = pop.AddBoolColumn(ColTracked, true)
	p.entrance = pop.AddFloatColumn(ColEntranceTime, 0)
	p.exit = pop.AddFloatColumn(ColExitTime, -1)

	p.ageStream = b.Randomness().Stream("age_initialization")
	p.sexStream = b.Randomness().Stream("sex_initialization")

	b.AddSimulantInitializer(p.initialize)
	b.Listen(sim.PhaseTimeStep, sim.PriorityDefault, p.onTimeStep)
	b.Listen(sim.PhaseCleanup, sim.PriorityDefault, p.onCleanup)
	return nil
}

// initialize fills the demographic columns for a batch of new rows and
// registers their randomness keys. It runs before any other component's
// initializer, so later initializers may draw keyed randomness.
func (p *BasePopulation) initialize(batch sim.NewSimulants) error {
	entrance := 0.0
	if batch.AtBirth {
		entrance = p.clock.DaysInto(p.clock.StepEnd())
	}
	year := float64(p.clock.Now().Year())
	for i := batch.Start; i < batch.End; i++ {
		salt := strconv.Itoa(i)
		age := 0.0
		if !batch.AtBirth {
			u := p.ageStream.DrawKeyless(salt)
			age = p.cfg.AgeStart + u*(p.cfg.AgeEnd-p.cfg.AgeStart)
		}
		p.age.Set(i, age)
		p.entrance.Set(i, entrance)

		males := p.structure.At(SexMale, age, year)
		females := p.structure.At(SexFemale, age, year)
		sex := SexFemale
		if total := males + females; total > 0 && p.sexStream.DrawKeyless(salt) < males/total {
			sex = SexMale
		}
		p.sex.Set(i, sex)
	}
	return p.randomness.RegisterSimulants(p.pop, batch.Start, batch.End)
}

// onTimeStep ages every living simulant by the step size.
func (p *BasePopulation) onTimeStep(ev sim.Event) {
	dt := ev.Dt / sim.DaysPerYear
	n := p.pop.Len()
	for i := 0; i < n; i++ {
		if p.alive.Is(i, Alive) {
			p.age.Add(i, dt)
		}
	}
}

// onCleanup untracks simulants that have aged out of the cohort. They
// stop being observed but keep aging so their columns stay meaningful.
func (p *BasePopulation) onCleanup(ev sim.Event) {
	exitAge, ok := p.cfg.UntrackAt()
	if !ok {
		return
	}
	exitDays := p.clock.DaysInto(ev.Time)
	n := p.pop.Len()
	for i := 0; i < n; i++ {
		if p.tracked.Get(i) && p.alive.Is(i, Alive) && p.age.Get(i) >= exitAge {
			p.tracked.Set(i, false)
			p.exit.Set(i, exitDays)
		}
	}
}
