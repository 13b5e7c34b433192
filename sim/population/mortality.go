package population

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// Names of the mortality pipelines. Disease components claim a cause slot
// on the hazard vector and add their cause-specific rates to the scalar.
const (
	MortalityRatePipeline = "mortality_rate"
	CSMRPipeline          = "cause_specific_mortality_rate"

	// OtherCauses is the hazard slot for deaths the model does not
	// attribute to an explicit cause.
	OtherCauses = "other_causes"

	// NotDead is the cause_of_death value of living simulants.
	NotDead = "not_dead"
)

func init() {
	sim.RegisterComponent("Mortality", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("Mortality takes no arguments")
		}
		return NewMortality(), nil
	})
}

// Mortality resolves deaths. Its hazard vector carries one slot per
// cause: the all-cause rate net of modeled causes under OtherCauses, and
// whatever excess mortality disease components layer on their own slots.
// A single draw per simulant and step picks death-by-cause or survival.
type Mortality struct {
	clock *sim.Clock
	pop   *sim.Table

	acmr           *artifact.Lookup
	lifeExpectancy *artifact.Lookup

	age     sim.FloatCol
	sex     sim.StringCol
	alive   sim.StringCol
	tracked sim.BoolCol
	exit    sim.FloatCol
	cause   sim.StringCol
	ylls    sim.FloatCol

	hazard *sim.VectorPipeline
	csmr   *sim.Pipeline
	stream *sim.Stream

	buf     []float64
	weights []float64
}

// NewMortality returns the mortality component.
func NewMortality() *Mortality { return &Mortality{} }

func (m *Mortality) Name() string { return "mortality" }

func (m *Mortality) Setup(b *sim.Builder) error {
	m.clock = b.Clock()
	m.pop = b.Population()

	data, err := b.Data()
	if err != nil {
		return err
	}
	if m.acmr, err = data.Lookup(b.Context(), KeyACMR); err != nil {
		return fmt.Errorf("loading all-cause mortality: %w", err)
	}
	if m.lifeExpectancy, err = data.Lookup(b.Context(), KeyLifeExpectancy); err != nil {
		return fmt.Errorf("loading life expectancy: %w", err)
	}

	if m.age, err = m.pop.FloatColumn(ColAge); err != nil {
		return err
	}
	if m.sex, err = m.pop.StringColumn(ColSex); err != nil {
		return err
	}
	if m.alive, err = m.pop.StringColumn(ColAlive); err != nil {
		return err
	}
	if m.tracked, err = m.pop.BoolColumn(ColTracked); err != nil {
		return err
	}
	if m.exit, err = m.pop.FloatColumn(ColExitTime); err != nil {
		return err
	}
	m.cause = m.pop.AddStringColumn(ColCauseOfDeath, NotDead)
	m.ylls = m.pop.AddFloatColumn(ColYLLs, 0)

	m.csmr = b.Values().Pipeline(CSMRPipeline)
	m.csmr.SetSource(func(i int) float64 { return 0 })

	m.hazard = b.Values().Vector(MortalityRatePipeline)
	m.hazard.AddCategory(OtherCauses)
	m.hazard.SetSource(m.otherCausesHazard)

	m.stream = b.Randomness().Stream("mortality_handler")
	b.Listen(sim.PhaseTimeStep, sim.PriorityDefault, m.onTimeStep)
	return nil
}

// otherCausesHazard sources the hazard vector: the other-causes slot gets
// the all-cause rate minus what modeled causes claim through the CSMR
// pipeline, and every other slot starts at zero for its owner's modifier.
func (m *Mortality) otherCausesHazard(i int, out []float64) {
	for k := range out {
		out[k] = 0
	}
	year := float64(m.clock.Now().Year())
	out[0] = m.acmr.At(m.sex.Get(i), m.age.Get(i), year) - m.csmr.Value(i)
}

func (m *Mortality) onTimeStep(ev sim.Event) {
	causes := m.hazard.Categories()
	exitDays := m.clock.DaysInto(ev.Time)
	year := float64(m.clock.Now().Year())
	n := m.pop.Len()
	for i := 0; i < n; i++ {
		if !m.alive.Is(i, Alive) || !m.tracked.Get(i) {
			continue
		}
		m.buf = m.hazard.Values(i, m.buf)
		total := 0.0
		for _, h := range m.buf {
			total += h
		}
		if total <= 0 {
			continue
		}
		pDeath := sim.RateToProbability(total, ev.Dt)

		if cap(m.weights) < len(causes)+1 {
			m.weights = make([]float64, len(causes)+1)
		}
		m.weights = m.weights[:len(causes)+1]
		for k, h := range m.buf {
			m.weights[k] = h / total * pDeath
		}
		m.weights[len(causes)] = 1 - pDeath

		choice := m.stream.Choice(i, m.weights)
		if choice == len(causes) {
			continue
		}
		m.alive.Set(i, Dead)
		m.cause.Set(i, causes[choice])
		m.exit.Set(i, exitDays)
		m.ylls.Set(i, m.lifeExpectancy.At(m.sex.Get(i), m.age.Get(i), year))
	}
}
