// Package disease implements multi-state cause models. A Machine owns one
// population column holding the simulant's current state, seeds it from
// prevalence, and resolves transitions from annual-rate pipelines each
// step. States contribute disability weight and excess mortality to the
// shared pipelines while a simulant occupies them.
package disease

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
)

// DisabilityWeightPipeline accumulates every state's disability weight
// for the simulant. The first machine with a disabling state sources the
// zero baseline; each such state then layers a modifier on top.
const DisabilityWeightPipeline = "disability_weight"

// State is one node of a disease model. Lookup keys bind its data
// contributions; an empty key disables that contribution, so susceptible
// states are just a name.
type State struct {
	Name string

	// PrevalenceKey weights initialization of the starting cohort. At
	// most one state per machine may leave it empty; that state absorbs
	// the remaining probability mass.
	PrevalenceKey string

	// BirthPrevalenceKey weights initialization of newborns. States
	// without one get no newborns unless they absorb the remainder.
	BirthPrevalenceKey string

	// DisabilityWeightKey adds to the simulant's disability weight
	// while in this state.
	DisabilityWeightKey string

	// ExcessMortalityKey adds to the CauseOfDeath slot of the mortality
	// hazard while in this state.
	ExcessMortalityKey string

	// CauseOfDeath names the hazard slot excess mortality flows into.
	CauseOfDeath string

	prevalence       *artifact.Lookup
	birthPrevalence  *artifact.Lookup
	disabilityWeight *artifact.Lookup
	excessMortality  *artifact.Lookup
	hazardSlot       int
}

// Transition moves simulants between two states at a pipeline's annual
// rate.
type Transition struct {
	From string
	To   string

	// RateName is the pipeline carrying the transition's annual rate.
	RateName string

	// RateKey sources the pipeline from the artifact, net of the
	// population attributable fraction on "{RateName}.paf". Leave empty
	// when another component sources the pipeline.
	RateKey string

	rate *sim.Pipeline
}

// Machine is a complete disease model over one population column.
type Machine struct {
	// Column is the population column holding the current state, and
	// the model's name in stream and pipeline names.
	Column string

	States      []*State
	Transitions []*Transition

	// CSMRKey, when set, adds this model's cause-specific mortality to
	// the shared pipeline so the mortality component nets it out of the
	// other-causes hazard.
	CSMRKey string

	// InitialState overrides prevalence-weighted initialization; the
	// states' prevalence keys then go unused.
	InitialState func(i int, atBirth bool) (string, error)

	clock   *sim.Clock
	pop     *sim.Table
	age     sim.FloatCol
	sex     sim.StringCol
	alive   sim.StringCol
	tracked sim.BoolCol

	state    sim.StringCol
	previous sim.StringCol

	csmr       *artifact.Lookup
	initStream *sim.Stream
	flowStream *sim.Stream

	outgoing map[string][]*Transition
	weights  []float64
}

// Setup wires the machine into the run. The owning component calls this
// from its own Setup.
func (m *Machine) Setup(b *sim.Builder) error {
	m.clock = b.Clock()
	m.pop = b.Population()

	var err error
	if m.age, err = m.pop.FloatColumn(population.ColAge); err != nil {
		return err
	}
	if m.sex, err = m.pop.StringColumn(population.ColSex); err != nil {
		return err
	}
	if m.alive, err = m.pop.StringColumn(population.ColAlive); err != nil {
		return err
	}
	if m.tracked, err = m.pop.BoolColumn(population.ColTracked); err != nil {
		return err
	}
	m.state = m.pop.AddStringColumn(m.Column, "")
	m.previous = m.pop.AddStringColumn(m.PreviousColumn(), "")

	data, err := b.Data()
	if err != nil {
		return err
	}
	if err := m.bindStates(b, data); err != nil {
		return err
	}
	if err := m.bindTransitions(b, data); err != nil {
		return err
	}
	if m.CSMRKey != "" {
		if m.csmr, err = data.Lookup(b.Context(), m.CSMRKey); err != nil {
			return fmt.Errorf("model %s: %w", m.Column, err)
		}
		b.Values().Pipeline(population.CSMRPipeline).AddModifier(func(i int, v float64) float64 {
			return v + m.csmr.At(m.sex.Get(i), m.age.Get(i), m.year())
		})
	}

	m.initStream = b.Randomness().Stream(m.Column + "_initial_states")
	m.flowStream = b.Randomness().Stream(m.Column + "_transition")

	b.AddSimulantInitializer(m.initialize)
	b.Listen(sim.PhasePrepare, sim.PriorityDefault, m.onPrepare)
	b.Listen(sim.PhaseTimeStep, sim.PriorityDefault, m.onTimeStep)
	return nil
}

func (m *Machine) bindStates(b *sim.Builder, data *artifact.View) error {
	remainder := -1
	for si, s := range m.States {
		s := s
		var err error
		if m.InitialState == nil {
			if s.PrevalenceKey == "" {
				if remainder >= 0 {
					return fmt.Errorf("model %s: states %s and %s both lack prevalence", m.Column, m.States[remainder].Name, s.Name)
				}
				remainder = si
			} else if s.prevalence, err = data.Lookup(b.Context(), s.PrevalenceKey); err != nil {
				return fmt.Errorf("model %s: %w", m.Column, err)
			}
			if s.BirthPrevalenceKey != "" {
				if s.birthPrevalence, err = data.Lookup(b.Context(), s.BirthPrevalenceKey); err != nil {
					return fmt.Errorf("model %s: %w", m.Column, err)
				}
			}
		}
		if s.DisabilityWeightKey != "" {
			if s.disabilityWeight, err = data.Lookup(b.Context(), s.DisabilityWeightKey); err != nil {
				return fmt.Errorf("model %s: %w", m.Column, err)
			}
			disability := b.Values().Pipeline(DisabilityWeightPipeline)
			if !disability.Sourced() {
				disability.SetSource(func(int) float64 { return 0 })
			}
			stateDW := b.Values().Pipeline(s.Name + ".disability_weight")
			stateDW.SetSource(func(i int) float64 {
				if m.state.Is(i, s.Name) {
					return s.disabilityWeight.At(m.sex.Get(i), m.age.Get(i), m.year())
				}
				return 0
			})
			disability.AddModifier(func(i int, v float64) float64 {
				return v + stateDW.Value(i)
			})
		}
		if s.ExcessMortalityKey != "" {
			if s.CauseOfDeath == "" {
				return fmt.Errorf("model %s: state %s has excess mortality but no cause of death", m.Column, s.Name)
			}
			if s.excessMortality, err = data.Lookup(b.Context(), s.ExcessMortalityKey); err != nil {
				return fmt.Errorf("model %s: %w", m.Column, err)
			}
			hazard := b.Values().Vector(population.MortalityRatePipeline)
			s.hazardSlot = hazard.AddCategory(s.CauseOfDeath)
			hazard.AddModifier(func(i int, vals []float64) {
				if m.state.Is(i, s.Name) {
					vals[s.hazardSlot] += s.excessMortality.At(m.sex.Get(i), m.age.Get(i), m.year())
				}
			})
		}
	}
	return nil
}

func (m *Machine) bindTransitions(b *sim.Builder, data *artifact.View) error {
	m.outgoing = make(map[string][]*Transition)
	names := make(map[string]bool, len(m.States))
	for _, s := range m.States {
		names[s.Name] = true
	}
	for _, tr := range m.Transitions {
		tr := tr
		if !names[tr.From] || !names[tr.To] {
			return fmt.Errorf("model %s: transition %s to %s references an unknown state", m.Column, tr.From, tr.To)
		}
		tr.rate = b.Values().Pipeline(tr.RateName)
		if tr.RateKey != "" {
			lookup, err := data.Lookup(b.Context(), tr.RateKey)
			if err != nil {
				return fmt.Errorf("model %s: %w", m.Column, err)
			}
			paf := b.Values().Pipeline(tr.RateName + ".paf")
			paf.SetSource(func(i int) float64 { return 0 })
			tr.rate.SetSource(func(i int) float64 {
				return lookup.At(m.sex.Get(i), m.age.Get(i), m.year()) * (1 - paf.Value(i))
			})
		}
		m.outgoing[tr.From] = append(m.outgoing[tr.From], tr)
	}
	return nil
}

// initialize seeds the state column: newborns from birth prevalence, the
// starting cohort from prevalence, with the keyless state absorbing the
// remaining mass.
func (m *Machine) initialize(batch sim.NewSimulants) error {
	for i := batch.Start; i < batch.End; i++ {
		if m.InitialState != nil {
			name, err := m.InitialState(i, batch.AtBirth)
			if err != nil {
				return err
			}
			m.state.Set(i, name)
			m.previous.Set(i, name)
			continue
		}
		if cap(m.weights) < len(m.States) {
			m.weights = make([]float64, len(m.States))
		}
		m.weights = m.weights[:len(m.States)]
		total := 0.0
		year := m.year()
		for si, s := range m.States {
			lookup := s.prevalence
			if batch.AtBirth {
				lookup = s.birthPrevalence
			}
			if lookup == nil {
				m.weights[si] = 0
				continue
			}
			m.weights[si] = lookup.At(m.sex.Get(i), m.age.Get(i), year)
			total += m.weights[si]
		}
		for si, s := range m.States {
			hasKey := s.prevalence != nil
			if batch.AtBirth {
				hasKey = s.birthPrevalence != nil
			}
			if !hasKey {
				m.weights[si] = 1 - total
			}
		}
		name := m.States[m.initStream.Choice(i, m.weights)].Name
		m.state.Set(i, name)
		m.previous.Set(i, name)
	}
	return nil
}

// onPrepare snapshots the state column so observers can count the step's
// transitions.
func (m *Machine) onPrepare(ev sim.Event) {
	n := m.pop.Len()
	for i := 0; i < n; i++ {
		m.previous.Set(i, m.state.Get(i))
	}
}

// onTimeStep resolves transitions. Each outgoing rate converts to an
// independent per-step probability and one draw picks the destination or
// staying put.
func (m *Machine) onTimeStep(ev sim.Event) {
	n := m.pop.Len()
	for i := 0; i < n; i++ {
		if !m.alive.Is(i, population.Alive) || !m.tracked.Get(i) {
			continue
		}
		outs := m.outgoing[m.state.Get(i)]
		if len(outs) == 0 {
			continue
		}
		if cap(m.weights) < len(outs)+1 {
			m.weights = make([]float64, len(outs)+1)
		}
		m.weights = m.weights[:len(outs)+1]
		total := 0.0
		for k, tr := range outs {
			p := sim.RateToProbability(tr.rate.Value(i), ev.Dt)
			if p < 0 {
				p = 0
			}
			m.weights[k] = p
			total += p
		}
		stay := 1 - total
		if stay < 0 {
			stay = 0
		}
		m.weights[len(outs)] = stay
		choice := m.flowStream.Choice(i, m.weights)
		if choice < len(outs) {
			m.state.Set(i, outs[choice].To)
		}
	}
}

// StateColumn returns the population column holding the current state.
func (m *Machine) StateColumn() string { return m.Column }

// PreviousColumn returns the population column holding the state each
// simulant entered the current step with.
func (m *Machine) PreviousColumn() string { return "previous_" + m.Column }

// StateNames lists the machine's states in declaration order.
func (m *Machine) StateNames() []string {
	names := make([]string, len(m.States))
	for i, s := range m.States {
		names[i] = s.Name
	}
	return names
}

// TransitionNames lists the machine's transitions as "{from}_to_{to}".
func (m *Machine) TransitionNames() []string {
	names := make([]string, len(m.Transitions))
	for i, tr := range m.Transitions {
		names[i] = tr.From + "_to_" + tr.To
	}
	return names
}

func (m *Machine) year() float64 {
	return float64(m.clock.Now().Year())
}

// Modeled is implemented by components that wrap a Machine. Observers
// locate a model through the builder and reach its machine this way.
type Modeled interface {
	Model() *Machine
}
