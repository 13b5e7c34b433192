package sim

import (
	"context"
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// NewSimulants describes a batch of rows being initialized: the half-open
// row range [Start, End) and whether the rows are births during the run
// rather than the starting cohort. Components that seed state from
// prevalence use birth prevalence for birth batches.
type NewSimulants struct {
	Start   int
	End     int
	AtBirth bool
}

// SimulantInitializer fills in columns for newly created simulants.
// Initializers run in component registration order, so the population
// component's initializer runs first and later ones may draw keyed
// randomness.
type SimulantInitializer func(batch NewSimulants) error

// Builder is the setup facade handed to every component. It exposes the
// run's clock, population table, pipelines, randomness service, and input
// data, and registers listeners and initializers.
type Builder struct {
	ctx        context.Context
	cfg        *spec.Configuration
	scenario   string
	clock      *Clock
	table      *Table
	values     *Values
	randomness *RandomnessManager
	bus        *EventBus
	components map[string]Component

	data     *artifact.View
	openData func() (*artifact.View, error)

	initializers []SimulantInitializer
}

// Context returns the setup context; artifact reads honor it.
func (b *Builder) Context() context.Context { return b.ctx }

// Config returns the run's effective configuration.
func (b *Builder) Config() *spec.Configuration { return b.cfg }

// Scenario returns the intervention scenario of the run.
func (b *Builder) Scenario() string { return b.scenario }

// Clock returns the simulation clock.
func (b *Builder) Clock() *Clock { return b.clock }

// Population returns the population table.
func (b *Builder) Population() *Table { return b.table }

// Values returns the pipeline registry.
func (b *Builder) Values() *Values { return b.values }

// Randomness returns the keyed randomness service.
func (b *Builder) Randomness() *RandomnessManager { return b.randomness }

// Component finds another manifest component by name, for components
// that observe or extend one another. Observers use this to reach the
// disease model they report on.
func (b *Builder) Component(name string) (Component, bool) {
	c, ok := b.components[name]
	return c, ok
}

// Data returns the input-data view, opening the artifact on first use.
func (b *Builder) Data() (*artifact.View, error) {
	if b.data != nil {
		return b.data, nil
	}
	if b.openData == nil {
		return nil, fmt.Errorf("no input data artifact configured; set input_data.artifact_path")
	}
	view, err := b.openData()
	if err != nil {
		return nil, err
	}
	b.data = view
	return view, nil
}

// Listen registers a lifecycle listener.
func (b *Builder) Listen(phase Phase, priority int, fn Listener) {
	b.bus.Listen(phase, priority, fn)
}

// AddSimulantInitializer registers an initializer for new simulants.
func (b *Builder) AddSimulantInitializer(fn SimulantInitializer) {
	b.initializers = append(b.initializers, fn)
}

// CreateSimulants grows the population by count rows and runs every
// registered initializer over them. The engine creates the starting
// cohort with atBirth false; fertility components create births with
// atBirth true.
func (b *Builder) CreateSimulants(count int, atBirth bool) (int, int, error) {
	start, end := b.table.Grow(count)
	batch := NewSimulants{Start: start, End: end, AtBirth: atBirth}
	for _, init := range b.initializers {
		if err := init(batch); err != nil {
			return start, end, fmt.Errorf("initializing simulants [%d, %d): %w", start, end, err)
		}
	}
	if b.randomness.Registered() != end {
		return start, end, fmt.Errorf("population grew to %d simulants but only %d have randomness keys", end, b.randomness.Registered())
	}
	return start, end, nil
}
