package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// Options override model-specification settings for one run. Zero values
// leave the specification's own settings in place.
type Options struct {
	ArtifactPath string
	InputDraw    *int
	RandomSeed   *int64
	Scenario     string
}

// Observation is the outcome of one run: the accumulated observer columns
// plus the identity of the run that produced them.
type Observation struct {
	RunID      string             `json:"run_id"`
	Scenario   string             `json:"scenario"`
	InputDraw  int                `json:"input_draw"`
	RandomSeed int64              `json:"random_seed"`
	Steps      int                `json:"steps"`
	Columns    map[string]float64 `json:"columns"`
}

// Add accumulates into a named column.
func (o *Observation) Add(name string, v float64) {
	o.Columns[name] += v
}

// Set assigns a named column.
func (o *Observation) Set(name string, v float64) {
	o.Columns[name] = v
}

// Simulator drives one simulation run: it instantiates the manifest's
// components, sets them up against a shared builder, steps the clock
// through the lifecycle phases, and collects the final observation.
type Simulator struct {
	Spec       *spec.ModelSpec
	Config     spec.Configuration
	Components []Component
	Clock      *Clock
	Population *Table
	Values     *Values
	Randomness *RandomnessManager
	RunID      string

	builder *Builder
	bus     *EventBus
	store   *artifact.Store
	ready   bool
}

// NewSimulator validates the specification with opts applied and builds
// the run's services. Components are instantiated but not yet set up.
func NewSimulator(ms *spec.ModelSpec, opts Options) (*Simulator, error) {
	cfg := ms.Configuration
	if opts.ArtifactPath != "" {
		cfg.InputData.ArtifactPath = opts.ArtifactPath
	}
	if opts.InputDraw != nil {
		cfg.InputData.InputDrawNumber = *opts.InputDraw
	}
	if opts.RandomSeed != nil {
		cfg.Randomness.RandomSeed = *opts.RandomSeed
	}
	if opts.Scenario != "" {
		cfg.Intervention.Scenario = opts.Scenario
	}

	effective := &spec.ModelSpec{Components: ms.Components, Configuration: cfg}
	if err := effective.Validate(); err != nil {
		return nil, err
	}
	components, err := ResolveComponents(ms.Components)
	if err != nil {
		return nil, err
	}

	clock := NewClock(cfg.Time)
	s := &Simulator{
		Spec:       ms,
		Config:     cfg,
		Components: components,
		Clock:      clock,
		Population: NewTable(),
		Values:     NewValues(),
		Randomness: NewRandomnessManager(cfg.Randomness, clock),
		RunID:      uuid.NewString(),
		bus:        NewEventBus(),
	}
	byName := make(map[string]Component, len(components))
	for _, c := range components {
		if _, dup := byName[c.Name()]; dup {
			return nil, fmt.Errorf("two components named %s in the manifest", c.Name())
		}
		byName[c.Name()] = c
	}
	s.builder = &Builder{
		ctx:        context.Background(),
		cfg:        &s.Config,
		scenario:   cfg.Intervention.Scenario,
		clock:      s.Clock,
		table:      s.Population,
		values:     s.Values,
		randomness: s.Randomness,
		bus:        s.bus,
		components: byName,
		openData:   s.openData,
	}
	return s, nil
}

func (s *Simulator) openData() (*artifact.View, error) {
	path := s.Config.InputData.ArtifactPath
	if path == "" {
		return nil, fmt.Errorf("no input data artifact configured; set input_data.artifact_path")
	}
	store, err := artifact.Open(path)
	if err != nil {
		return nil, err
	}
	s.store = store
	return artifact.NewView(store,
		s.Config.InputData.InputDrawNumber,
		s.Config.Interpolation.Order,
		s.Config.Interpolation.Extrapolate), nil
}

// Setup runs every component's Setup in manifest order, checks pipeline
// wiring, and creates the starting cohort. Safe to call once; Run calls
// it when needed.
func (s *Simulator) Setup(ctx context.Context) error {
	if s.ready {
		return nil
	}
	s.builder.ctx = ctx
	for _, c := range s.Components {
		logrus.Debugf("setting up component %s", c.Name())
		if err := c.Setup(s.builder); err != nil {
			return fmt.Errorf("component %s: %w", c.Name(), err)
		}
	}
	if err := s.Values.CheckSources(); err != nil {
		return err
	}
	if _, _, err := s.builder.CreateSimulants(s.Config.Population.PopulationSize, false); err != nil {
		return err
	}
	logrus.Infof("initialized population of %d simulants", s.Population.Len())
	s.ready = true
	return nil
}

// Run steps the simulation from start to end and returns the final
// observation. The context cancels between steps.
func (s *Simulator) Run(ctx context.Context) (*Observation, error) {
	if err := s.Setup(ctx); err != nil {
		return nil, err
	}
	logrus.Infof("run %s: scenario %s, draw %d, seed %d, %d steps of %.3g days",
		s.RunID, s.Config.Intervention.Scenario, s.Config.InputData.InputDrawNumber,
		s.Config.Randomness.RandomSeed, s.Clock.TotalSteps(), s.Clock.StepDays())
	for !s.Clock.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := Event{Time: s.Clock.StepEnd(), Step: s.Clock.Step(), Dt: s.Clock.StepDays()}
		s.bus.Fire(PhasePrepare, ev)
		s.bus.Fire(PhaseTimeStep, ev)
		s.bus.Fire(PhaseCleanup, ev)
		s.bus.Fire(PhaseCollectMetrics, ev)
		s.Clock.Advance()
		logrus.Debugf("completed step %d of %d", s.Clock.Step(), s.Clock.TotalSteps())
	}
	return s.Finalize(), nil
}

// Finalize assembles the observation from every reporting component.
func (s *Simulator) Finalize() *Observation {
	obs := &Observation{
		RunID:      s.RunID,
		Scenario:   s.Config.Intervention.Scenario,
		InputDraw:  s.Config.InputData.InputDrawNumber,
		RandomSeed: s.Config.Randomness.RandomSeed,
		Steps:      s.Clock.Step(),
		Columns:    make(map[string]float64),
	}
	for _, c := range s.Components {
		if r, ok := c.(Reporter); ok {
			r.Report(obs)
		}
	}
	return obs
}

// Close releases the artifact handle, if one was opened.
func (s *Simulator) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
