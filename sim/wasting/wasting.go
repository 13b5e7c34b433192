// Package wasting implements the child wasting risk as a four-state
// machine over the GBD exposure categories. Transition rates come from
// equilibrium equations that balance state occupancy against exposure
// prevalence, mortality, and treatment flows, so the simulated
// distribution holds at the artifact's exposure in the baseline
// scenario. Recovery rates read each simulant's treatment coverage, so
// shifting coverage moves simulants out of wasting faster without
// touching the calibrated incidence flows.
package wasting

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/disease"
	"github.com/ihmeuw/vivarium-compass-sam/sim/params"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// StateColumn is the population column holding the wasting state, and
// the model name in pipelines and streams.
const StateColumn = "child_wasting"

// Wasting states. Each corresponds to one exposure category of the
// child wasting risk.
const (
	Susceptible = "susceptible_to_child_wasting"
	Mild        = "mild_child_wasting"
	Moderate    = "moderate_acute_malnutrition"
	Severe      = "severe_acute_malnutrition"
)

// Pipelines the model registers. The exposure pipeline renders the
// current state as its risk category; the parameters pipeline carries
// the initialization distribution that prevention components shift.
const (
	ExposurePipeline       = "child_wasting.exposure"
	ExposureParamsPipeline = "child_wasting.exposure_parameters"
)

// Treatment coverage contract. The WastingTreatment component sources
// the coverage pipeline; remission rates read it per simulant. Cat1 is
// no program, cat2 the baseline program, cat3 the alternative program.
const (
	TreatmentCoveragePipeline = "wasting_treatment.exposure"
	TreatmentUncovered        = "cat1"
)

// Artifact keys the model reads beyond the per-cause mortality inputs.
const (
	KeyExposure = "risk_factor.child_wasting.exposure"
	KeyPEMEMR   = "cause.protein_energy_malnutrition.excess_mortality_rate"
	KeyPEMCSMR  = "cause.protein_energy_malnutrition.cause_specific_mortality_rate"

	keyMAMDisability = "sequela.moderate_acute_malnutrition.disability_weight"
	keySAMDisability = "sequela.severe_acute_malnutrition.disability_weight"

	// PEMCause is the hazard slot both malnutrition states feed, so
	// wasting deaths report as protein energy malnutrition.
	PEMCause = "protein_energy_malnutrition"
)

// Transition rate pipelines, named from their endpoint states.
const (
	MildIncidencePipeline = Mild + ".incidence_rate"
	MildRemissionPipeline = Mild + ".remission_rate"
	MAMIncidencePipeline  = Mild + "_to_" + Moderate + ".transition_rate"
	MAMRemissionPipeline  = Moderate + "_to_" + Mild + ".transition_rate"
	SAMIncidencePipeline  = Moderate + "_to_" + Severe + ".transition_rate"
	SAMUntreatedPipeline  = Severe + "_to_" + Moderate + ".transition_rate"
	SAMTreatedPipeline    = Severe + "_to_" + Mild + ".transition_rate"
)

func init() {
	sim.RegisterComponent("ChildWasting", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("ChildWasting takes no arguments")
		}
		return NewChildWasting(), nil
	})
}

// CategoryOf maps a wasting state to its risk exposure category.
func CategoryOf(state string) string {
	switch state {
	case Susceptible:
		return "cat4"
	case Mild:
		return "cat3"
	case Moderate:
		return "cat2"
	case Severe:
		return "cat1"
	}
	panic(fmt.Sprintf("wasting: no category for state %q", state))
}

// stateOf maps a risk exposure category to its wasting state.
func stateOf(category string) (string, error) {
	switch category {
	case "cat4":
		return Susceptible, nil
	case "cat3":
		return Mild, nil
	case "cat2":
		return Moderate, nil
	case "cat1":
		return Severe, nil
	}
	return "", fmt.Errorf("wasting: no state for category %q", category)
}

// ChildWasting is the wasting risk model component.
type ChildWasting struct {
	machine *disease.Machine

	clock *sim.Clock
	pop   *sim.Table
	age   sim.FloatCol
	sex   sim.StringCol

	exposure *artifact.CategoryLookup
	birth    *artifact.CategoryLookup

	params     *sim.VectorPipeline
	coverage   *sim.CategoryPipeline
	initStream *sim.Stream

	rates *rateSet

	buf []float64
}

// NewChildWasting builds the wasting model. Severe and moderate acute
// malnutrition carry disability and protein energy malnutrition excess
// mortality; mild wasting is a pass-through with neither.
func NewChildWasting() *ChildWasting {
	c := &ChildWasting{}
	c.machine = &disease.Machine{
		Column: StateColumn,
		States: []*disease.State{
			{Name: Susceptible},
			{Name: Mild},
			{
				Name:                Moderate,
				DisabilityWeightKey: keyMAMDisability,
				ExcessMortalityKey:  KeyPEMEMR,
				CauseOfDeath:        PEMCause,
			},
			{
				Name:                Severe,
				DisabilityWeightKey: keySAMDisability,
				ExcessMortalityKey:  KeyPEMEMR,
				CauseOfDeath:        PEMCause,
			},
		},
		Transitions: []*disease.Transition{
			{From: Susceptible, To: Mild, RateName: MildIncidencePipeline},
			{From: Mild, To: Moderate, RateName: MAMIncidencePipeline},
			{From: Mild, To: Susceptible, RateName: MildRemissionPipeline},
			{From: Moderate, To: Severe, RateName: SAMIncidencePipeline},
			{From: Moderate, To: Mild, RateName: MAMRemissionPipeline},
			{From: Severe, To: Moderate, RateName: SAMUntreatedPipeline},
			{From: Severe, To: Mild, RateName: SAMTreatedPipeline},
		},
		InitialState: c.initialState,
	}
	return c
}

func (c *ChildWasting) Name() string { return "disease_model." + StateColumn }

// Model exposes the underlying machine for observers.
func (c *ChildWasting) Model() *disease.Machine { return c.machine }

func (c *ChildWasting) Setup(b *sim.Builder) error {
	c.clock = b.Clock()
	c.pop = b.Population()

	var err error
	if c.age, err = c.pop.FloatColumn(population.ColAge); err != nil {
		return err
	}
	if c.sex, err = c.pop.StringColumn(population.ColSex); err != nil {
		return err
	}

	data, err := b.Data()
	if err != nil {
		return err
	}
	if c.exposure, err = data.CategoryLookup(b.Context(), KeyExposure); err != nil {
		return fmt.Errorf("loading wasting exposure: %w", err)
	}
	if c.birth, err = birthExposure(b, data); err != nil {
		return err
	}

	if err := c.machine.Setup(b); err != nil {
		return err
	}
	state, err := c.pop.StringColumn(StateColumn)
	if err != nil {
		return err
	}

	c.params = b.Values().Vector(ExposureParamsPipeline)
	c.params.SetCategories(c.exposure.Categories())
	c.params.SetSource(func(i int, out []float64) {
		c.exposure.At(c.sex.Get(i), c.age.Get(i), c.year(), out)
	})

	exposure := b.Values().Category(ExposurePipeline)
	exposure.SetSource(func(i int) string { return CategoryOf(state.Get(i)) })

	c.coverage = b.Values().Category(TreatmentCoveragePipeline)
	c.initStream = b.Randomness().Stream(StateColumn + "_initial_states")

	inputs, err := loadRateInputs(b, data, c.exposure)
	if err != nil {
		return err
	}
	bins, err := data.AgeBins(b.Context())
	if err != nil {
		return fmt.Errorf("loading age bins: %w", err)
	}
	draw := b.Config().InputData.InputDrawNumber
	c.rates, err = buildRates(inputs, bins, c.clock, drawParams{
		txCoverage:  params.BaselineTxCoverage.Value(draw),
		samEfficacy: params.BaselineSAMTxEfficacy.Value(draw),
		mamEfficacy: params.BaselineMAMTxEfficacy.Value(draw),
		samK:        params.SAMK.Value(draw),
	})
	if err != nil {
		return err
	}
	c.bindRates(b)
	return nil
}

// bindRates sources the transition pipelines from the computed rate
// tables. Remission out of malnutrition reads the simulant's treatment
// coverage: covered simulants recover through their program, uncovered
// simulants through the untreated pathway.
func (c *ChildWasting) bindRates(b *sim.Builder) {
	plain := func(name string, l *artifact.Lookup) {
		b.Values().Pipeline(name).SetSource(func(i int) float64 {
			return l.At(c.sex.Get(i), c.age.Get(i), c.year())
		})
	}
	plain(MildIncidencePipeline, c.rates.mildIncidence)
	plain(MildRemissionPipeline, c.rates.mildRemission)
	plain(MAMIncidencePipeline, c.rates.mamIncidence)
	plain(SAMIncidencePipeline, c.rates.samIncidence)

	b.Values().Pipeline(MAMRemissionPipeline).SetSource(func(i int) float64 {
		l := c.rates.mamRemissionUncovered
		if c.covered(i) {
			l = c.rates.mamRemissionCovered
		}
		return l.At(c.sex.Get(i), c.age.Get(i), c.year())
	})
	b.Values().Pipeline(SAMTreatedPipeline).SetSource(func(i int) float64 {
		if !c.covered(i) {
			return 0
		}
		return c.rates.samTreatedRemission.At(c.sex.Get(i), c.age.Get(i), c.year())
	})
	b.Values().Pipeline(SAMUntreatedPipeline).SetSource(func(i int) float64 {
		if c.covered(i) {
			return 0
		}
		return c.rates.samUntreatedRemission.At(c.sex.Get(i), c.age.Get(i), c.year())
	})
}

func (c *ChildWasting) covered(i int) bool {
	return c.coverage.Value(i) != TreatmentUncovered
}

// initialState draws the starting state from the exposure distribution:
// newborns from the distribution of the age group ending at the wasting
// start age, everyone else from the parameters pipeline at their own
// age, so prevention coverage carries into initialization.
func (c *ChildWasting) initialState(i int, atBirth bool) (string, error) {
	var cats []string
	if atBirth {
		c.buf = c.birth.At(c.sex.Get(i), c.age.Get(i), c.year(), c.buf)
		cats = c.birth.Categories()
	} else {
		c.buf = c.params.Values(i, c.buf)
		cats = c.params.Categories()
	}
	return stateOf(cats[c.initStream.Choice(i, c.buf)])
}

func (c *ChildWasting) year() float64 {
	return float64(c.clock.Now().Year())
}

// birthExposure builds the newborn initialization distribution from the
// exposure rows of the age bins ending at the wasting start age,
// rebased to cover ages from birth.
func birthExposure(b *sim.Builder, data *artifact.View) (*artifact.CategoryLookup, error) {
	rows, err := data.Rows(b.Context(), KeyExposure)
	if err != nil {
		return nil, fmt.Errorf("loading wasting exposure rows: %w", err)
	}
	var birth []artifact.Row
	for _, r := range rows {
		if r.AgeEnd == params.WastingStartAge {
			r.AgeStart = 0
			birth = append(birth, r)
		}
	}
	if len(birth) == 0 {
		return nil, fmt.Errorf("wasting exposure has no age bin ending at %g for birth prevalence", params.WastingStartAge)
	}
	lookup, err := artifact.NewCategoryLookup(KeyExposure+"/birth", birth, 0, true)
	if err != nil {
		return nil, fmt.Errorf("building wasting birth prevalence: %w", err)
	}
	return lookup, nil
}
