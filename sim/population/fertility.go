package population

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

func init() {
	sim.RegisterComponent("FertilityCrudeBirthRate", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("FertilityCrudeBirthRate takes no arguments")
		}
		return NewFertilityCrudeBirthRate(), nil
	})
}

// yearRate is an annual per-person birth rate over a span of years.
type yearRate struct {
	start, end int
	rate       float64
}

// FertilityCrudeBirthRate adds newborns each step. The location's live
// births over its population give an annual per-person birth rate, which
// scales down to the simulated cohort; the fractional remainder of each
// step's expected births is resolved by stochastic rounding so small
// cohorts still see births at the right long-run rate.
type FertilityCrudeBirthRate struct {
	b     *sim.Builder
	clock *sim.Clock
	pop   *sim.Table

	alive   sim.StringCol
	tracked sim.BoolCol

	rates  []yearRate
	stream *sim.Stream
}

// NewFertilityCrudeBirthRate returns the fertility component.
func NewFertilityCrudeBirthRate() *FertilityCrudeBirthRate {
	return &FertilityCrudeBirthRate{}
}

func (f *FertilityCrudeBirthRate) Name() string { return "fertility_crude_birth_rate" }

func (f *FertilityCrudeBirthRate) Setup(b *sim.Builder) error {
	f.b = b
	f.clock = b.Clock()
	f.pop = b.Population()

	data, err := b.Data()
	if err != nil {
		return err
	}
	births, err := data.Rows(b.Context(), KeyLiveBirths)
	if err != nil {
		return fmt.Errorf("loading live births: %w", err)
	}
	structure, err := data.Rows(b.Context(), KeyStructure)
	if err != nil {
		return fmt.Errorf("loading population structure: %w", err)
	}
	f.rates, err = birthRates(births, structure)
	if err != nil {
		return err
	}

	if f.alive, err = f.pop.StringColumn(ColAlive); err != nil {
		return err
	}
	if f.tracked, err = f.pop.BoolColumn(ColTracked); err != nil {
		return err
	}

	f.stream = b.Randomness().Stream("fertility")
	b.Listen(sim.PhaseTimeStep, sim.PriorityDefault, f.onTimeStep)
	return nil
}

// birthRates divides each year span's live births by its population.
func birthRates(births, structure []artifact.Row) ([]yearRate, error) {
	type span struct{ start, end int }
	totals := make(map[span]float64)
	people := make(map[span]float64)
	for _, r := range births {
		totals[span{r.YearStart, r.YearEnd}] += r.Value
	}
	for _, r := range structure {
		people[span{r.YearStart, r.YearEnd}] += r.Value
	}
	var rates []yearRate
	for sp, b := range totals {
		p, ok := people[sp]
		if !ok || p <= 0 {
			return nil, fmt.Errorf("no population structure for birth years [%d, %d)", sp.start, sp.end)
		}
		rates = append(rates, yearRate{start: sp.start, end: sp.end, rate: b / p})
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("artifact table %s is empty", KeyLiveBirths)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].start < rates[j].start })
	return rates, nil
}

// rateFor returns the birth rate covering a year, clamping to the nearest
// span outside the data.
func (f *FertilityCrudeBirthRate) rateFor(year int) float64 {
	for _, r := range f.rates {
		if year >= r.start && (year < r.end || r.start == r.end && year == r.start) {
			return r.rate
		}
	}
	if year < f.rates[0].start {
		return f.rates[0].rate
	}
	return f.rates[len(f.rates)-1].rate
}

func (f *FertilityCrudeBirthRate) onTimeStep(ev sim.Event) {
	living := 0
	n := f.pop.Len()
	for i := 0; i < n; i++ {
		if f.alive.Is(i, Alive) && f.tracked.Get(i) {
			living++
		}
	}
	if living == 0 {
		return
	}

	mean := f.rateFor(f.clock.Now().Year()) * float64(living) * ev.Dt / sim.DaysPerYear
	count := int(math.Floor(mean))
	if f.stream.DrawKeyless("live_births") < mean-math.Floor(mean) {
		count++
	}
	if count == 0 {
		return
	}
	start, end, err := f.b.CreateSimulants(count, true)
	if err != nil {
		panic(fmt.Sprintf("population: adding %d births: %v", count, err))
	}
	logrus.Debugf("step %d: added %d births as simulants [%d, %d)", ev.Step, count, start, end)
}
