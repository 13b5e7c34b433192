// Package risk holds the generic exposure machinery: propensity-driven
// categorical risks, the effects they apply to cause rates, and the
// continuous birth-weight and gestational-age exposures derived from
// the joint low birth weight and short gestation risk.
package risk

import (
	"fmt"
	"strings"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

func init() {
	sim.RegisterComponent("Risk", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("Risk takes exactly one argument, the risk entity path")
		}
		return NewRisk(call.Args[0])
	})
}

// splitEntity parses an entity path like "risk_factor.child_wasting"
// into its type and name.
func splitEntity(entity string) (typ, name string, err error) {
	parts := strings.Split(entity, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("entity path %q is not of the form type.name", entity)
	}
	return parts[0], parts[1], nil
}

// splitTarget parses a target path like
// "cause.diarrheal_diseases.incidence_rate" into the affected entity
// and the measure on it.
func splitTarget(target string) (typ, name, measure string, err error) {
	parts := strings.Split(target, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("target path %q is not of the form type.name.measure", target)
	}
	return parts[0], parts[1], parts[2], nil
}

// Risk gives each simulant a persistent propensity and resolves it
// against the artifact's exposure distribution into a category. The
// distribution is exposed on "{risk}.exposure_parameters" so treatment
// and intervention components can shift it; the resolved category comes
// out of "{risk}.exposure" and stays stable for a simulant unless the
// distribution moves across their propensity.
type Risk struct {
	typ  string
	name string

	clock *sim.Clock
	pop   *sim.Table
	age   sim.FloatCol
	sex   sim.StringCol

	col    sim.FloatCol
	stream *sim.Stream

	distribution *artifact.CategoryLookup
	params       *sim.VectorPipeline
	propensity   *sim.Pipeline
	exposure     *sim.CategoryPipeline

	buf []float64
}

// NewRisk builds the exposure component for a risk entity path.
func NewRisk(entity string) (*Risk, error) {
	typ, name, err := splitEntity(entity)
	if err != nil {
		return nil, err
	}
	return &Risk{typ: typ, name: name}, nil
}

func (r *Risk) Name() string { return "risk." + r.typ + "." + r.name }

func (r *Risk) Setup(b *sim.Builder) error {
	r.clock = b.Clock()
	r.pop = b.Population()

	var err error
	if r.age, err = r.pop.FloatColumn(population.ColAge); err != nil {
		return err
	}
	if r.sex, err = r.pop.StringColumn(population.ColSex); err != nil {
		return err
	}

	data, err := b.Data()
	if err != nil {
		return err
	}
	r.distribution, err = data.CategoryLookup(b.Context(), r.typ+"."+r.name+".exposure")
	if err != nil {
		return fmt.Errorf("loading %s exposure: %w", r.name, err)
	}

	r.col = r.pop.AddFloatColumn(r.name+"_propensity", 0)
	r.stream = b.Randomness().Stream("initial_" + r.name + "_propensity")
	b.AddSimulantInitializer(func(batch sim.NewSimulants) error {
		for i := batch.Start; i < batch.End; i++ {
			r.col.Set(i, r.stream.Draw(i))
		}
		return nil
	})

	r.params = b.Values().Vector(r.name + ".exposure_parameters")
	r.params.SetCategories(r.distribution.Categories())
	r.params.SetSource(func(i int, out []float64) {
		r.distribution.At(r.sex.Get(i), r.age.Get(i), r.year(), out)
	})

	r.propensity = b.Values().Pipeline(r.name + ".propensity")
	r.propensity.SetSource(r.col.Get)

	r.exposure = b.Values().Category(r.name + ".exposure")
	r.exposure.SetSource(r.resolve)
	return nil
}

// resolve walks the cumulative exposure distribution and returns the
// category whose band contains the simulant's propensity. Probabilities
// past the last category land in the last category, so distributions
// that do not quite sum to one stay total.
func (r *Risk) resolve(i int) string {
	r.buf = r.params.Values(i, r.buf)
	p := r.propensity.Value(i)
	cats := r.params.Categories()
	cum := 0.0
	for k, w := range r.buf {
		cum += w
		if p < cum {
			return cats[k]
		}
	}
	return cats[len(cats)-1]
}

func (r *Risk) year() float64 {
	return float64(r.clock.Now().Year())
}
