package risk

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

// LBWSGName is the joint risk whose categorical exposure the birth
// weight and gestational age components decompose.
const LBWSGName = "low_birth_weight_and_short_gestation"

func init() {
	sim.RegisterComponent("LowBirthWeight", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("LowBirthWeight takes no arguments")
		}
		return NewLowBirthWeight(), nil
	})
	sim.RegisterComponent("ShortGestation", func(call spec.ComponentCall) (sim.Component, error) {
		if len(call.Args) != 0 {
			return nil, fmt.Errorf("ShortGestation takes no arguments")
		}
		return NewShortGestation(), nil
	})
}

// span is one half-open interval from a joint category description.
type span struct{ lo, hi float64 }

var intervalPattern = regexp.MustCompile(`\[([0-9.]+), ([0-9.]+)\)`)

// parseCategoryDescription reads the two intervals out of a category
// description such as "Birth prevalence - [34, 36) wks, [2000, 2500) g":
// gestational age in weeks first, birth weight in grams second.
func parseCategoryDescription(desc string) (weeks, grams span, err error) {
	matches := intervalPattern.FindAllStringSubmatch(desc, -1)
	if len(matches) != 2 {
		return span{}, span{}, fmt.Errorf("category description %q does not carry two intervals", desc)
	}
	var spans [2]span
	for k, m := range matches {
		lo, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return span{}, span{}, fmt.Errorf("category description %q: %w", desc, err)
		}
		hi, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return span{}, span{}, fmt.Errorf("category description %q: %w", desc, err)
		}
		spans[k] = span{lo: lo, hi: hi}
	}
	return spans[0], spans[1], nil
}

// LBWSGExposure derives one continuous axis of the joint low birth
// weight and short gestation exposure. Each simulant gets their own
// propensity, and their exposure interpolates that propensity across
// the axis interval of their joint category. The manifest must declare
// Risk('risk_factor.low_birth_weight_and_short_gestation') to source
// the joint category pipeline.
type LBWSGExposure struct {
	name string
	axis func(weeks, grams span) span

	col        sim.FloatCol
	stream     *sim.Stream
	joint      *sim.CategoryPipeline
	propensity *sim.Pipeline
	spans      map[string]span
}

// NewLowBirthWeight builds the birth weight exposure in grams.
func NewLowBirthWeight() *LBWSGExposure {
	return &LBWSGExposure{
		name: "low_birth_weight",
		axis: func(_, grams span) span { return grams },
	}
}

// NewShortGestation builds the gestational age exposure in weeks.
func NewShortGestation() *LBWSGExposure {
	return &LBWSGExposure{
		name: "short_gestation",
		axis: func(weeks, _ span) span { return weeks },
	}
}

func (l *LBWSGExposure) Name() string { return "risk.risk_factor." + l.name }

func (l *LBWSGExposure) Setup(b *sim.Builder) error {
	data, err := b.Data()
	if err != nil {
		return err
	}
	var descriptions map[string]string
	if err := data.Meta(b.Context(), "risk_factor."+LBWSGName+".categories", &descriptions); err != nil {
		return fmt.Errorf("loading %s categories: %w", LBWSGName, err)
	}
	l.spans = make(map[string]span, len(descriptions))
	for cat, desc := range descriptions {
		weeks, grams, err := parseCategoryDescription(desc)
		if err != nil {
			return fmt.Errorf("%s category %s: %w", LBWSGName, cat, err)
		}
		l.spans[cat] = l.axis(weeks, grams)
	}

	pop := b.Population()
	l.col = pop.AddFloatColumn(l.name+"_propensity", 0)
	l.stream = b.Randomness().Stream("initial_" + l.name + "_propensity")
	b.AddSimulantInitializer(func(batch sim.NewSimulants) error {
		for i := batch.Start; i < batch.End; i++ {
			l.col.Set(i, l.stream.Draw(i))
		}
		return nil
	})

	l.joint = b.Values().Category(LBWSGName + ".exposure")

	l.propensity = b.Values().Pipeline(l.name + ".propensity")
	l.propensity.SetSource(l.col.Get)

	exposure := b.Values().Pipeline(l.name + ".exposure")
	exposure.SetSource(l.exposureFor)
	return nil
}

// exposureFor interpolates the simulant's propensity across their joint
// category's interval on this axis.
func (l *LBWSGExposure) exposureFor(i int) float64 {
	cat := l.joint.Value(i)
	sp, ok := l.spans[cat]
	if !ok {
		panic(fmt.Sprintf("risk: %s category %q has no %s interval", LBWSGName, cat, l.name))
	}
	return sp.lo + l.propensity.Value(i)*(sp.hi-sp.lo)
}
