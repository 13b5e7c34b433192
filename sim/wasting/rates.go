package wasting

import (
	"fmt"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/params"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
)

// mortalityCauses are the acute causes whose deaths concentrate in the
// wasted categories through their relative risks. Their category-level
// prevalence is reconstructed as incidence times duration.
var mortalityCauses = []struct {
	name     string
	duration float64
}{
	{"diarrheal_diseases", params.DiarrheaDuration},
	{"measles", params.MeaslesDuration},
	{"lower_respiratory_infections", params.LRIDuration},
}

type causeInputs struct {
	name      string
	duration  float64
	incidence *artifact.Lookup
	emr       *artifact.Lookup
	csmr      *artifact.Lookup
	rr        *artifact.CategoryLookup
	paf       *artifact.Lookup
}

type rateInputs struct {
	exposure *artifact.CategoryLookup
	acmr     *artifact.Lookup
	causes   []causeInputs
	pemEMR   *artifact.Lookup
	pemCSMR  *artifact.Lookup
}

// drawParams holds the treatment model parameters realized for one
// input draw.
type drawParams struct {
	txCoverage  float64
	samEfficacy float64
	mamEfficacy float64
	samK        float64
}

// rateSet is the model's transition rates tabulated per sex, age bin,
// and calendar year. Incidence and mild remission apply to everyone;
// the remaining remissions are the per-arm rates a simulant gets once
// their treatment coverage is known.
type rateSet struct {
	mildIncidence *artifact.Lookup
	mamIncidence  *artifact.Lookup
	samIncidence  *artifact.Lookup
	mildRemission *artifact.Lookup

	mamRemissionCovered   *artifact.Lookup
	mamRemissionUncovered *artifact.Lookup
	samTreatedRemission   *artifact.Lookup
	samUntreatedRemission *artifact.Lookup
}

func loadRateInputs(b *sim.Builder, data *artifact.View, exposure *artifact.CategoryLookup) (*rateInputs, error) {
	ctx := b.Context()
	if n := len(exposure.Categories()); n != 4 {
		return nil, fmt.Errorf("wasting exposure has %d categories, want 4", n)
	}
	in := &rateInputs{exposure: exposure}

	var err error
	if in.acmr, err = data.Lookup(ctx, population.KeyACMR); err != nil {
		return nil, fmt.Errorf("loading all-cause mortality: %w", err)
	}
	if in.pemEMR, err = data.Lookup(ctx, KeyPEMEMR); err != nil {
		return nil, fmt.Errorf("loading protein energy malnutrition mortality: %w", err)
	}
	if in.pemCSMR, err = data.Lookup(ctx, KeyPEMCSMR); err != nil {
		return nil, fmt.Errorf("loading protein energy malnutrition mortality: %w", err)
	}

	for _, c := range mortalityCauses {
		ci := causeInputs{name: c.name, duration: c.duration}
		if ci.incidence, err = data.Lookup(ctx, "cause."+c.name+".incidence_rate"); err != nil {
			return nil, fmt.Errorf("loading %s inputs: %w", c.name, err)
		}
		if ci.emr, err = data.Lookup(ctx, "cause."+c.name+".excess_mortality_rate"); err != nil {
			return nil, fmt.Errorf("loading %s inputs: %w", c.name, err)
		}
		if ci.csmr, err = data.Lookup(ctx, "cause."+c.name+".cause_specific_mortality_rate"); err != nil {
			return nil, fmt.Errorf("loading %s inputs: %w", c.name, err)
		}
		if ci.rr, err = data.CategoryLookup(ctx, "risk_factor.child_wasting.relative_risk."+c.name); err != nil {
			return nil, fmt.Errorf("loading %s inputs: %w", c.name, err)
		}
		if n := len(ci.rr.Categories()); n != 4 {
			return nil, fmt.Errorf("wasting relative risk on %s has %d categories, want 4", c.name, n)
		}
		if ci.paf, err = data.Lookup(ctx, "risk_factor.child_wasting.population_attributable_fraction."+c.name); err != nil {
			return nil, fmt.Errorf("loading %s inputs: %w", c.name, err)
		}
		in.causes = append(in.causes, ci)
	}
	return in, nil
}

// stratumRates are the annual transition rates for one sex, age bin,
// and year stratum, in the order of rateSet's fields.
type stratumRates [8]float64

var rateNames = [8]string{
	"mild_incidence",
	"mam_incidence",
	"sam_incidence",
	"mild_remission",
	"mam_remission_covered",
	"mam_remission_uncovered",
	"sam_treated_remission",
	"sam_untreated_remission",
}

// buildRates solves the equilibrium equations for every stratum the
// simulation can visit and tabulates the eight transition rates.
func buildRates(in *rateInputs, bins []artifact.AgeBin, clock *sim.Clock, dp drawParams) (*rateSet, error) {
	if len(bins) == 0 {
		return nil, fmt.Errorf("no age bins for wasting rates")
	}
	var rows [8][]artifact.Row
	for _, sex := range []string{population.SexMale, population.SexFemale} {
		for _, bin := range bins {
			for y := clock.Start().Year(); y <= clock.End().Year(); y++ {
				rates := equilibrium(in, sex, bin, float64(y), dp)
				for m, v := range rates {
					rows[m] = append(rows[m], artifact.Row{
						Sex:       sex,
						AgeStart:  bin.Start,
						AgeEnd:    bin.End,
						YearStart: y,
						YearEnd:   y + 1,
						Value:     v,
					})
				}
			}
		}
	}

	var lookups [8]*artifact.Lookup
	for m, name := range rateNames {
		l, err := artifact.NewLookup("child_wasting/"+name, rows[m], 0, true)
		if err != nil {
			return nil, fmt.Errorf("building wasting %s rates: %w", name, err)
		}
		lookups[m] = l
	}
	return &rateSet{
		mildIncidence:         lookups[0],
		mamIncidence:          lookups[1],
		samIncidence:          lookups[2],
		mildRemission:         lookups[3],
		mamRemissionCovered:   lookups[4],
		mamRemissionUncovered: lookups[5],
		samTreatedRemission:   lookups[6],
		samUntreatedRemission: lookups[7],
	}, nil
}

// equilibrium computes one stratum's rates. Prevalences use the GBD
// category order, so index 0 is severe (cat1), 1 moderate (cat2),
// 2 mild (cat3), and 3 susceptible (cat4). Incidence rates are solved
// in daily probability space from the steady-state balance of each
// category: flow in from remission, treatment, and birth replacement
// equals flow out through progression and category-specific death.
func equilibrium(in *rateInputs, sex string, bin artifact.AgeBin, year float64, dp drawParams) stratumRates {
	// Transitions start at six months. Younger simulants keep their
	// birth state.
	if bin.End <= params.WastingStartAge {
		return stratumRates{}
	}
	age := (bin.Start + bin.End) / 2

	var f [4]float64
	in.exposure.At(sex, age, year, f[:])
	acmr := in.acmr.At(sex, age, year)
	adj := sim.RateToProbability(acmr, 1)

	var ap [4]float64
	for k := range f {
		ap[k] = f[k] / (1 + adj)
	}

	// Daily death probability by category. Each acute cause's excess
	// mortality weighs in proportional to its category prevalence;
	// protein energy malnutrition is intrinsic to the wasted states.
	var d [4]float64
	var rr [4]float64
	for k := range d {
		mr := acmr
		for _, c := range in.causes {
			dur := c.duration
			if bin.Start == 0 {
				dur = params.EarlyNeonatalCauseDuration
			}
			c.rr.At(sex, age, year, rr[:])
			prev := rr[k] * c.incidence.At(sex, age, year) * (1 - c.paf.At(sex, age, year)) * dur / sim.DaysPerYear
			mr += c.emr.At(sex, age, year)*prev - c.csmr.At(sex, age, year)
		}
		pem := 0.0
		if k < 2 {
			pem = 1.0
		}
		mr += in.pemEMR.At(sex, age, year)*pem - in.pemCSMR.At(sex, age, year)
		d[k] = sim.RateToProbability(mr, 1)
	}

	recSAM, recMAM := params.SAMTxRecoveryTimeOver6mo, params.MAMTxRecoveryTimeOver6mo
	if bin.Start < params.WastingStartAge {
		recSAM, recMAM = params.SAMTxRecoveryTimeUnder6mo, params.MAMTxRecoveryTimeUnder6mo
	}

	// Population-average remission rates at baseline coverage.
	t1 := dp.txCoverage * dp.samEfficacy * sim.DaysPerYear / recSAM
	t1d := sim.RateToProbability(t1, 1)

	effMAM := dp.txCoverage * dp.mamEfficacy
	r3 := effMAM*sim.DaysPerYear/recMAM + (1-effMAM)*sim.DaysPerYear/params.MAMUxRecoveryTime
	r3d := sim.RateToProbability(r3, 1)

	r1d := 1 / params.MildWastingUxRecoveryTime

	// Total exit from severe is pinned at K, so the untreated pathway
	// absorbs what treatment and death leave over.
	r2 := dp.samK - t1 - sim.ProbabilityToRate(d[0], 1)
	r2d := sim.RateToProbability(r2, 1)

	i3 := adj*f[3]/ap[3] + ap[2]*r1d/ap[3] - d[3]
	i2 := adj*f[2]/ap[2] + adj*f[3]/ap[2] + ap[0]*t1d/ap[2] + ap[1]*r3d/ap[2] - d[2] - ap[3]*d[3]/ap[2]
	i1 := adj*(f[1]+f[2]+f[3])/ap[1] + ap[0]*(r2d+t1d)/ap[1] - d[1] - ap[2]*d[2]/ap[1] - ap[3]*d[3]/ap[1]

	// Per-arm remission rates. Averaged over baseline coverage these
	// reproduce t1, r2, and r3.
	samTreated := dp.samEfficacy * sim.DaysPerYear / recSAM
	samUntreated := 0.0
	if dp.txCoverage < 1 {
		samUntreated = r2 / (1 - dp.txCoverage)
	}
	mamCovered := dp.mamEfficacy*sim.DaysPerYear/recMAM + (1-dp.mamEfficacy)*sim.DaysPerYear/params.MAMUxRecoveryTime
	mamUncovered := sim.DaysPerYear / params.MAMUxRecoveryTime

	return stratumRates{
		sim.ProbabilityToRate(i3, 1),
		sim.ProbabilityToRate(i2, 1),
		sim.ProbabilityToRate(i1, 1),
		sim.ProbabilityToRate(r1d, 1),
		mamCovered,
		mamUncovered,
		samTreated,
		samUntreated,
	}
}
