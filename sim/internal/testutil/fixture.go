// Package testutil provides shared test infrastructure for the simulation
// packages: a canned input-data artifact, model-specification rendering,
// and assertion helpers used across the component test packages.
package testutil

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
)

// AgeBins is the age grouping every fixture table uses, matching the
// under-5 grouping of the real input data.
var AgeBins = []artifact.AgeBin{
	{Name: "early_neonatal", Start: 0, End: 7.0 / 365.0},
	{Name: "late_neonatal", Start: 7.0 / 365.0, End: 28.0 / 365.0},
	{Name: "1-5_months", Start: 28.0 / 365.0, End: 0.5},
	{Name: "6-11_months", Start: 0.5, End: 1},
	{Name: "12_to_23_months", Start: 1, End: 2},
	{Name: "2_to_4", Start: 2, End: 5},
}

// Fixture year span of every table.
const (
	YearStart = 2022
	YearEnd   = 2027
)

// perBin emits one row per sex and age bin with a value chosen by fn.
func perBin(fn func(sex string, bin artifact.AgeBin) float64) []artifact.Row {
	var rows []artifact.Row
	for _, sex := range []string{"Male", "Female"} {
		for _, bin := range AgeBins {
			rows = append(rows, artifact.Row{
				Sex: sex, AgeStart: bin.Start, AgeEnd: bin.End,
				YearStart: YearStart, YearEnd: YearEnd,
				Value: fn(sex, bin),
			})
		}
	}
	return rows
}

// flat emits one row per sex and age bin holding the same value.
func flat(v float64) []artifact.Row {
	return perBin(func(string, artifact.AgeBin) float64 { return v })
}

// categorical emits parameterized rows, one per sex, bin, and category.
func categorical(values map[string]float64) []artifact.Row {
	var rows []artifact.Row
	for cat, v := range values {
		for _, r := range flat(v) {
			r.Parameter = cat
			rows = append(rows, r)
		}
	}
	return rows
}

// byAge scales a base value by an age-dependent factor: under-sixth-month
// bins see the full rate, older bins taper off.
func byAge(under6mo, under2, over2 float64) func(string, artifact.AgeBin) float64 {
	return func(_ string, bin artifact.AgeBin) float64 {
		switch {
		case bin.Start < 0.5:
			return under6mo
		case bin.Start < 2:
			return under2
		default:
			return over2
		}
	}
}

// BuildArtifact writes the canned input-data artifact into a temp
// directory and returns its path. The tables cover the demographic
// components, an LRI disease model, the wasting risk with its affected
// causes, wasting treatment, and the joint low birth weight and short
// gestation risk.
func BuildArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture_artifact.db")
	store, err := artifact.Open(path)
	if err != nil {
		t.Fatalf("opening fixture artifact: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	tables := map[string][]artifact.Row{
		"population.structure": flat(10000),
		"population.theoretical_minimum_risk_life_expectancy": perBin(func(_ string, bin artifact.AgeBin) float64 {
			return 88.9 - bin.Start
		}),
		"cause.all_causes.cause_specific_mortality_rate":       perBin(byAge(0.08, 0.02, 0.008)),
		"covariate.live_births_by_sex.estimate":                {{Sex: "Male", YearStart: YearStart, YearEnd: YearEnd, Value: 1800}, {Sex: "Female", YearStart: YearStart, YearEnd: YearEnd, Value: 1800}},
		"cause.lower_respiratory_infections.prevalence":        flat(0.032),
		"cause.lower_respiratory_infections.incidence_rate":    flat(1.2),
		"cause.lower_respiratory_infections.remission_rate":    flat(36.525),
		"cause.lower_respiratory_infections.disability_weight": flat(0.133),
		"cause.lower_respiratory_infections.excess_mortality_rate":        flat(0.9),
		"cause.lower_respiratory_infections.cause_specific_mortality_rate": flat(0.0035),
		"cause.diarrheal_diseases.prevalence":                              flat(0.064),
		"cause.diarrheal_diseases.incidence_rate":                          flat(1.5),
		"cause.diarrheal_diseases.remission_rate":                          flat(36.525),
		"cause.diarrheal_diseases.disability_weight":                       flat(0.188),
		"cause.diarrheal_diseases.excess_mortality_rate":                   flat(0.8),
		"cause.diarrheal_diseases.cause_specific_mortality_rate":           flat(0.006),
		"cause.measles.prevalence":                                         flat(0.008),
		"cause.measles.incidence_rate":                                     flat(0.3),
		"cause.measles.remission_rate":                                     flat(36.525),
		"cause.measles.disability_weight":                                  flat(0.051),
		"cause.measles.excess_mortality_rate":                              flat(1.5),
		"cause.measles.cause_specific_mortality_rate":                      flat(0.001),
		"cause.protein_energy_malnutrition.excess_mortality_rate":          flat(0.6),
		"cause.protein_energy_malnutrition.cause_specific_mortality_rate":  flat(0.004),
		"sequela.moderate_acute_malnutrition.disability_weight":            flat(0.051),
		"sequela.severe_acute_malnutrition.disability_weight":              flat(0.128),
		"risk_factor.child_wasting.exposure": categorical(map[string]float64{
			"cat1": 0.03, "cat2": 0.08, "cat3": 0.15, "cat4": 0.74,
		}),
		"risk_factor.wasting_treatment.exposure": categorical(map[string]float64{
			"cat1": 0.512, "cat2": 0.488, "cat3": 0.0,
		}),
		"risk_factor.low_birth_weight_and_short_gestation.exposure": categorical(map[string]float64{
			"cat1": 0.1, "cat2": 0.9,
		}),
	}
	for _, cause := range []string{"diarrheal_diseases", "measles", "lower_respiratory_infections"} {
		tables["risk_factor.child_wasting.relative_risk."+cause] = categorical(map[string]float64{
			"cat1": 8.0, "cat2": 3.0, "cat3": 1.5, "cat4": 1.0,
		})
		tables["risk_factor.child_wasting.population_attributable_fraction."+cause] = flat(0.23)
	}
	for key, rows := range tables {
		if err := store.WriteRows(ctx, key, 0, rows); err != nil {
			t.Fatalf("writing fixture table %s: %v", key, err)
		}
	}
	if err := store.WriteMeta(ctx, artifact.AgeBinsKey, AgeBins); err != nil {
		t.Fatalf("writing fixture age bins: %v", err)
	}
	lbwsgCategories := map[string]string{
		"cat1": "Birth prevalence - [28, 32) wks, [1500, 2000) g",
		"cat2": "Birth prevalence - [38, 40) wks, [3000, 3500) g",
	}
	if err := store.WriteMeta(ctx, "risk_factor.low_birth_weight_and_short_gestation.categories", lbwsgCategories); err != nil {
		t.Fatalf("writing fixture birth weight categories: %v", err)
	}
	if err := store.WriteMeta(ctx, "metadata.locations", []string{"Ethiopia"}); err != nil {
		t.Fatalf("writing fixture locations: %v", err)
	}
	return path
}

// SpecYAML renders a small model specification running the given
// component calls against an artifact. Metrics blocks are rendered for
// each named observer key.
func SpecYAML(artifactPath string, components []string, metrics []string) string {
	var b strings.Builder
	b.WriteString("components:\n")
	b.WriteString("    vivarium_compass_sam.components:\n")
	for _, c := range components {
		fmt.Fprintf(&b, "        - %s\n", c)
	}
	b.WriteString("configuration:\n")
	b.WriteString("    input_data:\n")
	b.WriteString("        location: Ethiopia\n")
	b.WriteString("        input_draw_number: 0\n")
	fmt.Fprintf(&b, "        artifact_path: %s\n", artifactPath)
	b.WriteString("    interpolation:\n")
	b.WriteString("        order: 0\n")
	b.WriteString("        extrapolate: true\n")
	b.WriteString("    randomness:\n")
	b.WriteString("        map_size: 1000000\n")
	b.WriteString("        key_columns: ['entrance_time', 'age']\n")
	b.WriteString("        random_seed: 8675309\n")
	b.WriteString("    time:\n")
	b.WriteString("        start:\n")
	b.WriteString("            year: 2022\n")
	b.WriteString("            month: 1\n")
	b.WriteString("            day: 1\n")
	b.WriteString("        end:\n")
	b.WriteString("            year: 2022\n")
	b.WriteString("            month: 4\n")
	b.WriteString("            day: 1\n")
	b.WriteString("        step_size: 1\n")
	b.WriteString("    population:\n")
	b.WriteString("        population_size: 500\n")
	b.WriteString("        age_start: 0\n")
	b.WriteString("        age_end: 5\n")
	b.WriteString("        exit_age: 5\n")
	if len(metrics) > 0 {
		b.WriteString("    metrics:\n")
		for _, m := range metrics {
			fmt.Fprintf(&b, "        %s:\n", m)
			b.WriteString("            by_age: true\n")
			b.WriteString("            by_sex: true\n")
			b.WriteString("            by_year: true\n")
		}
	}
	return b.String()
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
