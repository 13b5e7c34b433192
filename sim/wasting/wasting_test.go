package wasting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/artifact"
	"github.com/ihmeuw/vivarium-compass-sam/sim/internal/testutil"
	"github.com/ihmeuw/vivarium-compass-sam/sim/params"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"

	_ "github.com/ihmeuw/vivarium-compass-sam/sim/risk"
)

func wastingSimulator(t *testing.T, popSize int) *sim.Simulator {
	t.Helper()
	yaml := testutil.SpecYAML(testutil.BuildArtifact(t), []string{
		"BasePopulation()",
		"Mortality()",
		"Risk('risk_factor.wasting_treatment')",
		"ChildWasting()",
	}, nil)
	ms, err := spec.Parse([]byte(yaml))
	require.NoError(t, err)
	if popSize > 0 {
		ms.Configuration.Population.PopulationSize = popSize
	}
	s, err := sim.NewSimulator(ms, sim.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCategoryStateRoundTrip(t *testing.T) {
	for _, state := range []string{Susceptible, Mild, Moderate, Severe} {
		got, err := stateOf(CategoryOf(state))
		require.NoError(t, err)
		require.Equal(t, state, got)
	}
	_, err := stateOf("cat9")
	require.Error(t, err)
}

func TestEquilibrium_NoTransitionsBeforeStartAge(t *testing.T) {
	for _, bin := range []artifact.AgeBin{
		{Name: "early_neonatal", Start: 0, End: 7.0 / 365.0},
		{Name: "1-5_months", Start: 28.0 / 365.0, End: 0.5},
	} {
		rates := equilibrium(nil, population.SexMale, bin, 2022, drawParams{})
		require.Equal(t, stratumRates{}, rates, "bin %s", bin.Name)
	}
}

func flatTable(v float64) []artifact.Row {
	return []artifact.Row{{Sex: "Both", AgeStart: 0, AgeEnd: 5, YearStart: 2020, YearEnd: 2030, Value: v}}
}

func flatCategorical(vals map[string]float64) []artifact.Row {
	var rows []artifact.Row
	for cat, v := range vals {
		rows = append(rows, artifact.Row{
			Sex: "Both", AgeStart: 0, AgeEnd: 5, YearStart: 2020, YearEnd: 2030,
			Parameter: cat, Value: v,
		})
	}
	return rows
}

func testRateInputs(t *testing.T) *rateInputs {
	t.Helper()
	lookup := func(key string, v float64) *artifact.Lookup {
		l, err := artifact.NewLookup(key, flatTable(v), 0, true)
		require.NoError(t, err)
		return l
	}
	catLookup := func(key string, vals map[string]float64) *artifact.CategoryLookup {
		l, err := artifact.NewCategoryLookup(key, flatCategorical(vals), 0, true)
		require.NoError(t, err)
		return l
	}
	in := &rateInputs{
		exposure: catLookup("exposure", map[string]float64{
			"cat1": 0.03, "cat2": 0.08, "cat3": 0.15, "cat4": 0.74,
		}),
		acmr:    lookup("acmr", 0.02),
		pemEMR:  lookup("pem_emr", 0.6),
		pemCSMR: lookup("pem_csmr", 0.004),
	}
	rr := map[string]float64{"cat1": 8, "cat2": 3, "cat3": 1.5, "cat4": 1}
	for _, c := range mortalityCauses {
		in.causes = append(in.causes, causeInputs{
			name:      c.name,
			duration:  c.duration,
			incidence: lookup(c.name+"_inc", 1.0),
			emr:       lookup(c.name+"_emr", 0.8),
			csmr:      lookup(c.name+"_csmr", 0.005),
			rr:        catLookup(c.name+"_rr", rr),
			paf:       lookup(c.name+"_paf", 0.23),
		})
	}
	return in
}

func TestEquilibrium_TreatmentArmsAverageToPopulationRates(t *testing.T) {
	in := testRateInputs(t)
	dp := drawParams{txCoverage: 0.488, samEfficacy: 0.7, mamEfficacy: 0.731, samK: 6.7}
	bin := artifact.AgeBin{Name: "2_to_4", Start: 2, End: 5}
	rates := equilibrium(in, population.SexFemale, bin, 2022, dp)

	samTreated := rates[6]
	require.InEpsilon(t, dp.samEfficacy*sim.DaysPerYear/params.SAMTxRecoveryTimeOver6mo, samTreated, 1e-12)

	mamPopulation := dp.txCoverage*rates[4] + (1-dp.txCoverage)*rates[5]
	effMAM := dp.txCoverage * dp.mamEfficacy
	wantMAM := effMAM*sim.DaysPerYear/params.MAMTxRecoveryTimeOver6mo +
		(1-effMAM)*sim.DaysPerYear/params.MAMUxRecoveryTime
	require.InEpsilon(t, wantMAM, mamPopulation, 1e-12)

	require.InEpsilon(t, sim.ProbabilityToRate(1/params.MildWastingUxRecoveryTime, 1), rates[3], 1e-12)

	for m, name := range rateNames {
		require.False(t, rates[m] < 0, "%s should be non-negative with calibrated inputs, got %g", name, rates[m])
	}
}

func TestWasting_InitialStatesMatchExposure(t *testing.T) {
	s := wastingSimulator(t, 4000)
	require.NoError(t, s.Setup(context.Background()))

	state, err := s.Population.StringColumn(StateColumn)
	require.NoError(t, err)
	counts := map[string]int{}
	for i := 0; i < s.Population.Len(); i++ {
		counts[state.Get(i)]++
	}
	total := float64(s.Population.Len())
	want := map[string]float64{Severe: 0.03, Moderate: 0.08, Mild: 0.15, Susceptible: 0.74}
	for st, frac := range want {
		require.InDelta(t, frac, float64(counts[st])/total, 0.05, "state %s", st)
	}
}

func TestWasting_RemissionGatesOnTreatmentCoverage(t *testing.T) {
	s := wastingSimulator(t, 2000)
	require.NoError(t, s.Setup(context.Background()))

	age, err := s.Population.FloatColumn(population.ColAge)
	require.NoError(t, err)
	coverage := s.Values.Category(TreatmentCoveragePipeline)
	treated := s.Values.Pipeline(SAMTreatedPipeline)
	untreated := s.Values.Pipeline(SAMUntreatedPipeline)

	covered, uncovered := 0, 0
	for i := 0; i < s.Population.Len(); i++ {
		if age.Get(i) < params.WastingStartAge || age.Get(i) >= 4.5 {
			continue
		}
		if coverage.Value(i) == TreatmentUncovered {
			uncovered++
			require.Zero(t, treated.Value(i), "uncovered simulant %d has a treated remission rate", i)
			require.Greater(t, untreated.Value(i), 0.0)
		} else {
			covered++
			require.Greater(t, treated.Value(i), 0.0)
			require.Zero(t, untreated.Value(i), "covered simulant %d has an untreated remission rate", i)
		}
	}
	require.Greater(t, covered, 100, "baseline coverage should reach part of the cohort")
	require.Greater(t, uncovered, 100)
}

func TestWasting_UnderSixMonthsKeepInitialState(t *testing.T) {
	s := wastingSimulator(t, 2000)
	require.NoError(t, s.Setup(context.Background()))

	age, err := s.Population.FloatColumn(population.ColAge)
	require.NoError(t, err)
	state, err := s.Population.StringColumn(StateColumn)
	require.NoError(t, err)

	// The fixture window is three months, so simulants starting under
	// three months of age stay under the start age throughout.
	initial := map[int]string{}
	for i := 0; i < s.Population.Len(); i++ {
		if age.Get(i) < 0.25 {
			initial[i] = state.Get(i)
		}
	}
	require.NotEmpty(t, initial)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	for i, st := range initial {
		require.Equal(t, st, state.Get(i), "simulant %d transitioned before six months", i)
	}
}

func TestWasting_StatesFlowPastSixMonths(t *testing.T) {
	s := wastingSimulator(t, 2000)
	require.NoError(t, s.Setup(context.Background()))

	age, err := s.Population.FloatColumn(population.ColAge)
	require.NoError(t, err)
	state, err := s.Population.StringColumn(StateColumn)
	require.NoError(t, err)

	initial := map[int]string{}
	for i := 0; i < s.Population.Len(); i++ {
		if age.Get(i) >= params.WastingStartAge {
			initial[i] = state.Get(i)
		}
	}

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	changed := 0
	for i, st := range initial {
		if state.Get(i) != st {
			changed++
		}
	}
	require.Greater(t, changed, 10, "wasting states should turn over past the start age")
}

func TestWasting_ExposureTracksState(t *testing.T) {
	s := wastingSimulator(t, 1000)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	state, err := s.Population.StringColumn(StateColumn)
	require.NoError(t, err)
	exposure := s.Values.Category(ExposurePipeline)
	for i := 0; i < s.Population.Len(); i++ {
		require.Equal(t, CategoryOf(state.Get(i)), exposure.Value(i))
	}
}
