package observer

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/internal/testutil"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"

	_ "github.com/ihmeuw/vivarium-compass-sam/sim/risk"
	_ "github.com/ihmeuw/vivarium-compass-sam/sim/wasting"
)

const lri = "lower_respiratory_infections"

func observerSimulator(t *testing.T, components, metrics []string, popSize int) *sim.Simulator {
	t.Helper()
	yaml := testutil.SpecYAML(testutil.BuildArtifact(t), components, metrics)
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

func sumColumns(obs *sim.Observation, prefix string) float64 {
	var total float64
	for label, v := range obs.Columns {
		if strings.HasPrefix(label, prefix) {
			total += v
		}
	}
	return total
}

// creditedYears recomputes person time from the final population: exit
// time for anyone who died or aged out, the full window for everyone
// else.
func creditedYears(t *testing.T, s *sim.Simulator) float64 {
	t.Helper()
	exit, err := s.Population.FloatColumn(population.ColExitTime)
	require.NoError(t, err)
	window := s.Clock.StepDays() * float64(s.Clock.TotalSteps())
	var years float64
	for i := 0; i < s.Population.Len(); i++ {
		days := exit.Get(i)
		if days < 0 {
			days = window
		}
		years += days / sim.DaysPerYear
	}
	return years
}

func TestMortalityObserver_PopulationAccounting(t *testing.T) {
	s := observerSimulator(t, []string{
		"BasePopulation()",
		"Mortality()",
		"MortalityObserver()",
	}, nil, 4000)
	obs, err := s.Run(context.Background())
	require.NoError(t, err)

	living := obs.Columns["total_population_living"]
	dead := obs.Columns["total_population_dead"]
	untracked := obs.Columns["total_population_untracked"]
	require.Equal(t, 4000.0, living+dead+untracked)
	require.Greater(t, dead, 0.0, "background mortality should claim some simulants")
	require.Greater(t, untracked, 0.0, "simulants crossing the exit age should untrack")

	require.Equal(t, dead, obs.Columns["death_due_to_other_causes"],
		"with no modeled causes every death is due to other causes")
	require.InEpsilon(t, obs.Columns["years_of_life_lost"], obs.Columns["ylls_due_to_other_causes"], 1e-9)
	require.Greater(t, obs.Columns["years_of_life_lost"], 0.0)
}

func TestMortalityObserver_StrataPartitionDeaths(t *testing.T) {
	s := observerSimulator(t, []string{
		"BasePopulation()",
		"Mortality()",
		"MortalityObserver()",
	}, []string{"mortality"}, 4000)
	obs, err := s.Run(context.Background())
	require.NoError(t, err)

	require.NotContains(t, obs.Columns, "death_due_to_other_causes",
		"stratified runs should not report the bare column")

	binNames := make(map[string]bool)
	for _, bin := range testutil.AgeBins {
		binNames[bin.Name] = true
	}
	for label, v := range obs.Columns {
		if !strings.HasPrefix(label, "death_due_to_") {
			continue
		}
		require.Contains(t, label, "_in_2022", "fixture window lies inside 2022: %s", label)
		require.True(t,
			strings.Contains(label, "_among_male") || strings.Contains(label, "_among_female"),
			"death column missing a sex stratum: %s", label)
		_, group, found := strings.Cut(label, "_in_age_group_")
		require.True(t, found, "death column missing an age stratum: %s", label)
		require.True(t, binNames[group], "unknown age group %q in %s", group, label)
		require.Equal(t, math.Trunc(v), v, "death counts are whole: %s", label)
	}

	dead := obs.Columns["total_population_dead"]
	require.Greater(t, dead, 0.0)
	require.Equal(t, dead, sumColumns(obs, "death_due_to_"))
	require.InEpsilon(t, obs.Columns["years_of_life_lost"], sumColumns(obs, "ylls_due_to_"), 1e-9)
}

func TestDiseaseObserver_PersonTimeConservation(t *testing.T) {
	s := observerSimulator(t, []string{
		"BasePopulation()",
		"Mortality()",
		"SIS('" + lri + "')",
		"DiseaseObserver('" + lri + "')",
	}, nil, 2000)
	obs, err := s.Run(context.Background())
	require.NoError(t, err)

	var got float64
	for label, v := range obs.Columns {
		if strings.HasSuffix(label, "_person_time") {
			got += v
		}
	}
	require.InEpsilon(t, creditedYears(t, s), got, 1e-9,
		"state person time should account for every step a simulant was alive and tracked")
	require.Greater(t, obs.Columns["susceptible_to_"+lri+"_person_time"], obs.Columns[lri+"_person_time"],
		"3.2%% prevalence keeps most person time susceptible")
}

func TestDiseaseObserver_CountsTransitions(t *testing.T) {
	s := observerSimulator(t, []string{
		"BasePopulation()",
		"Mortality()",
		"SIS('" + lri + "')",
		"DiseaseObserver('" + lri + "')",
	}, nil, 2000)
	obs, err := s.Run(context.Background())
	require.NoError(t, err)

	incidence := obs.Columns["susceptible_to_"+lri+"_to_"+lri+"_event_count"]
	remission := obs.Columns[lri+"_to_susceptible_to_"+lri+"_event_count"]
	require.Greater(t, incidence, 0.0, "1.2 per person-year incidence over a quarter")
	require.Greater(t, remission, 0.0, "ten-day episodes should resolve within the window")
	require.Equal(t, math.Trunc(incidence), incidence)
	require.Equal(t, math.Trunc(remission), remission)
}

func TestDiseaseObserver_RequiresModel(t *testing.T) {
	s := observerSimulator(t, []string{
		"BasePopulation()",
		"Mortality()",
		"DiseaseObserver('measles')",
	}, nil, 0)
	err := s.Setup(context.Background())
	require.ErrorContains(t, err, "no disease model")
}

func TestDisabilityObserver_AccruesInfectedTime(t *testing.T) {
	s := observerSimulator(t, []string{
		"BasePopulation()",
		"Mortality()",
		"SIS('" + lri + "')",
		"DisabilityObserver()",
	}, nil, 2000)
	obs, err := s.Run(context.Background())
	require.NoError(t, err)

	ylds := obs.Columns["years_lived_with_disability"]
	require.Greater(t, ylds, 0.0)
	require.InEpsilon(t, ylds, obs.Columns["ylds_due_to_all_causes"], 1e-9)

	window := s.Clock.StepDays() * float64(s.Clock.TotalSteps()) / sim.DaysPerYear
	require.Less(t, ylds, 0.133*2000*window,
		"accrual cannot exceed everyone spending the whole window infected")
}

func TestDisabilityObserver_ZeroWithoutDisablingStates(t *testing.T) {
	s := observerSimulator(t, []string{
		"BasePopulation()",
		"Mortality()",
		"DisabilityObserver()",
	}, nil, 0)
	obs, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, obs.Columns["years_lived_with_disability"])
	require.NotContains(t, obs.Columns, "ylds_due_to_all_causes")
}

func TestCategoricalRiskObserver_WastingPersonTime(t *testing.T) {
	s := observerSimulator(t, []string{
		"BasePopulation()",
		"Mortality()",
		"Risk('risk_factor.wasting_treatment')",
		"ChildWasting()",
		"CategoricalRiskObserver('child_wasting')",
	}, []string{"child_wasting"}, 2000)
	obs, err := s.Run(context.Background())
	require.NoError(t, err)

	for label := range obs.Columns {
		require.True(t, strings.HasPrefix(label, "child_wasting_cat"),
			"unexpected column %s", label)
		require.Contains(t, label, "_person_time")
	}
	require.InEpsilon(t, creditedYears(t, s), sumColumns(obs, "child_wasting_cat"), 1e-9)
	require.Greater(t,
		sumColumns(obs, "child_wasting_cat4_person_time"),
		sumColumns(obs, "child_wasting_cat1_person_time"),
		"74%% of exposure is unwasted, 3%% severely wasted")
}

func TestStrataLabels(t *testing.T) {
	full := &strata{byAge: true, bySex: true, byYear: true, bins: testutil.AgeBins}
	require.Equal(t,
		"death_due_to_other_causes_in_2023_among_male_in_age_group_early_neonatal",
		full.label("death_due_to_other_causes", 2023, "Male", 0.005))

	clamped := &strata{byAge: true, bins: testutil.AgeBins}
	require.Equal(t, "x_in_age_group_2_to_4", clamped.label("x", 2023, "Female", 7.5),
		"ages past the grouping clamp into the last bin")

	require.Equal(t, "x", (&strata{}).label("x", 2023, "Male", 0.5))
}

func TestComponentNames(t *testing.T) {
	require.Equal(t, "mortality_observer", NewMortalityObserver().Name())
	require.Equal(t, "disability_observer", NewDisabilityObserver().Name())
	require.Equal(t, "disease_observer.measles", NewDiseaseObserver("measles").Name())
	require.Equal(t, "risk_observer.child_wasting", NewCategoricalRiskObserver("child_wasting").Name())
}

func TestObserverCalls_RejectBadArgs(t *testing.T) {
	yaml := testutil.SpecYAML("unused.db", []string{
		"BasePopulation()",
		"MortalityObserver('extra')",
	}, nil)
	ms, err := spec.Parse([]byte(yaml))
	require.NoError(t, err)
	_, err = sim.NewSimulator(ms, sim.Options{})
	require.ErrorContains(t, err, "MortalityObserver")
}
