package disease

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ihmeuw/vivarium-compass-sam/sim"
	"github.com/ihmeuw/vivarium-compass-sam/sim/internal/testutil"
	"github.com/ihmeuw/vivarium-compass-sam/sim/population"
	"github.com/ihmeuw/vivarium-compass-sam/sim/spec"
)

const lri = "lower_respiratory_infections"

func sisSimulator(t *testing.T, popSize int) *sim.Simulator {
	t.Helper()
	yaml := testutil.SpecYAML(testutil.BuildArtifact(t), []string{
		"BasePopulation()",
		"Mortality()",
		"SIS('" + lri + "')",
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

func TestSIS_PrevalenceSeedsInfections(t *testing.T) {
	s := sisSimulator(t, 4000)
	require.NoError(t, s.Setup(context.Background()))

	state, err := s.Population.StringColumn(lri)
	require.NoError(t, err)
	infected := 0
	for i := 0; i < s.Population.Len(); i++ {
		switch state.Get(i) {
		case lri:
			infected++
		case "susceptible_to_" + lri:
		default:
			t.Fatalf("simulant %d in state %q", i, state.Get(i))
		}
	}
	frac := float64(infected) / float64(s.Population.Len())
	require.Greater(t, frac, 0.01, "3.2%% prevalence should seed infections")
	require.Less(t, frac, 0.06)
}

func TestSIS_ClaimsMortalityHazardSlot(t *testing.T) {
	s := sisSimulator(t, 0)
	require.NoError(t, s.Setup(context.Background()))
	require.Contains(t, s.Values.Vector(population.MortalityRatePipeline).Categories(), lri)
}

func TestSIS_TransitionsOverRun(t *testing.T) {
	s := sisSimulator(t, 4000)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	state, err := s.Population.StringColumn(lri)
	require.NoError(t, err)
	prev, err := s.Population.StringColumn("previous_" + lri)
	require.NoError(t, err)
	alive, err := s.Population.StringColumn(population.ColAlive)
	require.NoError(t, err)

	infected, living := 0, 0
	for i := 0; i < s.Population.Len(); i++ {
		if !alive.Is(i, population.Alive) {
			continue
		}
		living++
		if state.Is(i, lri) {
			infected++
		}
		require.NotEmpty(t, prev.Get(i))
	}
	frac := float64(infected) / float64(living)
	require.Greater(t, frac, 0.005, "incidence should keep some simulants infected")
	require.Less(t, frac, 0.15, "ten-day remission should keep point prevalence low")
}

func TestSIS_NewbornsStartSusceptible(t *testing.T) {
	yaml := testutil.SpecYAML(testutil.BuildArtifact(t), []string{
		"BasePopulation()",
		"Mortality()",
		"FertilityCrudeBirthRate()",
		"SIS('" + lri + "')",
	}, nil)
	ms, err := spec.Parse([]byte(yaml))
	require.NoError(t, err)
	ms.Configuration.Population.PopulationSize = 4000
	s, err := sim.NewSimulator(ms, sim.Options{})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	require.Greater(t, s.Population.Len(), 4000)

	state, err := s.Population.StringColumn(lri)
	require.NoError(t, err)
	susceptible := 0
	newborns := s.Population.Len() - 4000
	for i := 4000; i < s.Population.Len(); i++ {
		if state.Is(i, "susceptible_to_"+lri) {
			susceptible++
		}
	}
	require.Greater(t, float64(susceptible)/float64(newborns), 0.8,
		"newborns start susceptible; only subsequent incidence may infect them")
}

func TestMachine_NameHelpers(t *testing.T) {
	m := NewSIS(lri).Model()
	require.Equal(t, lri, m.StateColumn())
	require.Equal(t, []string{"susceptible_to_" + lri, lri}, m.StateNames())
	require.Equal(t, []string{
		"susceptible_to_" + lri + "_to_" + lri,
		lri + "_to_susceptible_to_" + lri,
	}, m.TransitionNames())
}
